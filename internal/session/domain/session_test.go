package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr(v int64) *int64 { return &v }

func TestMerge(t *testing.T) {
	h := &History{Username: "alice", Product: "Plex Web", Bitrate: ptr(4000), PlayerState: StatePlaying}

	changed := Merge(h, &History{Product: "", Bitrate: nil, ViewOffsetMs: ptr(500), PlayerState: StatePaused})
	assert.True(t, changed)
	assert.Equal(t, "alice", h.Username)
	assert.Equal(t, "Plex Web", h.Product, "empty strings never clear")
	assert.Equal(t, int64(4000), *h.Bitrate, "nil numbers never clear")
	assert.Equal(t, int64(500), *h.ViewOffsetMs)
	assert.Equal(t, StatePaused, h.PlayerState)

	assert.False(t, Merge(h, &History{Username: "alice", Bitrate: ptr(4000)}))
}

func TestMerge_CopiesNumbers(t *testing.T) {
	observed := &History{Year: ptr(1999)}
	h := &History{}
	Merge(h, observed)
	*observed.Year = 2001
	assert.Equal(t, int64(1999), *h.Year)
}

func TestActive(t *testing.T) {
	h := &History{}
	assert.True(t, h.Active())
	now := time.Now()
	h.EndedAt = &now
	assert.False(t, h.Active())
}
