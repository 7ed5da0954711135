package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamguard/internal/notify"
)

func captureServer(t *testing.T, status int, got *PushRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/push", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EmptyURL(t *testing.T) {
	_, err := New("  ", nil)
	assert.Error(t, err)
}

func TestPushEventJSON_Labels(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusNoContent, &got)
	c, err := New(srv.URL+"/", srv.Client())
	require.NoError(t, err)

	at := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(notify.StreamBlocked{UserID: "plex user 1", StopCode: "DEVICE_PENDING", OccurredAt: at})
	require.NoError(t, err)
	require.NoError(t, c.PushEventJSON(context.Background(), raw))

	require.Len(t, got.Streams, 1)
	s := got.Streams[0]
	assert.Equal(t, map[string]string{"job": Job, "stop_code": "DEVICE_PENDING", "user_id": "plex_user_1"}, s.Stream)
	require.Len(t, s.Values, 1)
	assert.Equal(t, "1772481600000000000", s.Values[0][0])
	assert.Equal(t, string(raw), s.Values[0][1])
}

func TestPushEventJSON_Unparseable(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusNoContent, &got)
	c, err := New(srv.URL, srv.Client())
	require.NoError(t, err)

	require.NoError(t, c.PushEventJSON(context.Background(), []byte("not json")))
	assert.Equal(t, map[string]string{"job": Job}, got.Streams[0].Stream)
	assert.Equal(t, "not json", got.Streams[0].Values[0][1])
}

func TestPush_ErrorStatus(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusBadRequest, &got)
	c, err := New(srv.URL, srv.Client())
	require.NoError(t, err)

	err = c.Push(context.Background(), time.Now(), "line", nil)
	assert.ErrorContains(t, err, "400")
}
