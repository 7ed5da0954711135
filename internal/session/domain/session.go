package domain

import "time"

// Player states recorded on a history row.
const (
	StatePlaying   = "playing"
	StatePaused    = "paused"
	StateBuffering = "buffering"
	StateStopped   = "stopped"
)

// History is one logical streaming session keyed by the provider's session key. It is active
// exactly while EndedAt is nil.
type History struct {
	ID               string
	SessionKey       string
	ServerIdentity   string
	UserID           string
	Username         string
	DeviceIdentifier string
	DeviceName       string
	Platform         string
	Product          string
	IPAddress        string
	Location         string
	Bandwidth        *int64
	Resolution       string
	Bitrate          *int64
	Container        string
	VideoCodec       string
	AudioCodec       string
	ContentTitle     string
	ContentType      string
	ParentTitle      string
	GrandparentTitle string
	Year             *int64
	DurationMs       *int64
	ViewOffsetMs     *int64
	PlayerState      string
	Terminated       bool
	StopCode         string
	StartedAt        time.Time
	UpdatedAt        time.Time
	EndedAt          *time.Time
}

// Active reports whether the session has not ended.
func (h *History) Active() bool {
	return h.EndedAt == nil
}

// Merge copies every field present in observed (non-empty string, non-nil number) onto h and
// reports whether anything changed. Known fields are never cleared.
func Merge(h *History, observed *History) bool {
	changed := false
	str := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	num := func(dst **int64, v *int64) {
		if v != nil && (*dst == nil || **dst != *v) {
			n := *v
			*dst = &n
			changed = true
		}
	}
	str(&h.ServerIdentity, observed.ServerIdentity)
	str(&h.Username, observed.Username)
	str(&h.DeviceName, observed.DeviceName)
	str(&h.Platform, observed.Platform)
	str(&h.Product, observed.Product)
	str(&h.IPAddress, observed.IPAddress)
	str(&h.Location, observed.Location)
	num(&h.Bandwidth, observed.Bandwidth)
	str(&h.Resolution, observed.Resolution)
	num(&h.Bitrate, observed.Bitrate)
	str(&h.Container, observed.Container)
	str(&h.VideoCodec, observed.VideoCodec)
	str(&h.AudioCodec, observed.AudioCodec)
	str(&h.ContentTitle, observed.ContentTitle)
	str(&h.ContentType, observed.ContentType)
	str(&h.ParentTitle, observed.ParentTitle)
	str(&h.GrandparentTitle, observed.GrandparentTitle)
	num(&h.Year, observed.Year)
	num(&h.DurationMs, observed.DurationMs)
	num(&h.ViewOffsetMs, observed.ViewOffsetMs)
	str(&h.PlayerState, observed.PlayerState)
	return changed
}
