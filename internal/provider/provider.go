// Package provider defines the media-server adapter contract and the normalized session shape every
// adapter produces. Adapters live in subpackages.
package provider

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured means the provider address or credentials are missing; callers skip the cycle.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrSessionNotFound is what adapters map "already gone" responses to internally; TerminateSession
	// never returns it.
	ErrSessionNotFound = errors.New("provider session not found")
)

// Location is the provider's view of which side of the LAN the client is on.
type Location string

const (
	LocationLAN Location = "lan"
	LocationWAN Location = "wan"
)

// State is the playback state reported by the provider.
type State string

const (
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateBuffering State = "buffering"
)

type User struct {
	ID          string
	DisplayName string
}

type Device struct {
	Identifier string
	Platform   string
	Product    string
	Title      string
	// Address is the client IP as seen by the provider.
	Address   string
	UserAgent string
}

type Media struct {
	Resolution string
	Bitrate    *int64
	Container  string
	VideoCodec string
	AudioCodec string
}

type Content struct {
	Title            string
	Type             string
	ParentTitle      string
	GrandparentTitle string
	Year             *int64
	// Duration and ViewOffset are milliseconds.
	Duration   *int64
	ViewOffset *int64
}

type Network struct {
	Location  Location
	Bandwidth *int64
}

// Session is one live playback normalized from a provider payload. Unknown values are left empty or nil.
type Session struct {
	SessionKey string
	User       User
	Device     Device
	Media      Media
	Content    Content
	Network    Network
	State      State
}

// ConnectionResult is the outcome of TestConnection.
type ConnectionResult struct {
	Success bool
	Message string
	// Code is set when Success is false.
	Code ErrorKind
}

// Provider is implemented once per media-server type.
type Provider interface {
	// GetSessions returns every live playback session.
	GetSessions(ctx context.Context) ([]Session, error)
	// TerminateSession stops the session with a message shown to the viewer. A session that no longer
	// exists counts as terminated.
	TerminateSession(ctx context.Context, sessionKey, reason string) error
	TestConnection(ctx context.Context) ConnectionResult
	// GetServerIdentity returns the server's stable identifier, or "" if the server does not report one.
	GetServerIdentity(ctx context.Context) (string, error)
}
