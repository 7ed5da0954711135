package domain

import (
	"errors"
	"time"
)

// Status is the approval state of a device.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ErrNotFound is returned by admin operations that target a missing device.
var ErrNotFound = errors.New("device not found")

// Device is a client player identified by (UserID, Identifier).
type Device struct {
	ID           string
	UserID       string
	Username     string
	Identifier   string
	DisplayName  string
	Platform     string
	Product      string
	Status       Status
	SessionCount int
	IPAddress    string
	UserAgent    string
	// TemporaryAccessExpiresAt is nil when no grant is active or was ever made.
	TemporaryAccessExpiresAt *time.Time
	// CurrentSessionKey is the session presently using this device; empty when idle.
	CurrentSessionKey string
	FirstSeenAt       time.Time
	LastSeenAt        time.Time
	UpdatedAt         time.Time
}

// Sighting carries what a live session reveals about its device.
type Sighting struct {
	UserID      string
	Username    string
	Identifier  string
	DisplayName string
	Platform    string
	Product     string
	IPAddress   string
	UserAgent   string
	// SessionKey, when set, becomes the device's CurrentSessionKey.
	SessionKey string
}

// HasTemporaryAccess reports whether a temporary grant is active at now.
func (d *Device) HasTemporaryAccess(now time.Time) bool {
	return d != nil && d.TemporaryAccessExpiresAt != nil && d.TemporaryAccessExpiresAt.After(now)
}
