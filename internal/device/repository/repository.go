package repository

import (
	"context"
	"time"

	"streamguard/internal/device/domain"
)

// ListFilter narrows List. Zero fields do not filter.
type ListFilter struct {
	UserID string
	Status domain.Status
}

// Repository defines persistence for devices.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	GetByUserAndIdentifier(ctx context.Context, userID, identifier string) (*domain.Device, error)
	List(ctx context.Context, f ListFilter) ([]*domain.Device, error)
	// Create inserts d. Returns an error satisfying db.IsUniqueViolation if (UserID, Identifier) exists.
	Create(ctx context.Context, d *domain.Device) error
	// RecordSighting refreshes last-seen network fields, fills empty descriptive fields without
	// overwriting known ones, and adds increment to the session count. Returns false if id is missing.
	RecordSighting(ctx context.Context, id string, s domain.Sighting, increment int, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, at time.Time) (bool, error)
	// SetTemporaryAccess sets or (with nil) clears the grant expiry.
	SetTemporaryAccess(ctx context.Context, id string, expiresAt *time.Time, at time.Time) (bool, error)
	// ClearCurrentSession clears current_session_key only where it still equals sessionKey.
	ClearCurrentSession(ctx context.Context, userID, identifier, sessionKey string, at time.Time) error
	Delete(ctx context.Context, id string) (bool, error)
}
