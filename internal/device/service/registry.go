// Package service implements the Device Registry: device identity, the approval lifecycle and
// temporary-access grants.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamguard/internal/audit"
	auditdomain "streamguard/internal/audit/domain"
	"streamguard/internal/db"
	"streamguard/internal/device/domain"
	"streamguard/internal/device/repository"
	"streamguard/internal/logger"
)

// ErrInvalidDuration is returned when a temporary grant is not a positive number of minutes.
var ErrInvalidDuration = errors.New("temporary access duration must be positive")

// DeviceRepo is the minimal device repository needed by the registry.
type DeviceRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	GetByUserAndIdentifier(ctx context.Context, userID, identifier string) (*domain.Device, error)
	List(ctx context.Context, f repository.ListFilter) ([]*domain.Device, error)
	Create(ctx context.Context, d *domain.Device) error
	RecordSighting(ctx context.Context, id string, s domain.Sighting, increment int, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, at time.Time) (bool, error)
	SetTemporaryAccess(ctx context.Context, id string, expiresAt *time.Time, at time.Time) (bool, error)
	ClearCurrentSession(ctx context.Context, userID, identifier, sessionKey string, at time.Time) error
	Delete(ctx context.Context, id string) (bool, error)
}

// Registry is the sole writer of device status and temporary-access fields.
type Registry struct {
	repo  DeviceRepo
	audit audit.AuditLogger
	log   logger.Logger
	nowF  func() time.Time
}

// NewRegistry returns a Registry. auditLogger may be nil.
func NewRegistry(repo DeviceRepo, auditLogger audit.AuditLogger, log logger.Logger) *Registry {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if log == nil {
		log = logger.NewTestLogger()
	}
	return &Registry{repo: repo, audit: auditLogger, log: log.WithComponent("device_registry"), nowF: time.Now}
}

// RecordSighting registers one new stream from the device. Unknown devices are created pending with a
// session count of 1; known devices get lastSeen and the session count bumped, empty descriptive fields
// filled and network fields refreshed.
func (r *Registry) RecordSighting(ctx context.Context, s domain.Sighting) (*domain.Device, error) {
	return r.sight(ctx, s, 1)
}

// Touch refreshes a device seen again in an already known stream without counting a new stream.
func (r *Registry) Touch(ctx context.Context, s domain.Sighting) (*domain.Device, error) {
	return r.sight(ctx, s, 0)
}

func (r *Registry) sight(ctx context.Context, s domain.Sighting, increment int) (*domain.Device, error) {
	s.UserID = strings.TrimSpace(s.UserID)
	s.Identifier = strings.TrimSpace(s.Identifier)
	if s.UserID == "" || s.Identifier == "" {
		return nil, errors.New("device sighting: user id and device identifier are required")
	}
	now := r.nowF().UTC()

	existing, err := r.repo.GetByUserAndIdentifier(ctx, s.UserID, s.Identifier)
	if err != nil {
		return nil, fmt.Errorf("device sighting: lookup: %w", err)
	}
	if existing == nil {
		d := &domain.Device{
			ID:                uuid.New().String(),
			UserID:            s.UserID,
			Username:          s.Username,
			Identifier:        s.Identifier,
			DisplayName:       s.DisplayName,
			Platform:          s.Platform,
			Product:           s.Product,
			Status:            domain.StatusPending,
			SessionCount:      1,
			IPAddress:         s.IPAddress,
			UserAgent:         s.UserAgent,
			CurrentSessionKey: s.SessionKey,
			FirstSeenAt:       now,
			LastSeenAt:        now,
			UpdatedAt:         now,
		}
		err := r.repo.Create(ctx, d)
		if err == nil {
			r.log.Info().Str("user_id", d.UserID).Str("device_identifier", d.Identifier).Msg("new device pending approval")
			return d, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("device sighting: create: %w", err)
		}
		// Lost a race with a concurrent first sighting; fall through to update the winner's row.
		existing, err = r.repo.GetByUserAndIdentifier(ctx, s.UserID, s.Identifier)
		if err != nil {
			return nil, fmt.Errorf("device sighting: reload after conflict: %w", err)
		}
		if existing == nil {
			return nil, errors.New("device sighting: device vanished after conflict")
		}
	}

	if _, err := r.repo.RecordSighting(ctx, existing.ID, s, increment, now); err != nil {
		return nil, fmt.Errorf("device sighting: update: %w", err)
	}
	mergeSighting(existing, s, increment, now)
	return existing, nil
}

// mergeSighting mirrors the repository update on the in-memory copy.
func mergeSighting(d *domain.Device, s domain.Sighting, increment int, now time.Time) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&d.Username, s.Username)
	fill(&d.DisplayName, s.DisplayName)
	fill(&d.Platform, s.Platform)
	fill(&d.Product, s.Product)
	d.IPAddress = s.IPAddress
	d.UserAgent = s.UserAgent
	d.SessionCount += increment
	if s.SessionKey != "" {
		d.CurrentSessionKey = s.SessionKey
	}
	d.LastSeenAt = now
	d.UpdatedAt = now
}

// ReleaseSession clears the device's current session if it is still sessionKey.
func (r *Registry) ReleaseSession(ctx context.Context, userID, identifier, sessionKey string) error {
	if err := r.repo.ClearCurrentSession(ctx, userID, identifier, sessionKey, r.nowF().UTC()); err != nil {
		return fmt.Errorf("release device session: %w", err)
	}
	return nil
}

// Get returns the device for id, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*domain.Device, error) {
	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

// Lookup returns the device for (userID, identifier), or nil if it has never been seen.
func (r *Registry) Lookup(ctx context.Context, userID, identifier string) (*domain.Device, error) {
	return r.repo.GetByUserAndIdentifier(ctx, userID, identifier)
}

// List returns devices matching f.
func (r *Registry) List(ctx context.Context, f repository.ListFilter) ([]*domain.Device, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("unknown device status %q", f.Status)
	}
	return r.repo.List(ctx, f)
}

// Approve sets status approved regardless of the current status.
func (r *Registry) Approve(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.StatusApproved, auditdomain.ActionDeviceApprove)
}

// Reject sets status rejected regardless of the current status.
func (r *Registry) Reject(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.StatusRejected, auditdomain.ActionDeviceReject)
}

func (r *Registry) setStatus(ctx context.Context, id string, status domain.Status, action string) error {
	ok, err := r.repo.UpdateStatus(ctx, id, status, r.nowF().UTC())
	if err != nil {
		return fmt.Errorf("set device status: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	r.audit.LogEvent(ctx, action, auditdomain.ResourceDevice, id, `{"status":"`+string(status)+`"}`)
	return nil
}

// Delete removes the device. A later sighting recreates it as pending.
func (r *Registry) Delete(ctx context.Context, id string) error {
	ok, err := r.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	r.audit.LogEvent(ctx, auditdomain.ActionDeviceDelete, auditdomain.ResourceDevice, id, "")
	return nil
}

// GrantTemporaryAccess lets the device stream for durationMinutes from now, regardless of status.
// Status itself is unchanged. Returns the new expiry.
func (r *Registry) GrantTemporaryAccess(ctx context.Context, id string, durationMinutes int) (time.Time, error) {
	if durationMinutes <= 0 {
		return time.Time{}, ErrInvalidDuration
	}
	now := r.nowF().UTC()
	expires := now.Add(time.Duration(durationMinutes) * time.Minute)
	ok, err := r.repo.SetTemporaryAccess(ctx, id, &expires, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("grant temporary access: %w", err)
	}
	if !ok {
		return time.Time{}, domain.ErrNotFound
	}
	r.audit.LogEvent(ctx, auditdomain.ActionDeviceGrant, auditdomain.ResourceDevice, id,
		`{"expires_at":"`+expires.Format(time.RFC3339)+`"}`)
	return expires, nil
}

// RevokeTemporaryAccess clears any temporary grant.
func (r *Registry) RevokeTemporaryAccess(ctx context.Context, id string) error {
	ok, err := r.repo.SetTemporaryAccess(ctx, id, nil, r.nowF().UTC())
	if err != nil {
		return fmt.Errorf("revoke temporary access: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	r.audit.LogEvent(ctx, auditdomain.ActionDeviceRevoke, auditdomain.ResourceDevice, id, "")
	return nil
}

// IsTemporaryAccessValid reports whether d has a grant that has not yet expired.
func (r *Registry) IsTemporaryAccessValid(d *domain.Device) bool {
	return d.HasTemporaryAccess(r.nowF())
}
