package repository

import (
	"context"
	"time"

	"streamguard/internal/session/domain"
)

// ListFilter narrows List. Zero fields do not filter.
type ListFilter struct {
	UserID     string
	ActiveOnly bool
	Limit      int32
}

// Repository defines persistence for session history.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.History, error)
	// ListOpen returns every session whose ended_at is null.
	ListOpen(ctx context.Context) ([]*domain.History, error)
	List(ctx context.Context, f ListFilter) ([]*domain.History, error)
	// Create inserts an open session. Returns a unique violation if the key already has an open row.
	Create(ctx context.Context, h *domain.History) error
	// UpdateSnapshot writes the observed metadata fields of an open session.
	UpdateSnapshot(ctx context.Context, h *domain.History) error
	// Close sets ended_at and player_state=stopped if the session is still open.
	Close(ctx context.Context, id string, at time.Time) error
	MarkTerminated(ctx context.Context, id, stopCode string, at time.Time) error
}
