package repository

import (
	"context"

	"streamguard/internal/userpref/domain"
)

// Repository defines persistence for user preferences.
type Repository interface {
	// GetByUserID returns nil if the user has no preference row.
	GetByUserID(ctx context.Context, userID string) (*domain.Preference, error)
	Upsert(ctx context.Context, p *domain.Preference) error
	// InsertIfMissing returns false when a row already existed.
	InsertIfMissing(ctx context.Context, p *domain.Preference) (bool, error)
}
