package repository

import (
	"context"

	"streamguard/internal/timerule/domain"
)

// Repository defines persistence for time rules.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Rule, error)
	// ListByUser returns every rule of the user, user-wide and device-specific.
	ListByUser(ctx context.Context, userID string) ([]domain.Rule, error)
	// ListForDevice returns rules that apply to the device: user-wide ones plus those naming it.
	ListForDevice(ctx context.Context, userID, deviceIdentifier string) ([]domain.Rule, error)
	Create(ctx context.Context, r *domain.Rule) error
	Update(ctx context.Context, r *domain.Rule) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	// ReplaceScope deletes every rule of exactly (userID, deviceIdentifier) and inserts rules in one
	// transaction. Either all rules are visible afterwards or the old set is untouched.
	ReplaceScope(ctx context.Context, userID, deviceIdentifier string, rules []domain.Rule) error
}
