package repository

import (
	"context"
	"time"
)

// ChangeChannel is the Postgres NOTIFY channel carrying the key of every written setting.
const ChangeChannel = "settings_changed"

// Repository defines persistence for raw setting values.
type Repository interface {
	// List returns every stored key with its raw value.
	List(ctx context.Context) (map[string]string, error)
	// Upsert writes key=value and publishes the key on ChangeChannel when the write commits.
	Upsert(ctx context.Context, key, value string, at time.Time) error
	// InsertIfMissing writes key=value only when key has no row yet. Returns true if it inserted.
	InsertIfMissing(ctx context.Context, key, value string, at time.Time) (bool, error)
}
