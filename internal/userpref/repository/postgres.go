package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"streamguard/internal/userpref/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a preference repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByUserID returns the preference for userID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*domain.Preference, error) {
	var (
		p          domain.Preference
		block      sql.NullBool
		network    string
		ipAccess   string
		allowedRaw []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, default_block, network_policy, ip_access_policy, allowed_ips, created_at, updated_at
		FROM user_preferences WHERE user_id = $1`, userID).
		Scan(&p.UserID, &block, &network, &ipAccess, &allowedRaw, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if block.Valid {
		b := block.Bool
		p.DefaultBlock = &b
	}
	p.NetworkPolicy = domain.NetworkPolicy(network)
	p.IPAccessPolicy = domain.IPAccessPolicy(ipAccess)
	if len(allowedRaw) > 0 {
		if err := json.Unmarshal(allowedRaw, &p.AllowedIPs); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// Upsert writes every field of p.
func (r *PostgresRepository) Upsert(ctx context.Context, p *domain.Preference) error {
	allowed, err := encodeAllowed(p.AllowedIPs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, default_block, network_policy, ip_access_policy, allowed_ips, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			default_block = EXCLUDED.default_block,
			network_policy = EXCLUDED.network_policy,
			ip_access_policy = EXCLUDED.ip_access_policy,
			allowed_ips = EXCLUDED.allowed_ips,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, nullBool(p.DefaultBlock), string(p.NetworkPolicy), string(p.IPAccessPolicy), allowed, p.CreatedAt, p.UpdatedAt)
	return err
}

// InsertIfMissing creates the row unless one exists.
func (r *PostgresRepository) InsertIfMissing(ctx context.Context, p *domain.Preference) (bool, error) {
	allowed, err := encodeAllowed(p.AllowedIPs)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, default_block, network_policy, ip_access_policy, allowed_ips, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		ON CONFLICT (user_id) DO NOTHING`,
		p.UserID, nullBool(p.DefaultBlock), string(p.NetworkPolicy), string(p.IPAccessPolicy), allowed, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func encodeAllowed(ips []string) (string, error) {
	if ips == nil {
		ips = []string{}
	}
	b, err := json.Marshal(ips)
	return string(b), err
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
