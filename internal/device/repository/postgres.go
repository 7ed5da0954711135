package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"streamguard/internal/db"
	"streamguard/internal/device/domain"
)

const deviceColumns = `id, user_id, username, device_identifier, display_name, platform, product, status,
	session_count, ip_address, user_agent, temporary_access_expires_at, current_session_key,
	first_seen_at, last_seen_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the device for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	return scanOptional(row)
}

// GetByUserAndIdentifier returns the device for the given user and identifier, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserAndIdentifier(ctx context.Context, userID, identifier string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 AND device_identifier = $2`,
		userID, identifier)
	return scanOptional(row)
}

// List returns devices matching f, most recently seen first. Returns (nil, error) only on database errors.
func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]*domain.Device, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, "user_id = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	q := `SELECT ` + deviceColumns + ` FROM devices`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY last_seen_at DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Create persists the device. The device must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.Device) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		d.ID, d.UserID, db.NullString(d.Username), d.Identifier, db.NullString(d.DisplayName),
		db.NullString(d.Platform), db.NullString(d.Product), string(d.Status), d.SessionCount,
		db.NullString(d.IPAddress), db.NullString(d.UserAgent), db.NullTime(d.TemporaryAccessExpiresAt),
		db.NullString(d.CurrentSessionKey), d.FirstSeenAt, d.LastSeenAt, d.UpdatedAt)
	return err
}

// RecordSighting updates the sighting fields in one statement so a concurrent status change is never lost.
func (r *PostgresRepository) RecordSighting(ctx context.Context, id string, s domain.Sighting, increment int, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			username = COALESCE(NULLIF(username, ''), $2),
			display_name = COALESCE(NULLIF(display_name, ''), $3),
			platform = COALESCE(NULLIF(platform, ''), $4),
			product = COALESCE(NULLIF(product, ''), $5),
			ip_address = $6,
			user_agent = $7,
			session_count = session_count + $8,
			current_session_key = COALESCE($9, current_session_key),
			last_seen_at = $10,
			updated_at = $10
		WHERE id = $1`,
		id, db.NullString(s.Username), db.NullString(s.DisplayName), db.NullString(s.Platform),
		db.NullString(s.Product), db.NullString(s.IPAddress), db.NullString(s.UserAgent), increment,
		db.NullString(s.SessionKey), at)
	return affected(res, err)
}

// UpdateStatus sets the approval status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.Status, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE devices SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), at)
	return affected(res, err)
}

// SetTemporaryAccess sets or clears temporary_access_expires_at.
func (r *PostgresRepository) SetTemporaryAccess(ctx context.Context, id string, expiresAt *time.Time, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE devices SET temporary_access_expires_at = $2, updated_at = $3 WHERE id = $1`,
		id, db.NullTime(expiresAt), at)
	return affected(res, err)
}

// ClearCurrentSession releases the device if it still points at sessionKey.
func (r *PostgresRepository) ClearCurrentSession(ctx context.Context, userID, identifier, sessionKey string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET current_session_key = NULL, updated_at = $4
		WHERE user_id = $1 AND device_identifier = $2 AND current_session_key = $3`,
		userID, identifier, sessionKey, at)
	return err
}

// Delete removes the device.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	return affected(res, err)
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOptional(row *sql.Row) (*domain.Device, error) {
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

func scanDevice(s scanner) (*domain.Device, error) {
	var (
		d                                                     domain.Device
		status                                                string
		username, name, platform, product, ip, ua, currentKey sql.NullString
		tempAccess                                            sql.NullTime
	)
	if err := s.Scan(&d.ID, &d.UserID, &username, &d.Identifier, &name, &platform, &product, &status,
		&d.SessionCount, &ip, &ua, &tempAccess, &currentKey, &d.FirstSeenAt, &d.LastSeenAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Status = domain.Status(status)
	d.Username = username.String
	d.DisplayName = name.String
	d.Platform = platform.String
	d.Product = product.String
	d.IPAddress = ip.String
	d.UserAgent = ua.String
	d.TemporaryAccessExpiresAt = db.TimePtr(tempAccess)
	d.CurrentSessionKey = currentKey.String
	return &d, nil
}
