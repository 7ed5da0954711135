package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"streamguard/internal/db"
	"streamguard/internal/session/domain"
)

const historyColumns = `id, session_key, server_identity, user_id, username, device_identifier, device_name,
	platform, product, ip_address, location, bandwidth, resolution, bitrate, container, video_codec,
	audio_codec, content_title, content_type, parent_title, grandparent_title, year, duration_ms,
	view_offset_ms, player_state, terminated, stop_code, started_at, updated_at, ended_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session history repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.History, error) {
	h, err := scanHistory(r.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM session_history WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return h, nil
}

// ListOpen returns all sessions with no ended_at.
func (r *PostgresRepository) ListOpen(ctx context.Context) ([]*domain.History, error) {
	return r.query(ctx, `SELECT `+historyColumns+` FROM session_history WHERE ended_at IS NULL ORDER BY started_at`)
}

// List returns sessions newest first.
func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]*domain.History, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, "user_id = $"+strconv.Itoa(len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "ended_at IS NULL")
	}
	q := `SELECT ` + historyColumns + ` FROM session_history`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY started_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += ` LIMIT $` + strconv.Itoa(len(args))
	}
	return r.query(ctx, q, args...)
}

// Create persists an open session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, h *domain.History) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_history (`+historyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30)`,
		h.ID, h.SessionKey, db.NullString(h.ServerIdentity), h.UserID, db.NullString(h.Username), h.DeviceIdentifier,
		db.NullString(h.DeviceName), db.NullString(h.Platform), db.NullString(h.Product), db.NullString(h.IPAddress),
		db.NullString(h.Location), db.NullInt64(h.Bandwidth), db.NullString(h.Resolution), db.NullInt64(h.Bitrate),
		db.NullString(h.Container), db.NullString(h.VideoCodec), db.NullString(h.AudioCodec),
		db.NullString(h.ContentTitle), db.NullString(h.ContentType), db.NullString(h.ParentTitle),
		db.NullString(h.GrandparentTitle), db.NullInt64(h.Year), db.NullInt64(h.DurationMs),
		db.NullInt64(h.ViewOffsetMs), h.PlayerState, h.Terminated, db.NullString(h.StopCode),
		h.StartedAt, h.UpdatedAt, db.NullTime(h.EndedAt))
	return err
}

// UpdateSnapshot writes the metadata snapshot of an open session.
func (r *PostgresRepository) UpdateSnapshot(ctx context.Context, h *domain.History) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE session_history SET
			server_identity = $2, username = $3, device_name = $4, platform = $5, product = $6,
			ip_address = $7, location = $8, bandwidth = $9, resolution = $10, bitrate = $11,
			container = $12, video_codec = $13, audio_codec = $14, content_title = $15, content_type = $16,
			parent_title = $17, grandparent_title = $18, year = $19, duration_ms = $20, view_offset_ms = $21,
			player_state = $22, updated_at = $23
		WHERE id = $1 AND ended_at IS NULL`,
		h.ID, db.NullString(h.ServerIdentity), db.NullString(h.Username), db.NullString(h.DeviceName),
		db.NullString(h.Platform), db.NullString(h.Product), db.NullString(h.IPAddress), db.NullString(h.Location),
		db.NullInt64(h.Bandwidth), db.NullString(h.Resolution), db.NullInt64(h.Bitrate), db.NullString(h.Container),
		db.NullString(h.VideoCodec), db.NullString(h.AudioCodec), db.NullString(h.ContentTitle),
		db.NullString(h.ContentType), db.NullString(h.ParentTitle), db.NullString(h.GrandparentTitle),
		db.NullInt64(h.Year), db.NullInt64(h.DurationMs), db.NullInt64(h.ViewOffsetMs), h.PlayerState, h.UpdatedAt)
	return err
}

// Close ends the session if it is still open.
func (r *PostgresRepository) Close(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE session_history SET ended_at = $2, player_state = $3, updated_at = $2
		WHERE id = $1 AND ended_at IS NULL`, id, at, domain.StateStopped)
	return err
}

// MarkTerminated flags a session the engine force-stopped.
func (r *PostgresRepository) MarkTerminated(ctx context.Context, id, stopCode string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE session_history SET terminated = TRUE, stop_code = $2, updated_at = $3 WHERE id = $1`,
		id, stopCode, at)
	return err
}

func (r *PostgresRepository) query(ctx context.Context, q string, args ...any) ([]*domain.History, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.History
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(s scanner) (*domain.History, error) {
	var (
		h                                                  domain.History
		serverIdentity, username, deviceName, platform     sql.NullString
		product, ip, location, resolution, container       sql.NullString
		videoCodec, audioCodec, title, contentType, parent sql.NullString
		grandparent, stopCode                              sql.NullString
		bandwidth, bitrate, year, durationMs, viewOffsetMs sql.NullInt64
		endedAt                                            sql.NullTime
	)
	if err := s.Scan(&h.ID, &h.SessionKey, &serverIdentity, &h.UserID, &username, &h.DeviceIdentifier,
		&deviceName, &platform, &product, &ip, &location, &bandwidth, &resolution, &bitrate, &container,
		&videoCodec, &audioCodec, &title, &contentType, &parent, &grandparent, &year, &durationMs,
		&viewOffsetMs, &h.PlayerState, &h.Terminated, &stopCode, &h.StartedAt, &h.UpdatedAt, &endedAt); err != nil {
		return nil, err
	}
	h.ServerIdentity = serverIdentity.String
	h.Username = username.String
	h.DeviceName = deviceName.String
	h.Platform = platform.String
	h.Product = product.String
	h.IPAddress = ip.String
	h.Location = location.String
	h.Bandwidth = db.Int64Ptr(bandwidth)
	h.Resolution = resolution.String
	h.Bitrate = db.Int64Ptr(bitrate)
	h.Container = container.String
	h.VideoCodec = videoCodec.String
	h.AudioCodec = audioCodec.String
	h.ContentTitle = title.String
	h.ContentType = contentType.String
	h.ParentTitle = parent.String
	h.GrandparentTitle = grandparent.String
	h.Year = db.Int64Ptr(year)
	h.DurationMs = db.Int64Ptr(durationMs)
	h.ViewOffsetMs = db.Int64Ptr(viewOffsetMs)
	h.StopCode = stopCode.String
	h.EndedAt = db.TimePtr(endedAt)
	return &h, nil
}
