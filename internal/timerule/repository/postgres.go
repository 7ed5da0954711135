package repository

import (
	"context"
	"database/sql"
	"errors"

	"streamguard/internal/db"
	"streamguard/internal/timerule/domain"
)

const ruleColumns = `id, user_id, device_identifier, day_of_week, start_time, end_time, action, enabled, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a time rule repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the rule for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Rule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM time_rules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// ListByUser returns all rules of the user ordered by day and start.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]domain.Rule, error) {
	return r.query(ctx, `SELECT `+ruleColumns+` FROM time_rules WHERE user_id = $1
		ORDER BY device_identifier NULLS FIRST, day_of_week, start_time`, userID)
}

// ListForDevice returns user-wide rules and rules for deviceIdentifier.
func (r *PostgresRepository) ListForDevice(ctx context.Context, userID, deviceIdentifier string) ([]domain.Rule, error) {
	return r.query(ctx, `SELECT `+ruleColumns+` FROM time_rules
		WHERE user_id = $1 AND (device_identifier IS NULL OR device_identifier = $2)
		ORDER BY day_of_week, start_time`, userID, deviceIdentifier)
}

// Create persists the rule. The rule must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, rule *domain.Rule) error {
	return insertRule(ctx, r.db, rule)
}

// Update writes every mutable field of the rule.
func (r *PostgresRepository) Update(ctx context.Context, rule *domain.Rule) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE time_rules SET device_identifier = $2, day_of_week = $3, start_time = $4, end_time = $5,
			action = $6, enabled = $7, updated_at = $8
		WHERE id = $1`,
		rule.ID, db.NullString(rule.DeviceIdentifier), rule.DayOfWeek, rule.StartTime, rule.EndTime,
		string(rule.Action), rule.Enabled, rule.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Delete removes the rule.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM time_rules WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReplaceScope swaps the rule set of one scope inside a single transaction.
func (r *PostgresRepository) ReplaceScope(ctx context.Context, userID, deviceIdentifier string, rules []domain.Rule) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM time_rules WHERE user_id = $1 AND device_identifier IS NOT DISTINCT FROM $2`,
			userID, db.NullString(deviceIdentifier)); err != nil {
			return err
		}
		for i := range rules {
			if err := insertRule(ctx, tx, &rules[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRule(ctx context.Context, e execer, rule *domain.Rule) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO time_rules (`+ruleColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rule.ID, rule.UserID, db.NullString(rule.DeviceIdentifier), rule.DayOfWeek, rule.StartTime, rule.EndTime,
		string(rule.Action), rule.Enabled, rule.CreatedAt, rule.UpdatedAt)
	return err
}

func (r *PostgresRepository) query(ctx context.Context, q string, args ...any) ([]domain.Rule, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(s scanner) (domain.Rule, error) {
	var (
		rule   domain.Rule
		device sql.NullString
		action string
	)
	if err := s.Scan(&rule.ID, &rule.UserID, &device, &rule.DayOfWeek, &rule.StartTime, &rule.EndTime,
		&action, &rule.Enabled, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return domain.Rule{}, err
	}
	rule.DeviceIdentifier = device.String
	rule.Action = domain.Action(action)
	return rule, nil
}
