// Package service validates and persists time rules. Overlap and range violations are rejected here,
// before a rule can reach the policy evaluator.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamguard/internal/audit"
	auditdomain "streamguard/internal/audit/domain"
	"streamguard/internal/timerule/domain"
)

// RuleRepo is the minimal time rule repository needed by the service.
type RuleRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Rule, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Rule, error)
	ListForDevice(ctx context.Context, userID, deviceIdentifier string) ([]domain.Rule, error)
	Create(ctx context.Context, r *domain.Rule) error
	Update(ctx context.Context, r *domain.Rule) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	ReplaceScope(ctx context.Context, userID, deviceIdentifier string, rules []domain.Rule) error
}

// Service manages time rules.
type Service struct {
	repo  RuleRepo
	audit audit.AuditLogger
	nowF  func() time.Time
}

// NewService returns a time rule service. auditLogger may be nil.
func NewService(repo RuleRepo, auditLogger audit.AuditLogger) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Service{repo: repo, audit: auditLogger, nowF: time.Now}
}

func normalize(r *domain.Rule) {
	r.UserID = strings.TrimSpace(r.UserID)
	r.DeviceIdentifier = strings.TrimSpace(r.DeviceIdentifier)
	r.StartTime = strings.TrimSpace(r.StartTime)
	r.EndTime = strings.TrimSpace(r.EndTime)
	r.Action = domain.Action(strings.ToLower(string(r.Action)))
}

// Create validates r, rejects it if it overlaps an enabled rule of the same scope and day, then stores it.
func (s *Service) Create(ctx context.Context, r domain.Rule) (*domain.Rule, error) {
	normalize(&r)
	r.ID = ""
	if err := domain.Validate(r); err != nil {
		return nil, err
	}
	if err := s.checkConflicts(ctx, r); err != nil {
		return nil, err
	}
	now := s.nowF().UTC()
	r.ID = uuid.New().String()
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := s.repo.Create(ctx, &r); err != nil {
		return nil, fmt.Errorf("create time rule: %w", err)
	}
	s.audit.LogEvent(ctx, auditdomain.ActionRuleCreate, auditdomain.ResourceTimeRule, r.ID, ruleMetadata(r))
	return &r, nil
}

// Update replaces the mutable fields of the rule with r.ID. The owner cannot change and the rule is
// excluded from its own overlap check.
func (s *Service) Update(ctx context.Context, r domain.Rule) (*domain.Rule, error) {
	existing, err := s.repo.GetByID(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("update time rule: %w", err)
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	normalize(&r)
	r.UserID = existing.UserID
	r.CreatedAt = existing.CreatedAt
	if err := domain.Validate(r); err != nil {
		return nil, err
	}
	if err := s.checkConflicts(ctx, r); err != nil {
		return nil, err
	}
	r.UpdatedAt = s.nowF().UTC()
	ok, err := s.repo.Update(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("update time rule: %w", err)
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	s.audit.LogEvent(ctx, auditdomain.ActionRuleUpdate, auditdomain.ResourceTimeRule, r.ID, ruleMetadata(r))
	return &r, nil
}

// SetEnabled toggles a rule. Enabling re-checks overlap since disabled rules are ignored by it.
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) (*domain.Rule, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("toggle time rule: %w", err)
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	r := *existing
	r.Enabled = enabled
	return s.Update(ctx, r)
}

// Delete removes the rule.
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete time rule: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.audit.LogEvent(ctx, auditdomain.ActionRuleDelete, auditdomain.ResourceTimeRule, id, "")
	return nil
}

// List returns all rules of the user.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Rule, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListForDevice returns rules that apply to the device (user-wide and device-specific).
func (s *Service) ListForDevice(ctx context.Context, userID, deviceIdentifier string) ([]domain.Rule, error) {
	return s.repo.ListForDevice(ctx, userID, deviceIdentifier)
}

// ApplyPreset replaces the (userID, deviceIdentifier) rule set with the named preset atomically.
func (s *Service) ApplyPreset(ctx context.Context, userID, deviceIdentifier, preset string) ([]domain.Rule, error) {
	rules, err := domain.Preset(preset, userID, deviceIdentifier)
	if err != nil {
		return nil, err
	}
	out, err := s.replace(ctx, userID, deviceIdentifier, rules)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, auditdomain.ActionRulePreset, auditdomain.ResourceTimeRule, scopeID(userID, deviceIdentifier),
		`{"preset":"`+preset+`"}`)
	return out, nil
}

// ReplaceScope validates rules as a batch and swaps them in for the scope's current set. If any
// rule is invalid or two overlap, nothing is written.
func (s *Service) ReplaceScope(ctx context.Context, userID, deviceIdentifier string, rules []domain.Rule) ([]domain.Rule, error) {
	out, err := s.replace(ctx, userID, deviceIdentifier, rules)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, auditdomain.ActionRulePreset, auditdomain.ResourceTimeRule, scopeID(userID, deviceIdentifier),
		fmt.Sprintf(`{"rules":%d}`, len(out)))
	return out, nil
}

func (s *Service) replace(ctx context.Context, userID, deviceIdentifier string, rules []domain.Rule) ([]domain.Rule, error) {
	userID = strings.TrimSpace(userID)
	deviceIdentifier = strings.TrimSpace(deviceIdentifier)
	now := s.nowF().UTC()
	batch := make([]domain.Rule, len(rules))
	for i, r := range rules {
		normalize(&r)
		r.ID = uuid.New().String()
		r.UserID = userID
		r.DeviceIdentifier = deviceIdentifier
		r.CreatedAt = now
		r.UpdatedAt = now
		batch[i] = r
	}
	if err := domain.ValidateSet(batch); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceScope(ctx, userID, deviceIdentifier, batch); err != nil {
		return nil, fmt.Errorf("replace time rules: %w", err)
	}
	return batch, nil
}

func (s *Service) checkConflicts(ctx context.Context, r domain.Rule) error {
	existing, err := s.repo.ListByUser(ctx, r.UserID)
	if err != nil {
		return fmt.Errorf("check time rule overlap: %w", err)
	}
	return domain.CheckConflicts(r, existing)
}

func scopeID(userID, deviceIdentifier string) string {
	if deviceIdentifier == "" {
		return userID
	}
	return userID + "/" + deviceIdentifier
}

func ruleMetadata(r domain.Rule) string {
	b, _ := json.Marshal(map[string]any{
		"device_identifier": r.DeviceIdentifier,
		"day_of_week":       r.DayOfWeek,
		"start_time":        r.StartTime,
		"end_time":          r.EndTime,
		"action":            r.Action,
		"enabled":           r.Enabled,
	})
	return string(b)
}
