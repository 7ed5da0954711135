// Package service manages per-user preferences, creating them lazily from the global defaults.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"streamguard/internal/audit"
	auditdomain "streamguard/internal/audit/domain"
	"streamguard/internal/userpref/domain"
)

// PreferenceRepo is the minimal preference repository needed by the service.
type PreferenceRepo interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Preference, error)
	Upsert(ctx context.Context, p *domain.Preference) error
	InsertIfMissing(ctx context.Context, p *domain.Preference) (bool, error)
}

// Defaults supplies the global policy defaults for new preference rows.
type Defaults interface {
	DefaultNetworkPolicy() string
	DefaultIPAccessPolicy() string
}

// Service reads and writes user preferences.
type Service struct {
	repo     PreferenceRepo
	defaults Defaults
	audit    audit.AuditLogger
	nowF     func() time.Time
}

// NewService returns a preference service. auditLogger may be nil.
func NewService(repo PreferenceRepo, defaults Defaults, auditLogger audit.AuditLogger) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Service{repo: repo, defaults: defaults, audit: auditLogger, nowF: time.Now}
}

// Get returns the user's preference, creating it with defaults on first access.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Preference, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	if p != nil {
		return p, nil
	}
	if err := s.Ensure(ctx, userID); err != nil {
		return nil, err
	}
	p, err = s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	if p == nil {
		// Store returned nothing right after insert; serve defaults so evaluation can proceed.
		return s.newDefault(userID), nil
	}
	return p, nil
}

// Ensure creates the user's preference row with defaults if it does not exist.
func (s *Service) Ensure(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("ensure preference: user id is required")
	}
	if _, err := s.repo.InsertIfMissing(ctx, s.newDefault(userID)); err != nil {
		return fmt.Errorf("ensure preference: %w", err)
	}
	return nil
}

// Set validates and writes p in full.
func (s *Service) Set(ctx context.Context, p *domain.Preference) error {
	if strings.TrimSpace(p.UserID) == "" {
		return errors.New("set preference: user id is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	now := s.nowF().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := s.repo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	meta, _ := json.Marshal(map[string]any{
		"default_block":    p.DefaultBlock,
		"network_policy":   p.NetworkPolicy,
		"ip_access_policy": p.IPAccessPolicy,
		"allowed_ips":      p.AllowedIPs,
	})
	s.audit.LogEvent(ctx, auditdomain.ActionPreferenceWrite, auditdomain.ResourcePreference, p.UserID, string(meta))
	return nil
}

func (s *Service) newDefault(userID string) *domain.Preference {
	now := s.nowF().UTC()
	p := &domain.Preference{
		UserID:         userID,
		NetworkPolicy:  domain.NetworkBoth,
		IPAccessPolicy: domain.IPAccessAll,
		AllowedIPs:     []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if s.defaults != nil {
		if v := domain.NetworkPolicy(s.defaults.DefaultNetworkPolicy()); v != "" {
			p.NetworkPolicy = v
		}
		if v := domain.IPAccessPolicy(s.defaults.DefaultIPAccessPolicy()); v != "" {
			p.IPAccessPolicy = v
		}
	}
	return p
}
