package audit

import (
	"context"
	"errors"
	"testing"

	"streamguard/internal/audit/domain"
	"streamguard/internal/logger"
)

// mockAuditRepo implements audit repository interface for tests.
type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	return nil, nil
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, resource string, limit, offset int32) ([]*domain.AuditLog, error) {
	return m.entries, nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, logger.NewTestLogger())
	ctx := WithActor(context.Background(), "alice")

	l.LogEvent(ctx, domain.ActionDeviceApprove, domain.ResourceDevice, "dev-1", `{"status":"approved"}`)

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.Actor != "alice" {
		t.Errorf("actor = %q, want %q", entry.Actor, "alice")
	}
	if entry.Action != domain.ActionDeviceApprove {
		t.Errorf("action = %q, want %q", entry.Action, domain.ActionDeviceApprove)
	}
	if entry.ResourceID != "dev-1" {
		t.Errorf("resource_id = %q, want %q", entry.ResourceID, "dev-1")
	}
	if entry.ID == "" {
		t.Error("id should be generated")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}
}

func TestLogger_LogEvent_SystemActor(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, nil)

	l.LogEvent(context.Background(), domain.ActionSettingWrite, domain.ResourceSetting, "refresh_interval", "")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].Actor != SystemActor {
		t.Errorf("actor = %q, want %q", repo.entries[0].Actor, SystemActor)
	}
}

func TestLogger_LogEvent_RepoErrorIsSwallowed(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	l := NewLogger(repo, logger.NewTestLogger())

	l.LogEvent(context.Background(), domain.ActionDeviceDelete, domain.ResourceDevice, "dev-1", "")

	if len(repo.entries) != 0 {
		t.Errorf("expected no entries, got %d", len(repo.entries))
	}
}

func TestLogger_NilRepo(t *testing.T) {
	l := NewLogger(nil, nil)
	l.LogEvent(context.Background(), domain.ActionRuleCreate, domain.ResourceTimeRule, "r-1", "")

	var nilLogger *Logger
	nilLogger.LogEvent(context.Background(), domain.ActionRuleCreate, domain.ResourceTimeRule, "r-1", "")
}
