package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"streamguard/internal/audit/domain"
	auditrepo "streamguard/internal/audit/repository"
	"streamguard/internal/logger"
)

// SystemActor is recorded when no actor is attached to the context.
const SystemActor = "_system"

type actorKey struct{}

// WithActor attaches the acting admin (e.g. the OS user running guardctl) to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return SystemActor
}

// AuditLogger writes a single audit event. LogEvent is best-effort: failures are logged and do not
// affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, action, resource, resourceID, metadata string)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
	log  logger.Logger
	nowF func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo. repo may be nil; then events are dropped.
func NewLogger(repo auditrepo.Repository, log logger.Logger) *Logger {
	if log == nil {
		log = logger.NewTestLogger()
	}
	return &Logger{repo: repo, log: log.WithComponent("audit"), nowF: time.Now}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, action, resource, resourceID, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:         uuid.New().String(),
		Actor:      ActorFromContext(ctx),
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Metadata:   metadata,
		CreatedAt:  l.nowF().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Warn().Err(err).Str("action", action).Str("resource", resource).Msg("failed to log audit event")
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string) {}
