package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"streamguard/internal/notify"
)

// instrumentationName scopes every record and span the daemon emits.
const instrumentationName = "streamguard"

// recordEmitter is the part of otellog.Logger the notifier uses.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// LogNotifier emits stream-blocked events as OTel log records.
type LogNotifier struct {
	logger recordEmitter
}

// NewLogNotifier returns a notifier backed by provider, or notify.Nop when provider is nil.
func NewLogNotifier(provider *sdklog.LoggerProvider) notify.Notifier {
	if provider == nil {
		return notify.Nop{}
	}
	return &LogNotifier{logger: provider.Logger(instrumentationName)}
}

// NotifyStreamBlocked emits one WARN record per event. It never fails.
func (n *LogNotifier) NotifyStreamBlocked(ctx context.Context, ev notify.StreamBlocked) error {
	rec := otellog.Record{}
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(otellog.SeverityWarn)
	rec.SetEventName("stream.blocked")
	if ev.Message != "" {
		rec.SetBody(otellog.StringValue(ev.Message))
	}
	attrs := []struct{ key, value string }{
		{"user_id", ev.UserID},
		{"username", ev.Username},
		{"device_identifier", ev.DeviceIdentifier},
		{"stop_code", ev.StopCode},
		{"session_history_id", ev.SessionHistoryID},
		{"session_key", ev.SessionKey},
	}
	for _, a := range attrs {
		if a.value != "" {
			rec.AddAttributes(otellog.String(a.key, a.value))
		}
	}
	n.logger.Emit(ctx, rec)
	return nil
}
