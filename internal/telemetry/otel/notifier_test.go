package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"streamguard/internal/notify"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
	n   int
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
	r.n++
}

func attributes(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestNewLogNotifier_NilProvider(t *testing.T) {
	n := NewLogNotifier(nil)
	if _, ok := n.(notify.Nop); !ok {
		t.Fatalf("NewLogNotifier(nil) = %T, want notify.Nop", n)
	}
}

func TestNewLogNotifier_Provider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	if err := NewLogNotifier(provider).NotifyStreamBlocked(context.Background(), notify.StreamBlocked{UserID: "u1"}); err != nil {
		t.Errorf("NotifyStreamBlocked: %v", err)
	}
}

func TestLogNotifier_RecordMapping(t *testing.T) {
	capture := &recordCapture{}
	n := &LogNotifier{logger: capture}
	at := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
	ev := notify.StreamBlocked{
		UserID:           "u1",
		Username:         "alice",
		DeviceIdentifier: "tv-1",
		StopCode:         "TIME_RESTRICTED",
		SessionHistoryID: "h-1",
		Message:          "Bedtime.",
		OccurredAt:       at,
	}
	if err := n.NotifyStreamBlocked(context.Background(), ev); err != nil {
		t.Fatalf("NotifyStreamBlocked: %v", err)
	}
	rec := capture.rec
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want WARN", rec.Severity())
	}
	if got := rec.Body().AsString(); got != "Bedtime." {
		t.Errorf("body = %q", got)
	}
	attrs := attributes(rec)
	want := map[string]string{
		"user_id": "u1", "username": "alice", "device_identifier": "tv-1",
		"stop_code": "TIME_RESTRICTED", "session_history_id": "h-1",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
	if _, ok := attrs["session_key"]; ok {
		t.Error("empty fields should not become attributes")
	}
}

func TestLogNotifier_ZeroTimestamp(t *testing.T) {
	capture := &recordCapture{}
	n := &LogNotifier{logger: capture}
	before := time.Now().UTC()
	_ = n.NotifyStreamBlocked(context.Background(), notify.StreamBlocked{UserID: "u1"})
	after := time.Now().UTC()
	ts := capture.rec.Timestamp()
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
	if !capture.rec.Body().Empty() {
		t.Error("body should be empty without a message")
	}
}
