package monitor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName            = "streamguard.monitor"
	metricPassTotal      = "streamguard_pass_total"
	metricPassDuration   = "streamguard_pass_duration_seconds"
	metricLiveSessions   = "streamguard_live_sessions"
	metricTerminated     = "streamguard_sessions_terminated_total"
	metricSessionErrors  = "streamguard_session_errors_total"
	outcomeOK            = "ok"
	outcomeSkipped       = "skipped"
	outcomeFailed        = "failed"
	outcomePartialFailed = "partial"
)

type metrics struct {
	passes     metric.Int64Counter
	duration   metric.Float64Histogram
	live       metric.Int64Gauge
	terminated metric.Int64Counter
	errors     metric.Int64Counter
}

// newMetrics registers the pass instruments on meter. Instruments that fail to register are reported
// to otel.Handle and left nil.
func newMetrics(meter metric.Meter) *metrics {
	m := &metrics{}
	var err error
	if m.passes, err = meter.Int64Counter(metricPassTotal,
		metric.WithDescription("Reconciliation passes by outcome")); err != nil {
		otel.Handle(err)
	}
	if m.duration, err = meter.Float64Histogram(metricPassDuration,
		metric.WithDescription("Duration of reconciliation passes"),
		metric.WithUnit("s")); err != nil {
		otel.Handle(err)
	}
	if m.live, err = meter.Int64Gauge(metricLiveSessions,
		metric.WithDescription("Live sessions reported by the provider in the last pass")); err != nil {
		otel.Handle(err)
	}
	if m.terminated, err = meter.Int64Counter(metricTerminated,
		metric.WithDescription("Sessions terminated by policy, by stop code")); err != nil {
		otel.Handle(err)
	}
	if m.errors, err = meter.Int64Counter(metricSessionErrors,
		metric.WithDescription("Per-session errors collected during passes")); err != nil {
		otel.Handle(err)
	}
	return m
}

func (m *metrics) recordPass(ctx context.Context, outcome string, took time.Duration, res *PassResult) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.passes != nil {
		m.passes.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, took.Seconds(), attrs)
	}
	if res == nil {
		return
	}
	if m.live != nil && outcome != outcomeSkipped {
		m.live.Record(ctx, int64(res.Live))
	}
	if m.errors != nil && len(res.Errors) > 0 {
		m.errors.Add(ctx, int64(len(res.Errors)))
	}
}

func (m *metrics) recordTermination(ctx context.Context, stopCode string) {
	if m.terminated != nil {
		m.terminated.Add(ctx, 1, metric.WithAttributes(attribute.String("stop_code", stopCode)))
	}
}
