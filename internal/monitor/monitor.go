// Package monitor runs one reconciliation pass: fetch live sessions, reconcile history, evaluate every
// live session and terminate the blocked ones.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"streamguard/internal/logger"
	"streamguard/internal/notify"
	"streamguard/internal/policy/engine"
	"streamguard/internal/provider"
	sessiondomain "streamguard/internal/session/domain"
	sessionservice "streamguard/internal/session/service"
)

// ProviderSource yields the configured adapter.
type ProviderSource interface {
	Get() (provider.Provider, error)
	ServerIdentity(ctx context.Context) (string, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, live []provider.Session, serverIdentity string) (*sessionservice.Result, error)
	MarkTerminated(ctx context.Context, h *sessiondomain.History, stopCode string) error
}

type Evaluator interface {
	Evaluate(ctx context.Context, s provider.Session) (engine.Decision, error)
}

type Terminator interface {
	Terminate(ctx context.Context, p provider.Provider, sessionKey, reason string) error
}

// PassResult summarizes one pass.
type PassResult struct {
	Live       int
	Opened     int
	Updated    int
	Closed     int
	Terminated int
	Errors     []error
}

// Monitor wires the pass together. It is not safe for concurrent RunPass calls; the scheduler
// serializes them.
type Monitor struct {
	source     ProviderSource
	reconciler Reconciler
	evaluator  Evaluator
	terminator Terminator
	notifier   notify.Notifier
	timeout    time.Duration
	log        logger.Logger
	tracer     trace.Tracer
	metrics    *metrics
	nowF       func() time.Time
	// deliver sends a notification without blocking the pass.
	deliver func(n notify.Notifier, log logger.Logger, ev notify.StreamBlocked)
}

// Config holds the collaborators of a Monitor. Notifier, Meter and Tracer are optional.
type Config struct {
	Source     ProviderSource
	Reconciler Reconciler
	Evaluator  Evaluator
	Terminator Terminator
	Notifier   notify.Notifier
	// ProviderTimeout bounds the session fetch and identity lookup.
	ProviderTimeout time.Duration
	Meter           metric.Meter
	Tracer          trace.Tracer
	// Dispatcher tracks background deliveries so the caller can wait for them on shutdown.
	Dispatcher *notify.Dispatcher
}

// New returns a Monitor.
func New(cfg Config, log logger.Logger) *Monitor {
	if log == nil {
		log = logger.NewTestLogger()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Meter == nil {
		cfg.Meter = otel.Meter(meterName)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(meterName)
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = &notify.Dispatcher{}
	}
	return &Monitor{
		source:     cfg.Source,
		reconciler: cfg.Reconciler,
		evaluator:  cfg.Evaluator,
		terminator: cfg.Terminator,
		notifier:   cfg.Notifier,
		timeout:    cfg.ProviderTimeout,
		log:        log.WithComponent("monitor"),
		tracer:     cfg.Tracer,
		metrics:    newMetrics(cfg.Meter),
		nowF:       time.Now,
		deliver:    cfg.Dispatcher.Go,
	}
}

// Run is the scheduler entry point.
func (m *Monitor) Run(ctx context.Context) error {
	_, err := m.RunPass(ctx)
	return err
}

// RunPass performs one pass. A missing provider configuration returns provider.ErrNotConfigured
// before any call is made. Fetch and reconcile failures abort the pass; per-session evaluation and
// termination failures are collected in PassResult.Errors.
func (m *Monitor) RunPass(ctx context.Context) (res *PassResult, err error) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "monitor.pass")
	outcome := outcomeOK
	defer func() {
		switch {
		case errors.Is(err, provider.ErrNotConfigured):
			outcome = outcomeSkipped
		case err != nil:
			outcome = outcomeFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case len(res.Errors) > 0:
			outcome = outcomePartialFailed
		}
		if res != nil {
			span.SetAttributes(
				attribute.Int("sessions.live", res.Live),
				attribute.Int("sessions.terminated", res.Terminated),
				attribute.Int("sessions.errors", len(res.Errors)),
			)
		}
		m.metrics.recordPass(ctx, outcome, time.Since(start), res)
		span.End()
	}()

	p, err := m.source.Get()
	if err != nil {
		return nil, err
	}

	identity, err := m.serverIdentity(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("server identity unavailable, continuing without it")
		identity = ""
	}

	live, err := m.fetch(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("fetch live sessions: %w", err)
	}

	rec, err := m.reconciler.Reconcile(ctx, live, identity)
	if err != nil {
		return nil, err
	}
	res = &PassResult{Live: rec.Live, Opened: rec.Opened, Updated: rec.Updated, Closed: rec.Closed}
	res.Errors = append(res.Errors, rec.Errors...)

	for _, s := range live {
		h, ok := rec.Open[s.SessionKey]
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, ctx.Err())
			break
		}
		if m.enforce(ctx, p, s, h, res) {
			res.Terminated++
		}
	}

	m.log.Debug().
		Int("live", res.Live).
		Int("opened", res.Opened).
		Int("updated", res.Updated).
		Int("closed", res.Closed).
		Int("terminated", res.Terminated).
		Int("errors", len(res.Errors)).
		Msg("pass complete")
	return res, nil
}

func (m *Monitor) serverIdentity(ctx context.Context) (string, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.source.ServerIdentity(ctx)
}

func (m *Monitor) fetch(ctx context.Context, p provider.Provider) ([]provider.Session, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return p.GetSessions(ctx)
}

func (m *Monitor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

// enforce evaluates one live session and terminates it if blocked. It reports whether the session was
// terminated.
func (m *Monitor) enforce(ctx context.Context, p provider.Provider, s provider.Session, h *sessiondomain.History, res *PassResult) bool {
	d, err := m.evaluator.Evaluate(ctx, s)
	if err != nil {
		res.Errors = append(res.Errors, &sessionservice.SessionError{SessionKey: s.SessionKey, Op: "evaluate", Err: err})
		return false
	}
	if !d.Block {
		return false
	}

	log := m.log.With().
		Str("session_key", s.SessionKey).
		Str("user_id", s.User.ID).
		Str("device_identifier", s.Device.Identifier).
		Str("stop_code", string(d.StopCode)).
		Logger()

	if err := m.terminator.Terminate(ctx, p, s.SessionKey, d.Message); err != nil {
		log.Warn().Err(err).Msg("termination failed")
		res.Errors = append(res.Errors, &sessionservice.SessionError{SessionKey: s.SessionKey, Op: "terminate", Err: err})
		return false
	}
	m.metrics.recordTermination(ctx, string(d.StopCode))
	log.Info().Msg("session blocked by policy")

	alreadyFlagged := h.Terminated
	if err := m.reconciler.MarkTerminated(ctx, h, string(d.StopCode)); err != nil {
		res.Errors = append(res.Errors, &sessionservice.SessionError{SessionKey: s.SessionKey, Op: "mark terminated", Err: err})
	}
	if !alreadyFlagged {
		m.deliver(m.notifier, m.log, notify.StreamBlocked{
			UserID:           s.User.ID,
			Username:         s.User.DisplayName,
			DeviceIdentifier: s.Device.Identifier,
			StopCode:         string(d.StopCode),
			SessionHistoryID: h.ID,
			SessionKey:       s.SessionKey,
			Message:          d.Message,
			OccurredAt:       m.nowF().UTC(),
		})
	}
	return true
}
