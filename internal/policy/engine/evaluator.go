package engine

import (
	"context"
	"fmt"
	"time"

	devicedomain "streamguard/internal/device/domain"
	"streamguard/internal/logger"
	"streamguard/internal/policy/domain"
	"streamguard/internal/provider"
	timeruledomain "streamguard/internal/timerule/domain"
	userprefdomain "streamguard/internal/userpref/domain"
)

// DeviceReader returns nil for devices that have never been seen.
type DeviceReader interface {
	Lookup(ctx context.Context, userID, identifier string) (*devicedomain.Device, error)
}

type PreferenceReader interface {
	Get(ctx context.Context, userID string) (*userprefdomain.Preference, error)
}

type RuleReader interface {
	ListForDevice(ctx context.Context, userID, deviceIdentifier string) ([]timeruledomain.Rule, error)
}

// Settings is the part of the settings store the evaluator reads.
type Settings interface {
	MessageSource
	DefaultBlock() bool
	Location() *time.Location
	ExemptProducts() []string
}

// Evaluator is read-only over devices, preferences and rules. Every call reads the latest committed state.
type Evaluator struct {
	devices  DeviceReader
	prefs    PreferenceReader
	rules    RuleReader
	settings Settings
	log      logger.Logger
	nowF     func() time.Time
	// rego is optional; nil means Decide is called directly.
	rego *RegoDecider
}

// NewEvaluator returns an Evaluator.
func NewEvaluator(devices DeviceReader, prefs PreferenceReader, rules RuleReader, settings Settings, log logger.Logger) *Evaluator {
	if log == nil {
		log = logger.NewTestLogger()
	}
	return &Evaluator{
		devices:  devices,
		prefs:    prefs,
		rules:    rules,
		settings: settings,
		log:      log.WithComponent("policy"),
		nowF:     time.Now,
	}
}

// WithRego makes e decide through r, keeping Decide as the fallback.
func (e *Evaluator) WithRego(r *RegoDecider) *Evaluator {
	e.rego = r
	return e
}

// Evaluate decides whether s may continue. Errors loading state are returned; the caller must not
// block on an error.
func (e *Evaluator) Evaluate(ctx context.Context, s provider.Session) (Decision, error) {
	exempt := e.settings.ExemptProducts()
	if isExempt(s.Device.Product, exempt) {
		return domain.Allow(domain.ReasonExemptProduct), nil
	}

	pref, err := e.prefs.Get(ctx, s.User.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("policy: load preference: %w", err)
	}
	rules, err := e.rules.ListForDevice(ctx, s.User.ID, s.Device.Identifier)
	if err != nil {
		return Decision{}, fmt.Errorf("policy: load time rules: %w", err)
	}
	dev, err := e.devices.Lookup(ctx, s.User.ID, s.Device.Identifier)
	if err != nil {
		return Decision{}, fmt.Errorf("policy: load device: %w", err)
	}

	loc := e.settings.Location()
	if loc == nil {
		loc = time.UTC
	}
	in := Input{
		Product:            s.Device.Product,
		IPAddress:          s.Device.Address,
		Preference:         pref,
		Rules:              rules,
		UserID:             s.User.ID,
		DeviceIdentifier:   s.Device.Identifier,
		Device:             dev,
		GlobalDefaultBlock: e.settings.DefaultBlock(),
		ExemptProducts:     exempt,
		Now:                e.nowF().In(loc),
	}
	var d Decision
	if e.rego != nil {
		d = e.rego.Decide(ctx, in, e.settings)
	} else {
		d = Decide(in, e.settings)
	}

	if d.IPError != nil {
		e.log.Warn().Err(d.IPError).
			Str("session_key", s.SessionKey).
			Str("user_id", s.User.ID).
			Msg("client ip failed validation, ip policy skipped")
	}
	return d, nil
}
