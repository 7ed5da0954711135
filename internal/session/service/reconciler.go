// Package service implements the Session Reconciler: it diffs the provider's live sessions against
// locally open history rows and is the sole writer of session lifecycle fields.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	devicedomain "streamguard/internal/device/domain"
	"streamguard/internal/logger"
	"streamguard/internal/provider"
	"streamguard/internal/session/domain"
)

// HistoryRepo is the minimal session history repository needed by the reconciler.
type HistoryRepo interface {
	ListOpen(ctx context.Context) ([]*domain.History, error)
	Create(ctx context.Context, h *domain.History) error
	UpdateSnapshot(ctx context.Context, h *domain.History) error
	Close(ctx context.Context, id string, at time.Time) error
	MarkTerminated(ctx context.Context, id, stopCode string, at time.Time) error
}

// DeviceTracker records device sightings. RecordSighting counts a new stream; Touch does not.
type DeviceTracker interface {
	RecordSighting(ctx context.Context, s devicedomain.Sighting) (*devicedomain.Device, error)
	Touch(ctx context.Context, s devicedomain.Sighting) (*devicedomain.Device, error)
	ReleaseSession(ctx context.Context, userID, identifier, sessionKey string) error
}

// PreferenceEnsurer creates a user's preference row on first sight.
type PreferenceEnsurer interface {
	Ensure(ctx context.Context, userID string) error
}

// SessionError is one per-session failure recorded during a pass.
type SessionError struct {
	SessionKey string
	Op         string
	Err        error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s: %v", e.SessionKey, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Result summarizes one reconciliation.
type Result struct {
	Live    int
	Opened  int
	Updated int
	Closed  int
	// Open maps each live session key to its open history row. Keys whose row could not be created
	// are absent.
	Open   map[string]*domain.History
	Errors []error
}

// Reconciler keeps session history in step with the provider.
type Reconciler struct {
	repo    HistoryRepo
	devices DeviceTracker
	prefs   PreferenceEnsurer
	log     logger.Logger
	nowF    func() time.Time
}

// NewReconciler returns a Reconciler. prefs may be nil.
func NewReconciler(repo HistoryRepo, devices DeviceTracker, prefs PreferenceEnsurer, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewTestLogger()
	}
	return &Reconciler{repo: repo, devices: devices, prefs: prefs, log: log.WithComponent("session_reconciler"), nowF: time.Now}
}

// Reconcile closes open rows whose key is no longer live, merges the live snapshot into rows that
// stay open and opens a row for every new key. Only a failure to list open rows aborts the pass;
// every other error is collected in Result.Errors.
func (r *Reconciler) Reconcile(ctx context.Context, live []provider.Session, serverIdentity string) (*Result, error) {
	open, err := r.repo.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list open sessions: %w", err)
	}
	now := r.nowF().UTC()
	res := &Result{Open: make(map[string]*domain.History, len(live))}

	current := make(map[string]provider.Session, len(live))
	order := make([]string, 0, len(live))
	for _, s := range live {
		if s.SessionKey == "" {
			res.Errors = append(res.Errors, &SessionError{Op: "validate", Err: errors.New("missing session key")})
			continue
		}
		if _, dup := current[s.SessionKey]; dup {
			continue
		}
		current[s.SessionKey] = s
		order = append(order, s.SessionKey)
	}
	res.Live = len(order)

	known := make(map[string]*domain.History, len(open))
	for _, h := range open {
		if _, ok := current[h.SessionKey]; !ok {
			r.close(ctx, h, now, res)
			continue
		}
		known[h.SessionKey] = h
	}

	for _, key := range order {
		s := current[key]
		if h, ok := known[key]; ok {
			r.update(ctx, h, s, serverIdentity, now, res)
			continue
		}
		r.open(ctx, s, serverIdentity, now, res)
	}

	if len(res.Errors) > 0 {
		r.log.Warn().Int("errors", len(res.Errors)).Msg("reconcile finished with per-session errors")
	}
	return res, nil
}

func (r *Reconciler) close(ctx context.Context, h *domain.History, now time.Time, res *Result) {
	if err := r.repo.Close(ctx, h.ID, now); err != nil {
		res.Errors = append(res.Errors, &SessionError{SessionKey: h.SessionKey, Op: "close", Err: err})
		return
	}
	res.Closed++
	r.log.Debug().Str("session_key", h.SessionKey).Str("user_id", h.UserID).Msg("session ended")
	if err := r.devices.ReleaseSession(ctx, h.UserID, h.DeviceIdentifier, h.SessionKey); err != nil {
		res.Errors = append(res.Errors, &SessionError{SessionKey: h.SessionKey, Op: "release device", Err: err})
	}
}

func (r *Reconciler) update(ctx context.Context, h *domain.History, s provider.Session, serverIdentity string, now time.Time, res *Result) {
	res.Open[h.SessionKey] = h
	if domain.Merge(h, Snapshot(s, serverIdentity)) {
		h.UpdatedAt = now
		if err := r.repo.UpdateSnapshot(ctx, h); err != nil {
			res.Errors = append(res.Errors, &SessionError{SessionKey: h.SessionKey, Op: "update", Err: err})
		} else {
			res.Updated++
		}
	}
	if _, err := r.devices.Touch(ctx, sighting(s)); err != nil {
		res.Errors = append(res.Errors, &SessionError{SessionKey: s.SessionKey, Op: "touch device", Err: err})
	}
}

func (r *Reconciler) open(ctx context.Context, s provider.Session, serverIdentity string, now time.Time, res *Result) {
	h := Snapshot(s, serverIdentity)
	h.ID = uuid.New().String()
	h.SessionKey = s.SessionKey
	h.UserID = s.User.ID
	h.DeviceIdentifier = s.Device.Identifier
	if h.PlayerState == "" {
		h.PlayerState = domain.StatePlaying
	}
	h.StartedAt = now
	h.UpdatedAt = now
	if err := r.repo.Create(ctx, h); err != nil {
		res.Errors = append(res.Errors, &SessionError{SessionKey: s.SessionKey, Op: "open", Err: err})
		return
	}
	res.Opened++
	res.Open[h.SessionKey] = h
	r.log.Debug().Str("session_key", s.SessionKey).Str("user_id", s.User.ID).
		Str("device_identifier", s.Device.Identifier).Msg("session started")

	if _, err := r.devices.RecordSighting(ctx, sighting(s)); err != nil {
		res.Errors = append(res.Errors, &SessionError{SessionKey: s.SessionKey, Op: "record device", Err: err})
	}
	if r.prefs != nil {
		if err := r.prefs.Ensure(ctx, s.User.ID); err != nil {
			res.Errors = append(res.Errors, &SessionError{SessionKey: s.SessionKey, Op: "ensure preference", Err: err})
		}
	}
}

// MarkTerminated flags h as force-stopped with stopCode.
func (r *Reconciler) MarkTerminated(ctx context.Context, h *domain.History, stopCode string) error {
	now := r.nowF().UTC()
	if err := r.repo.MarkTerminated(ctx, h.ID, stopCode, now); err != nil {
		return fmt.Errorf("mark session terminated: %w", err)
	}
	h.Terminated = true
	h.StopCode = stopCode
	h.UpdatedAt = now
	return nil
}

// Snapshot maps the observed metadata of s onto a history row. Identity and lifecycle fields are
// left for the caller.
func Snapshot(s provider.Session, serverIdentity string) *domain.History {
	return &domain.History{
		ServerIdentity:   serverIdentity,
		Username:         s.User.DisplayName,
		DeviceName:       s.Device.Title,
		Platform:         s.Device.Platform,
		Product:          s.Device.Product,
		IPAddress:        s.Device.Address,
		Location:         string(s.Network.Location),
		Bandwidth:        s.Network.Bandwidth,
		Resolution:       s.Media.Resolution,
		Bitrate:          s.Media.Bitrate,
		Container:        s.Media.Container,
		VideoCodec:       s.Media.VideoCodec,
		AudioCodec:       s.Media.AudioCodec,
		ContentTitle:     s.Content.Title,
		ContentType:      s.Content.Type,
		ParentTitle:      s.Content.ParentTitle,
		GrandparentTitle: s.Content.GrandparentTitle,
		Year:             s.Content.Year,
		DurationMs:       s.Content.Duration,
		ViewOffsetMs:     s.Content.ViewOffset,
		PlayerState:      string(s.State),
	}
}

func sighting(s provider.Session) devicedomain.Sighting {
	return devicedomain.Sighting{
		UserID:      s.User.ID,
		Username:    s.User.DisplayName,
		Identifier:  s.Device.Identifier,
		DisplayName: s.Device.Title,
		Platform:    s.Device.Platform,
		Product:     s.Device.Product,
		IPAddress:   s.Device.Address,
		UserAgent:   s.Device.UserAgent,
		SessionKey:  s.SessionKey,
	}
}
