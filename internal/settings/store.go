// Package settings is the runtime configuration collaborator: a typed settings map populated from the
// settings table at startup and refreshed on explicit update or cross-process notification.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"streamguard/internal/audit"
	auditdomain "streamguard/internal/audit/domain"
	"streamguard/internal/logger"
	"streamguard/internal/settings/domain"
	"streamguard/internal/settings/repository"
)

// ProviderSettings is the media-server connection read from the store.
type ProviderSettings struct {
	Type  string
	URL   string
	Token string
}

// Store holds the coerced settings. All getters are safe for concurrent use and never touch the database.
type Store struct {
	repo    repository.Repository
	audit   audit.AuditLogger
	log     logger.Logger
	timeout time.Duration
	nowF    func() time.Time

	mu     sync.RWMutex
	raw    map[string]string
	values map[string]domain.Value
	loc    *time.Location
	exempt []string

	subsMu sync.Mutex
	subs   []func(changed []string)
}

// NewStore returns a Store with every key at its default. Call Load to read persisted values.
// auditLogger may be nil.
func NewStore(repo repository.Repository, auditLogger audit.AuditLogger, log logger.Logger, timeout time.Duration) *Store {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if log == nil {
		log = logger.NewTestLogger()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Store{repo: repo, audit: auditLogger, log: log.WithComponent("settings"), timeout: timeout, nowF: time.Now}
	s.apply(map[string]string{})
	return s
}

// Subscribe registers fn to be called with the keys whose values changed on each refresh.
func (s *Store) Subscribe(fn func(changed []string)) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs = append(s.subs, fn)
}

// Load reads every persisted key and replaces the in-memory map. Stored values that fail coercion keep
// the declared default and are logged. Subscribers are notified of changed keys.
func (s *Store) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stored, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("settings: load: %w", err)
	}
	changed := s.apply(stored)
	s.notify(changed)
	return nil
}

// Set validates raw against the key's declared type, persists it, refreshes and notifies subscribers.
func (s *Store) Set(ctx context.Context, key, raw string) error {
	def, ok := domain.Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownKey, key)
	}
	if _, err := domain.Coerce(def, raw); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw = strings.TrimSpace(raw)
	if err := s.repo.Upsert(ctx, key, raw, s.nowF().UTC()); err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	logged := raw
	if key == domain.KeyProviderToken && logged != "" {
		logged = "redacted"
	}
	meta, _ := json.Marshal(map[string]string{"value": logged})
	s.audit.LogEvent(ctx, auditdomain.ActionSettingWrite, auditdomain.ResourceSetting, key, string(meta))
	return s.Load(ctx)
}

// SeedDefaults inserts the declared default for every key without a row. Returns the inserted keys.
func (s *Store) SeedDefaults(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var inserted []string
	for _, def := range domain.Definitions() {
		ok, err := s.repo.InsertIfMissing(ctx, def.Key, def.Default, s.nowF().UTC())
		if err != nil {
			return inserted, fmt.Errorf("settings: seed %s: %w", def.Key, err)
		}
		if ok {
			inserted = append(inserted, def.Key)
		}
	}
	sort.Strings(inserted)
	return inserted, nil
}

// Listen refreshes the store whenever another process writes a setting. Blocks until ctx is done.
func (s *Store) Listen(ctx context.Context, dsn string) error {
	return repository.Listen(ctx, dsn, func(key string) {
		if err := s.Load(ctx); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("refresh after notification failed")
			return
		}
		s.log.Debug().Str("key", key).Msg("settings refreshed")
	}, func(err error) {
		s.log.Warn().Err(err).Msg("settings listener disconnected")
	})
}

// apply swaps in the coerced map built from stored and returns keys whose effective raw value changed.
func (s *Store) apply(stored map[string]string) []string {
	raw := make(map[string]string, len(stored))
	values := make(map[string]domain.Value, len(stored))
	for _, def := range domain.Definitions() {
		r, ok := stored[def.Key]
		if !ok {
			r = def.Default
		}
		v, err := domain.Coerce(def, r)
		if err != nil {
			s.log.Warn().Err(err).Str("key", def.Key).Msg("stored setting invalid, using default")
			r = def.Default
			v, _ = domain.Coerce(def, r)
		}
		raw[def.Key] = strings.TrimSpace(r)
		values[def.Key] = v
	}

	loc, err := domain.ParseOffset(values[domain.KeyTimezoneOffset].String)
	if err != nil {
		loc = time.UTC
	}
	var exempt []string
	_ = json.Unmarshal(values[domain.KeyExemptProducts].JSON, &exempt)

	s.mu.Lock()
	var changed []string
	for k, v := range raw {
		if old, ok := s.raw[k]; ok && old != v {
			changed = append(changed, k)
		}
	}
	s.raw = raw
	s.values = values
	s.loc = loc
	s.exempt = exempt
	s.mu.Unlock()

	sort.Strings(changed)
	return changed
}

func (s *Store) notify(changed []string) {
	if len(changed) == 0 {
		return
	}
	s.subsMu.Lock()
	subs := slices.Clone(s.subs)
	s.subsMu.Unlock()
	for _, fn := range subs {
		fn(changed)
	}
}

// Get returns the coerced value of key.
func (s *Store) Get(key string) (domain.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Raw returns the normalized text of key as stored (or its default).
func (s *Store) Raw(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.raw[key]
	return v, ok
}

// RefreshInterval is the reconciliation cadence.
func (s *Store) RefreshInterval() time.Duration {
	v, _ := s.Get(domain.KeyRefreshInterval)
	return time.Duration(v.Number * float64(time.Second))
}

// DefaultBlock is the global effective default for pending devices.
func (s *Store) DefaultBlock() bool {
	v, _ := s.Get(domain.KeyDefaultBlock)
	return v.Bool
}

// Location is the fixed-offset zone time rules are evaluated in.
func (s *Store) Location() *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loc
}

// ExemptProducts lists client product names that are never blocked.
func (s *Store) ExemptProducts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.exempt...)
}

func (s *Store) DefaultNetworkPolicy() string {
	v, _ := s.Get(domain.KeyDefaultNetworkPolicy)
	return v.String
}

func (s *Store) DefaultIPAccessPolicy() string {
	v, _ := s.Get(domain.KeyDefaultIPAccessPolicy)
	return v.String
}

// Provider returns the configured media-server connection.
func (s *Store) Provider() ProviderSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ProviderSettings{
		Type:  s.values[domain.KeyProviderType].String,
		URL:   s.values[domain.KeyProviderURL].String,
		Token: s.values[domain.KeyProviderToken].String,
	}
}

// Message returns the string value of a message key; empty means no override.
func (s *Store) Message(key string) string {
	v, _ := s.Get(key)
	return v.String
}
