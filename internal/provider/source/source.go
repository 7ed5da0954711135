// Package source builds the active provider adapter from the settings store and rebuilds it when the
// provider settings change.
package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"streamguard/internal/logger"
	"streamguard/internal/provider"
	"streamguard/internal/provider/jellyfin"
	"streamguard/internal/provider/plex"
	"streamguard/internal/settings"
	"streamguard/internal/settings/domain"
)

// Factory builds an adapter for one provider type.
type Factory func(baseURL, token string, client *http.Client) provider.Provider

// DefaultFactories covers the supported media servers. log may be nil.
func DefaultFactories(log logger.Logger) map[string]Factory {
	return map[string]Factory{
		"plex": func(u, t string, c *http.Client) provider.Provider {
			return plex.New(u, t, c, log)
		},
		"jellyfin": func(u, t string, c *http.Client) provider.Provider {
			return jellyfin.New(u, t, c, log)
		},
	}
}

// SettingsReader is the part of the settings store the source needs.
type SettingsReader interface {
	Provider() settings.ProviderSettings
}

// Source hands out the adapter for the currently configured provider.
type Source struct {
	settings  SettingsReader
	factories map[string]Factory
	client    *http.Client

	mu      sync.Mutex
	current provider.Provider
	cfg     settings.ProviderSettings

	identity provider.IdentityMemo
}

// New returns a Source. timeout bounds every provider request.
func New(s SettingsReader, timeout time.Duration, factories map[string]Factory) *Source {
	if factories == nil {
		factories = DefaultFactories(nil)
	}
	return &Source{settings: s, factories: factories, client: &http.Client{Timeout: timeout}}
}

// Get returns the adapter for the current settings, or provider.ErrNotConfigured when the URL or token
// is missing.
func (s *Source) Get() (provider.Provider, error) {
	cfg := s.settings.Provider()
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.URL == "" || cfg.Token == "" {
		return nil, provider.ErrNotConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.cfg == cfg {
		return s.current, nil
	}
	factory, ok := s.factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported provider type %q", provider.ErrNotConfigured, cfg.Type)
	}
	if s.current != nil {
		s.identity.Reset()
	}
	s.current = factory(cfg.URL, cfg.Token, s.client)
	s.cfg = cfg
	return s.current, nil
}

// ServerIdentity returns the memoized identity of the current server.
func (s *Source) ServerIdentity(ctx context.Context) (string, error) {
	p, err := s.Get()
	if err != nil {
		return "", err
	}
	return s.identity.Get(ctx, p.GetServerIdentity)
}

// OnSettingsChanged drops the adapter and cached identity when any provider setting changed.
// Register it with settings.Store.Subscribe.
func (s *Source) OnSettingsChanged(keys []string) {
	for _, k := range keys {
		switch k {
		case domain.KeyProviderType, domain.KeyProviderURL, domain.KeyProviderToken:
			s.mu.Lock()
			s.current = nil
			s.mu.Unlock()
			s.identity.Reset()
			return
		}
	}
}
