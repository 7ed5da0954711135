package source

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamguard/internal/provider"
	"streamguard/internal/settings"
	"streamguard/internal/settings/domain"
)

type staticSettings struct {
	cfg settings.ProviderSettings
}

func (s *staticSettings) Provider() settings.ProviderSettings { return s.cfg }

type fakeProvider struct {
	id    string
	calls *atomic.Int32
}

func (f *fakeProvider) GetSessions(ctx context.Context) ([]provider.Session, error) { return nil, nil }
func (f *fakeProvider) TerminateSession(ctx context.Context, key, reason string) error {
	return nil
}
func (f *fakeProvider) TestConnection(ctx context.Context) provider.ConnectionResult {
	return provider.ConnectionResult{Success: true}
}
func (f *fakeProvider) GetServerIdentity(ctx context.Context) (string, error) {
	f.calls.Add(1)
	return f.id, nil
}

func newTestSource(cfg settings.ProviderSettings) (*Source, *staticSettings, *atomic.Int32, *atomic.Int32) {
	st := &staticSettings{cfg: cfg}
	var built, identityCalls atomic.Int32
	s := New(st, time.Second, map[string]Factory{
		"plex": func(u, tok string, c *http.Client) provider.Provider {
			built.Add(1)
			return &fakeProvider{id: "id@" + u, calls: &identityCalls}
		},
	})
	return s, st, &built, &identityCalls
}

func TestGet_NotConfigured(t *testing.T) {
	testCases := []settings.ProviderSettings{
		{Type: "plex"},
		{Type: "plex", URL: "http://plex:32400"},
		{Type: "plex", Token: "tok"},
		{Type: "plex", URL: "  ", Token: "tok"},
	}
	for _, cfg := range testCases {
		s, _, _, _ := newTestSource(cfg)
		_, err := s.Get()
		assert.ErrorIs(t, err, provider.ErrNotConfigured)
	}
}

func TestGet_UnsupportedType(t *testing.T) {
	s, _, _, _ := newTestSource(settings.ProviderSettings{Type: "emby", URL: "http://x", Token: "t"})
	_, err := s.Get()
	require.ErrorIs(t, err, provider.ErrNotConfigured)
}

func TestGet_ReusesAdapterUntilSettingsChange(t *testing.T) {
	s, st, built, _ := newTestSource(settings.ProviderSettings{Type: "plex", URL: "http://a", Token: "t"})

	p1, err := s.Get()
	require.NoError(t, err)
	p2, err := s.Get()
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.EqualValues(t, 1, built.Load())

	st.cfg.URL = "http://b"
	_, err = s.Get()
	require.NoError(t, err)
	assert.EqualValues(t, 2, built.Load())
}

func TestServerIdentity_MemoizedAndResetOnChange(t *testing.T) {
	s, st, _, identityCalls := newTestSource(settings.ProviderSettings{Type: "plex", URL: "http://a", Token: "t"})
	ctx := context.Background()

	id, err := s.ServerIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "id@http://a", id)
	_, err = s.ServerIdentity(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, identityCalls.Load())

	st.cfg.URL = "http://b"
	s.OnSettingsChanged([]string{domain.KeyProviderURL})
	id, err = s.ServerIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "id@http://b", id)
	assert.EqualValues(t, 2, identityCalls.Load())

	s.OnSettingsChanged([]string{domain.KeyRefreshInterval})
	_, err = s.ServerIdentity(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, identityCalls.Load(), "unrelated keys keep the cache")
}

func TestServerIdentity_NotConfigured(t *testing.T) {
	s, _, _, _ := newTestSource(settings.ProviderSettings{Type: "plex"})
	_, err := s.ServerIdentity(context.Background())
	assert.True(t, errors.Is(err, provider.ErrNotConfigured))
}
