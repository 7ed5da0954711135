package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamguard/internal/userpref/domain"
)

type memPrefRepo struct {
	mu    sync.Mutex
	prefs map[string]*domain.Preference
}

func newMemPrefRepo() *memPrefRepo {
	return &memPrefRepo{prefs: make(map[string]*domain.Preference)}
}

func (m *memPrefRepo) GetByUserID(ctx context.Context, userID string) (*domain.Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPrefRepo) Upsert(ctx context.Context, p *domain.Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.prefs[p.UserID] = &cp
	return nil
}

func (m *memPrefRepo) InsertIfMissing(ctx context.Context, p *domain.Preference) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prefs[p.UserID]; ok {
		return false, nil
	}
	cp := *p
	m.prefs[p.UserID] = &cp
	return true, nil
}

type fixedDefaults struct {
	network, ipAccess string
}

func (d fixedDefaults) DefaultNetworkPolicy() string  { return d.network }
func (d fixedDefaults) DefaultIPAccessPolicy() string { return d.ipAccess }

func TestGet_LazyCreatesWithDefaults(t *testing.T) {
	repo := newMemPrefRepo()
	svc := NewService(repo, fixedDefaults{network: "lan", ipAccess: "all"}, nil)

	p, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.NetworkLAN, p.NetworkPolicy)
	assert.Equal(t, domain.IPAccessAll, p.IPAccessPolicy)
	assert.Nil(t, p.DefaultBlock, "new preference inherits the global default")
	assert.Len(t, repo.prefs, 1)
}

func TestEnsure_DoesNotOverwrite(t *testing.T) {
	repo := newMemPrefRepo()
	svc := NewService(repo, fixedDefaults{network: "both", ipAccess: "all"}, nil)
	ctx := context.Background()
	block := true
	require.NoError(t, svc.Set(ctx, &domain.Preference{UserID: "u1", DefaultBlock: &block, NetworkPolicy: domain.NetworkWAN, IPAccessPolicy: domain.IPAccessAll}))

	require.NoError(t, svc.Ensure(ctx, "u1"))
	p, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.NetworkWAN, p.NetworkPolicy)
	require.NotNil(t, p.DefaultBlock)
	assert.True(t, *p.DefaultBlock)
}

func TestSet_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		pref    domain.Preference
		wantErr error
	}{
		{"valid restricted", domain.Preference{UserID: "u1", NetworkPolicy: "both", IPAccessPolicy: "restricted", AllowedIPs: []string{"203.0.113.7", "10.0.0.0/8"}}, nil},
		{"bad network policy", domain.Preference{UserID: "u1", NetworkPolicy: "vpn", IPAccessPolicy: "all"}, domain.ErrInvalidPolicy},
		{"bad ip policy", domain.Preference{UserID: "u1", NetworkPolicy: "lan", IPAccessPolicy: "some"}, domain.ErrInvalidPolicy},
		{"bad address", domain.Preference{UserID: "u1", NetworkPolicy: "lan", IPAccessPolicy: "all", AllowedIPs: []string{"300.1.1.1"}}, domain.ErrInvalidAllowedIP},
		{"bad prefix", domain.Preference{UserID: "u1", NetworkPolicy: "lan", IPAccessPolicy: "all", AllowedIPs: []string{"10.0.0.0/33"}}, domain.ErrInvalidAllowedIP},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemPrefRepo()
			svc := NewService(repo, nil, nil)
			err := svc.Set(context.Background(), &tc.pref)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, repo.prefs)
				return
			}
			require.NoError(t, err)
			assert.Len(t, repo.prefs, 1)
		})
	}
}

func TestSet_NormalizesAllowedIPs(t *testing.T) {
	repo := newMemPrefRepo()
	svc := NewService(repo, nil, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.nowF = func() time.Time { return now }

	p := &domain.Preference{UserID: "u1", NetworkPolicy: "both", IPAccessPolicy: "restricted", AllowedIPs: []string{" 192.168.1.10 ", "", "2001:db8::/32"}}
	require.NoError(t, svc.Set(context.Background(), p))
	assert.Equal(t, []string{"192.168.1.10", "2001:db8::/32"}, repo.prefs["u1"].AllowedIPs)
	assert.Equal(t, now, repo.prefs["u1"].UpdatedAt)
}

func TestRequiresUserID(t *testing.T) {
	svc := NewService(newMemPrefRepo(), nil, nil)
	require.Error(t, svc.Ensure(context.Background(), ""))
	require.Error(t, svc.Set(context.Background(), &domain.Preference{NetworkPolicy: "both", IPAccessPolicy: "all"}))
}
