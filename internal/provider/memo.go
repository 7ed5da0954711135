package provider

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// IdentityMemo resolves a server identity once. Concurrent callers during the first resolution share a
// single outstanding request; a success is cached until Reset, an error is not cached.
type IdentityMemo struct {
	group singleflight.Group

	mu       sync.Mutex
	value    string
	resolved bool
	// gen invalidates in-flight resolutions that started before a Reset.
	gen uint64
}

// Get returns the cached identity or calls fetch.
func (m *IdentityMemo) Get(ctx context.Context, fetch func(context.Context) (string, error)) (string, error) {
	m.mu.Lock()
	if m.resolved {
		v := m.value
		m.mu.Unlock()
		return v, nil
	}
	gen := m.gen
	m.mu.Unlock()

	v, err, _ := m.group.Do("identity", func() (any, error) {
		id, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		m.mu.Lock()
		if m.gen == gen {
			m.value = id
			m.resolved = true
		}
		m.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Reset drops the cached identity so the next Get fetches again.
func (m *IdentityMemo) Reset() {
	m.mu.Lock()
	m.value = ""
	m.resolved = false
	m.gen++
	m.mu.Unlock()
	m.group.Forget("identity")
}
