package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityMemo_ConcurrentCallersShareOneRequest(t *testing.T) {
	var memo IdentityMemo
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "srv-1", nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := memo.Get(context.Background(), fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, r := range results {
		assert.Equal(t, "srv-1", r)
	}

	v, err := memo.Get(context.Background(), func(context.Context) (string, error) {
		t.Fatal("cached value should be served without fetching")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", v)
}

func TestIdentityMemo_ErrorIsNotCached(t *testing.T) {
	var memo IdentityMemo
	_, err := memo.Get(context.Background(), func(context.Context) (string, error) {
		return "", errors.New("boom")
	})
	require.Error(t, err)

	v, err := memo.Get(context.Background(), func(context.Context) (string, error) {
		return "srv-2", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-2", v)
}

func TestIdentityMemo_Reset(t *testing.T) {
	var memo IdentityMemo
	_, err := memo.Get(context.Background(), func(context.Context) (string, error) { return "old", nil })
	require.NoError(t, err)

	memo.Reset()
	v, err := memo.Get(context.Background(), func(context.Context) (string, error) { return "new", nil })
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}
