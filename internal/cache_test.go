package internal

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoComputesOnce(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour, 0)

	var calls atomic.Int32
	fn := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("post"), nil
	}

	for range 3 {
		out, err := c.Memo(ctx, "k", fn)
		require.NoError(t, err)
		assert.Equal(t, "post", string(out))
	}
	assert.EqualValues(t, 1, calls.Load())

	hits, misses := c.Stats()
	assert.EqualValues(t, 2, hits)
	assert.EqualValues(t, 1, misses)
}

func TestMemoDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour, 0)
	boom := errors.New("boom")

	var calls int
	fn := func(context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return []byte("ok"), nil
	}

	_, err := c.Memo(ctx, "k", fn)
	assert.ErrorIs(t, err, boom)

	out, err := c.Memo(ctx, "k", fn)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
	assert.Equal(t, 2, calls)
}

func TestMemoConcurrentCallersShareResult(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour, 0)

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := c.Memo(ctx, "k", fn)
			assert.NoError(t, err)
			assert.Equal(t, "v", string(out))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(20*time.Millisecond, 0)

	c.Set(ctx, "k", []byte("v"))
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCacheEvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour, 2)

	c.Set(ctx, "a", []byte("1"))
	time.Sleep(2 * time.Millisecond)
	c.Set(ctx, "b", []byte("2"))
	time.Sleep(2 * time.Millisecond)
	c.Set(ctx, "c", []byte("3"))

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestCacheKeyDeterministic(t *testing.T) {
	assert.Equal(t, CacheKey("blog", "abc"), CacheKey("blog", "abc"))
	assert.NotEqual(t, CacheKey("blog", "abc"), CacheKey("insights", "abc"))
	assert.NotEqual(t, CacheKey("a|b"), CacheKey("a", "c"))
}

func TestMemoJSON(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour, 0)

	var calls int
	fn := func(context.Context) (*VideoMetadata, error) {
		calls++
		return &VideoMetadata{ID: "abc", Title: "Talk"}, nil
	}

	for range 2 {
		m, err := MemoJSON(ctx, c, "meta", fn)
		require.NoError(t, err)
		assert.Equal(t, "Talk", m.Title)
	}
	assert.Equal(t, 1, calls)
}

func TestSQLiteBackendPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	first := NewCache(ctx, CacheOptions{TTL: time.Hour, Backend: "sqlite", SQLitePath: path})
	first.Set(ctx, "k", []byte("persisted"))
	require.NoError(t, first.Close())

	second := NewCache(ctx, CacheOptions{TTL: time.Hour, Backend: "sqlite", SQLitePath: path})
	t.Cleanup(func() { _ = second.Close() })

	data, ok := second.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "persisted", string(data))

	second.Delete(ctx, "k")
	_, ok = second.Get(ctx, "k")
	assert.False(t, ok)
}

func TestSQLiteBackendExpiry(t *testing.T) {
	ctx := context.Background()
	backend, err := openSQLiteBackend(ctx, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	require.NoError(t, backend.Set(ctx, "old", []byte("x"), -time.Second))
	_, ok, err := backend.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, backend.Set(ctx, "new", []byte("y"), time.Hour))
	require.NoError(t, backend.Clear(ctx))
	_, ok, err = backend.Get(ctx, "new")
	require.NoError(t, err)
	assert.False(t, ok)
}
