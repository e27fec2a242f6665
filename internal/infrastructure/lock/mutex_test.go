package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-process Store with a controllable clock, matching
// the atomicity contract of the Redis implementation.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     time.Time

	failNext error
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC),
	}
}

func (s *memoryStore) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *memoryStore) expireLocked(key string) {
	if e, ok := s.entries[key]; ok && !e.expiresAt.After(s.now) {
		delete(s.entries, key)
	}
}

func (s *memoryStore) SetIfAbsent(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return false, err
	}
	s.expireLocked(key)
	if _, exists := s.entries[key]; exists {
		return false, nil
	}
	s.entries[key] = memoryEntry{token: token, expiresAt: s.now.Add(ttl)}
	return true, nil
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)
	return s.entries[key].token, nil
}

func (s *memoryStore) CompareAndDelete(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)
	if e, ok := s.entries[key]; ok && e.token == token {
		delete(s.entries, key)
		return true, nil
	}
	return false, nil
}

func (s *memoryStore) Set(_ context.Context, key, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{token: token, expiresAt: s.now.Add(ttl)}
	return nil
}

func TestMutex_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("acquires a free lock", func(t *testing.T) {
		store := newMemoryStore()
		m := NewMutex(store, "tenant-1")

		ok, err := m.Acquire(ctx, time.Minute)

		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("re-acquire by the same holder is idempotent", func(t *testing.T) {
		store := newMemoryStore()
		m := NewMutex(store, "tenant-1")

		ok, err := m.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = m.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("second holder is rejected without error", func(t *testing.T) {
		store := newMemoryStore()
		first := NewMutex(store, "tenant-1")
		second := NewMutex(store, "tenant-1")

		ok, err := first.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = second.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("different names do not contend", func(t *testing.T) {
		store := newMemoryStore()
		a := NewMutex(store, "tenant-1")
		b := NewMutex(store, "tenant-2")

		ok, err := a.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = b.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired lock can be taken by a new holder", func(t *testing.T) {
		store := newMemoryStore()
		first := NewMutex(store, "tenant-1")
		second := NewMutex(store, "tenant-1")

		ok, err := first.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		store.advance(2 * time.Minute)

		ok, err = second.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("propagates store errors", func(t *testing.T) {
		store := newMemoryStore()
		store.failNext = errors.New("store down")
		m := NewMutex(store, "tenant-1")

		ok, err := m.Acquire(ctx, time.Minute)

		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestMutex_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("holder releases its own lock", func(t *testing.T) {
		store := newMemoryStore()
		m := NewMutex(store, "tenant-1")

		ok, err := m.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		released, err := m.Release(ctx)
		require.NoError(t, err)
		assert.True(t, released)

		// Lock is free again.
		ok, err = NewMutex(store, "tenant-1").Acquire(ctx, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("stale holder cannot release a reacquired lock", func(t *testing.T) {
		store := newMemoryStore()
		first := NewMutex(store, "tenant-1")
		second := NewMutex(store, "tenant-1")

		ok, err := first.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		store.advance(2 * time.Minute)

		ok, err = second.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		released, err := first.Release(ctx)
		require.NoError(t, err)
		assert.False(t, released)

		// The second holder still owns the lock.
		holder, err := store.Get(ctx, "tenant-1")
		require.NoError(t, err)
		assert.NotEmpty(t, holder)
	})

	t.Run("releasing an unheld lock reports false", func(t *testing.T) {
		store := newMemoryStore()
		m := NewMutex(store, "tenant-1")

		released, err := m.Release(ctx)

		require.NoError(t, err)
		assert.False(t, released)
	})
}

func TestMutex_UpdateTTL(t *testing.T) {
	ctx := context.Background()

	t.Run("refresh extends the expiry", func(t *testing.T) {
		store := newMemoryStore()
		m := NewMutex(store, "tenant-1")

		ok, err := m.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		store.advance(50 * time.Second)
		require.NoError(t, m.UpdateTTL(ctx, time.Minute))
		store.advance(50 * time.Second)

		// Without the refresh the lock would have expired by now.
		ok, err = NewMutex(store, "tenant-1").Acquire(ctx, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestNewMutex_TokensAreUnique(t *testing.T) {
	store := newMemoryStore()
	a := NewMutex(store, "tenant-1")
	b := NewMutex(store, "tenant-1")

	assert.Equal(t, "tenant-1", a.Name())
	assert.NotEqual(t, a.token, b.token)
}
