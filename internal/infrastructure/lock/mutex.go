package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Mutex is a named, TTL-bounded mutual-exclusion token over a shared
// Store. At most one holder can observe a successful acquire for a name
// at any instant; the random token prevents a holder whose TTL expired
// from releasing a lock that has since been reacquired by someone else.
//
// Typical use:
//
//	m := lock.NewMutex(store, tenant.MutexName())
//	ok, err := m.Acquire(ctx, ttl)
//	if err != nil || !ok {
//		return
//	}
//	defer m.Release(ctx)
type Mutex struct {
	store Store
	name  string
	token string
}

// NewMutex creates a mutex with a fresh holder token
func NewMutex(store Store, name string) *Mutex {
	return &Mutex{
		store: store,
		name:  name,
		token: uuid.NewString(),
	}
}

// Name returns the lock name
func (m *Mutex) Name() string {
	return m.name
}

// Acquire attempts a non-blocking acquisition. It succeeds when the
// lock is free or already held by this same token (idempotent
// re-acquire); it fails without error when another holder owns it.
func (m *Mutex) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := m.store.SetIfAbsent(ctx, m.name, m.token, ttl)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	holder, err := m.store.Get(ctx, m.name)
	if err != nil {
		return false, err
	}
	return holder == m.token, nil
}

// Release frees the lock iff this holder's token still matches the
// stored value. Returns false when the lock expired and was taken over.
func (m *Mutex) Release(ctx context.Context) (bool, error) {
	return m.store.CompareAndDelete(ctx, m.name, m.token)
}

// UpdateTTL unconditionally rewrites the lock with a new expiry. Not
// atomic against a concurrent steal: callers must only refresh while
// reasonably confident they still hold the lock.
func (m *Mutex) UpdateTTL(ctx context.Context, ttl time.Duration) error {
	return m.store.Set(ctx, m.name, m.token, ttl)
}
