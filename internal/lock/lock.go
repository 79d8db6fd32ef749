// Package lock provides per-event mutual exclusion so that one slug is never
// analysed by two workers at once.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrHeld is returned when the lock is owned by someone else
var ErrHeld = errors.New("lock held")

// Locker acquires named locks. On success the returned function releases the
// lock and is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Local is an in-process Locker used when no Redis address is configured
type Local struct {
	mu   sync.Mutex
	held map[string]time.Time // key -> expiry
	now  func() time.Time
}

// NewLocal creates an in-process locker
func NewLocal() *Local {
	return &Local{held: make(map[string]time.Time), now: time.Now}
}

// Acquire takes the lock for key until unlock is called or ttl passes
func (l *Local) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiry, ok := l.held[key]; ok && now.Before(expiry) {
		return nil, ErrHeld
	}
	expiry := now.Add(ttl)
	l.held[key] = expiry

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// a later holder may own the key after our ttl lapsed
			if l.held[key].Equal(expiry) {
				delete(l.held, key)
			}
		})
	}, nil
}
