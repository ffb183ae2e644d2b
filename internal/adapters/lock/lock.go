// Package lock serialises writers per match.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/crease/pkg/metrics"
)

// ErrTimeout is returned when a lock could not be taken within the wait bound.
var ErrTimeout = errors.New("lock wait timed out")

// Locker grants exclusive access to a key. Lock blocks until the lock is
// held, the context ends or the wait bound passes. The returned unlock func
// is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Local is an in-process keyed mutex.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

var _ Locker = (*Local)(nil)

// NewLocal returns a keyed mutex whose waits give up after wait.
func NewLocal(wait time.Duration) *Local {
	return &Local{slots: make(map[string]*slot), wait: wait}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	s := l.acquire(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-timer.C:
		l.release(key)
		metrics.RecordLockTimeout()
		return nil, ErrTimeout
	case <-ctx.Done():
		l.release(key)
		return nil, ctx.Err()
	}
	metrics.RecordLockWait(metrics.Since(start))

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key)
		})
	}, nil
}

func (l *Local) acquire(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
