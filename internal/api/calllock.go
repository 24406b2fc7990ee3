package api

import (
	"context"
	"sync"
	"sync/atomic"
)

// contactLocks serializes flow steps per contact. Webhooks for different
// contacts run concurrently; webhooks for the same contact queue behind one
// another so each step sees the previous step's saved status.
type contactLocks struct {
	mu       sync.Mutex
	locks    map[string]*contactLock
	inFlight atomic.Int64
}

type contactLock struct {
	ch   chan struct{}
	refs int
}

func newContactLocks() *contactLocks {
	return &contactLocks{locks: make(map[string]*contactLock)}
}

// Acquire blocks until the lock for ref is held or ctx is done. The returned
// release func must be called exactly once when err is nil.
func (l *contactLocks) Acquire(ctx context.Context, ref string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[ref]
	if !ok {
		lk = &contactLock{ch: make(chan struct{}, 1)}
		l.locks[ref] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(ref, lk)
		return nil, ctx.Err()
	}

	l.inFlight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.inFlight.Add(-1)
			<-lk.ch
			l.unref(ref, lk)
		})
	}, nil
}

func (l *contactLocks) unref(ref string, lk *contactLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, ref)
	}
}

// InFlight returns the number of flow steps currently holding a lock.
func (l *contactLocks) InFlight() int64 {
	return l.inFlight.Load()
}

// tracked returns the number of contacts with a held or pending lock.
func (l *contactLocks) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
