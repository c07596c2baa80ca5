package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LockTimeoutError reports that a lock could not be acquired within the
// configured wait.
type LockTimeoutError struct {
	Key  string        `json:"key"`
	Wait time.Duration `json:"wait"`
}

// Error implements the error interface.
func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for lock %q", e.Wait, e.Key)
}

// LockGroup serializes work per string key. At most one holder exists per
// key at any time; distinct keys are fully independent.
type LockGroup struct {
	// OnAcquire is invoked with the key after each successful acquisition.
	OnAcquire func(key string)
	// OnRelease is invoked with the key after each release.
	OnRelease func(key string)

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLockGroup creates an empty LockGroup.
func NewLockGroup() *LockGroup {
	return &LockGroup{locks: make(map[string]chan struct{})}
}

func (g *LockGroup) slot(key string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		g.locks[key] = ch
	}
	return ch
}

// Acquire blocks until the key's lock is free, the wait elapses, or ctx is
// done. On success it returns a release function that is safe to call more
// than once. A wait of zero blocks until ctx is done.
func (g *LockGroup) Acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	ch := g.slot(key)

	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, ctx.Err())
	case <-timeout:
		return nil, &LockTimeoutError{Key: key, Wait: wait}
	}

	if g.OnAcquire != nil {
		g.OnAcquire(key)
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			<-ch
			if g.OnRelease != nil {
				g.OnRelease(key)
			}
		})
	}
	return release, nil
}

// Held reports whether the key's lock is currently held.
func (g *LockGroup) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.locks[key]
	return ok && len(ch) == 1
}
