package proc

import (
	"context"
	"sync"
	"time"
)

// LockTable is the registry of named mutual-exclusion locks guarding
// shared physical resources. Acquisition is all-or-nothing: a caller
// requesting several names either takes all of them in one step or
// none, which rules out circular waits between siblings requesting
// overlapping sets.
//
// The table is owned by the controller and shared by every step of a
// run. Locks are created on first reference; there is no registration
// step.
type LockTable struct {
	mu   sync.Mutex
	held map[string]bool
	poll time.Duration
}

// NewLockTable creates an empty table. poll is the interval between
// availability checks while waiting; zero means the default 20ms.
func NewLockTable(poll time.Duration) *LockTable {
	if poll <= 0 {
		poll = 20 * time.Millisecond
	}
	return &LockTable{held: make(map[string]bool), poll: poll}
}

// tryAcquire takes every name if all are currently free. Returns false
// without side effects if any is held.
func (t *LockTable) tryAcquire(names []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range names {
		if t.held[n] {
			return false
		}
	}
	for _, n := range names {
		t.held[n] = true
	}
	return true
}

// Acquire blocks until every name can be taken simultaneously, then
// takes them all. Returns ctx.Err() if the context is cancelled while
// waiting. An empty name list succeeds immediately.
func (t *LockTable) Acquire(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if t.tryAcquire(names) {
		return nil
	}
	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if t.tryAcquire(names) {
				return nil
			}
		}
	}
}

// Release frees every name. Releasing a name that is not held is a
// no-op.
func (t *LockTable) Release(names []string) {
	if len(names) == 0 {
		return
	}
	t.mu.Lock()
	for _, n := range names {
		delete(t.held, n)
	}
	t.mu.Unlock()
}

// Held reports whether the named lock is currently taken.
func (t *LockTable) Held(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.held[name]
}

// ancestorLocks returns the union of lock names declared by the step's
// ancestors. A step never re-acquires a lock an ancestor already
// holds; the holding ancestor covers every running descendant.
func ancestorLocks(s Step, c Controller) map[string]bool {
	out := make(map[string]bool)
	for p := s.Meta().Parent(); p != nil; p = p.Meta().Parent() {
		if lk, ok := p.(Locker); ok {
			for _, name := range lk.Locks(c) {
				out[name] = true
			}
		}
	}
	return out
}

// Locker is implemented by non-leaf steps that hold locks over their
// whole subtree for the duration of their execution.
type Locker interface {
	Locks(c Controller) []string
}

// locksToAcquire filters a step's declared locks down to those not
// already held by an ancestor.
func locksToAcquire(s Step, declared []string, c Controller) []string {
	if len(declared) == 0 {
		return nil
	}
	inherited := ancestorLocks(s, c)
	var out []string
	for _, name := range declared {
		if !inherited[name] {
			out = append(out, name)
		}
	}
	return out
}
