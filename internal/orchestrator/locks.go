package orchestrator

import "sync"

// Locks enforces that at most one control tick is active per
// equipment at any moment. TryLock is non-blocking — a busy equipment
// is skipped for the tick rather than queued, grounded on a per-zone
// serial drain-then-publish loop that never starts a second concurrent
// action for one zone.
type Locks struct {
	mu    sync.Mutex
	busy  map[string]struct{}
}

// NewLocks returns a ready, empty lock set.
func NewLocks() *Locks {
	return &Locks{busy: make(map[string]struct{})}
}

// TryLock attempts to claim equipmentID. On success it returns an
// unlock function the caller must call exactly once; on failure (the
// equipment is already locked) ok is false and unlock is nil.
func (l *Locks) TryLock(equipmentID string) (unlock func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.busy[equipmentID]; busy {
		return nil, false
	}
	l.busy[equipmentID] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.busy, equipmentID)
		l.mu.Unlock()
	}, true
}
