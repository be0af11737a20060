package engine

import "sync"

// agentLock is a refcounted, non-blocking mutex for one agent's step loop.
type agentLock struct {
	mu   sync.Mutex
	refs int
}

// LockTable hands out per-agent locks that reject instead of blocking when an
// agent is already mid-step. A second caller for the same agent id gets
// ok == false immediately rather than queueing behind the first.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*agentLock
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]*agentLock)}
}

// TryLock attempts to acquire the lock for agentID without blocking. It
// returns a release function and ok=true on success, or ok=false if another
// step is already in progress for that agent.
func (t *LockTable) TryLock(agentID string) (release func(), ok bool) {
	t.mu.Lock()
	lock := t.locks[agentID]
	if lock == nil {
		lock = &agentLock{}
		t.locks[agentID] = lock
	}
	lock.refs++
	t.mu.Unlock()

	if !lock.mu.TryLock() {
		t.mu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(t.locks, agentID)
		}
		t.mu.Unlock()
		return nil, false
	}

	return func() {
		lock.mu.Unlock()
		t.mu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(t.locks, agentID)
		}
		t.mu.Unlock()
	}, true
}
