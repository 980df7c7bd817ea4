package usecase

import "sync"

// KeyLock serializes gateway work per subscription. The gateway is not
// idempotent under concurrent alteration of the same plan, so the lock is
// held for the whole build -> seal -> send -> parse -> persist span.
type KeyLock struct {
	mu    sync.Mutex
	locks map[int64]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[int64]*keyLockEntry)}
}

// Lock acquires the lock for id and returns its release function.
func (l *KeyLock) Lock(id int64) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &keyLockEntry{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
