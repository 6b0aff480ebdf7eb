package services

import "sync"

// refLocks hands out one mutex per key so that reconciliation work for the
// same reference (webhook delivery, verify poll, retry, cancel) is
// serialized in-process. Entries are reference-counted and dropped once
// the last holder releases, so the map does not grow with ledger size.
type refLocks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newRefLocks() *refLocks {
	return &refLocks{locks: make(map[string]*refLock)}
}

// lock blocks until the key's mutex is held and returns the release func.
func (l *refLocks) lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &refLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
