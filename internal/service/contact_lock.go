package service

import "sync"

// contactLocks serializes work on one (company, contact) pair. Entries are
// dropped once no caller holds or waits for them.
type contactLocks struct {
	mu    sync.Mutex
	locks map[string]*contactLock
}

type contactLock struct {
	mu   sync.Mutex
	refs int
}

func newContactLocks() *contactLocks {
	return &contactLocks{locks: make(map[string]*contactLock)}
}

// lock blocks until the pair is free and returns the unlock func
func (l *contactLocks) lock(companyID, contactID string) func() {
	key := companyID + "/" + contactID

	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &contactLock{}
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

// size is the number of pairs currently held or awaited
func (l *contactLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
