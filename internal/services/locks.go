package services

import "sync"

// accountLocks serializes work per player. Entries are dropped once no
// goroutine holds or waits on them.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*accountLock)}
}

func (a *accountLocks) lock(playerID string) func() {
	a.mu.Lock()
	l, ok := a.locks[playerID]
	if !ok {
		l = &accountLock{}
		a.locks[playerID] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		a.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.locks, playerID)
		}
		a.mu.Unlock()
	}
}
