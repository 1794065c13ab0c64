package services

import (
	"sync"

	"rewards-terminal/internal/models"
)

type identityLock struct {
	mu   sync.Mutex
	refs int
}

// identityLocks serializes work per identity. Entries are dropped once no
// caller holds or waits on them.
type identityLocks struct {
	mu    sync.Mutex
	locks map[models.Identity]*identityLock
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: make(map[models.Identity]*identityLock)}
}

// Lock blocks until identity is free and returns the matching unlock.
func (l *identityLocks) Lock(identity models.Identity) func() {
	l.mu.Lock()
	lock, ok := l.locks[identity]
	if !ok {
		lock = &identityLock{}
		l.locks[identity] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, identity)
		}
		l.mu.Unlock()
	}
}
