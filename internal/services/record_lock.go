package services

import (
	"sync"

	"github.com/google/uuid"
)

// recordLocks serializes read-modify-write cycles on a single record.
type recordLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*recordLock
}

type recordLock struct {
	sync.Mutex
	refs int
}

func newRecordLocks() *recordLocks {
	return &recordLocks{locks: make(map[uuid.UUID]*recordLock)}
}

// Lock blocks until the caller owns id and returns the matching unlock.
func (l *recordLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &recordLock{}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
