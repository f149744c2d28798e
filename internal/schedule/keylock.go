package schedule

import "sync"

// keyLocks hands out one mutex per schedule id and forgets it once unused.
// Take a lock only while holding a store transaction.
type keyLocks struct {
	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: map[int64]*keyLock{}}
}

// lock blocks until id is free and returns its unlock func.
func (k *keyLocks) lock(id int64) func() {
	k.mu.Lock()
	l := k.locks[id]
	if l == nil {
		l = &keyLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
