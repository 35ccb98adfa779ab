package keylock

import (
	"sort"
	"sync"
)

// KeyedLock serializes read-then-write balance mutations per
// (user, token) key. Multi-key acquisition sorts the keys first so every
// caller takes locks in the same total order, which rules out deadlock
// between concurrent transfers.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *KeyedLock {
	return &KeyedLock{
		locks: make(map[string]*entry),
	}
}

func (l *KeyedLock) acquire(key string) *entry {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return e
}

func (l *KeyedLock) release(key string) {
	l.mu.Lock()
	e := l.locks[key]
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}

// Lock acquires the lock for a single key.
func (l *KeyedLock) Lock(key string) {
	l.acquire(key)
}

// Unlock releases the lock for a single key.
func (l *KeyedLock) Unlock(key string) {
	l.release(key)
}

// LockAll acquires every key in lexicographic order, deduplicating so a
// self-transfer style call cannot deadlock on its own key.
func (l *KeyedLock) LockAll(keys ...string) {
	for _, key := range dedupSorted(keys) {
		l.acquire(key)
	}
}

// UnlockAll releases keys acquired by LockAll.
func (l *KeyedLock) UnlockAll(keys ...string) {
	deduped := dedupSorted(keys)
	// release in reverse acquisition order
	for i := len(deduped) - 1; i >= 0; i-- {
		l.release(deduped[i])
	}
}

func dedupSorted(keys []string) []string {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	deduped := sorted[:0]
	for i, key := range sorted {
		if i == 0 || key != sorted[i-1] {
			deduped = append(deduped, key)
		}
	}
	return deduped
}
