package keylock

import (
	"sort"
	"sync"
)

// KeyLock serializes critical sections per string key. It is the in-process
// half of the race protection around check-then-act sequences such as
// occupancy checks before a schedule write, or the duplicate/capacity checks
// before a selection insert; the database constraints are the other half.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New constructs an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*entry)}
}

// Acquire locks every given key and returns a release function. Keys are
// deduplicated and locked in sorted order so two callers acquiring
// overlapping key sets cannot deadlock.
func (k *KeyLock) Acquire(keys ...string) func() {
	unique := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if !seen[key] {
			unique = append(unique, key)
			seen[key] = true
		}
	}
	sort.Strings(unique)

	entries := make([]*entry, 0, len(unique))
	for _, key := range unique {
		e := k.retain(key)
		e.mu.Lock()
		entries = append(entries, e)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
			k.release(unique[i])
		}
	}
}

func (k *KeyLock) retain(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	return e
}

func (k *KeyLock) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(k.locks, key)
	}
}
