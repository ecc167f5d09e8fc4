package order

import "sync"

// keyedLock serializes mutations per order id: the aggregate is a single
// consistency boundary, so two concurrent operations on the same order must
// not interleave even when they touch different line items. Entries are
// reference counted and removed once the last holder releases, so the map
// does not grow with the order table.
type keyedLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{entries: make(map[string]*lockEntry)}
}

// lock blocks until the per-key mutex is held and returns the release func.
func (l *keyedLock) lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}
