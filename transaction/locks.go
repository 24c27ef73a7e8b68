package transaction

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Key scopes one lock to a single (account, region, currency) tuple.
type Key struct {
	Account  uuid.UUID
	Region   string
	Currency int64
}

func (k Key) less(other Key) bool {
	a, b := k.Account.String(), other.Account.String()
	if a != b {
		return a < b
	}
	if k.Region != other.Region {
		return k.Region < other.Region
	}
	return k.Currency < other.Currency
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// LockTable serializes transactions per tuple. Concurrent transactions on
// disjoint tuples proceed in parallel; transactions sharing a tuple queue
// on that tuple's lock only. Entries are reclaimed when their last holder
// releases, so the table stays proportional to in-flight work.
type LockTable struct {
	mu      sync.Mutex
	entries map[Key]*lockEntry
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{entries: make(map[Key]*lockEntry)}
}

// Lock acquires every key, deduplicated and in a global order so that two
// multi-leg transactions can never deadlock against each other. The
// returned function releases all of them.
func (t *LockTable) Lock(keys ...Key) func() {
	unique := make([]Key, 0, len(keys))
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			unique = append(unique, k)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].less(unique[j]) })

	for _, k := range unique {
		t.acquire(k)
	}

	return func() {
		for i := len(unique) - 1; i >= 0; i-- {
			t.release(unique[i])
		}
	}
}

func (t *LockTable) acquire(k Key) {
	t.mu.Lock()
	e, ok := t.entries[k]
	if !ok {
		e = &lockEntry{}
		t.entries[k] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
}

func (t *LockTable) release(k Key) {
	t.mu.Lock()
	e := t.entries[k]
	e.refs--
	if e.refs == 0 {
		delete(t.entries, k)
	}
	t.mu.Unlock()

	e.mu.Unlock()
}
