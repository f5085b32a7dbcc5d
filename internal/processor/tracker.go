// tracker.go keeps the per-event OCR attempt counters.
package processor

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Tracker maps in-flight event ids to the number of OCR attempts made for
// them. Entries that never see an end message expire after the TTL.
type Tracker struct {
	entries *cache.Cache

	locksMu sync.Mutex
	locks   map[string]*eventLock
}

type eventLock struct {
	mu   sync.Mutex
	refs int
}

// NewTracker creates a tracker. ttl <= 0 keeps entries until deleted.
// Expired entries are invisible immediately and reclaimed by Sweep.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Tracker{
		entries: cache.New(ttl, 0),
		locks:   make(map[string]*eventLock),
	}
}

// Track inserts id with zero attempts. It reports false when id was
// already tracked.
func (t *Tracker) Track(id string) bool {
	return t.entries.Add(id, 0, cache.DefaultExpiration) == nil
}

// Tracked reports whether id has a live entry.
func (t *Tracker) Tracked(id string) bool {
	_, ok := t.entries.Get(id)
	return ok
}

// Attempts returns the attempt count for id, 0 when untracked.
func (t *Tracker) Attempts(id string) int {
	v, ok := t.entries.Get(id)
	if !ok {
		return 0
	}
	return v.(int)
}

// Increment adds one attempt and returns the new count. An untracked id is
// inserted at one.
func (t *Tracker) Increment(id string) int {
	n, err := t.entries.IncrementInt(id, 1)
	if err != nil {
		t.entries.Set(id, 1, cache.DefaultExpiration)
		return 1
	}
	return n
}

// Delete forgets id.
func (t *Tracker) Delete(id string) {
	t.entries.Delete(id)
}

// Exhausted reports whether another OCR call would exceed max attempts.
// max <= 0 is unlimited.
func (t *Tracker) Exhausted(id string, max int) bool {
	return max > 0 && t.Attempts(id) >= max
}

// Len returns the number of entries, including expired ones not yet swept.
func (t *Tracker) Len() int {
	return t.entries.ItemCount()
}

// Sweep drops expired entries.
func (t *Tracker) Sweep() {
	t.entries.DeleteExpired()
}

// Lock serialises work on one event id and returns the unlock func.
func (t *Tracker) Lock(id string) (unlock func()) {
	t.locksMu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &eventLock{}
		t.locks[id] = l
	}
	l.refs++
	t.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, id)
		}
		t.locksMu.Unlock()
	}
}
