package ttl

import (
	"time"

	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/db/util"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("ttl")

// IndexRemover is the part of the unique index the manager needs to keep
// the index consistent when it purges a record
type IndexRemover interface {
	Remove(key string, doc document.Document)
}

// IsExpired reports whether a record with expiry instant expireAt is expired
// at now. A zero expireAt never expires. The boundary is inclusive: a record
// is expired at exactly its expiry instant.
func IsExpired(expireAt, now time.Time) bool {
	return !expireAt.IsZero() && !now.Before(expireAt)
}

// Manager computes expiry instants for a collection and physically purges
// expired records. It keeps a heap of scheduled expiries by primary key so a
// purge only touches records that are due.
//
// Thread-safety: Now is safe for concurrent use. Every other method must be
// serialised by the owner (the collection calls them under its write lock).
type Manager struct {
	policy Policy
	clock  Clock
	queue  *util.MapHeap[string]
}

// NewManager creates a manager for policy. The clock (nil = system clock) is
// wrapped in a MonotonicClock.
func NewManager(policy Policy, clock Clock) *Manager {
	return &Manager{
		policy: policy,
		clock:  NewMonotonicClock(clock),
		queue:  util.NewMapHeap[string](),
	}
}

// Policy returns the collection policy
func (m *Manager) Policy() Policy { return m.policy }

// Now reads the manager's monotonic clock
func (m *Manager) Now() time.Time { return m.clock.Now() }

// ComputeExpiry returns the expiry instant for a record written at now. An
// override takes precedence over the collection policy. The zero time means
// no expiry.
func (m *Manager) ComputeExpiry(now time.Time, override *Policy) time.Time {
	p := m.policy
	if override != nil {
		p = *override
	}
	if !p.Expires() {
		return time.Time{}
	}
	return now.Add(p.Duration())
}

// Track schedules key for expiry at expireAt. A zero expireAt unschedules.
func (m *Manager) Track(key string, expireAt time.Time) {
	if expireAt.IsZero() {
		m.queue.Remove(key)
		return
	}
	m.queue.Set(key, expireAt.UnixNano())
}

// Untrack drops the schedule of key
func (m *Manager) Untrack(key string) {
	m.queue.Remove(key)
}

// Pending returns the number of scheduled expiries
func (m *Manager) Pending() int { return m.queue.Len() }

// NextExpiry returns the earliest scheduled expiry instant
func (m *Manager) NextExpiry() (time.Time, bool) {
	_, at, ok := m.queue.Peek()
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(0, at), true
}

// Purge physically removes every record that is expired at now from store
// and index and returns the removed entries.
//
// The schedule is only a hint: before removing, the stored entry is checked
// again, so an entry whose expiry moved or that is already gone is never
// purged by a stale schedule.
func (m *Manager) Purge(store db.RecordStore, index IndexRemover, now time.Time) []db.Entry {
	var purged []db.Entry
	for {
		key, at, ok := m.queue.Peek()
		if !ok || at > now.UnixNano() {
			break
		}
		m.queue.PopMin()

		entry, found := store.Get(key)
		if !found {
			continue
		}
		if !IsExpired(entry.ExpireAt, now) {
			// rescheduled without Track, restore the schedule from the store
			m.Track(key, entry.ExpireAt)
			continue
		}

		store.Remove(key)
		if index != nil {
			index.Remove(key, entry.Document)
		}
		purged = append(purged, entry)
	}

	if len(purged) > 0 {
		plog.Debugf("purged %d expired records, %d still scheduled", len(purged), m.queue.Len())
	}
	return purged
}

// Rebuild replaces the schedule with the expiries of all entries in store
func (m *Manager) Rebuild(store db.RecordStore) {
	m.queue.Clear()
	for entry := range store.Scan() {
		m.Track(entry.Key, entry.ExpireAt)
	}
}
