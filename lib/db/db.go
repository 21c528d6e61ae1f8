package db

import (
	"iter"
	"time"

	"github.com/ValentinKolb/memdoc/lib/document"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// Entry is a stored record: the document under its canonical primary key
// and an optional expiry instant (zero means the record never expires).
type Entry struct {
	Key      string
	Document document.Document
	ExpireAt time.Time

	// Seq is the creation sequence number assigned by the store on the first
	// Put of a key and kept across overwrites. Scan yields entries by Seq.
	Seq uint64
}

// HasExpiry reports whether the entry carries an expiry instant
func (e Entry) HasExpiry() bool { return !e.ExpireAt.IsZero() }

type Info struct {
	Entries   int            `json:"entries"`
	SizeBytes int            `json:"size_bytes"`
	DbType    Implementation `json:"db_type"`
	Metadata  interface{}    `json:"metadata"`
}

// Factory creates a new, empty RecordStore
type Factory func() RecordStore

// --------------------------------------------------------------------------
// Record Store Interface
// --------------------------------------------------------------------------

// RecordStore is the physical storage of a collection: a mapping from
// canonical primary key to Entry. It has no notion of expiry or uniqueness.
// Entries are returned as stored, expired ones included; the collection
// decides what is live.
//
// Thread-safety: implementations must be safe for concurrent use. The
// snapshot guarantee of Scan is relative to writes that are serialised
// against it by the caller.
type RecordStore interface {

	// Get returns the entry stored under key
	Get(key string) (Entry, bool)

	// Put stores entry under entry.Key, replacing an existing entry. A new key
	// gets the next creation sequence number, an existing key keeps its own.
	Put(entry Entry)

	// Remove deletes the entry stored under key and returns it
	Remove(key string) (Entry, bool)

	// Scan captures the current entries and returns a sequence over that
	// capture in creation order. Writes after Scan returns are not visible
	// to the sequence.
	Scan() iter.Seq[Entry]

	// Len returns the number of stored entries
	Len() int

	// Clear removes all entries
	Clear()

	// Info returns size and implementation details. Sizes are estimated.
	Info() Info

	// Close releases all resources. The store must not be used afterwards.
	Close() error
}
