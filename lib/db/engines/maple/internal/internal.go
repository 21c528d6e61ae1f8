package internal

import (
	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Shard Type (partition of the store)
// --------------------------------------------------------------------------

// Shard holds the entries of one partition of the key space
type Shard struct {
	Data *xsync.MapOf[string, db.Entry]
}

// NewShard creates an empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, db.Entry](),
	}
}

// GetShard returns the shard responsible for a key hash
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](hash uint64, shards []*T) *T {
	// the low bits of fnv are weak for short keys
	shardPos := (hash >> 7) % uint64(len(shards))
	return shards[shardPos]
}
