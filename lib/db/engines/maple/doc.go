// Package maple implements db.RecordStore as a set of shards, each backed by
// a lock-free xsync.MapOf. Keys are assigned to shards by a seeded FNV-1a hash
// so that concurrent readers and writers on different keys rarely touch the
// same map.
//
// Every key receives a creation sequence number on its first Put. Overwrites
// keep the number, so Scan can return entries in creation order by sorting
// its capture of all shards.
//
// Info does not walk the whole store: it samples up to 100 entries per shard
// to estimate sizes and reports the shard balance as util.DistributionStats.
//
// Example:
//
//	store := maple.NewMapleStore(maple.DefaultOptions())
//	store.Put(db.Entry{Key: "1", Document: doc})
//	for entry := range store.Scan() {
//	    ...
//	}
package maple
