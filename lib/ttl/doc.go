// Package ttl implements record expiry for memdoc collections.
//
// A Policy says whether records expire and after how long. The Manager
// turns a policy (or a per-write override) into an expiry instant, keeps a
// keyed min-heap of scheduled expiries and purges due records from a
// db.RecordStore together with their unique index entries.
//
// Expiry is logical first: readers treat a record as absent as soon as
// IsExpired(entry.ExpireAt, now) holds, whether or not it was purged yet.
// Purge only reclaims the memory and frees unique values.
//
// Time comes from a Clock. The manager wraps it in a MonotonicClock so that
// expiry decisions never go back in time. ManualClock is provided for tests.
package ttl
