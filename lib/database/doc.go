// Package database is the registry that names and owns collections.
//
// A Database creates collections from a collection.Config, hands out the
// collection registered under a name and closes them all together.
// Collections created without a TTL policy inherit the database default.
//
// Expired records are invisible to reads immediately and are purged lazily
// by the next write to their collection. Applications that want memory
// reclaimed eagerly call Sweep, or start a sweeper goroutine owned by the
// database with StartSweeper.
package database
