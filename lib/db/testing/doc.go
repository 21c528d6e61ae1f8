// Package testing provides the conformance suite and benchmarks for
// db.RecordStore implementations.
//
// The suite checks the contract the collection engine relies on: overwrites
// keep the creation sequence, Scan returns a capture in creation order that
// later writes do not affect, expiry instants are stored but never acted
// upon, and concurrent writers get distinct sequence numbers.
//
// Example usage:
//
//	factory := func() db.RecordStore {
//		return NewMyStore()
//	}
//
//	dbtesting.RunRecordStoreTests(t, "MyStore", factory)
//	dbtesting.RunRecordStoreBenchmarks(b, "MyStore", factory)
package testing
