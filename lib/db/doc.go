// Package db defines the RecordStore contract, the physical storage layer
// below a memdoc collection.
//
// A RecordStore maps a canonical primary key to an Entry holding the
// document, its optional expiry instant and a creation sequence number. The
// store is deliberately dumb: it neither validates documents nor hides
// expired entries. Unique indexes and TTL handling live in the index and ttl
// packages and are combined by the collection package.
//
// Implementations live below engines/ (currently "maple"). The testing
// package contains a conformance suite every implementation must pass:
//
//	func TestMyStore(t *testing.T) {
//	    dbtesting.RunRecordStoreTests(t, "MyStore", func() db.RecordStore {
//	        return mystore.New()
//	    })
//	}
package db
