package testing

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/document"
)

// RunRecordStoreTests runs the conformance suite for a db.RecordStore
// implementation. Every subtest gets a fresh store from factory.
func RunRecordStoreTests(t *testing.T, name string, factory db.Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("ScanOrder", func(t *testing.T) {
			testScanOrder(t, factory())
		})

		t.Run("ScanSnapshot", func(t *testing.T) {
			testScanSnapshot(t, factory())
		})

		t.Run("ScanEarlyStop", func(t *testing.T) {
			testScanEarlyStop(t, factory())
		})

		t.Run("Expiry", func(t *testing.T) {
			testExpiryIsStored(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})

		t.Run("ConcurrentPuts", func(t *testing.T) {
			testConcurrentPuts(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func entry(key string, fields ...document.Field) db.Entry {
	return db.Entry{Key: key, Document: document.New(fields...)}
}

func mustGet(t *testing.T, store db.RecordStore, key string) db.Entry {
	t.Helper()
	e, ok := store.Get(key)
	if !ok {
		t.Fatalf("Expected key %q to exist", key)
	}
	return e
}

func scanKeys(store db.RecordStore) []string {
	var keys []string
	for e := range store.Scan() {
		keys = append(keys, e.Key)
	}
	return keys
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, store db.RecordStore) {
	defer store.Close()

	if _, ok := store.Get("missing"); ok {
		t.Error("Get on empty store should report not found")
	}

	store.Put(entry("1", document.F("id", 1), document.F("name", "Alice")))
	store.Put(entry("2", document.F("id", 2), document.F("name", "Bob")))

	e := mustGet(t, store, "1")
	if name, _ := e.Document.Get("name"); !name.Equal(document.Text("Alice")) {
		t.Errorf("Expected name Alice, got %v", name)
	}
	if e.Key != "1" {
		t.Errorf("Expected key 1, got %q", e.Key)
	}
	if store.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", store.Len())
	}
	if e.HasExpiry() {
		t.Error("Entry without expiry reports one")
	}
}

func testOverwrite(t *testing.T, store db.RecordStore) {
	defer store.Close()

	store.Put(entry("a", document.F("v", 1)))
	store.Put(entry("b", document.F("v", 1)))
	first := mustGet(t, store, "a").Seq

	store.Put(entry("a", document.F("v", 2)))
	e := mustGet(t, store, "a")

	if v, _ := e.Document.Get("v"); !v.Equal(document.Number(2)) {
		t.Errorf("Overwrite not visible, got %v", v)
	}
	if e.Seq != first {
		t.Errorf("Overwrite changed sequence number from %d to %d", first, e.Seq)
	}
	if store.Len() != 2 {
		t.Errorf("Overwrite changed entry count to %d", store.Len())
	}
	if keys := scanKeys(store); !equalKeys(keys, []string{"a", "b"}) {
		t.Errorf("Overwrite changed scan order: %v", keys)
	}
}

func testRemove(t *testing.T, store db.RecordStore) {
	defer store.Close()

	store.Put(entry("x", document.F("id", "x")))

	removed, ok := store.Remove("x")
	if !ok || removed.Key != "x" {
		t.Fatalf("Remove returned (%v, %v)", removed, ok)
	}
	if _, ok := store.Get("x"); ok {
		t.Error("Removed key still present")
	}
	if _, ok := store.Remove("x"); ok {
		t.Error("Second remove should report not found")
	}
	if store.Len() != 0 {
		t.Errorf("Expected empty store, got %d entries", store.Len())
	}

	// re-inserting a removed key makes it the newest entry
	store.Put(entry("y"))
	store.Put(entry("x"))
	if keys := scanKeys(store); !equalKeys(keys, []string{"y", "x"}) {
		t.Errorf("Expected [y x], got %v", keys)
	}
}

func testScanOrder(t *testing.T, store db.RecordStore) {
	defer store.Close()

	var want []string
	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("key-%03d", (i*7919)%500)
		store.Put(entry(key, document.F("i", i)))
		want = append(want, key)
	}

	if keys := scanKeys(store); !equalKeys(keys, want) {
		t.Errorf("Scan does not follow creation order")
	}
}

func testScanSnapshot(t *testing.T, store db.RecordStore) {
	defer store.Close()

	store.Put(entry("1", document.F("v", "old")))
	store.Put(entry("2"))

	seq := store.Scan()

	store.Put(entry("1", document.F("v", "new")))
	store.Put(entry("3"))
	store.Remove("2")

	var keys []string
	for e := range seq {
		keys = append(keys, e.Key)
		if e.Key == "1" {
			if v, _ := e.Document.Get("v"); !v.Equal(document.Text("old")) {
				t.Errorf("Snapshot sees later write: %v", v)
			}
		}
	}
	if !equalKeys(keys, []string{"1", "2"}) {
		t.Errorf("Snapshot should contain [1 2], got %v", keys)
	}
}

func testScanEarlyStop(t *testing.T, store db.RecordStore) {
	defer store.Close()

	for i := 0; i < 10; i++ {
		store.Put(entry(fmt.Sprint(i)))
	}

	n := 0
	for range store.Scan() {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("Expected to stop after 3 entries, got %d", n)
	}
}

func testExpiryIsStored(t *testing.T, store db.RecordStore) {
	defer store.Close()

	at := time.Unix(1700000000, 0)
	store.Put(db.Entry{Key: "ttl", Document: document.New(), ExpireAt: at})

	e := mustGet(t, store, "ttl")
	if !e.HasExpiry() || !e.ExpireAt.Equal(at) {
		t.Errorf("Expected expiry %v, got %v", at, e.ExpireAt)
	}

	// the store never hides expired entries
	found := false
	for e := range store.Scan() {
		found = found || e.Key == "ttl"
	}
	if !found {
		t.Error("Scan must return entries regardless of expiry")
	}
}

func testClear(t *testing.T, store db.RecordStore) {
	defer store.Close()

	for i := 0; i < 20; i++ {
		store.Put(entry(fmt.Sprint(i)))
	}
	store.Clear()

	if store.Len() != 0 {
		t.Errorf("Expected empty store after Clear, got %d", store.Len())
	}
	if keys := scanKeys(store); len(keys) != 0 {
		t.Errorf("Scan after Clear returned %v", keys)
	}
}

func testInfo(t *testing.T, store db.RecordStore) {
	defer store.Close()

	for i := 0; i < 100; i++ {
		store.Put(entry(fmt.Sprint(i), document.F("payload", "some text value")))
	}

	info := store.Info()
	if info.Entries != 100 {
		t.Errorf("Expected 100 entries, got %d", info.Entries)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("Expected a positive size estimate, got %d", info.SizeBytes)
	}
	if info.DbType == "" {
		t.Error("Info must name the implementation")
	}
}

func testConcurrentPuts(t *testing.T, store db.RecordStore) {
	defer store.Close()

	const workers = 8
	const perWorker = 250

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("%d-%d", w, i)
				store.Put(entry(key, document.F("w", w), document.F("i", i)))
				if i%10 == 0 {
					store.Get(key)
				}
			}
		}(w)
	}
	wg.Wait()

	if store.Len() != workers*perWorker {
		t.Fatalf("Expected %d entries, got %d", workers*perWorker, store.Len())
	}

	seen := make(map[uint64]bool, workers*perWorker)
	for e := range store.Scan() {
		if seen[e.Seq] {
			t.Fatalf("Sequence number %d assigned twice", e.Seq)
		}
		seen[e.Seq] = true
	}
}
