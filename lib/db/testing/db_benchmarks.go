package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/document"
)

// RunRecordStoreBenchmarks runs the standard benchmarks for a db.RecordStore
func RunRecordStoreBenchmarks(b *testing.B, name string, factory db.Factory) {
	b.Run(name+"/Put", func(b *testing.B) {
		benchmarkPut(b, factory())
	})

	b.Run(name+"/PutExisting", func(b *testing.B) {
		benchmarkPutExisting(b, factory())
	})

	b.Run(name+"/Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run(name+"/Remove", func(b *testing.B) {
		benchmarkRemove(b, factory())
	})

	b.Run(name+"/Scan", func(b *testing.B) {
		benchmarkScan(b, factory())
	})

	b.Run(name+"/MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

func benchDoc(i int) document.Document {
	return document.New(
		document.F("id", i),
		document.F("name", fmt.Sprintf("user-%d", i)),
		document.F("age", i%90),
	)
}

func fill(store db.RecordStore, n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprint(i)
		store.Put(db.Entry{Key: keys[i], Document: benchDoc(i)})
	}
	return keys
}

func benchmarkPut(b *testing.B, store db.RecordStore) {
	defer store.Close()
	doc := benchDoc(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.Put(db.Entry{Key: fmt.Sprint(i), Document: doc})
	}
}

func benchmarkPutExisting(b *testing.B, store db.RecordStore) {
	defer store.Close()
	keys := fill(store, 1000)
	doc := benchDoc(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.Put(db.Entry{Key: keys[i%len(keys)], Document: doc})
	}
}

func benchmarkGet(b *testing.B, store db.RecordStore) {
	defer store.Close()
	keys := fill(store, 10000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			store.Get(keys[r.Intn(len(keys))])
		}
	})
}

func benchmarkRemove(b *testing.B, store db.RecordStore) {
	defer store.Close()
	keys := fill(store, b.N)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.Remove(keys[i])
	}
}

func benchmarkScan(b *testing.B, store db.RecordStore) {
	defer store.Close()
	fill(store, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for range store.Scan() {
		}
	}
}

func benchmarkMixedUsage(b *testing.B, store db.RecordStore) {
	defer store.Close()
	keys := fill(store, 10000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := keys[r.Intn(len(keys))]
			switch op := r.Intn(10); {
			case op < 7:
				store.Get(key)
			case op < 9:
				store.Put(db.Entry{Key: key, Document: benchDoc(op)})
			default:
				store.Remove(key)
			}
		}
	})
}
