package maple

import (
	"testing"

	"github.com/ValentinKolb/memdoc/lib/db"
	dbtesting "github.com/ValentinKolb/memdoc/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunRecordStoreTests(t, "MapleStore", func() db.RecordStore {
		return NewMapleStore(nil)
	})
}

func TestSingleShard(t *testing.T) {
	dbtesting.RunRecordStoreTests(t, "MapleStoreSingleShard", Factory(&Options{NumShards: 1}))
}

func Benchmark(b *testing.B) {
	dbtesting.RunRecordStoreBenchmarks(b, "MapleStore", func() db.RecordStore {
		return NewMapleStore(nil)
	})
}
