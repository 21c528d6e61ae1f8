package maple

import (
	"iter"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/memdoc/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("maple")

// --------------------------------------------------------------------------
// Core Maple store structure
// --------------------------------------------------------------------------

// mapleImpl implements db.RecordStore on top of sharded xsync maps
type mapleImpl struct {
	numShards int
	seed      uint64
	shards    []*internal.Shard
	seq       atomic.Uint64 // last assigned creation sequence number
	closed    atomic.Bool
}

// Options configures the store
type Options struct {
	NumShards int // Number of shards (<= 0 = number of CPUs)
}

// DefaultOptions returns the default options
func DefaultOptions() *Options {
	return &Options{
		NumShards: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleStore creates an empty store with the given options (optional)
func NewMapleStore(opts *Options) db.RecordStore {
	if opts == nil {
		opts = DefaultOptions()
	}
	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = runtime.NumCPU()
	}

	shards := make([]*internal.Shard, numShards)
	for i := range shards {
		shards[i] = internal.NewShard()
	}

	plog.Debugf("created maple store with %d shards", numShards)
	return &mapleImpl{
		numShards: numShards,
		seed:      util.GenerateSeed(),
		shards:    shards,
	}
}

// Factory returns a db.Factory creating maple stores with opts
func Factory(opts *Options) db.Factory {
	return func() db.RecordStore {
		return NewMapleStore(opts)
	}
}

func (maple *mapleImpl) shard(key string) *internal.Shard {
	return internal.GetShard(util.HashString(key, maple.seed), maple.shards)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.RecordStore)
// --------------------------------------------------------------------------

func (maple *mapleImpl) Get(key string) (db.Entry, bool) {
	return maple.shard(key).Data.Load(key)
}

func (maple *mapleImpl) Put(entry db.Entry) {
	maple.shard(entry.Key).Data.Compute(entry.Key, func(old db.Entry, loaded bool) (db.Entry, bool) {
		if loaded {
			entry.Seq = old.Seq
		} else {
			entry.Seq = maple.seq.Add(1)
		}
		return entry, false
	})
}

func (maple *mapleImpl) Remove(key string) (db.Entry, bool) {
	return maple.shard(key).Data.LoadAndDelete(key)
}

func (maple *mapleImpl) Scan() iter.Seq[db.Entry] {
	entries := make([]db.Entry, 0, maple.Len())
	for _, s := range maple.shards {
		s.Data.Range(func(_ string, entry db.Entry) bool {
			entries = append(entries, entry)
			return true
		})
	}
	slices.SortFunc(entries, func(a, b db.Entry) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})

	return func(yield func(db.Entry) bool) {
		for _, entry := range entries {
			if !yield(entry) {
				return
			}
		}
	}
}

func (maple *mapleImpl) Len() int {
	n := 0
	for _, s := range maple.shards {
		n += s.Data.Size()
	}
	return n
}

func (maple *mapleImpl) Clear() {
	for _, s := range maple.shards {
		s.Data.Clear()
	}
}

// Info samples up to 100 entries per shard to estimate the document size
// distribution and reports how evenly the keys spread over the shards.
func (maple *mapleImpl) Info() db.Info {
	histogram := util.NewSizeHistogram()
	samplesPerShard := 100
	shardSizes := make([]float64, len(maple.shards))

	var wg sync.WaitGroup
	wg.Add(len(maple.shards))
	for i, shard := range maple.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			count := 0
			s.Data.Range(func(key string, entry db.Entry) bool {
				histogram.AddSample(len(key) + entry.Document.SizeHint())
				count++
				return count < samplesPerShard
			})
			shardSizes[i] = float64(s.Data.Size())
		}(i, shard)
	}
	wg.Wait()

	entries := maple.Len()

	// 8 bytes each for expiry and sequence plus the map slot
	entryOverhead := 32
	perEntry := (histogram.Percentile(50)*60+histogram.AverageSize()*40)/100 + entryOverhead

	meta := &struct {
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		DocumentSizes     util.SizeSummary       `json:"document_sizes"`
		LastSequence      uint64                 `json:"last_sequence"`
		Info              string                 `json:"info"`
	}{
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		DocumentSizes:     histogram.Summary(),
		LastSequence:      maple.seq.Load(),
		Info:              "All sizes are estimates based on a sample of each shard.",
	}

	return db.Info{
		Entries:   entries,
		SizeBytes: entries * perEntry,
		DbType:    db.ImplMaple,
		Metadata:  meta,
	}
}

func (maple *mapleImpl) Close() error {
	if maple.closed.Swap(true) {
		return nil
	}
	maple.Clear()
	return nil
}
