package perf

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/memdoc/cmd/util"
	"github.com/ValentinKolb/memdoc/lib/collection"
	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/ValentinKolb/memdoc/lib/ttl"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var plog = logger.GetLogger("perf")

var (
	// PerfCmd benchmarks the collection operations in process
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for memdoc collections",
		Args:    cobra.NoArgs,
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfKeySpread  = 1000
	perfTTL        = time.Duration(0)
	perfSkip       = make([]string, 0)
)

func init() {
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,query)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU used by the parallel benchmarks"))
	key = "keys"
	PerfCmd.Flags().Int(key, 1000, util.WrapString("How many documents the collection holds for the read benchmarks"))
	key = "ttl"
	PerfCmd.Flags().Duration(key, 0, util.WrapString("Give every record this time to live (0 = no expiry)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfTTL = viper.GetDuration("ttl")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread <= 0 || perfNumThreads <= 0 {
		return errors.New("--keys and --threads must be positive")
	}
	return nil
}

// benchmark is one named workload; op is called with a per-goroutine
// counter and reports the operation's error
type benchmark struct {
	name  string
	setup func(c *collection.Collection) error
	op    func(c *collection.Collection, i int) error
}

// result of one benchmark run
type result struct {
	name    string
	bench   testing.BenchmarkResult
	latency gometrics.Timer
	errors  int64
}

func run(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Performance testing tool for memdoc collections")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "Threads: %d\nKeys: %d\nTTL: %s\n\n", perfNumThreads, perfKeySpread, perfTTL)
	fmt.Fprintln(out, "starting tests...")

	var inserted atomic.Int64
	benchmarks := []benchmark{
		{
			name: "insert",
			op: func(c *collection.Collection, _ int) error {
				n := inserted.Add(1)
				_, err := c.Insert(doc(int(n), fmt.Sprintf("user-%d@x.com", n)))
				return err
			},
		},
		{
			name:  "get",
			setup: fill,
			op: func(c *collection.Collection, i int) error {
				_, _, err := c.Get(key(i))
				return err
			},
		},
		{
			name:  "update",
			setup: fill,
			op: func(c *collection.Collection, i int) error {
				k := i % perfKeySpread
				_, err := c.Update(doc(k, fmt.Sprintf("user-%d@x.com", k)))
				return err
			},
		},
		{
			name:  "upsert",
			setup: fill,
			op: func(c *collection.Collection, i int) error {
				k := i % (perfKeySpread * 2)
				_, err := c.Upsert(doc(k, fmt.Sprintf("user-%d@x.com", k)))
				return err
			},
		},
		{
			name:  "query",
			setup: fill,
			op: func(c *collection.Collection, i int) error {
				_, err := c.Select("id,age").Gte("age", i%50).Eq("active", true).Execute()
				return err
			},
		},
		{
			name:  "mixed",
			setup: fill,
			op: func(c *collection.Collection, i int) error {
				k := i % perfKeySpread
				var err error
				switch i % 4 {
				case 0:
					_, err = c.Upsert(doc(k, fmt.Sprintf("user-%d@x.com", k)))
				case 1:
					_, _, err = c.Get(key(i))
				case 2:
					_, err = c.Delete(key(i))
					if common.CodeOf(err) == common.CodeKeyNotFound {
						err = nil
					}
				case 3:
					_, err = c.Select("*").Eq("age", k%50).Execute()
				}
				return err
			},
		},
	}

	results := make([]result, 0, len(benchmarks))
	for _, b := range benchmarks {
		if slices.Contains(perfSkip, b.name) {
			printSkipped(cmd, b.name)
			continue
		}
		res, err := runBenchmark(b)
		if err != nil {
			return err
		}
		results = append(results, res)
		printResult(cmd, res)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Fprintf(out, "\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return errors.Wrap(err, "failed to export results to CSV")
		}
		fmt.Fprintln(out, "Export complete")
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func newCollection() (*collection.Collection, error) {
	policy := ttl.NoExpiry()
	if perfTTL > 0 {
		policy = ttl.Fixed(perfTTL)
	}
	return collection.New(collection.Config{
		Name:         "perf",
		PrimaryKey:   "id",
		KeyType:      collection.KeyTypeNumber,
		UniqueFields: []string{"email"},
		TTL:          policy,
	})
}

// runBenchmark runs b on a fresh collection. Every benchmark iteration
// is timed individually so the latency distribution can be reported next
// to the throughput of testing.Benchmark.
func runBenchmark(b benchmark) (result, error) {
	res := result{name: b.name, latency: gometrics.NewTimer()}
	var setupErr error

	res.bench = testing.Benchmark(func(tb *testing.B) {
		c, err := newCollection()
		if err != nil {
			setupErr = err
			return
		}
		tb.Cleanup(func() { _ = c.Close() })
		if b.setup != nil {
			if err := b.setup(c); err != nil {
				setupErr = err
				return
			}
		}

		tb.SetParallelism(perfNumThreads)
		tb.ResetTimer()
		tb.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := b.op(c, counter); err != nil {
					if atomic.AddInt64(&res.errors, 1) == 1 {
						plog.Warningf("(%s) - %v", b.name, err)
					}
				}
				res.latency.UpdateSince(start)
				counter++
			}
		})
	})

	return res, errors.Wrapf(setupErr, "setting up %s", b.name)
}

func fill(c *collection.Collection) error {
	for i := range perfKeySpread {
		if _, err := c.Insert(doc(i, fmt.Sprintf("user-%d@x.com", i))); err != nil {
			return err
		}
	}
	return nil
}

func key(i int) int { return i % perfKeySpread }

func doc(id int, email string) document.Document {
	return document.New(
		document.F("id", id),
		document.F("email", email),
		document.F("age", id%50),
		document.F("active", id%2 == 0),
		document.F("tags", []any{"bench", strconv.Itoa(id % 7)}),
	)
}

func printSkipped(cmd *cobra.Command, test string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%-12sskipped\n", test)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(cmd *cobra.Command, res result) {
	nsPerOp := math.Max(float64(res.bench.NsPerOp()), 1)
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	p := res.latency.Percentiles([]float64{0.5, 0.99})

	fmt.Fprintf(cmd.OutOrStdout(), "%-12s%.0fns/op (%s/op)\t%.0f ops/sec\tp50 %s\tp99 %s\terrors %d\n",
		res.name, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(p[0]), time.Duration(p[1]), atomic.LoadInt64(&res.errors))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []result) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return errors.Wrap(err, "failed to create CSV file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec",
		"P50Ns", "P99Ns", "MaxNs", "Errors",
		"Threads", "Keys", "TTL",
	}
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}

	for _, res := range results {
		nsPerOp := math.Max(float64(res.bench.NsPerOp()), 1)
		p := res.latency.Percentiles([]float64{0.5, 0.99})
		row := []string{
			res.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", 1.0/(nsPerOp/1e9)),
			fmt.Sprintf("%.0f", p[0]),
			fmt.Sprintf("%.0f", p[1]),
			strconv.FormatInt(res.latency.Max(), 10),
			strconv.FormatInt(res.errors, 10),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
			perfTTL.String(),
		}
		if err := writer.Write(row); err != nil {
			return errors.Wrapf(err, "failed to write row for test %s", res.name)
		}
	}
	return nil
}
