package perf

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/memdoc/lib/collection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillAndDoc(t *testing.T) {
	perfKeySpread = 20
	t.Cleanup(func() { perfKeySpread = 1000 })

	c, err := newCollection()
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, fill(c))
	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	got, ok, err := c.Get(key(27))
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := got.Get("email")
	s, _ := v.AsText()
	assert.Equal(t, "user-7@x.com", s)
}

func TestRunBenchmarkAndCSV(t *testing.T) {
	if testing.Short() {
		t.Skip("runs a benchmark")
	}
	perfKeySpread = 10
	perfNumThreads = 1
	t.Cleanup(func() { perfKeySpread, perfNumThreads = 1000, 10 })

	res, err := runBenchmark(benchmark{
		name:  "get",
		setup: fill,
		op: func(c *collection.Collection, i int) error {
			_, _, err := c.Get(key(i))
			return err
		},
	})
	require.NoError(t, err)
	assert.Zero(t, res.errors)
	assert.Positive(t, res.latency.Count())

	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, writeResultsToCSV(path, []result{res}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Test", rows[0][0])
	assert.Equal(t, "get", rows[1][0])
	assert.Equal(t, "10", rows[1][9])
}
