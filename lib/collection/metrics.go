package collection

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/VictoriaMetrics/metrics"
)

// collectionMetrics holds the prometheus metrics of one collection. Every
// collection has its own metrics.Set, so dropping a collection drops its
// series.
type collectionMetrics struct {
	name          string
	set           *metrics.Set
	purged        *metrics.Counter
	queryDuration *metrics.Histogram
	queryScanned  *metrics.Counter
}

func newCollectionMetrics(c *Collection) *collectionMetrics {
	name := c.cfg.Name
	set := metrics.NewSet()
	m := &collectionMetrics{
		name:          name,
		set:           set,
		purged:        set.NewCounter(fmt.Sprintf(`memdoc_purged_total{collection=%q}`, name)),
		queryDuration: set.NewHistogram(fmt.Sprintf(`memdoc_query_duration_seconds{collection=%q}`, name)),
		queryScanned:  set.NewCounter(fmt.Sprintf(`memdoc_query_scanned_total{collection=%q}`, name)),
	}
	set.NewGauge(fmt.Sprintf(`memdoc_records{collection=%q}`, name), func() float64 {
		return float64(c.store.Len())
	})
	set.NewGauge(fmt.Sprintf(`memdoc_subscriptions{collection=%q}`, name), func() float64 {
		return float64(c.subs.len())
	})
	return m
}

func (m *collectionMetrics) op(op string, err error) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`memdoc_ops_total{collection=%q,op=%q}`, m.name, op)).Inc()
	if err != nil {
		m.set.GetOrCreateCounter(fmt.Sprintf(`memdoc_op_errors_total{collection=%q,op=%q,code=%q}`,
			m.name, op, common.CodeOf(err))).Inc()
	}
}

func (m *collectionMetrics) expired(n int) {
	if n > 0 {
		m.purged.Add(n)
	}
}

func (m *collectionMetrics) query(scanned int, err error, took time.Duration) {
	m.op("query", err)
	m.queryDuration.Update(took.Seconds())
	m.queryScanned.Add(scanned)
}

func (m *collectionMetrics) write(w io.Writer) {
	m.set.WritePrometheus(w)
}
