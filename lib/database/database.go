package database

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/ValentinKolb/memdoc/lib/collection"
	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/ttl"
	"github.com/VictoriaMetrics/metrics"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var plog = logger.GetLogger("database")

// Database is a named set of collections.
//
// Thread-safety: all methods are safe for concurrent use. Lookups are lock
// free, Create, Drop and Close are serialised.
type Database struct {
	name       string
	defaultTTL ttl.Policy

	mu          sync.Mutex
	collections *xsync.MapOf[string, *collection.Collection]
	closed      bool
	done        chan struct{}
	sweepers    sync.WaitGroup

	metrics *metrics.Set
	swept   *metrics.Counter
}

// New creates an empty database. defaultTTL applies to collections created
// without a policy of their own.
func New(name string, defaultTTL ttl.Policy) *Database {
	d := &Database{
		name:        name,
		defaultTTL:  defaultTTL,
		collections: xsync.NewMapOf[string, *collection.Collection](),
		done:        make(chan struct{}),
		metrics:     metrics.NewSet(),
	}
	d.swept = d.metrics.NewCounter(fmt.Sprintf(`memdoc_swept_total{database=%q}`, name))
	d.metrics.NewGauge(fmt.Sprintf(`memdoc_collections{database=%q}`, name), func() float64 {
		return float64(d.collections.Size())
	})
	return d
}

// Name returns the database name
func (d *Database) Name() string { return d.name }

// DefaultTTL returns the policy inherited by new collections
func (d *Database) DefaultTTL() ttl.Policy { return d.defaultTTL }

// Create creates and registers a collection. A name that is already taken
// is an InvalidConfig error.
func (d *Database) Create(cfg collection.Config) (*collection.Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errors.WithStack(common.ErrClosed)
	}
	if _, taken := d.collections.Load(cfg.Name); taken {
		return nil, common.NewErrorf(common.CodeInvalidConfig, "database %q: collection %q already exists", d.name, cfg.Name)
	}
	if !cfg.TTL.IsSet() {
		cfg.TTL = d.defaultTTL
	}

	c, err := collection.New(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "database %q", d.name)
	}
	d.collections.Store(cfg.Name, c)
	plog.Infof("database %q: created collection %q", d.name, cfg.Name)
	return c, nil
}

// Collection returns the collection registered under name
func (d *Database) Collection(name string) (*collection.Collection, error) {
	c, ok := d.collections.Load(name)
	if !ok {
		return nil, common.NewErrorf(common.CodeCollectionNotFound, "database %q: no collection %q", d.name, name)
	}
	return c, nil
}

// Drop unregisters and closes the collection registered under name
func (d *Database) Drop(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.collections.LoadAndDelete(name)
	if !ok {
		return common.NewErrorf(common.CodeCollectionNotFound, "database %q: no collection %q", d.name, name)
	}
	plog.Infof("database %q: dropped collection %q", d.name, name)
	return c.Close()
}

// Names returns the sorted collection names
func (d *Database) Names() []string {
	names := make([]string, 0, d.collections.Size())
	d.collections.Range(func(name string, _ *collection.Collection) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// Sweep purges the expired records of every collection and returns how
// many were removed
func (d *Database) Sweep() int {
	total := 0
	d.collections.Range(func(name string, c *collection.Collection) bool {
		n, err := c.Purge()
		if err != nil {
			// dropped while sweeping
			plog.Debugf("database %q: sweep of %q skipped: %v", d.name, name, err)
			return true
		}
		total += n
		return true
	})
	if total > 0 {
		d.swept.Add(total)
		plog.Debugf("database %q: swept %d expired records", d.name, total)
	}
	return total
}

// StartSweeper runs Sweep every interval until ctx is done or the database
// is closed
func (d *Database) StartSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return common.NewErrorf(common.CodeInvalidConfig, "sweep interval must be positive, got %s", interval)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.WithStack(common.ErrClosed)
	}

	d.sweepers.Add(1)
	go func() {
		defer d.sweepers.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Sweep()
			case <-ctx.Done():
				return
			case <-d.done:
				return
			}
		}
	}()
	plog.Infof("database %q: sweeping every %s", d.name, interval)
	return nil
}

// WriteMetrics writes the metrics of the database and all its collections
// in Prometheus text format
func (d *Database) WriteMetrics(w io.Writer) {
	d.metrics.WritePrometheus(w)
	for _, name := range d.Names() {
		if c, ok := d.collections.Load(name); ok {
			c.WriteMetrics(w)
		}
	}
}

// Close stops the sweepers and closes every collection. The first error is
// returned, all collections are closed regardless.
func (d *Database) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	d.sweepers.Wait()

	var first error
	for _, name := range d.Names() {
		c, ok := d.collections.LoadAndDelete(name)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "closing collection %q", name)
		}
	}
	plog.Infof("database %q: closed", d.name)
	return first
}
