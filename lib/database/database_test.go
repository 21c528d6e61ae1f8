package database

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/memdoc/lib/collection"
	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/ValentinKolb/memdoc/lib/ttl"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newDB(t *testing.T, defaultTTL ttl.Policy) *Database {
	t.Helper()
	d := New("test", defaultTTL)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestCreateAndLookup(t *testing.T) {
	d := newDB(t, ttl.NoExpiry())

	users, err := d.Create(collection.Config{Name: "users", PrimaryKey: "id"})
	require.NoError(t, err)
	_, err = d.Create(collection.Config{Name: "orders", PrimaryKey: "no", KeyType: collection.KeyTypeNumber})
	require.NoError(t, err)

	got, err := d.Collection("users")
	require.NoError(t, err)
	assert.Same(t, users, got)
	assert.Equal(t, []string{"orders", "users"}, d.Names())

	_, err = d.Collection("nope")
	assert.Equal(t, common.CodeCollectionNotFound, common.CodeOf(err))
	assert.True(t, errors.Is(err, common.ErrCollectionNotFound))
}

func TestCreateErrors(t *testing.T) {
	d := newDB(t, ttl.NoExpiry())
	_, err := d.Create(collection.Config{Name: "users", PrimaryKey: "id"})
	require.NoError(t, err)

	_, err = d.Create(collection.Config{Name: "users", PrimaryKey: "other"})
	assert.Equal(t, common.CodeInvalidConfig, common.CodeOf(err))

	_, err = d.Create(collection.Config{Name: "no key"})
	assert.Equal(t, common.CodeInvalidConfig, common.CodeOf(err))
	assert.Equal(t, []string{"users"}, d.Names())
}

func TestDefaultTTLIsInherited(t *testing.T) {
	d := newDB(t, ttl.Fixed(time.Minute))

	inherits, err := d.Create(collection.Config{Name: "a", PrimaryKey: "id"})
	require.NoError(t, err)
	own, err := d.Create(collection.Config{Name: "b", PrimaryKey: "id", TTL: ttl.NoExpiry()})
	require.NoError(t, err)

	assert.Equal(t, ttl.Fixed(time.Minute), inherits.Config().TTL)
	assert.Equal(t, ttl.NoExpiry(), own.Config().TTL)
}

func TestDrop(t *testing.T) {
	d := newDB(t, ttl.NoExpiry())
	users, err := d.Create(collection.Config{Name: "users", PrimaryKey: "id"})
	require.NoError(t, err)

	require.NoError(t, d.Drop("users"))
	assert.Empty(t, d.Names())
	_, err = users.Insert(document.New(document.F("id", "1")))
	assert.True(t, errors.Is(err, common.ErrClosed))

	err = d.Drop("users")
	assert.Equal(t, common.CodeCollectionNotFound, common.CodeOf(err))

	// the name is free again
	_, err = d.Create(collection.Config{Name: "users", PrimaryKey: "id"})
	require.NoError(t, err)
}

func TestSweep(t *testing.T) {
	clock := ttl.NewManualClock(epoch)
	d := newDB(t, ttl.Fixed(time.Second))

	for _, name := range []string{"a", "b"} {
		c, err := d.Create(collection.Config{Name: name, PrimaryKey: "id", Clock: clock})
		require.NoError(t, err)
		for _, id := range []string{"1", "2"} {
			_, err := c.Insert(document.New(document.F("id", id)))
			require.NoError(t, err)
		}
	}

	assert.Equal(t, 0, d.Sweep())
	clock.Advance(time.Second)
	assert.Equal(t, 4, d.Sweep())
	assert.Equal(t, 0, d.Sweep())

	var buf bytes.Buffer
	d.WriteMetrics(&buf)
	assert.Contains(t, buf.String(), `memdoc_swept_total{database="test"} 4`)
	assert.Contains(t, buf.String(), `memdoc_collections{database="test"} 2`)
	assert.Contains(t, buf.String(), `memdoc_purged_total{collection="a"} 2`)
}

func TestSweeper(t *testing.T) {
	d := newDB(t, ttl.Fixed(time.Millisecond))
	c, err := d.Create(collection.Config{Name: "events", PrimaryKey: "id"})
	require.NoError(t, err)
	_, err = c.Insert(document.New(document.F("id", "1")))
	require.NoError(t, err)

	require.Error(t, d.StartSweeper(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.StartSweeper(ctx, 5*time.Millisecond))

	require.Eventually(t, func() bool {
		info, err := c.Info()
		return err == nil && info.Stored == 0
	}, time.Second, 5*time.Millisecond)
}

func TestClose(t *testing.T) {
	d := New("test", ttl.NoExpiry())
	c, err := d.Create(collection.Config{Name: "users", PrimaryKey: "id"})
	require.NoError(t, err)
	require.NoError(t, d.StartSweeper(context.Background(), time.Hour))

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	assert.Empty(t, d.Names())
	_, err = c.Count()
	assert.True(t, errors.Is(err, common.ErrClosed))
	_, err = d.Create(collection.Config{Name: "other", PrimaryKey: "id"})
	assert.True(t, errors.Is(err, common.ErrClosed))
	assert.True(t, errors.Is(d.StartSweeper(context.Background(), time.Second), common.ErrClosed))
}
