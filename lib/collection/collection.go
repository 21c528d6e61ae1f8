package collection

import (
	"io"
	"iter"
	"strconv"
	"sync"
	"time"

	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/db/engines/maple"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/ValentinKolb/memdoc/lib/index"
	"github.com/ValentinKolb/memdoc/lib/query"
	"github.com/ValentinKolb/memdoc/lib/ttl"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("collection")

// Collection is a set of documents keyed by a primary key field, with
// optional unique fields and expiry.
//
// Thread-safety: all methods are safe for concurrent use. Writes hold the
// collection's write lock for the whole check-then-apply sequence, reads
// and queries share the read lock only while taking their snapshot.
type Collection struct {
	cfg Config

	mu     sync.RWMutex
	store  db.RecordStore
	index  *index.Manager
	ttl    *ttl.Manager
	nextID uint64
	closed bool

	subs    *hub
	metrics *collectionMetrics
}

// New creates an empty collection from cfg
func New(cfg Config) (*Collection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory := cfg.Store
	if factory == nil {
		factory = maple.Factory(nil)
	}
	cfg.UniqueFields = append([]string(nil), cfg.UniqueFields...)

	c := &Collection{
		cfg:   cfg,
		store: factory(),
		index: index.NewManager(cfg.UniqueFields),
		ttl:   ttl.NewManager(cfg.TTL, cfg.Clock),
		subs:  newHub(),
	}
	c.metrics = newCollectionMetrics(c)

	plog.Infof("created collection %q (key %q %s, unique %v, ttl %s)",
		cfg.Name, cfg.PrimaryKey, cfg.KeyType, cfg.UniqueFields, cfg.TTL)
	return c, nil
}

// Name returns the collection name
func (c *Collection) Name() string { return c.cfg.Name }

// Config returns a copy of the collection configuration
func (c *Collection) Config() Config {
	cfg := c.cfg
	cfg.UniqueFields = append([]string(nil), c.cfg.UniqueFields...)
	return cfg
}

// --------------------------------------------------------------------------
// Write Options
// --------------------------------------------------------------------------

type writeOptions struct {
	ttl *ttl.Policy
}

// WriteOption modifies a single Insert or Upsert
type WriteOption func(*writeOptions)

// WithTTL overrides the collection policy with a fixed time to live. A
// non-positive d stores the record without expiry.
func WithTTL(d time.Duration) WriteOption {
	return WithPolicy(ttl.Fixed(d))
}

// WithPolicy overrides the collection policy for one write
func WithPolicy(p ttl.Policy) WriteOption {
	return func(o *writeOptions) {
		o.ttl = &p
	}
}

func collectOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// --------------------------------------------------------------------------
// Primary Keys
// --------------------------------------------------------------------------

// encodeKey turns a primary key value into the store key, checking it
// against the declared key type
func (c *Collection) encodeKey(v document.Value) (string, error) {
	if v.IsNull() {
		return "", common.NewFieldError(common.CodeMissingPrimaryKey, c.cfg.PrimaryKey, "primary key is null")
	}
	switch c.cfg.KeyType {
	case KeyTypeNumber:
		if n, ok := v.AsNumber(); ok {
			return document.FormatNumber(n), nil
		}
	default:
		if s, ok := v.AsText(); ok {
			return s, nil
		}
	}
	return "", common.NewFieldError(common.CodeTypeMismatch, c.cfg.PrimaryKey,
		"primary key must be %s, got %s", c.cfg.KeyType, v.Kind())
}

// keyOf extracts the store key from doc. A missing or null key field is
// MissingPrimaryKey.
func (c *Collection) keyOf(doc document.Document) (string, error) {
	v, ok := doc.Get(c.cfg.PrimaryKey)
	if !ok {
		return "", common.NewFieldError(common.CodeMissingPrimaryKey, c.cfg.PrimaryKey, "document has no primary key")
	}
	return c.encodeKey(v)
}

// lookupKey converts a caller supplied primary key (Get, Delete)
func (c *Collection) lookupKey(pk any) (string, error) {
	v, err := document.From(pk)
	if err != nil {
		return "", common.NewFieldError(common.CodeTypeMismatch, c.cfg.PrimaryKey, "primary key: %v", err)
	}
	return c.encodeKey(v)
}

// needsKey reports whether doc lacks a usable primary key value
func (c *Collection) needsKey(doc document.Document) bool {
	v, ok := doc.Get(c.cfg.PrimaryKey)
	return !ok || v.IsNull()
}

// generateKeyLocked fills in the primary key of doc. It returns the new
// document, its store key and the counter value to commit on success.
func (c *Collection) generateKeyLocked(doc document.Document) (document.Document, string, uint64, error) {
	switch c.cfg.KeyGen {
	case KeyGenUUID:
		key := uuid.NewString()
		return doc.With(c.cfg.PrimaryKey, document.Text(key)), key, c.nextID, nil

	case KeyGenIncrement:
		next := c.nextID
		for {
			next++
			var v document.Value
			var key string
			if c.cfg.KeyType == KeyTypeNumber {
				v = document.Number(float64(next))
				key = document.FormatNumber(float64(next))
			} else {
				key = strconv.FormatUint(next, 10)
				v = document.Text(key)
			}
			if _, taken := c.store.Get(key); !taken {
				return doc.With(c.cfg.PrimaryKey, v), key, next, nil
			}
		}
	}
	return doc, "", c.nextID, common.NewFieldError(common.CodeMissingPrimaryKey, c.cfg.PrimaryKey, "document has no primary key")
}

// --------------------------------------------------------------------------
// Write Path
// --------------------------------------------------------------------------

// beginWriteLocked checks the collection is open, reads the clock once for
// the whole write and purges what is expired at that instant. After it
// returned every stored record is live.
func (c *Collection) beginWriteLocked() (time.Time, error) {
	if c.closed {
		return time.Time{}, errors.WithStack(common.ErrClosed)
	}
	now := c.ttl.Now()
	c.purgeLocked(now)
	return now, nil
}

func (c *Collection) purgeLocked(now time.Time) int {
	purged := c.ttl.Purge(c.store, c.index, now)
	for _, e := range purged {
		c.subs.publish(Event{Type: EventExpire, Collection: c.cfg.Name, Key: e.Key, Document: e.Document})
	}
	c.metrics.expired(len(purged))
	return len(purged)
}

// checkUniqueLocked rejects doc if a unique value is held by a record other
// than excludingKey. The first conflicting field (declaration order) is
// reported.
func (c *Collection) checkUniqueLocked(doc document.Document, excludingKey string) error {
	conflicts := c.index.CheckUniqueConflict(doc, excludingKey)
	if len(conflicts) == 0 {
		return nil
	}
	field := conflicts[0]
	v, _ := doc.Get(field)
	owner, _ := c.index.Lookup(field, v)
	return common.NewFieldError(common.CodeUniqueConstraintViolation, field,
		"value %s is already held by record %q", v, owner)
}

func (c *Collection) insertLocked(doc document.Document, o writeOptions, now time.Time) (db.Entry, error) {
	nextID := c.nextID
	var key string
	var err error
	if c.needsKey(doc) && c.cfg.KeyGen != KeyGenNone {
		doc, key, nextID, err = c.generateKeyLocked(doc)
	} else {
		key, err = c.keyOf(doc)
	}
	if err != nil {
		return db.Entry{}, err
	}

	if _, exists := c.store.Get(key); exists {
		return db.Entry{}, common.NewFieldError(common.CodeDuplicateKey, c.cfg.PrimaryKey, "record %q already exists", key)
	}
	if err := c.checkUniqueLocked(doc, ""); err != nil {
		return db.Entry{}, err
	}

	entry := db.Entry{Key: key, Document: doc, ExpireAt: c.ttl.ComputeExpiry(now, o.ttl)}
	c.store.Put(entry)
	c.index.Apply(key, nil, doc)
	c.ttl.Track(key, entry.ExpireAt)
	c.nextID = nextID

	c.subs.publish(Event{Type: EventInsert, Collection: c.cfg.Name, Key: key, Document: doc})
	plog.Debugf("collection %q: inserted %q", c.cfg.Name, key)
	return entry, nil
}

// updateLocked replaces the live record old with doc. With a nil override
// the expiry of old is kept.
func (c *Collection) updateLocked(old db.Entry, doc document.Document, override *ttl.Policy, now time.Time) (db.Entry, error) {
	if err := c.checkUniqueLocked(doc, old.Key); err != nil {
		return db.Entry{}, err
	}

	entry := db.Entry{Key: old.Key, Document: doc, ExpireAt: old.ExpireAt}
	if override != nil {
		entry.ExpireAt = c.ttl.ComputeExpiry(now, override)
	}
	c.store.Put(entry)
	c.index.Apply(old.Key, &old.Document, doc)
	if override != nil {
		c.ttl.Track(old.Key, entry.ExpireAt)
	}

	c.subs.publish(Event{Type: EventUpdate, Collection: c.cfg.Name, Key: old.Key, Document: doc, Previous: old.Document})
	plog.Debugf("collection %q: updated %q", c.cfg.Name, old.Key)
	return entry, nil
}

// Insert adds doc as a new record and returns the stored document (with a
// generated primary key if the collection generates keys).
//
// Errors: MissingPrimaryKey, TypeMismatch (key of the wrong kind),
// DuplicateKey, UniqueConstraintViolation. A failed insert changes nothing.
func (c *Collection) Insert(doc document.Document, opts ...WriteOption) (document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.insert(doc, collectOptions(opts))
	c.metrics.op("insert", err)
	return entry.Document, err
}

func (c *Collection) insert(doc document.Document, o writeOptions) (db.Entry, error) {
	now, err := c.beginWriteLocked()
	if err != nil {
		return db.Entry{}, err
	}
	return c.insertLocked(doc, o, now)
}

// Update replaces the live record with doc's primary key. The record keeps
// its expiry instant.
//
// Errors: MissingPrimaryKey, TypeMismatch, KeyNotFound,
// UniqueConstraintViolation. A failed update changes nothing.
func (c *Collection) Update(doc document.Document) (document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.update(doc)
	c.metrics.op("update", err)
	return entry.Document, err
}

func (c *Collection) update(doc document.Document) (db.Entry, error) {
	now, err := c.beginWriteLocked()
	if err != nil {
		return db.Entry{}, err
	}
	key, err := c.keyOf(doc)
	if err != nil {
		return db.Entry{}, err
	}
	old, ok := c.store.Get(key)
	if !ok {
		return db.Entry{}, common.NewFieldError(common.CodeKeyNotFound, c.cfg.PrimaryKey, "no record %q", key)
	}
	return c.updateLocked(old, doc, nil, now)
}

// UpsertOp says what an Upsert did
type UpsertOp uint8

const (
	Inserted UpsertOp = iota + 1
	Updated
)

func (op UpsertOp) String() string {
	if op == Updated {
		return "updated"
	}
	return "inserted"
}

// UpsertResult describes a successful Upsert. Previous is set when an
// existing record was replaced.
type UpsertResult struct {
	Op       UpsertOp
	Document document.Document
	Previous document.Document
}

// Upsert updates the live record with doc's primary key or inserts doc if
// there is none. An updated record keeps its expiry unless a TTL option is
// given, an inserted record gets the option or the collection policy.
func (c *Collection) Upsert(doc document.Document, opts ...WriteOption) (UpsertResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.upsert(doc, collectOptions(opts))
	c.metrics.op("upsert", err)
	return res, err
}

func (c *Collection) upsert(doc document.Document, o writeOptions) (UpsertResult, error) {
	now, err := c.beginWriteLocked()
	if err != nil {
		return UpsertResult{}, err
	}

	if !(c.needsKey(doc) && c.cfg.KeyGen != KeyGenNone) {
		key, err := c.keyOf(doc)
		if err != nil {
			return UpsertResult{}, err
		}
		if old, ok := c.store.Get(key); ok {
			entry, err := c.updateLocked(old, doc, o.ttl, now)
			if err != nil {
				return UpsertResult{}, err
			}
			return UpsertResult{Op: Updated, Document: entry.Document, Previous: old.Document}, nil
		}
	}

	entry, err := c.insertLocked(doc, o, now)
	if err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Op: Inserted, Document: entry.Document}, nil
}

// Delete removes the live record with primary key pk and returns its
// document.
//
// Errors: MissingPrimaryKey (nil key), TypeMismatch, KeyNotFound.
func (c *Collection) Delete(pk any) (document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.delete(pk)
	c.metrics.op("delete", err)
	return doc, err
}

func (c *Collection) delete(pk any) (document.Document, error) {
	if _, err := c.beginWriteLocked(); err != nil {
		return document.Document{}, err
	}
	key, err := c.lookupKey(pk)
	if err != nil {
		return document.Document{}, err
	}
	old, ok := c.store.Remove(key)
	if !ok {
		return document.Document{}, common.NewFieldError(common.CodeKeyNotFound, c.cfg.PrimaryKey, "no record %q", key)
	}
	c.index.Remove(key, old.Document)
	c.ttl.Untrack(key)

	c.subs.publish(Event{Type: EventDelete, Collection: c.cfg.Name, Key: key, Document: old.Document})
	plog.Debugf("collection %q: deleted %q", c.cfg.Name, key)
	return old.Document, nil
}

// Purge physically removes every expired record now and returns how many
// were removed. Expired records are invisible to reads either way; Purge
// only frees their memory and unique values early.
func (c *Collection) Purge() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, errors.WithStack(common.ErrClosed)
	}
	return c.purgeLocked(c.ttl.Now()), nil
}

// --------------------------------------------------------------------------
// Read Path
// --------------------------------------------------------------------------

// Get returns the live record with primary key pk
func (c *Collection) Get(pk any) (document.Document, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return document.Document{}, false, errors.WithStack(common.ErrClosed)
	}
	key, err := c.lookupKey(pk)
	if err != nil {
		c.metrics.op("get", err)
		return document.Document{}, false, err
	}
	entry, ok := c.store.Get(key)
	c.metrics.op("get", nil)
	if !ok || ttl.IsExpired(entry.ExpireAt, c.ttl.Now()) {
		return document.Document{}, false, nil
	}
	return entry.Document, true, nil
}

// Snapshot captures the stored records and the instant expiry is judged
// at. The returned sequence may be iterated any number of times and does
// not see later writes.
func (c *Collection) Snapshot() (iter.Seq[db.Entry], time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, time.Time{}, errors.WithStack(common.ErrClosed)
	}
	return c.store.Scan(), c.ttl.Now(), nil
}

// live yields the records of a fresh snapshot that are not expired
func (c *Collection) live() (iter.Seq[db.Entry], error) {
	snapshot, now, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return func(yield func(db.Entry) bool) {
		for e := range snapshot {
			if ttl.IsExpired(e.ExpireAt, now) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}, nil
}

// ObserveQuery records query metrics, see query.Observer
func (c *Collection) ObserveQuery(spec query.Spec, stats query.Stats, err error, took time.Duration) {
	c.metrics.query(stats.Scanned, err, took)
}

// Select starts a query returning the given projection ("*" or a comma
// separated field list) of the matching live records
func (c *Collection) Select(projection string) *query.Builder {
	return query.NewBuilder(c, projection)
}

// Query prepares the execution of an existing query specification
func (c *Collection) Query(spec query.Spec) *query.Builder {
	return query.FromSpec(c, spec)
}

// Count returns the number of live records
func (c *Collection) Count() (int, error) {
	records, err := c.live()
	if err != nil {
		return 0, err
	}
	n := 0
	for range records {
		n++
	}
	return n, nil
}

// Export returns all live records in scan order
func (c *Collection) Export() ([]db.Entry, error) {
	records, err := c.live()
	if err != nil {
		return nil, err
	}
	var out []db.Entry
	for e := range records {
		out = append(out, e)
	}
	return out, nil
}

// Verify checks that the unique indexes exactly describe the stored
// records. It returns an Internal error describing the first mismatch.
func (c *Collection) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return errors.WithStack(common.ErrClosed)
	}
	return c.index.Verify(c.store.Scan())
}

// --------------------------------------------------------------------------
// Subscriptions
// --------------------------------------------------------------------------

// Subscribe registers handler for the committed changes passing all
// filters. Events are delivered on a goroutine owned by the subscription,
// in commit order. A panicking handler is logged and skips the event.
func (c *Collection) Subscribe(handler func(Event), filters ...Filter) (*Subscription, error) {
	if handler == nil {
		return nil, common.NewError(common.CodeInvalidConfig, "subscription handler must not be nil")
	}

	// the write lock orders the registration against publishing writers
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.WithStack(common.ErrClosed)
	}
	return c.subs.subscribe(handler, filters), nil
}

// --------------------------------------------------------------------------
// Info & Lifecycle
// --------------------------------------------------------------------------

// Info describes the state of a collection
type Info struct {
	Name          string         `json:"name"`
	PrimaryKey    string         `json:"primary_key"`
	KeyType       string         `json:"key_type"`
	KeyGen        string         `json:"key_gen"`
	TTL           string         `json:"ttl"`
	Records       int            `json:"records"`
	Stored        int            `json:"stored"`
	PendingExpiry int            `json:"pending_expiry"`
	NextExpiry    *time.Time     `json:"next_expiry,omitempty"`
	UniqueIndexes map[string]int `json:"unique_indexes"`
	Subscriptions int            `json:"subscriptions"`
	Store         db.Info        `json:"store"`
}

// Info returns a description of the collection. Records counts live
// records, Stored also counts expired ones not purged yet.
func (c *Collection) Info() (Info, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return Info{}, errors.WithStack(common.ErrClosed)
	}

	now := c.ttl.Now()
	info := Info{
		Name:          c.cfg.Name,
		PrimaryKey:    c.cfg.PrimaryKey,
		KeyType:       c.cfg.KeyType.String(),
		KeyGen:        c.cfg.KeyGen.String(),
		TTL:           c.ttl.Policy().String(),
		Stored:        c.store.Len(),
		PendingExpiry: c.ttl.Pending(),
		UniqueIndexes: c.index.Sizes(),
		Subscriptions: c.subs.len(),
		Store:         c.store.Info(),
	}
	for e := range c.store.Scan() {
		if !ttl.IsExpired(e.ExpireAt, now) {
			info.Records++
		}
	}
	if next, ok := c.ttl.NextExpiry(); ok {
		info.NextExpiry = &next
	}
	return info, nil
}

// WriteMetrics writes the collection metrics in Prometheus text format
func (c *Collection) WriteMetrics(w io.Writer) {
	c.metrics.write(w)
}

// Close closes every subscription (waiting until each delivered its queued
// events) and releases the records. Every later call returns ErrClosed.
// Closing twice is a no-op.
func (c *Collection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.subs.closeAll()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.index.Clear()
	plog.Infof("closed collection %q", c.cfg.Name)
	return c.store.Close()
}
