package index

import (
	"iter"
	"maps"
	"slices"

	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("index")

// Manager maintains one unique index per configured field. Each index maps
// the canonical key of a field value (document.Value.Key) to the primary key
// of the record holding it. Null and missing values are not indexed, so any
// number of records may lack a unique field.
//
// Thread-safety: Manager is not safe for concurrent use. The collection
// serialises all calls under its write lock, except Lookup and Len which may
// run under its read lock.
type Manager struct {
	fields  []string
	indexes map[string]map[string]string
}

// NewManager creates empty indexes for fields. Duplicate names are folded.
func NewManager(fields []string) *Manager {
	m := &Manager{indexes: make(map[string]map[string]string, len(fields))}
	for _, f := range fields {
		if _, ok := m.indexes[f]; ok {
			continue
		}
		m.fields = append(m.fields, f)
		m.indexes[f] = make(map[string]string)
	}
	return m
}

// Fields returns the indexed field names in declaration order
func (m *Manager) Fields() []string {
	return slices.Clone(m.fields)
}

// indexKey returns the index key of field in doc, false if the field is
// exempt (missing or null)
func indexKey(doc document.Document, field string) (string, bool) {
	v, ok := doc.Get(field)
	if !ok || v.IsNull() {
		return "", false
	}
	return v.Key(), true
}

// CheckUniqueConflict returns the unique fields (in declaration order) whose
// value in doc is already held by a record other than excludingKey. Pass an
// empty excludingKey for inserts.
func (m *Manager) CheckUniqueConflict(doc document.Document, excludingKey string) []string {
	var conflicts []string
	for _, f := range m.fields {
		k, ok := indexKey(doc, f)
		if !ok {
			continue
		}
		if owner, taken := m.indexes[f][k]; taken && owner != excludingKey {
			conflicts = append(conflicts, f)
		}
	}
	return conflicts
}

// Apply moves the index entries of record key from old (nil for a new
// record) to doc. Conflicts must have been ruled out with
// CheckUniqueConflict before.
func (m *Manager) Apply(key string, old *document.Document, doc document.Document) {
	for _, f := range m.fields {
		idx := m.indexes[f]
		newKey, hasNew := indexKey(doc, f)
		if old != nil {
			if oldKey, hasOld := indexKey(*old, f); hasOld && (!hasNew || oldKey != newKey) && idx[oldKey] == key {
				delete(idx, oldKey)
			}
		}
		if hasNew {
			if owner, taken := idx[newKey]; taken && owner != key {
				plog.Warningf("unique index %q: value %s moved from record %q to %q", f, newKey, owner, key)
			}
			idx[newKey] = key
		}
	}
}

// Remove drops the index entries of record key holding doc
func (m *Manager) Remove(key string, doc document.Document) {
	for _, f := range m.fields {
		if k, ok := indexKey(doc, f); ok && m.indexes[f][k] == key {
			delete(m.indexes[f], k)
		}
	}
}

// Lookup returns the primary key of the record holding v in field
func (m *Manager) Lookup(field string, v document.Value) (string, bool) {
	idx, ok := m.indexes[field]
	if !ok || v.IsNull() {
		return "", false
	}
	key, found := idx[v.Key()]
	return key, found
}

// Len returns the number of indexed values of field
func (m *Manager) Len(field string) int {
	return len(m.indexes[field])
}

// Sizes returns the number of indexed values per field
func (m *Manager) Sizes() map[string]int {
	sizes := make(map[string]int, len(m.fields))
	for _, f := range m.fields {
		sizes[f] = len(m.indexes[f])
	}
	return sizes
}

// Clear empties all indexes
func (m *Manager) Clear() {
	for _, f := range m.fields {
		clear(m.indexes[f])
	}
}

// Snapshot returns a deep copy of all indexes, field -> value key -> primary
// key
func (m *Manager) Snapshot() map[string]map[string]string {
	out := make(map[string]map[string]string, len(m.fields))
	for _, f := range m.fields {
		out[f] = maps.Clone(m.indexes[f])
	}
	return out
}

// Verify checks that the indexes describe exactly the given entries: every
// non-null unique value maps to its record and nothing else is indexed.
func (m *Manager) Verify(entries iter.Seq[db.Entry]) error {
	expected := make(map[string]map[string]string, len(m.fields))
	for _, f := range m.fields {
		expected[f] = make(map[string]string)
	}

	for e := range entries {
		for _, f := range m.fields {
			k, ok := indexKey(e.Document, f)
			if !ok {
				continue
			}
			if other, dup := expected[f][k]; dup {
				return common.NewFieldError(common.CodeInternal, f, "value %s held by records %q and %q", k, other, e.Key)
			}
			expected[f][k] = e.Key
		}
	}

	for _, f := range m.fields {
		if !maps.Equal(expected[f], m.indexes[f]) {
			return common.NewFieldError(common.CodeInternal, f, "index has %d values, records hold %d", len(m.indexes[f]), len(expected[f]))
		}
	}
	return nil
}
