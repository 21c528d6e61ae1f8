package index

import (
	"testing"

	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/db/engines/maple"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func user(id int, email any, name string) document.Document {
	return document.New(document.F("id", id), document.F("email", email), document.F("name", name))
}

func TestCheckUniqueConflict(t *testing.T) {
	m := NewManager([]string{"email", "name", "email"})
	assert.Equal(t, []string{"email", "name"}, m.Fields())

	alice := user(1, "a@x.io", "Alice")
	require.Empty(t, m.CheckUniqueConflict(alice, ""))
	m.Apply("1", nil, alice)

	assert.Equal(t, []string{"email"}, m.CheckUniqueConflict(user(2, "a@x.io", "Bob"), ""))
	assert.Equal(t, []string{"email", "name"}, m.CheckUniqueConflict(user(2, "a@x.io", "Alice"), ""))

	// a record never conflicts with itself
	assert.Empty(t, m.CheckUniqueConflict(alice, "1"))
	assert.Equal(t, []string{"email"}, m.CheckUniqueConflict(user(2, "a@x.io", "Bob"), "2"))
}

func TestNullAndMissingAreExempt(t *testing.T) {
	m := NewManager([]string{"email"})

	m.Apply("1", nil, user(1, nil, "A"))
	m.Apply("2", nil, document.New(document.F("id", 2)))

	assert.Empty(t, m.CheckUniqueConflict(user(3, nil, "C"), ""))
	assert.Empty(t, m.CheckUniqueConflict(document.New(document.F("id", 4)), ""))
	assert.Equal(t, 0, m.Len("email"))

	_, ok := m.Lookup("email", document.Null())
	assert.False(t, ok)
}

func TestKindsDoNotCollide(t *testing.T) {
	m := NewManager([]string{"code"})
	m.Apply("1", nil, document.New(document.F("code", "1")))

	assert.Empty(t, m.CheckUniqueConflict(document.New(document.F("code", 1)), ""))
	assert.Equal(t, []string{"code"}, m.CheckUniqueConflict(document.New(document.F("code", "1")), ""))

	m.Apply("2", nil, document.New(document.F("code", []any{1, "x"})))
	assert.Equal(t, []string{"code"}, m.CheckUniqueConflict(document.New(document.F("code", []any{1, "x"})), ""))
}

func TestApplyMovesEntries(t *testing.T) {
	m := NewManager([]string{"email"})

	old := user(1, "old@x.io", "A")
	m.Apply("1", nil, old)

	updated := user(1, "new@x.io", "A")
	m.Apply("1", &old, updated)

	_, ok := m.Lookup("email", document.Text("old@x.io"))
	assert.False(t, ok, "old value must be released")
	key, ok := m.Lookup("email", document.Text("new@x.io"))
	assert.True(t, ok)
	assert.Equal(t, "1", key)

	// released value is free for others
	assert.Empty(t, m.CheckUniqueConflict(user(2, "old@x.io", "B"), ""))

	// update to null releases the value
	cleared := user(1, nil, "A")
	m.Apply("1", &updated, cleared)
	assert.Equal(t, 0, m.Len("email"))
}

func TestRemove(t *testing.T) {
	m := NewManager([]string{"email"})
	a := user(1, "a@x.io", "A")
	m.Apply("1", nil, a)

	// removing with a foreign key leaves the entry alone
	m.Remove("2", a)
	assert.Equal(t, 1, m.Len("email"))

	m.Remove("1", a)
	assert.Equal(t, 0, m.Len("email"))
	assert.Equal(t, map[string]int{"email": 0}, m.Sizes())
}

func TestVerify(t *testing.T) {
	m := NewManager([]string{"email"})
	store := maple.NewMapleStore(nil)

	for i, email := range []any{"a@x.io", "b@x.io", nil} {
		doc := user(i, email, "x")
		key := document.FormatNumber(float64(i))
		store.Put(db.Entry{Key: key, Document: doc})
		m.Apply(key, nil, doc)
	}
	require.NoError(t, m.Verify(store.Scan()))

	snap := m.Snapshot()
	assert.Len(t, snap["email"], 2)

	store.Remove("0")
	err := m.Verify(store.Scan())
	require.Error(t, err)
	assert.Equal(t, common.CodeInternal, common.CodeOf(err))

	m.Clear()
	store.Clear()
	require.NoError(t, m.Verify(store.Scan()))

	// the snapshot is a copy
	assert.Len(t, snap["email"], 2)
}
