package query

import (
	"iter"
	"slices"
	"testing"
	"time"

	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// sliceSource serves a fixed snapshot and records observations
type sliceSource struct {
	entries  []db.Entry
	observed []Stats
	err      error
}

func (s *sliceSource) Snapshot() (iter.Seq[db.Entry], time.Time, error) {
	if s.err != nil {
		return nil, time.Time{}, s.err
	}
	return slices.Values(s.entries), now, nil
}

func (s *sliceSource) ObserveQuery(_ Spec, stats Stats, _ error, _ time.Duration) {
	s.observed = append(s.observed, stats)
}

func people() *sliceSource {
	mk := func(key string, expireAt time.Time, fields ...document.Field) db.Entry {
		return db.Entry{Key: key, Document: document.New(fields...), ExpireAt: expireAt}
	}
	return &sliceSource{entries: []db.Entry{
		mk("1", time.Time{}, document.F("id", 1), document.F("name", "Alice"), document.F("age", 30), document.F("role", "admin")),
		mk("2", time.Time{}, document.F("id", 2), document.F("name", "Bob"), document.F("age", 20), document.F("role", "user")),
		mk("3", time.Time{}, document.F("id", 3), document.F("name", "Carol"), document.F("age", "unknown"), document.F("role", "editor")),
		mk("4", time.Time{}, document.F("id", 4), document.F("name", "Dave")),
		mk("5", now, document.F("id", 5), document.F("name", "Eve"), document.F("age", 40), document.F("role", "admin")),
		mk("6", now.Add(time.Second), document.F("id", 6), document.F("name", "Frank"), document.F("age", 50), document.F("role", nil)),
	}}
}

func names(t *testing.T, docs []document.Document) []string {
	t.Helper()
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		v, ok := d.Get("name")
		require.True(t, ok)
		s, _ := v.AsText()
		out = append(out, s)
	}
	return out
}

func TestSelectAllSkipsExpired(t *testing.T) {
	src := people()
	docs, err := NewBuilder(src, "*").Execute()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Carol", "Dave", "Frank"}, names(t, docs))

	require.Len(t, src.observed, 1)
	assert.Equal(t, Stats{Scanned: 6, Expired: 1, Matched: 5}, src.observed[0])
}

func TestOrderingOperators(t *testing.T) {
	cases := []struct {
		build func(*Builder) *Builder
		want  []string
	}{
		{func(b *Builder) *Builder { return b.Gt("age", 20) }, []string{"Alice", "Frank"}},
		{func(b *Builder) *Builder { return b.Gte("age", 20) }, []string{"Alice", "Bob", "Frank"}},
		{func(b *Builder) *Builder { return b.Lt("age", 30) }, []string{"Bob"}},
		{func(b *Builder) *Builder { return b.Lte("age", 30) }, []string{"Alice", "Bob"}},
		{func(b *Builder) *Builder { return b.Gte("name", "Bob").Lt("name", "D") }, []string{"Bob", "Carol"}},
		{func(b *Builder) *Builder { return b.Gt("age", 10).Lt("age", 40) }, []string{"Alice", "Bob"}},
	}
	for _, c := range cases {
		b := c.build(NewBuilder(people(), "*"))
		docs, err := b.Execute()
		require.NoError(t, err, b.Spec().String())
		assert.Equal(t, c.want, names(t, docs), b.Spec().String())
	}
}

func TestMissingFieldSemantics(t *testing.T) {
	// Dave has neither age nor role
	docs, err := NewBuilder(people(), "name").Neq("role", "admin").Execute()
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Carol", "Dave", "Frank"}, names(t, docs))

	docs, err = NewBuilder(people(), "name").Eq("role", "admin").Execute()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names(t, docs))
}

func TestNullEquality(t *testing.T) {
	docs, err := NewBuilder(people(), "name").Eq("role", nil).Execute()
	require.NoError(t, err)
	assert.Equal(t, []string{"Frank"}, names(t, docs))
}

func TestKindMismatchExcludesRecord(t *testing.T) {
	src := people()
	res, err := NewBuilder(src, "*").Gte("age", 25).Run()
	require.NoError(t, err)

	// Carol's age is text, Dave has none
	assert.Equal(t, []string{"Alice", "Frank"}, names(t, res.Documents))
	assert.Equal(t, 1, res.Stats.Mismatched)

	docs, err := NewBuilder(people(), "*").Eq("age", "30").Execute()
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMismatchOnEmptySnapshotSucceeds(t *testing.T) {
	docs, err := NewBuilder(&sliceSource{}, "*").Gt("age", "x").Execute()
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NotNil(t, docs)
}

func TestIn(t *testing.T) {
	docs, err := NewBuilder(people(), "*").In("role", "admin", "editor").Execute()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Carol"}, names(t, docs))

	docs, err = NewBuilder(people(), "*").In("role", []string{"user"}).Execute()
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, names(t, docs))

	docs, err = NewBuilder(people(), "*").In("age", 20, "x", 50).Execute()
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Frank"}, names(t, docs))
}

func TestInvalidQueries(t *testing.T) {
	for name, b := range map[string]*Builder{
		"empty in":       NewBuilder(people(), "*").In("role"),
		"bool ordering":  NewBuilder(people(), "*").Gt("age", true),
		"null ordering":  NewBuilder(people(), "*").Lte("age", nil),
		"empty field":    NewBuilder(people(), "*").Eq(" ", 1),
		"bad operand":    NewBuilder(people(), "*").Eq("age", struct{}{}),
		"unknown op":     NewBuilder(people(), "*").Where(Predicate{Field: "age", Op: Op(42)}),
		"in non-list op": NewBuilder(people(), "*").Where(Predicate{Field: "age", Op: OpIn, Operand: document.Number(1)}),
	} {
		var failed error
		succeeded := false
		_, err := b.OnFail(func(err error) { failed = err }).
			OnSuccess(func([]document.Document) { succeeded = true }).
			Execute()

		require.Error(t, err, name)
		assert.True(t, errors.Is(err, common.ErrInvalidQuery), name)
		assert.Equal(t, err, failed, name)
		assert.False(t, succeeded, name)
	}
}

func TestCallbacks(t *testing.T) {
	var got []document.Document
	calls := 0
	docs, err := NewBuilder(people(), "name").
		Eq("role", "admin").
		OnSuccess(func(d []document.Document) { got = d; calls++ }).
		OnFail(func(error) { t.Error("OnFail called on success") }).
		Execute()

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, docs, got)

	src := &sliceSource{err: errors.WithStack(common.ErrClosed)}
	var failed error
	_, err = NewBuilder(src, "*").OnFail(func(err error) { failed = err }).Execute()
	assert.True(t, errors.Is(err, common.ErrClosed))
	assert.True(t, errors.Is(failed, common.ErrClosed))
}

func TestProjection(t *testing.T) {
	docs, err := NewBuilder(people(), "role, name, missing").Eq("id", 1).Execute()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []string{"role", "name"}, docs[0].Names())

	for _, all := range []string{"*", "", " ", " * "} {
		assert.True(t, ParseProjection(all).All(), all)
	}
	assert.Equal(t, "a,b", ParseProjection(" a , ,b").String())
}

func TestEvaluateIsRepeatable(t *testing.T) {
	src := people()
	spec := NewBuilder(src, "name").Gte("age", 20).Spec()
	snap, at, _ := src.Snapshot()

	first, err := Evaluate(spec, snap, at)
	require.NoError(t, err)
	second, err := Evaluate(spec, snap, at)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// evaluating at a later instant only changes what is expired
	later, err := Evaluate(spec, snap, at.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, names(t, later.Documents))
}

func TestMatch(t *testing.T) {
	spec := Spec{Where: []Predicate{{Field: "age", Op: OpGt, Operand: document.Number(1)}}}

	ok, err := spec.Match(document.New(document.F("age", 2)))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = spec.Match(document.New(document.F("age", "2")))
	assert.False(t, ok)
	assert.True(t, errors.Is(err, common.ErrTypeMismatch))
	assert.Equal(t, "age", common.FieldOf(err))
}

func TestSpecJSON(t *testing.T) {
	spec, err := ParseSpec([]byte(`{"select":["name","age"],"where":[{"field":"age","op":">=","value":25},{"field":"role","op":"in","value":["a","b"]}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, spec.Projection.Names())
	require.Len(t, spec.Where, 2)
	assert.Equal(t, OpGte, spec.Where[0].Op)
	assert.Equal(t, `select name,age where age >= 25 and role in ["a","b"]`, spec.String())

	_, err = ParseSpec([]byte(`{"select":"*","where":[{"field":"age","op":"like","value":1}]}`))
	assert.True(t, errors.Is(err, common.ErrInvalidQuery))

	_, err = ParseSpec([]byte(`{"select":"*","where":[{"field":"age","op":"in","value":[]}]}`))
	assert.True(t, errors.Is(err, common.ErrInvalidQuery))

	_, err = ParseSpec([]byte(`{"select":5}`))
	assert.True(t, errors.Is(err, common.ErrInvalidQuery))

	spec, err = ParseSpec([]byte(`{"select":"*"}`))
	require.NoError(t, err)
	assert.True(t, spec.Projection.All())
}

func TestParsePredicate(t *testing.T) {
	cases := map[string]Predicate{
		"age>=25":                 {Field: "age", Op: OpGte, Operand: document.Number(25)},
		"age <= 2.5":              {Field: "age", Op: OpLte, Operand: document.Number(2.5)},
		"status=active":           {Field: "status", Op: OpEq, Operand: document.Text("active")},
		"name != \"Bob Smith\"":   {Field: "name", Op: OpNeq, Operand: document.Text("Bob Smith")},
		"code='42'":               {Field: "code", Op: OpEq, Operand: document.Text("42")},
		"flag == true":            {Field: "flag", Op: OpEq, Operand: document.Bool(true)},
		"deleted_at = null":       {Field: "deleted_at", Op: OpEq, Operand: document.Null()},
		"x<y":                     {Field: "x", Op: OpLt, Operand: document.Text("y")},
		"q=\"a>=b\"":              {Field: "q", Op: OpEq, Operand: document.Text("a>=b")},
		"role in [admin, editor]": {Field: "role", Op: OpIn, Operand: document.Sequence(document.Text("admin"), document.Text("editor"))},
		"n IN [1, \"a,b\", null]": {Field: "n", Op: OpIn, Operand: document.Sequence(document.Number(1), document.Text("a,b"), document.Null())},
	}
	for expr, want := range cases {
		got, err := ParsePredicate(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, want.Field, got.Field, expr)
		assert.Equal(t, want.Op, got.Op, expr)
		assert.True(t, want.Operand.Equal(got.Operand), "%s: got %v", expr, got.Operand)
	}

	for _, bad := range []string{"age", "=5", "role in []", "role in admin", "age > true"} {
		_, err := ParsePredicate(bad)
		assert.True(t, errors.Is(err, common.ErrInvalidQuery), bad)
	}
}

func TestParseOp(t *testing.T) {
	for _, s := range []string{"eq", "==", "neq", "!=", "gt", ">", "gte", ">=", "lt", "<", "lte", "<=", "in"} {
		op, err := ParseOp(s)
		require.NoError(t, err, s)
		again, err := ParseOp(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, again)
	}
	_, err := ParseOp("~")
	assert.True(t, errors.Is(err, common.ErrInvalidQuery))
}
