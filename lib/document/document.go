package document

import (
	"iter"
	"slices"
	"strings"
)

// Field is a single named value of a Document
type Field struct {
	Name  string
	Value Value
}

// F builds a Field from a plain Go value. It panics if v cannot be
// converted, which makes it suitable for literals only; use From for
// untrusted input.
func F(name string, v any) Field {
	return Field{Name: name, Value: MustFrom(v)}
}

// Document is an immutable mapping from field name to Value that keeps the
// insertion order of its fields. All "modifying" methods return a copy.
//
// Thread-safety: Documents are never mutated after construction and can be
// shared freely between goroutines.
type Document struct {
	fields []Field
}

// New creates a document from fields. A repeated name replaces the earlier
// value but keeps its position.
func New(fields ...Field) Document {
	d := Document{fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		if i := d.indexOf(f.Name); i >= 0 {
			d.fields[i].Value = f.Value
			continue
		}
		d.fields = append(d.fields, f)
	}
	return d
}

// FromMap converts a plain Go map. Field order is the sorted key order.
func FromMap(m map[string]any) (Document, error) {
	v, err := From(m)
	if err != nil {
		return Document{}, err
	}
	d, _ := v.AsMapping()
	return d, nil
}

func (d Document) indexOf(name string) int {
	for i := range d.fields {
		if d.fields[i].Name == name {
			return i
		}
	}
	return -1
}

// Get returns the value of a field
func (d Document) Get(name string) (Value, bool) {
	if i := d.indexOf(name); i >= 0 {
		return d.fields[i].Value, true
	}
	return Value{}, false
}

// Has reports whether the field exists (null values count as present)
func (d Document) Has(name string) bool { return d.indexOf(name) >= 0 }

// Len is the number of fields
func (d Document) Len() int { return len(d.fields) }

// Names returns the field names in order
func (d Document) Names() []string {
	names := make([]string, len(d.fields))
	for i, f := range d.fields {
		names[i] = f.Name
	}
	return names
}

func (d Document) sortedNames() []string {
	names := d.Names()
	slices.Sort(names)
	return names
}

// Fields iterates over the fields in order
func (d Document) Fields() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, f := range d.fields {
			if !yield(f.Name, f.Value) {
				return
			}
		}
	}
}

// With returns a copy of d with the field set. Existing fields keep their
// position, new ones are appended.
func (d Document) With(name string, v Value) Document {
	out := Document{fields: make([]Field, len(d.fields), len(d.fields)+1)}
	copy(out.fields, d.fields)
	if i := out.indexOf(name); i >= 0 {
		out.fields[i].Value = v
		return out
	}
	out.fields = append(out.fields, Field{Name: name, Value: v})
	return out
}

// Without returns a copy of d without the named field
func (d Document) Without(name string) Document {
	i := d.indexOf(name)
	if i < 0 {
		return d
	}
	out := Document{fields: make([]Field, 0, len(d.fields)-1)}
	out.fields = append(out.fields, d.fields[:i]...)
	out.fields = append(out.fields, d.fields[i+1:]...)
	return out
}

// Project returns a document with only the listed fields, in list order.
// Fields missing from d are left out, duplicates in names are ignored.
func (d Document) Project(names []string) Document {
	out := Document{fields: make([]Field, 0, len(names))}
	for _, name := range names {
		if out.indexOf(name) >= 0 {
			continue
		}
		if v, ok := d.Get(name); ok {
			out.fields = append(out.fields, Field{Name: name, Value: v})
		}
	}
	return out
}

// Equal compares field sets. Field order is not significant.
func (d Document) Equal(o Document) bool {
	if len(d.fields) != len(o.fields) {
		return false
	}
	for _, f := range d.fields {
		ov, ok := o.Get(f.Name)
		if !ok || !f.Value.Equal(ov) {
			return false
		}
	}
	return true
}

// ToMap converts d to a plain map with Interface() values
func (d Document) ToMap() map[string]any {
	m := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		m[f.Name] = f.Value.Interface()
	}
	return m
}

// SizeHint estimates the payload of d in bytes
func (d Document) SizeHint() int {
	n := 0
	for _, f := range d.fields {
		n += len(f.Name) + f.Value.SizeHint()
	}
	return n
}

// String renders d as compact JSON
func (d Document) String() string {
	b, err := d.MarshalJSON()
	if err != nil {
		var sb strings.Builder
		sb.WriteString("{")
		sb.WriteString(strings.Join(d.Names(), ","))
		sb.WriteString("}")
		return sb.String()
	}
	return string(b)
}
