// Package document defines the data model stored by memdoc collections.
//
// A Document is an ordered, immutable mapping from field name to Value. A
// Value is one of six kinds: null, text, number, bool, mapping (a nested
// Document) or sequence. Numbers are float64, which is how JSON numbers are
// represented as well.
//
// Values are built with the kind constructors (Text, Number, ...) or
// converted from plain Go values with From. Documents round-trip through JSON
// with their field order intact:
//
//	doc, err := document.Parse([]byte(`{"id":1,"name":"Alice"}`))
//	doc = doc.With("age", document.Number(30))
//	fmt.Println(doc) // {"id":1,"name":"Alice","age":30}
//
// Value.Key gives each value a canonical string such that equal values have
// equal keys. Unique indexes and primary key lookups rely on it.
package document
