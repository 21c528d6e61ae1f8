// Package index keeps the unique field indexes of a collection.
//
// For every unique field the Manager holds a map from the canonical key of a
// value to the primary key of the record carrying it. Values of all kinds
// are indexed; two values collide only if they are equal (so the text "1"
// and the number 1 do not). Records whose field is missing or null are
// exempt from the constraint.
//
// A write is checked first and applied second:
//
//	if fields := idx.CheckUniqueConflict(doc, key); len(fields) > 0 {
//	    return violation(fields[0])
//	}
//	store.Put(...)
//	idx.Apply(key, old, doc)
package index
