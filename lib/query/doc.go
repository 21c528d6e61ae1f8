// Package query implements memdoc's predicate queries.
//
// A query is an inert Spec, a projection plus a conjunction of atomic
// predicates (field, operator, operand). Specs can be built fluently with a
// Builder, decoded from JSON with ParseSpec or assembled from command line
// expressions with ParsePredicate. Evaluate runs a Spec against a snapshot of
// records at a given instant and is free of side effects.
//
// Evaluation rules:
//   - expired records are skipped
//   - a missing field fails every predicate except not-equals
//   - numbers order numerically, text orders by bytes
//   - equality across kinds (null excepted) and ordering of anything but two
//     numbers or two texts is a kind mismatch: the record is excluded and
//     counted in Stats.Mismatched, the query itself still succeeds
//   - results keep the order of the snapshot
//
// Builder.Execute invokes an optional OnSuccess or OnFail handler after the
// evaluation completed:
//
//	docs, err := users.Select("name,age").
//	    Gte("age", 25).
//	    In("role", "admin", "editor").
//	    OnSuccess(func(docs []document.Document) { ... }).
//	    Execute()
package query
