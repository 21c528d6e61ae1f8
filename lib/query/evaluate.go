package query

import (
	"iter"
	"time"

	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/ValentinKolb/memdoc/lib/ttl"
)

// outcome of a predicate on a single record
type outcome uint8

const (
	outcomeFalse outcome = iota
	outcomeTrue
	outcomeMismatch
)

func boolOutcome(b bool) outcome {
	if b {
		return outcomeTrue
	}
	return outcomeFalse
}

// equalityCompatible reports whether two kinds can be tested for equality.
// Null is compatible with everything and equal only to null.
func equalityCompatible(a, b document.Kind) bool {
	return a == b || a == document.KindNull || b == document.KindNull
}

func (p Predicate) eval(doc document.Document) outcome {
	v, ok := doc.Get(p.Field)
	if !ok {
		return boolOutcome(p.Op == OpNeq)
	}

	switch p.Op {
	case OpEq, OpNeq:
		if !equalityCompatible(v.Kind(), p.Operand.Kind()) {
			return outcomeMismatch
		}
		return boolOutcome(v.Equal(p.Operand) == (p.Op == OpEq))

	case OpIn:
		elems, _ := p.Operand.AsSequence()
		compatible := false
		for _, e := range elems {
			if !equalityCompatible(v.Kind(), e.Kind()) {
				continue
			}
			compatible = true
			if v.Equal(e) {
				return outcomeTrue
			}
		}
		if !compatible {
			return outcomeMismatch
		}
		return outcomeFalse

	default:
		c, err := document.Compare(v, p.Operand)
		if err != nil {
			return outcomeMismatch
		}
		switch p.Op {
		case OpGt:
			return boolOutcome(c > 0)
		case OpGte:
			return boolOutcome(c >= 0)
		case OpLt:
			return boolOutcome(c < 0)
		case OpLte:
			return boolOutcome(c <= 0)
		}
	}
	return outcomeMismatch
}

// Match evaluates the conjunction on doc, stopping at the first predicate
// that does not hold. A kind mismatch is reported as a TypeMismatch error
// naming the field; the record does not match in that case.
func (s Spec) Match(doc document.Document) (bool, error) {
	out, i := s.match(doc)
	if out == outcomeMismatch {
		p := s.Where[i]
		v, _ := doc.Get(p.Field)
		return false, common.NewFieldError(common.CodeTypeMismatch, p.Field, "cannot apply %s to %s and %s", p.Op, v.Kind(), p.Operand.Kind())
	}
	return out == outcomeTrue, nil
}

// match returns the outcome of the conjunction and the index of the
// predicate that decided it
func (s Spec) match(doc document.Document) (outcome, int) {
	for i, p := range s.Where {
		if out := p.eval(doc); out != outcomeTrue {
			return out, i
		}
	}
	return outcomeTrue, -1
}

// Stats describes one evaluation
type Stats struct {
	Scanned    int `json:"scanned"`    // entries in the snapshot
	Expired    int `json:"expired"`    // skipped as expired
	Matched    int `json:"matched"`    // returned
	Mismatched int `json:"mismatched"` // excluded by a kind mismatch
}

// Result of Evaluate
type Result struct {
	Documents []document.Document
	Stats     Stats
}

// Evaluate runs spec over a snapshot as of now:
//  1. entries expired at now are skipped
//  2. the conjunction is evaluated per record, records with a kind mismatch
//     are excluded without failing the query
//  3. the projection is applied to the survivors
//  4. results keep the snapshot order
//
// Evaluate is pure: it reads only its arguments. The only error is an
// InvalidQuery from validating spec, returned before any record is read.
func Evaluate(spec Spec, snapshot iter.Seq[db.Entry], now time.Time) (Result, error) {
	if err := spec.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{Documents: make([]document.Document, 0)}
	for entry := range snapshot {
		res.Stats.Scanned++
		if ttl.IsExpired(entry.ExpireAt, now) {
			res.Stats.Expired++
			continue
		}

		switch out, _ := spec.match(entry.Document); out {
		case outcomeMismatch:
			res.Stats.Mismatched++
			continue
		case outcomeFalse:
			continue
		}
		res.Documents = append(res.Documents, spec.Projection.Apply(entry.Document))
	}
	res.Stats.Matched = len(res.Documents)
	return res, nil
}
