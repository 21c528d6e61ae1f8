package query

import (
	"iter"
	"time"

	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("query")

// Source provides the snapshot a query runs against
type Source interface {
	// Snapshot captures the records and the instant expiry is judged at
	Snapshot() (iter.Seq[db.Entry], time.Time, error)
}

// Observer is optionally implemented by a Source that wants to see every
// execution, e.g. for metrics
type Observer interface {
	ObserveQuery(spec Spec, stats Stats, err error, took time.Duration)
}

// Builder assembles a Spec fluently and executes it against its Source.
// Operand conversion errors are kept and reported by Execute as
// InvalidQuery.
//
// A Builder is not safe for concurrent use. Execute may be called more than
// once; each call takes a fresh snapshot.
type Builder struct {
	source    Source
	spec      Spec
	err       error
	onSuccess func([]document.Document)
	onFail    func(error)
}

// NewBuilder starts a query on source with a projection string ("*" or a
// comma separated field list)
func NewBuilder(source Source, projection string) *Builder {
	return &Builder{
		source: source,
		spec:   Spec{Projection: ParseProjection(projection)},
	}
}

// FromSpec creates a builder executing an existing Spec
func FromSpec(source Source, spec Spec) *Builder {
	spec.Where = append([]Predicate(nil), spec.Where...)
	return &Builder{source: source, spec: spec}
}

func (b *Builder) add(field string, op Op, operand any) *Builder {
	v, err := document.From(operand)
	if err != nil {
		if b.err == nil {
			b.err = common.NewFieldError(common.CodeInvalidQuery, field, "operand: %v", err)
		}
		return b
	}
	b.spec.Where = append(b.spec.Where, Predicate{Field: field, Op: op, Operand: v})
	return b
}

// Eq adds field == operand
func (b *Builder) Eq(field string, operand any) *Builder { return b.add(field, OpEq, operand) }

// Neq adds field != operand
func (b *Builder) Neq(field string, operand any) *Builder { return b.add(field, OpNeq, operand) }

// Gt adds field > operand
func (b *Builder) Gt(field string, operand any) *Builder { return b.add(field, OpGt, operand) }

// Gte adds field >= operand
func (b *Builder) Gte(field string, operand any) *Builder { return b.add(field, OpGte, operand) }

// Lt adds field < operand
func (b *Builder) Lt(field string, operand any) *Builder { return b.add(field, OpLt, operand) }

// Lte adds field <= operand
func (b *Builder) Lte(field string, operand any) *Builder { return b.add(field, OpLte, operand) }

// In adds "field is one of operands". A single slice argument is taken as
// the operand list itself.
func (b *Builder) In(field string, operands ...any) *Builder {
	if len(operands) == 1 {
		if v, err := document.From(operands[0]); err == nil && v.Kind() == document.KindSequence {
			return b.add(field, OpIn, v)
		}
	}
	if operands == nil {
		operands = []any{}
	}
	return b.add(field, OpIn, operands)
}

// Where adds an already built predicate
func (b *Builder) Where(p Predicate) *Builder {
	b.spec.Where = append(b.spec.Where, p)
	return b
}

// OnSuccess registers the handler called with the results of a successful
// execution. It replaces an earlier handler.
func (b *Builder) OnSuccess(fn func([]document.Document)) *Builder {
	b.onSuccess = fn
	return b
}

// OnFail registers the handler called with the error of a failed execution.
// It replaces an earlier handler.
func (b *Builder) OnFail(fn func(error)) *Builder {
	b.onFail = fn
	return b
}

// Spec returns a copy of the assembled specification
func (b *Builder) Spec() Spec {
	s := b.spec
	s.Where = append([]Predicate(nil), b.spec.Where...)
	return s
}

// Execute runs the query and returns the projected documents. Exactly one
// of the registered handlers is invoked, synchronously, after the
// evaluation finished.
func (b *Builder) Execute() ([]document.Document, error) {
	res, err := b.Run()
	if err != nil {
		if b.onFail != nil {
			b.onFail(err)
		}
		return nil, err
	}
	if b.onSuccess != nil {
		b.onSuccess(res.Documents)
	}
	return res.Documents, nil
}

// Run is Execute without handlers, returning the evaluation stats as well
func (b *Builder) Run() (Result, error) {
	start := time.Now()
	res, err := b.run()
	if o, ok := b.source.(Observer); ok {
		o.ObserveQuery(b.spec, res.Stats, err, time.Since(start))
	}
	if err != nil {
		plog.Debugf("query %q failed: %v", b.spec, err)
		return Result{}, err
	}
	plog.Debugf("query %q: scanned=%d expired=%d matched=%d mismatched=%d",
		b.spec, res.Stats.Scanned, res.Stats.Expired, res.Stats.Matched, res.Stats.Mismatched)
	return res, nil
}

func (b *Builder) run() (Result, error) {
	if b.err != nil {
		return Result{}, b.err
	}
	if err := b.spec.Validate(); err != nil {
		return Result{}, err
	}
	if b.source == nil {
		return Result{}, errors.WithStack(common.ErrClosed)
	}
	snapshot, now, err := b.source.Snapshot()
	if err != nil {
		return Result{}, err
	}
	return Evaluate(b.spec, snapshot, now)
}
