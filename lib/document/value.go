package document

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind is the discriminant of a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindBool
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ErrIncomparable is returned by Compare for operands that have no ordering
var ErrIncomparable = errors.New("values are not comparable")

// Value is a dynamically typed, immutable field value. The zero Value is
// null.
type Value struct {
	kind Kind
	text string
	num  float64
	flag bool
	doc  Document
	seq  []Value
}

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// Null returns the null value
func Null() Value { return Value{} }

// Text returns a text value
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a number value
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a bool value
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Mapping wraps a nested document
func Mapping(d Document) Value { return Value{kind: KindMapping, doc: d} }

// Sequence returns a sequence value holding a copy of vs
func Sequence(vs ...Value) Value {
	cp := make([]Value, len(vs))
	copy(cp, vs)
	return Value{kind: KindSequence, seq: cp}
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }

func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) AsBool() (bool, bool) { return v.flag, v.kind == KindBool }

func (v Value) AsMapping() (Document, bool) { return v.doc, v.kind == KindMapping }

// AsSequence returns a copy of the sequence elements
func (v Value) AsSequence() ([]Value, bool) {
	if v.kind != KindSequence {
		return nil, false
	}
	cp := make([]Value, len(v.seq))
	copy(cp, v.seq)
	return cp, true
}

// Len is the number of elements of a sequence, the number of fields of a
// mapping and 0 for scalars
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.seq)
	case KindMapping:
		return v.doc.Len()
	default:
		return 0
	}
}

// Interface converts v back to plain Go values: nil, string, float64, bool,
// map[string]any and []any.
func (v Value) Interface() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.num
	case KindBool:
		return v.flag
	case KindMapping:
		return v.doc.ToMap()
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// --------------------------------------------------------------------------
// Equality, Ordering and Keys
// --------------------------------------------------------------------------

// Equal reports deep equality. Values of different kinds are never equal,
// mappings compare without regard to field order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.flag == o.flag
	case KindMapping:
		return v.doc.Equal(o.doc)
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two values of the same orderable kind: text is compared
// lexicographically by bytes, numbers numerically. Every other combination
// returns ErrIncomparable.
func Compare(a, b Value) (int, error) {
	switch {
	case a.kind == KindText && b.kind == KindText:
		return strings.Compare(a.text, b.text), nil
	case a.kind == KindNumber && b.kind == KindNumber:
		switch {
		case a.num < b.num:
			return -1, nil
		case a.num > b.num:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, errors.Wrapf(ErrIncomparable, "%s vs %s", a.kind, b.kind)
}

// Key returns a canonical string for v. Two values have the same key exactly
// when they are Equal (numbers use the shortest decimal rendering, mappings
// are keyed with sorted field names).
func (v Value) Key() string {
	var sb strings.Builder
	v.appendKey(&sb)
	return sb.String()
}

func (v Value) appendKey(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("n")
	case KindText:
		sb.WriteString("s")
		sb.WriteString(strconv.Quote(v.text))
	case KindNumber:
		sb.WriteString("f")
		sb.WriteString(FormatNumber(v.num))
	case KindBool:
		if v.flag {
			sb.WriteString("t")
		} else {
			sb.WriteString("F")
		}
	case KindMapping:
		sb.WriteString("{")
		for i, name := range v.doc.sortedNames() {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(strconv.Quote(name))
			sb.WriteString(":")
			f, _ := v.doc.Get(name)
			f.appendKey(sb)
		}
		sb.WriteString("}")
	case KindSequence:
		sb.WriteString("[")
		for i, e := range v.seq {
			if i > 0 {
				sb.WriteString(",")
			}
			e.appendKey(sb)
		}
		sb.WriteString("]")
	}
}

// FormatNumber renders f in its shortest decimal form ("42", "0.5", "1e+21")
func FormatNumber(f float64) string {
	if f == 0 {
		// folds -0 into 0
		return "0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// String renders v as JSON
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<" + v.kind.String() + ">"
	}
	return string(b)
}

// SizeHint estimates the in-memory payload of v in bytes
func (v Value) SizeHint() int {
	switch v.kind {
	case KindText:
		return len(v.text)
	case KindNumber:
		return 8
	case KindBool:
		return 1
	case KindMapping:
		return v.doc.SizeHint()
	case KindSequence:
		n := 0
		for _, e := range v.seq {
			n += e.SizeHint()
		}
		return n
	default:
		return 0
	}
}

func validNumber(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
