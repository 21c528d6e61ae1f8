package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Predicate
// --------------------------------------------------------------------------

// Predicate is an atomic condition on one field
type Predicate struct {
	Field   string         `json:"field"`
	Op      Op             `json:"op"`
	Operand document.Value `json:"value"`
}

// Validate checks the predicate independently of any data
func (p Predicate) Validate() error {
	if strings.TrimSpace(p.Field) == "" {
		return common.NewError(common.CodeInvalidQuery, "predicate without field")
	}
	switch {
	case p.Op == OpIn:
		if p.Operand.Kind() != document.KindSequence {
			return common.NewFieldError(common.CodeInvalidQuery, p.Field, "in needs a list operand, got %s", p.Operand.Kind())
		}
		if p.Operand.Len() == 0 {
			return common.NewFieldError(common.CodeInvalidQuery, p.Field, "in needs at least one operand")
		}
	case p.Op.Ordering():
		if k := p.Operand.Kind(); k != document.KindText && k != document.KindNumber {
			return common.NewFieldError(common.CodeInvalidQuery, p.Field, "%s needs a text or number operand, got %s", p.Op, k)
		}
	case p.Op == OpEq || p.Op == OpNeq:
	default:
		return common.NewFieldError(common.CodeInvalidQuery, p.Field, "unknown operator %d", uint8(p.Op))
	}
	return nil
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %s", p.Field, p.Op.Symbol(), p.Operand)
}

// --------------------------------------------------------------------------
// Projection
// --------------------------------------------------------------------------

// Projection selects the fields of each result document. The zero
// Projection selects all fields.
type Projection struct {
	fields []string
}

// AllFields returns the "*" projection
func AllFields() Projection { return Projection{} }

// Fields returns a projection onto names, in that order. No names means all
// fields.
func Fields(names ...string) Projection {
	var fields []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" && n != "*" {
			fields = append(fields, n)
		}
	}
	return Projection{fields: fields}
}

// ParseProjection reads "*", "" or a comma separated field list
func ParseProjection(s string) Projection {
	return Fields(strings.Split(s, ",")...)
}

// All reports whether every field is selected
func (p Projection) All() bool { return len(p.fields) == 0 }

// Names returns the selected fields, nil for all
func (p Projection) Names() []string {
	if p.All() {
		return nil
	}
	return append([]string(nil), p.fields...)
}

// Apply projects doc
func (p Projection) Apply(doc document.Document) document.Document {
	if p.All() {
		return doc
	}
	return doc.Project(p.fields)
}

func (p Projection) String() string {
	if p.All() {
		return "*"
	}
	return strings.Join(p.fields, ",")
}

// MarshalJSON encodes "*" or the list of fields
func (p Projection) MarshalJSON() ([]byte, error) {
	if p.All() {
		return json.Marshal("*")
	}
	return json.Marshal(p.fields)
}

// UnmarshalJSON accepts a projection string or a list of field names
func (p *Projection) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = ParseProjection(s)
		return nil
	}
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return common.NewErrorf(common.CodeInvalidQuery, "projection must be a string or a list of strings: %v", err)
	}
	*p = Fields(names...)
	return nil
}

// --------------------------------------------------------------------------
// Spec
// --------------------------------------------------------------------------

// Spec is an inert, serialisable query: a projection and a conjunction of
// predicates. It carries no reference to data; Evaluate runs it against a
// snapshot.
type Spec struct {
	Projection Projection  `json:"select"`
	Where      []Predicate `json:"where,omitempty"`
}

// Validate checks every predicate and returns the first InvalidQuery error
func (s Spec) Validate() error {
	for i, p := range s.Where {
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "predicate %d", i)
		}
	}
	return nil
}

func (s Spec) String() string {
	var sb strings.Builder
	sb.WriteString("select ")
	sb.WriteString(s.Projection.String())
	for i, p := range s.Where {
		if i == 0 {
			sb.WriteString(" where ")
		} else {
			sb.WriteString(" and ")
		}
		sb.WriteString(p.String())
	}
	return sb.String()
}

// ParseSpec decodes a JSON query
//
//	{"select": ["name", "age"], "where": [{"field": "age", "op": "gte", "value": 25}]}
func ParseSpec(data []byte) (Spec, error) {
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		if common.CodeOf(err) == common.CodeInvalidQuery {
			return Spec{}, err
		}
		return Spec{}, common.NewErrorf(common.CodeInvalidQuery, "malformed query: %v", err)
	}
	return s, s.Validate()
}
