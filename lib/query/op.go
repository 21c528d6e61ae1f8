package query

import (
	"strings"

	"github.com/ValentinKolb/memdoc/lib/common"
)

// Op is the operator of an atomic predicate
type Op uint8

const (
	OpInvalid Op = iota
	OpEq
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
)

var opNames = [...]string{
	OpInvalid: "invalid",
	OpEq:      "eq",
	OpNeq:     "neq",
	OpGt:      "gt",
	OpGte:     "gte",
	OpLt:      "lt",
	OpLte:     "lte",
	OpIn:      "in",
}

var opSymbols = [...]string{
	OpEq:  "=",
	OpNeq: "!=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
	OpIn:  "in",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "invalid"
}

// Symbol returns the infix form used by ParsePredicate
func (o Op) Symbol() string {
	if o > OpInvalid && int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return "?"
}

// Ordering reports whether o compares by order rather than equality
func (o Op) Ordering() bool {
	return o == OpGt || o == OpGte || o == OpLt || o == OpLte
}

// ParseOp accepts the names ("gte") and the symbols (">=", "==") of all
// operators
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eq", "=", "==":
		return OpEq, nil
	case "neq", "ne", "!=", "<>":
		return OpNeq, nil
	case "gt", ">":
		return OpGt, nil
	case "gte", "ge", ">=":
		return OpGte, nil
	case "lt", "<":
		return OpLt, nil
	case "lte", "le", "<=":
		return OpLte, nil
	case "in":
		return OpIn, nil
	}
	return OpInvalid, common.NewErrorf(common.CodeInvalidQuery, "unknown operator %q", s)
}

func (o Op) MarshalText() ([]byte, error) {
	if o == OpInvalid || int(o) >= len(opNames) {
		return nil, common.NewErrorf(common.CodeInvalidQuery, "unknown operator %d", uint8(o))
	}
	return []byte(o.String()), nil
}

func (o *Op) UnmarshalText(b []byte) error {
	op, err := ParseOp(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}
