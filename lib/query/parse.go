package query

import (
	"strconv"
	"strings"

	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/document"
)

// infix operators, longer symbols first so that ">=" is not read as ">"
var infixOps = []struct {
	symbol string
	op     Op
}{
	{">=", OpGte},
	{"<=", OpLte},
	{"!=", OpNeq},
	{"<>", OpNeq},
	{"==", OpEq},
	{"=", OpEq},
	{">", OpGt},
	{"<", OpLt},
}

// ParsePredicate reads the compact command line form of a predicate:
//
//	age>=25
//	status=active
//	name != "Bob Smith"
//	role in [admin, editor]
//
// Operands are read as null, true/false, numbers, quoted text or bare text,
// in that order of preference. The operand of "in" is a bracketed,
// comma separated list of such operands.
func ParsePredicate(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)

	if field, rest, ok := splitIn(expr); ok {
		list, err := parseList(rest)
		if err != nil {
			return Predicate{}, common.NewFieldError(common.CodeInvalidQuery, field, "%v", err)
		}
		p := Predicate{Field: field, Op: OpIn, Operand: list}
		return p, p.Validate()
	}

	// the leftmost operator wins, so operands may contain operator symbols
	for i := 0; i < len(expr); i++ {
		for _, candidate := range infixOps {
			if !strings.HasPrefix(expr[i:], candidate.symbol) {
				continue
			}
			field := strings.TrimSpace(expr[:i])
			operand := parseOperand(expr[i+len(candidate.symbol):])
			p := Predicate{Field: field, Op: candidate.op, Operand: operand}
			return p, p.Validate()
		}
	}
	return Predicate{}, common.NewErrorf(common.CodeInvalidQuery, "no operator in %q", expr)
}

// splitIn finds "<field> in <list>" (case insensitive keyword)
func splitIn(expr string) (string, string, bool) {
	lower := strings.ToLower(expr)
	i := strings.Index(lower, " in ")
	if i < 0 {
		return "", "", false
	}
	field := strings.TrimSpace(expr[:i])
	if field == "" || strings.ContainsAny(field, "=<>!") {
		return "", "", false
	}
	return field, strings.TrimSpace(expr[i+len(" in "):]), true
}

func parseList(s string) (document.Value, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return document.Value{}, common.NewErrorf(common.CodeInvalidQuery, "list operand must be written as [a, b, ...], got %q", s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return document.Sequence(), nil
	}

	var elems []document.Value
	for _, part := range splitList(inner) {
		elems = append(elems, parseOperand(part))
	}
	return document.Sequence(elems...), nil
}

// splitList splits on commas outside of double quotes
func splitList(s string) []string {
	var parts []string
	var cur strings.Builder
	quoted := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && quoted && i+1 < len(s):
			cur.WriteByte(c)
			i++
			cur.WriteByte(s[i])
			continue
		case c == '"':
			quoted = !quoted
		case c == ',' && !quoted:
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	return append(parts, cur.String())
}

func parseOperand(s string) document.Value {
	s = strings.TrimSpace(s)
	switch s {
	case "null":
		return document.Null()
	case "true":
		return document.Bool(true)
	case "false":
		return document.Bool(false)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if v, err := document.From(f); err == nil {
			return v
		}
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if unq, err := strconv.Unquote(s); err == nil {
			return document.Text(unq)
		}
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return document.Text(s[1 : len(s)-1])
	}
	return document.Text(s)
}
