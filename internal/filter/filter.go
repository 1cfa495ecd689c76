// Package filter compiles boolean filter expressions into predicate
// trees consumed by the table scan.
//
// Supported syntax:
//   - column > value, column < value, column >= value, column <= value
//   - column = value, column != value
//   - column = 'string value'
//   - column IS NULL, column IS NOT NULL
//   - column IN ('a', 'b', 'c')
//   - combinators: expr AND expr, expr OR expr (case-insensitive)
//
// Unquoted values are typed best-effort: int64, then float64, then
// boolean, else string. Single-quoted values are always strings.
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is a binary comparison operator.
type Op string

const (
	OpEq   Op = "="
	OpNeq  Op = "!="
	OpGt   Op = ">"
	OpLt   Op = "<"
	OpGtEq Op = ">="
	OpLtEq Op = "<="
)

// operator symbols in match-priority order. Selection is driven by this
// list, not by which symbol appears first in the clause: ">=" is tried
// before ">" and "=" so "a >= 1" never misparses, and a clause containing
// both "<" and "=" resolves to whichever comes first HERE. Tests pin this
// policy; do not reorder.
var operators = []Op{OpGtEq, OpLtEq, OpNeq, OpGt, OpLt, OpEq}

// DatumKind tags the runtime type of a literal.
type DatumKind int

const (
	DatumLong DatumKind = iota
	DatumDouble
	DatumString
	DatumBool
)

// Datum is a typed literal used inside predicates.
type Datum struct {
	Kind   DatumKind
	Long   int64
	Double float64
	Str    string
	Bool   bool
}

func Long(v int64) Datum     { return Datum{Kind: DatumLong, Long: v} }
func Double(v float64) Datum { return Datum{Kind: DatumDouble, Double: v} }
func Str(v string) Datum     { return Datum{Kind: DatumString, Str: v} }
func Boolean(v bool) Datum   { return Datum{Kind: DatumBool, Bool: v} }

func (d Datum) String() string {
	switch d.Kind {
	case DatumLong:
		return strconv.FormatInt(d.Long, 10)
	case DatumDouble:
		return strconv.FormatFloat(d.Double, 'g', -1, 64)
	case DatumBool:
		return strconv.FormatBool(d.Bool)
	default:
		return "'" + d.Str + "'"
	}
}

// Predicate is a node in the compiled filter tree. The set of
// implementations is closed; consumers switch exhaustively over it.
type Predicate interface {
	isPredicate()
	String() string
}

type And struct{ Left, Right Predicate }
type Or struct{ Left, Right Predicate }

type Compare struct {
	Column string
	Op     Op
	Value  Datum
}

type IsNull struct{ Column string }
type IsNotNull struct{ Column string }

type In struct {
	Column string
	Values []Datum
}

func (And) isPredicate()       {}
func (Or) isPredicate()        {}
func (Compare) isPredicate()   {}
func (IsNull) isPredicate()    {}
func (IsNotNull) isPredicate() {}
func (In) isPredicate()        {}

func (p And) String() string { return "(" + p.Left.String() + " AND " + p.Right.String() + ")" }
func (p Or) String() string  { return "(" + p.Left.String() + " OR " + p.Right.String() + ")" }

func (p Compare) String() string {
	return p.Column + " " + string(p.Op) + " " + p.Value.String()
}

func (p IsNull) String() string    { return p.Column + " IS NULL" }
func (p IsNotNull) String() string { return p.Column + " IS NOT NULL" }

func (p In) String() string {
	parts := make([]string, 0, len(p.Values))
	for _, v := range p.Values {
		parts = append(parts, v.String())
	}
	return p.Column + " IN (" + strings.Join(parts, ", ") + ")"
}

// ParseError reports why a filter expression could not be compiled.
type ParseError struct{ Msg string }

func (e *ParseError) Error() string { return e.Msg }

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

// Compile parses a filter expression into a Predicate. It never panics
// on malformed input; all failures come back as *ParseError.
func Compile(text string) (Predicate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, parseErrorf("empty filter expression")
	}
	return compileOr(text)
}

func compileOr(input string) (Predicate, error) {
	left, right, ok := splitCombinator(input, " OR ")
	if !ok {
		return compileAnd(input)
	}
	l, err := compileAnd(left)
	if err != nil {
		return nil, err
	}
	// The remainder recurses, so "a OR b OR c" builds right-leaning.
	r, err := compileOr(right)
	if err != nil {
		return nil, err
	}
	return Or{Left: l, Right: r}, nil
}

func compileAnd(input string) (Predicate, error) {
	left, right, ok := splitCombinator(input, " AND ")
	if !ok {
		return compileComparison(input)
	}
	l, err := compileComparison(left)
	if err != nil {
		return nil, err
	}
	r, err := compileAnd(right)
	if err != nil {
		return nil, err
	}
	return And{Left: l, Right: r}, nil
}

// splitCombinator splits input at the first occurrence of the combinator
// keyword that lies outside single-quoted text. The quote scan toggles on
// every apostrophe, so "name = 'A AND B'" stays a single clause.
func splitCombinator(input, combinator string) (left, right string, ok bool) {
	inQuote := false
	for i := 0; i+len(combinator) <= len(input); i++ {
		if input[i] == '\'' {
			inQuote = !inQuote
		}
		if !inQuote && strings.EqualFold(input[i:i+len(combinator)], combinator) {
			return strings.TrimSpace(input[:i]), strings.TrimSpace(input[i+len(combinator):]), true
		}
	}
	return "", "", false
}

// findKeyword returns the byte offset of the first unquoted,
// case-insensitive occurrence of keyword, or -1.
func findKeyword(input, keyword string) int {
	inQuote := false
	for i := 0; i+len(keyword) <= len(input); i++ {
		if input[i] == '\'' {
			inQuote = !inQuote
		}
		if !inQuote && strings.EqualFold(input[i:i+len(keyword)], keyword) {
			return i
		}
	}
	return -1
}

func compileComparison(input string) (Predicate, error) {
	input = strings.TrimSpace(input)

	const isNotNull = " IS NOT NULL"
	if len(input) > len(isNotNull) && strings.EqualFold(input[len(input)-len(isNotNull):], isNotNull) {
		col := strings.TrimSpace(input[:len(input)-len(isNotNull)])
		return IsNotNull{Column: col}, nil
	}

	const isNull = " IS NULL"
	if len(input) > len(isNull) && strings.EqualFold(input[len(input)-len(isNull):], isNull) {
		col := strings.TrimSpace(input[:len(input)-len(isNull)])
		return IsNull{Column: col}, nil
	}

	if pos := findKeyword(input, " IN "); pos >= 0 {
		col := strings.TrimSpace(input[:pos])
		list := strings.TrimSpace(input[pos+4:])
		if !strings.HasPrefix(list, "(") || !strings.HasSuffix(list, ")") {
			return nil, parseErrorf("invalid IN expression: %s", input)
		}
		values := parseListValues(list[1 : len(list)-1])
		datums := make([]Datum, 0, len(values))
		for _, v := range values {
			datums = append(datums, parseDatum(v))
		}
		// Zero values is legal and matches nothing.
		return In{Column: col, Values: datums}, nil
	}

	for _, op := range operators {
		pos := strings.Index(input, string(op))
		if pos < 0 {
			continue
		}
		col := strings.TrimSpace(input[:pos])
		val := strings.TrimSpace(input[pos+len(op):])
		return Compare{Column: col, Op: op, Value: parseDatum(val)}, nil
	}

	return nil, parseErrorf("cannot parse filter expression: %s", input)
}

// parseListValues splits a comma-separated IN list. Quote characters are
// consumed, text inside quotes is kept verbatim (commas and spaces
// included), whitespace outside quotes is dropped, and empty entries are
// discarded.
func parseListValues(input string) []string {
	var values []string
	var current strings.Builder
	inQuote := false

	push := func() {
		if v := strings.TrimSpace(current.String()); v != "" {
			values = append(values, v)
		}
		current.Reset()
	}

	for _, c := range input {
		switch {
		case c == '\'':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			push()
		default:
			if inQuote || !isSpace(c) {
				current.WriteRune(c)
			}
		}
	}
	push()
	return values
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// parseDatum types a literal: quoted string, else int64, else float64,
// else boolean, else string.
func parseDatum(val string) Datum {
	val = strings.TrimSpace(val)

	if len(val) >= 2 && strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'") {
		return Str(val[1 : len(val)-1])
	}
	if i, err := strconv.ParseInt(val, 10, 64); err == nil {
		return Long(i)
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return Double(f)
	}
	switch strings.ToLower(val) {
	case "true":
		return Boolean(true)
	case "false":
		return Boolean(false)
	}
	return Str(val)
}
