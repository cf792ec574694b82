package csvtransform

import (
	"fmt"

	"csvtransform/pkg/records"
)

// DeriveFunc computes an output value from the input row and the previously
// emitted output row. last is nil for the first row.
type DeriveFunc func(row, last *records.Record) (any, error)

// RuleKind identifies a Rule variant.
type RuleKind int

const (
	// RuleCopy takes the same-named input field, or "" when it is absent.
	RuleCopy RuleKind = iota
	// RuleLiteral uses a fixed value for every row.
	RuleLiteral
	// RuleDerived calls a DeriveFunc.
	RuleDerived
)

func (k RuleKind) String() string {
	switch k {
	case RuleCopy:
		return "copy"
	case RuleLiteral:
		return "literal"
	case RuleDerived:
		return "derived"
	default:
		return fmt.Sprintf("RuleKind(%d)", int(k))
	}
}

// Rule decides how one output column is computed. The zero value is a Copy
// rule.
type Rule struct {
	kind  RuleKind
	value any
	fn    DeriveFunc
}

// Copy returns a rule that copies the same-named input field.
func Copy() Rule { return Rule{kind: RuleCopy} }

// Literal returns a rule that always yields v.
func Literal(v any) Rule { return Rule{kind: RuleLiteral, value: v} }

// Derived returns a rule that calls fn for every row. A nil fn yields nil.
func Derived(fn DeriveFunc) Rule { return Rule{kind: RuleDerived, fn: fn} }

// Func adapts an infallible function into a Derived rule.
func Func(fn func(row, last *records.Record) any) Rule {
	return Derived(func(row, last *records.Record) (any, error) {
		return fn(row, last), nil
	})
}

// Kind reports the variant.
func (r Rule) Kind() RuleKind { return r.kind }

// Value returns the literal value; it is nil for other kinds.
func (r Rule) Value() any { return r.value }

// Eval computes the rule's value for output column name.
func (r Rule) Eval(name string, row, last *records.Record) (any, error) {
	switch r.kind {
	case RuleLiteral:
		return r.value, nil
	case RuleDerived:
		if r.fn == nil {
			return nil, nil
		}
		return r.fn(row, last)
	default:
		if v, ok := row.Get(name); ok && v != nil {
			return v, nil
		}
		return "", nil
	}
}

// Column binds an output column name to its rule.
type Column struct {
	Name string
	Rule Rule
}

// Rules is an ordered list of column rules. When a name repeats, the later
// rule's value wins; the column keeps the position of its first occurrence.
type Rules []Column

// Col is shorthand for Column{Name: name, Rule: r}.
func Col(name string, r Rule) Column { return Column{Name: name, Rule: r} }

// Names returns the output column names in order, without duplicates.
func (rs Rules) Names() []string {
	seen := make(map[string]struct{}, len(rs))
	out := make([]string, 0, len(rs))
	for _, c := range rs {
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		out = append(out, c.Name)
	}
	return out
}
