package csvtransform

import (
	"fmt"
	"regexp"

	"csvtransform/internal/config"
	"csvtransform/pkg/records"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// RemovePattern excludes names from the final column set: either one exact
// name or every name a regexp matches.
type RemovePattern struct {
	exact string
	re    *regexp.Regexp
}

// Exact matches name only.
func Exact(name string) RemovePattern { return RemovePattern{exact: name} }

// Pattern matches every name re matches.
func Pattern(re *regexp.Regexp) RemovePattern { return RemovePattern{re: re} }

// Regexp compiles expr (RE2 syntax, unanchored) into a pattern.
func Regexp(expr string) (RemovePattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return RemovePattern{}, fmt.Errorf("remove pattern %q: %w", expr, err)
	}
	return Pattern(re), nil
}

// MustRegexp is like Regexp but panics on a bad expression.
func MustRegexp(expr string) RemovePattern {
	p, err := Regexp(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseRemovePattern reads the job file form: "/expr/" is a regexp, anything
// else an exact name.
func ParseRemovePattern(s string) (RemovePattern, error) {
	if expr, ok := config.RegexpBody(s); ok {
		return Regexp(expr)
	}
	return Exact(s), nil
}

// String renders the pattern in job file form.
func (p RemovePattern) String() string {
	if p.re != nil {
		return "/" + p.re.String() + "/"
	}
	return p.exact
}

// columnSet is the insertion-ordered set of output column names seen during
// one run.
type columnSet struct {
	names *orderedmap.OrderedMap[string, struct{}]
}

func newColumnSet() *columnSet {
	return &columnSet{names: orderedmap.New[string, struct{}]()}
}

// add appends name unless it is already present.
func (s *columnSet) add(name string) {
	if _, ok := s.names.Get(name); ok {
		return
	}
	s.names.Set(name, struct{}{})
}

func (s *columnSet) addKeys(r *records.Record) {
	r.Each(func(name string, _ any) { s.add(name) })
}

func (s *columnSet) remove(p RemovePattern) {
	if p.re == nil {
		s.names.Delete(p.exact)
		return
	}
	var drop []string
	for pair := s.names.Oldest(); pair != nil; pair = pair.Next() {
		if p.re.MatchString(pair.Key) {
			drop = append(drop, pair.Key)
		}
	}
	for _, name := range drop {
		s.names.Delete(name)
	}
}

// finalize applies patterns in order and returns the remaining names in
// first-contribution order.
func (s *columnSet) finalize(patterns []RemovePattern) []string {
	for _, p := range patterns {
		s.remove(p)
	}
	out := make([]string, 0, s.names.Len())
	for pair := s.names.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
