// Package records defines the row representation shared by the CSV codec, the
// transformation pipeline and the storage sinks.
//
// A Record is an ordered mapping from column name to value. Field order is the
// order in which names were first set, which is what the codec produces for
// input rows and what the pipeline relies on when it registers output columns.
package records

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is one row. The zero value is ready to use. A nil *Record reads as an
// empty row, which lets callers pass "no previous row" without special cases.
type Record struct {
	fields *orderedmap.OrderedMap[string, any]
}

// Field is a single name/value pair, used to build records in order.
type Field struct {
	Name  string
	Value any
}

// New returns an empty record.
func New() *Record {
	return &Record{fields: orderedmap.New[string, any]()}
}

// Of builds a record from fields in the given order. A repeated name keeps its
// first position and takes the last value.
func Of(fields ...Field) *Record {
	r := New()
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// F is shorthand for Field{Name: name, Value: v}.
func F(name string, v any) Field { return Field{Name: name, Value: v} }

func (r *Record) init() {
	if r.fields == nil {
		r.fields = orderedmap.New[string, any]()
	}
}

// Set stores v under name. Existing names keep their position.
func (r *Record) Set(name string, v any) {
	r.init()
	r.fields.Set(name, v)
}

// Get returns the value stored under name and whether the name is present.
func (r *Record) Get(name string) (any, bool) {
	if r == nil || r.fields == nil {
		return nil, false
	}
	return r.fields.Get(name)
}

// Has reports whether name is present (even with a nil value).
func (r *Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// String returns the value under name rendered as text. Absent names and nil
// values yield "".
func (r *Record) String(name string) string {
	v, _ := r.Get(name)
	return ValueString(v)
}

// Delete removes name and reports whether it was present.
func (r *Record) Delete(name string) bool {
	if r == nil || r.fields == nil {
		return false
	}
	_, ok := r.fields.Delete(name)
	return ok
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil || r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys returns the field names in order.
func (r *Record) Keys() []string {
	if r.Len() == 0 {
		return nil
	}
	out := make([]string, 0, r.fields.Len())
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// Each calls fn for every field in order.
func (r *Record) Each(fn func(name string, v any)) {
	if r.Len() == 0 {
		return
	}
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		fn(p.Key, p.Value)
	}
}

// Clone returns a shallow copy. Cloning nil yields an empty record.
func (r *Record) Clone() *Record {
	out := New()
	r.Each(out.Set)
	return out
}

// Map returns the fields as a plain map. Order is lost.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, r.Len())
	r.Each(func(k string, v any) { out[k] = v })
	return out
}

// Equal reports whether a and b hold the same names in the same order with
// equal rendered values.
func Equal(a, b *Record) bool {
	if a.Len() != b.Len() {
		return false
	}
	ak, bk := a.Keys(), b.Keys()
	for i := range ak {
		if ak[i] != bk[i] || a.String(ak[i]) != b.String(bk[i]) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as a JSON object with fields in order.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r.Len() == 0 {
		return []byte("{}"), nil
	}
	return r.fields.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, keeping the order of its keys.
func (r *Record) UnmarshalJSON(b []byte) error {
	m := orderedmap.New[string, any]()
	if err := json.Unmarshal(b, m); err != nil {
		return fmt.Errorf("records: decode: %w", err)
	}
	r.fields = m
	return nil
}

// GoString renders the record for test failure messages.
func (r *Record) GoString() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("records.Record(%v)", r.Map())
	}
	return string(b)
}

// ValueString renders a field value as text: nil is "", strings are returned
// unchanged and everything else goes through fmt.Sprint.
func ValueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
