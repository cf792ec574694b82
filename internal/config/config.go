// Package config defines the JSON job model for csvtransform. A job file
// describes how one CSV input is re-shaped: the ordered output columns and
// their rules, whole-row overrides, iso-column retention, column pruning and
// an optional storage sink for the result.
//
// Example (trimmed):
//
//	{
//	  "job":     "catalog-import",
//	  "parser":  { "options": { "delimiter": ";" } },
//	  "columns": [
//	    { "name": "Handle", "kind": "derive", "options": { "fn": "slug", "field": "Title" } },
//	    { "name": "Title",  "kind": "copy" },
//	    { "name": "Status", "kind": "literal", "value": "active" }
//	  ],
//	  "special_rows":   [ { "kind": "skip_if_any_empty", "options": { "fields": ["Title"] } } ],
//	  "iso_columns":    false,
//	  "remove_columns": [ "Title", "/^tmp_/" ],
//	  "storage": { "kind": "sqlite", "db": { "dsn": "out.db", "table": "products" } }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Column kinds.
const (
	KindCopy    = "copy"
	KindLiteral = "literal"
	KindDerive  = "derive"
)

// Job is the top-level object decoded from a job file.
type Job struct {
	// Job names the run in logs and metrics.
	Job string `json:"job"`

	// Parser carries codec decode options (header, delimiter, ...).
	Parser Parser `json:"parser,omitzero"`

	// Columns lists output column rules in order.
	Columns []Column `json:"columns"`

	// SpecialRows lists whole-row overrides, evaluated in order.
	SpecialRows []SpecialRow `json:"special_rows,omitempty"`

	// IsoColumns seeds every output row with a copy of the input fields.
	IsoColumns bool `json:"iso_columns,omitempty"`

	// RemoveColumns lists exact column names or "/regexp/" patterns removed
	// from the final column set.
	RemoveColumns []string `json:"remove_columns,omitempty"`

	// Output carries codec encode options (delimiter, crlf, header).
	Output Output `json:"output,omitzero"`

	// Storage optionally loads the transformed rows into a database.
	Storage Storage `json:"storage,omitzero"`
}

// Parser configures decoding. Options are forwarded to the CSV codec and
// merged over its defaults.
type Parser struct {
	Options Options `json:"options,omitempty"`
}

// Output configures encoding of the transformed rows.
type Output struct {
	Options Options `json:"options,omitempty"`
}

// Column is one output column rule.
type Column struct {
	// Name is the output column name.
	Name string `json:"name"`

	// Kind is one of "copy", "literal" or "derive".
	Kind string `json:"kind"`

	// Value is the constant for "literal" columns.
	Value any `json:"value,omitzero"`

	// Options configure "derive" columns; "fn" selects the builtin function.
	Options Options `json:"options,omitempty"`
}

// SpecialRow selects a builtin special row processor by kind.
type SpecialRow struct {
	Kind    string  `json:"kind"`
	Options Options `json:"options,omitempty"`
}

// Storage selects the sink used to persist transformed rows. An empty Kind
// disables the sink.
type Storage struct {
	// Kind selects the backend: "postgres" or "sqlite".
	Kind string `json:"kind"`

	DB DBConfig `json:"db"`
}

// DBConfig configures the database sink.
type DBConfig struct {
	// DSN is the backend connection string.
	DSN string `json:"dsn"`

	// Table is the destination table, optionally schema-qualified.
	Table string `json:"table"`

	// AutoCreateTable creates the table (all TEXT columns) when missing.
	AutoCreateTable bool `json:"auto_create_table,omitempty"`

	// BatchSize is the number of rows per bulk insert. Zero means 1000.
	BatchSize int `json:"batch_size,omitempty"`
}

// Load reads and decodes a job file.
func Load(path string) (Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read job %s: %w", path, err)
	}
	return Decode(b)
}

// Decode decodes a job from JSON. Unknown fields are rejected so that typos in
// job files surface early. Numbers are kept as json.Number so literal values
// are emitted with their original text.
func Decode(b []byte) (Job, error) {
	var j Job
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	return j, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns provided defaults when a
// key is absent or of an unexpected type.
type Options map[string]any

// Has reports whether key is present.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. Decoded job files carry
// json.Number; float64 and int are accepted for maps built in code.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i)
			}
			if f, err := n.Float64(); err == nil {
				return int(f)
			}
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		switch m := v.(type) {
		case map[string]any:
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		case map[string]string:
			for k, s := range m {
				res[k] = s
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of
// strings. Returns nil when the key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// Merge returns a new Options holding o's entries overridden by over's.
// Neither input is modified.
func (o Options) Merge(over Options) Options {
	out := make(Options, len(o)+len(over))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// UnmarshalJSON makes a missing or null "options" object decode to a non-nil,
// empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	if tmp == nil {
		tmp = map[string]any{}
	}
	*o = Options(tmp)
	return nil
}
