package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Job decoding tests
// -----------------------------------------------------------------------------

func TestJob_Decode(t *testing.T) {
	t.Parallel()

	const js = `{
	  "job": "people",
	  "parser": { "options": { "delimiter": ";", "trimSpace": true } },
	  "columns": [
	    { "name": "Full Name", "kind": "derive", "options": { "fn": "upper", "field": "Name" } },
	    { "name": "Status", "kind": "literal", "value": "Active" },
	    { "name": "Age", "kind": "copy" }
	  ],
	  "special_rows": [
	    { "kind": "skip_if_any_empty", "options": { "fields": ["Age"] } }
	  ],
	  "iso_columns": true,
	  "remove_columns": ["Age", "/^temp_/"],
	  "output": { "options": { "crlf": true } },
	  "storage": { "kind": "sqlite", "db": { "dsn": "out.db", "table": "people", "auto_create_table": true, "batch_size": 50 } }
	}`

	j, err := Decode([]byte(js))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if j.Job != "people" {
		t.Fatalf("job = %q; want people", j.Job)
	}
	if got := j.Parser.Options.Rune("delimiter", ','); got != ';' {
		t.Fatalf("parser.options.delimiter = %q; want ';'", got)
	}
	if !j.Parser.Options.Bool("trimSpace", false) {
		t.Fatal("parser.options.trimSpace = false; want true")
	}
	if len(j.Columns) != 3 {
		t.Fatalf("len(columns) = %d; want 3", len(j.Columns))
	}
	if c := j.Columns[0]; c.Kind != KindDerive || c.Options.String("fn", "") != "upper" || c.Options.String("field", "") != "Name" {
		t.Fatalf("columns[0] = %#v", c)
	}
	if c := j.Columns[1]; c.Kind != KindLiteral || c.Value != "Active" {
		t.Fatalf("columns[1] = %#v", c)
	}
	if got := j.SpecialRows[0].Options.StringSlice("fields"); !reflect.DeepEqual(got, []string{"Age"}) {
		t.Fatalf("special_rows[0].options.fields = %v", got)
	}
	if !j.IsoColumns {
		t.Fatal("iso_columns = false; want true")
	}
	if !reflect.DeepEqual(j.RemoveColumns, []string{"Age", "/^temp_/"}) {
		t.Fatalf("remove_columns = %v", j.RemoveColumns)
	}
	if !j.Output.Options.Bool("crlf", false) {
		t.Fatal("output.options.crlf = false; want true")
	}
	if j.Storage.Kind != "sqlite" || j.Storage.DB.Table != "people" || !j.Storage.DB.AutoCreateTable || j.Storage.DB.BatchSize != 50 {
		t.Fatalf("storage = %#v", j.Storage)
	}
}

func TestJob_DecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"job":"x","colums":[]}`))
	if err == nil || !strings.Contains(err.Error(), "colums") {
		t.Fatalf("Decode error = %v; want unknown field error", err)
	}
}

func TestJob_DecodeNullOptions(t *testing.T) {
	t.Parallel()

	j, err := Decode([]byte(`{"parser":{"options":null},"columns":[{"name":"a","kind":"copy","options":null}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if j.Parser.Options == nil || j.Columns[0].Options == nil {
		t.Fatal("null options should decode to an empty, non-nil map")
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "job.json")
	if err := os.WriteFile(path, []byte(`{"job":"from-disk"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	j, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if j.Job != "from-disk" {
		t.Fatalf("job = %q; want from-disk", j.Job)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Load(missing) error = %v; want not-exist", err)
	}
}

func TestJob_DecodeKeepsNumberText(t *testing.T) {
	t.Parallel()

	j, err := Decode([]byte(`{"columns": [
	  { "name": "Price", "kind": "literal", "value": 1500000 },
	  { "name": "Id", "kind": "literal", "value": 12345678901 },
	  { "name": "Rate", "kind": "literal", "value": 0.25 }
	]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []json.Number{"1500000", "12345678901", "0.25"}
	for i, w := range want {
		if got := j.Columns[i].Value; got != w {
			t.Errorf("columns[%d].value = %#v; want %#v", i, got, w)
		}
	}
}

// -----------------------------------------------------------------------------
// Options helpers
// -----------------------------------------------------------------------------

func TestOptions_Getters(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":    "x",
		"b":    true,
		"f":    float64(3),
		"i":    4,
		"n":    json.Number("12"),
		"r":    "ß;",
		"m":    map[string]any{"a": "b", "n": 1},
		"ss":   []any{"a", 1, "b"},
		"nil":  nil,
		"strs": []string{"p"},
	}

	if got := o.String("s", "d"); got != "x" {
		t.Errorf("String(s) = %q", got)
	}
	if got := o.String("b", "d"); got != "d" {
		t.Errorf("String(b) = %q; want default", got)
	}
	if !o.Bool("b", false) || o.Bool("s", false) {
		t.Error("Bool mismatch")
	}
	if o.Int("f", 0) != 3 || o.Int("i", 0) != 4 || o.Int("n", 0) != 12 || o.Int("s", 7) != 7 {
		t.Error("Int mismatch")
	}
	if o.Rune("r", ',') != 'ß' || o.Rune("missing", ',') != ',' {
		t.Error("Rune mismatch")
	}
	if got := o.StringMap("m"); !reflect.DeepEqual(got, map[string]string{"a": "b"}) {
		t.Errorf("StringMap = %v", got)
	}
	if got := o.StringSlice("ss"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("StringSlice = %v", got)
	}
	if got := o.StringSlice("strs"); !reflect.DeepEqual(got, []string{"p"}) {
		t.Errorf("StringSlice([]string) = %v", got)
	}
	if !o.Has("nil") || o.Any("nil") != nil || o.Has("missing") {
		t.Error("Has/Any mismatch")
	}

	var nilOpts Options
	if nilOpts.String("x", "d") != "d" || nilOpts.Has("x") {
		t.Error("nil Options should return defaults")
	}
}

func TestOptions_Merge(t *testing.T) {
	t.Parallel()

	base := Options{"header": true, "skipEmptyLines": true}
	over := Options{"header": false, "delimiter": ";"}
	got := base.Merge(over)

	want := Options{"header": false, "skipEmptyLines": true, "delimiter": ";"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge = %v; want %v", got, want)
	}
	if base["header"] != true {
		t.Fatal("Merge mutated the receiver")
	}
	if got := Options(nil).Merge(nil); got == nil || len(got) != 0 {
		t.Fatalf("nil Merge nil = %#v; want empty map", got)
	}
}
