package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"csvtransform/internal/config"
	_ "csvtransform/internal/storage/sqlite"

	logtest "github.com/sirupsen/logrus/hooks/test"
)

const catalogJob = `{
  "job": "catalog",
  "columns": [
    { "name": "Handle", "kind": "derive", "options": { "fn": "slug", "field": "Title" } },
    { "name": "Title",  "kind": "copy" },
    { "name": "Status", "kind": "literal", "value": "active" },
    { "name": "Price",  "kind": "copy" }
  ],
  "special_rows":   [ { "kind": "skip_if_any_empty", "options": { "fields": ["Title"] } } ],
  "remove_columns": [ "/^Pri/" ]
}`

const catalogInput = "Title,Price\nRed Shirt,10\n,5\n"

func mustDecode(t *testing.T, s string) config.Job {
	t.Helper()
	j, err := config.Decode([]byte(s))
	if err != nil {
		t.Fatalf("decode job: %v", err)
	}
	return j
}

func TestCompileAndRun(t *testing.T) {
	t.Parallel()

	p, err := Compile(mustDecode(t, catalogJob))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.Name != "catalog" {
		t.Fatalf("Name = %q", p.Name)
	}
	if got := p.Rules.Names(); len(got) != 4 || got[0] != "Handle" {
		t.Fatalf("rule names = %v", got)
	}

	log, _ := logtest.NewNullLogger()
	res, err := p.Run(catalogInput, log)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "Handle,Title,Status\nred-shirt,Red Shirt,active\n,,\n"
	if res.Text != want {
		t.Fatalf("Run text =\n%q\nwant\n%q", res.Text, want)
	}
	if res.Stats.Emitted != 2 {
		t.Fatalf("Emitted = %d, want 2", res.Stats.Emitted)
	}
}

func TestRun_NumericLiterals(t *testing.T) {
	t.Parallel()

	p, err := Compile(mustDecode(t, `{"columns": [
	  { "name": "Price", "kind": "literal", "value": 1500000 },
	  { "name": "Id",    "kind": "literal", "value": 12345678901 },
	  { "name": "Rate",  "kind": "literal", "value": 0.25 }
	]}`))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	log, _ := logtest.NewNullLogger()
	res, err := p.Run("Sku\nA-1\n", log)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := "Price,Id,Rate\n1500000,12345678901,0.25\n"; res.Text != want {
		t.Fatalf("Run text = %q, want %q", res.Text, want)
	}
}

func TestCompile_DefaultName(t *testing.T) {
	t.Parallel()

	p, err := Compile(config.Job{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.Name != "csvtransform" {
		t.Fatalf("Name = %q, want csvtransform", p.Name)
	}
	if p.HasSink() {
		t.Fatal("empty job should have no sink")
	}
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		job  config.Job
	}{
		{"unknown kind", config.Job{Columns: []config.Column{{Name: "a", Kind: "magic"}}}},
		{"unknown derive", config.Job{Columns: []config.Column{{Name: "a", Kind: "derive", Options: config.Options{"fn": "nope"}}}}},
		{"unknown special", config.Job{SpecialRows: []config.SpecialRow{{Kind: "nope"}}}},
		{"bad pattern", config.Job{RemoveColumns: []string{"/[/"}}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Compile(tc.job); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFromJob_Invalid(t *testing.T) {
	t.Parallel()

	j := config.Job{
		Job:     "bad",
		Columns: []config.Column{{Name: "a", Kind: "derive", Options: config.Options{"fn": "nope"}}},
	}
	log, _ := logtest.NewNullLogger()
	_, err := FromJob(j, log)
	var inv *InvalidJobError
	if !errors.As(err, &inv) {
		t.Fatalf("err = %v, want *InvalidJobError", err)
	}
	if !config.HasErrors(inv.Issues) {
		t.Fatal("InvalidJobError carries no error issues")
	}
}

func TestFromJob_LogsWarnings(t *testing.T) {
	t.Parallel()

	log, hook := logtest.NewNullLogger()
	if _, err := FromJob(config.Job{}, log); err != nil {
		t.Fatalf("FromJob: %v", err)
	}
	if len(hook.AllEntries()) == 0 {
		t.Fatal("expected warnings to be logged")
	}
}

func TestLoadFile_RunFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jobPath := filepath.Join(dir, "job.json")
	inPath := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(jobPath, []byte(catalogJob), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(inPath, []byte(catalogInput), 0o644); err != nil {
		t.Fatal(err)
	}

	log, _ := logtest.NewNullLogger()
	p, err := LoadFile(jobPath, log)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	res, err := p.RunFile(inPath, log)
	if err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(res.Records))
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json"), log); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadFile(missing) err = %v", err)
	}
}

func TestStore_NoSink(t *testing.T) {
	t.Parallel()

	p, err := Compile(config.Job{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Store(context.Background(), nil, nil); !errors.Is(err, ErrNoSink) {
		t.Fatalf("Store err = %v, want ErrNoSink", err)
	}
}

func TestStore_SQLite(t *testing.T) {
	t.Parallel()

	j := mustDecode(t, catalogJob)
	j.Storage = config.Storage{
		Kind: "sqlite",
		DB: config.DBConfig{
			DSN:             filepath.Join(t.TempDir(), "out.db"),
			Table:           "products",
			AutoCreateTable: true,
		},
	}
	log, _ := logtest.NewNullLogger()
	p, err := FromJob(j, log)
	if err != nil {
		t.Fatalf("FromJob: %v", err)
	}
	res, err := p.Run(catalogInput, log)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	n, err := p.Store(context.Background(), res, log)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if n != 2 {
		t.Fatalf("Store loaded %d rows, want 2", n)
	}
}
