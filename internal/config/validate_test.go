package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validJob() Job {
	return Job{
		Job: "people",
		Columns: []Column{
			{Name: "Full Name", Kind: KindDerive, Options: Options{"fn": "upper", "field": "Name"}},
			{Name: "Status", Kind: KindLiteral, Value: "Active"},
			{Name: "Age", Kind: KindCopy},
		},
		SpecialRows:   []SpecialRow{{Kind: "skip_if_any_empty", Options: Options{"fields": []any{"Age"}}}},
		RemoveColumns: []string{"Age", "/^temp_/"},
	}
}

func TestValidateJob_ValidHasNoIssues(t *testing.T) {
	if issues := ValidateJob(validJob()); len(issues) != 0 {
		t.Fatalf("expected no issues; got %+v", issues)
	}
}

func TestValidateJob_Table(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(j *Job)
		sev    IssueSeverity
		path   string
		substr string
	}{
		{
			name:   "empty_job_name",
			mutate: func(j *Job) { j.Job = " " },
			sev:    SeverityWarning, path: "job", substr: "job is empty",
		},
		{
			name:   "nothing_configured",
			mutate: func(j *Job) { j.Columns = nil; j.SpecialRows = nil },
			sev:    SeverityWarning, path: "columns", substr: "every output row will be empty",
		},
		{
			name:   "empty_column_name",
			mutate: func(j *Job) { j.Columns[1].Name = "" },
			sev:    SeverityError, path: "columns[1].name", substr: "must not be empty",
		},
		{
			name:   "duplicate_column_name",
			mutate: func(j *Job) { j.Columns[2].Name = "Status" },
			sev:    SeverityWarning, path: "columns[2].name", substr: "later rule wins",
		},
		{
			name:   "unknown_kind",
			mutate: func(j *Job) { j.Columns[0].Kind = "lookup" },
			sev:    SeverityError, path: "columns[0].kind", substr: "unknown column kind",
		},
		{
			name:   "missing_kind",
			mutate: func(j *Job) { j.Columns[0].Kind = "" },
			sev:    SeverityError, path: "columns[0].kind", substr: "must not be empty",
		},
		{
			name:   "literal_without_value",
			mutate: func(j *Job) { j.Columns[1].Value = nil },
			sev:    SeverityWarning, path: "columns[1].value", substr: "empty string",
		},
		{
			name:   "derive_without_fn",
			mutate: func(j *Job) { j.Columns[0].Options = Options{} },
			sev:    SeverityError, path: "columns[0].options.fn", substr: "requires options.fn",
		},
		{
			name:   "derive_unknown_fn",
			mutate: func(j *Job) { j.Columns[0].Options["fn"] = "reverse" },
			sev:    SeverityError, path: "columns[0].options.fn", substr: "unknown derive function",
		},
		{
			name:   "derive_missing_field",
			mutate: func(j *Job) { delete(j.Columns[0].Options, "field") },
			sev:    SeverityError, path: "columns[0].options.field", substr: "requires options.field",
		},
		{
			name:   "derive_missing_fields",
			mutate: func(j *Job) { j.Columns[0].Options = Options{"fn": "concat"} },
			sev:    SeverityError, path: "columns[0].options.fields", substr: "non-empty options.fields",
		},
		{
			name:   "unknown_special",
			mutate: func(j *Job) { j.SpecialRows[0].Kind = "drop" },
			sev:    SeverityError, path: "special_rows[0].kind", substr: "unknown special row kind",
		},
		{
			name:   "skip_without_fields",
			mutate: func(j *Job) { j.SpecialRows[0].Options = Options{} },
			sev:    SeverityWarning, path: "special_rows[0].options.fields", substr: "never match",
		},
		{
			name:   "bad_regexp",
			mutate: func(j *Job) { j.RemoveColumns = []string{"/([/"} },
			sev:    SeverityError, path: "remove_columns[0]", substr: "invalid regexp",
		},
		{
			name:   "empty_remove_pattern",
			mutate: func(j *Job) { j.RemoveColumns = []string{""} },
			sev:    SeverityWarning, path: "remove_columns[0]", substr: "removes nothing",
		},
		{
			name:   "bad_parser_delimiter",
			mutate: func(j *Job) { j.Parser.Options = Options{"delimiter": ";;"} },
			sev:    SeverityError, path: "parser.options.delimiter", substr: "single character",
		},
		{
			name:   "copy_without_header",
			mutate: func(j *Job) { j.Parser.Options = Options{"header": false} },
			sev:    SeverityWarning, path: "columns[2]", substr: "col_0",
		},
		{
			name:   "bad_output_delimiter",
			mutate: func(j *Job) { j.Output.Options = Options{"delimiter": 9.0} },
			sev:    SeverityError, path: "output.options.delimiter", substr: "single character",
		},
		{
			name:   "unknown_storage",
			mutate: func(j *Job) { j.Storage = Storage{Kind: "oracle", DB: DBConfig{DSN: "x", Table: "t"}} },
			sev:    SeverityError, path: "storage.kind", substr: "unknown storage kind",
		},
		{
			name:   "storage_missing_dsn",
			mutate: func(j *Job) { j.Storage = Storage{Kind: "sqlite", DB: DBConfig{Table: "t"}} },
			sev:    SeverityError, path: "storage.db.dsn", substr: "must not be empty",
		},
		{
			name:   "storage_missing_table",
			mutate: func(j *Job) { j.Storage = Storage{Kind: "postgres", DB: DBConfig{DSN: "postgres://x"}} },
			sev:    SeverityError, path: "storage.db.table", substr: "must not be empty",
		},
		{
			name:   "storage_negative_batch",
			mutate: func(j *Job) { j.Storage = Storage{Kind: "sqlite", DB: DBConfig{DSN: "x", Table: "t", BatchSize: -1}} },
			sev:    SeverityError, path: "storage.db.batch_size", substr: "negative",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			j := validJob()
			tc.mutate(&j)
			issues := ValidateJob(j)
			if !hasIssue(t, issues, tc.sev, tc.path, tc.substr) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tc.sev, tc.path, tc.substr, issues)
			}
		})
	}
}

func TestHasErrors(t *testing.T) {
	if HasErrors([]Issue{{Severity: SeverityWarning}}) {
		t.Fatal("warnings alone should not count as errors")
	}
	if !HasErrors([]Issue{{Severity: SeverityWarning}, {Severity: SeverityError}}) {
		t.Fatal("expected HasErrors to detect the error")
	}
}

func TestIssue_Error(t *testing.T) {
	iss := Issue{Severity: SeverityError, Path: "columns[0].kind", Message: "bad"}
	if got, want := iss.Error(), "error at columns[0].kind: bad"; got != want {
		t.Fatalf("Error() = %q; want %q", got, want)
	}
}

func TestRegexpBody(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/^temp_/", "^temp_", true},
		{"Age", "", false},
		{"/", "", false},
		{"/a", "", false},
	}
	for _, tc := range tests {
		got, ok := RegexpBody(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("RegexpBody(%q) = %q,%v; want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
