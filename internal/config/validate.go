// Package config provides the job model and helpers for csvtransform.
//
// This file adds a lightweight linter for Job values. It performs static
// checks over a decoded Job and returns a list of issues (errors and warnings)
// that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Job.
//
// Path is a dotted path into the job (e.g. "columns[2].options.fn").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be returned as an error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// DeriveFuncs lists the builtin derive functions and the option each one
// requires ("field", "fields" or "").
var DeriveFuncs = map[string]string{
	"field":      "field",
	"upper":      "field",
	"lower":      "field",
	"trim":       "field",
	"ascii_fold": "field",
	"slug":       "field",
	"fill_down":  "field",
	"concat":     "fields",
	"hash":       "fields",
	"strip_html": "field",
	"between":    "field",
}

// SpecialKinds lists the builtin special row processors.
var SpecialKinds = map[string]struct{}{
	"skip_if_any_empty": {},
	"catalog_merge":     {},
}

// StorageKinds lists the supported sinks.
var StorageKinds = map[string]struct{}{
	"postgres": {},
	"sqlite":   {},
}

// ValidateJob performs static validation of a Job. It does not mutate the job.
// Callers decide whether warnings are fatal.
func ValidateJob(j Job) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; runs will be labeled \"csvtransform\" in logs and metrics",
		})
	}
	issues = append(issues, validateParser(j.Parser, j.Columns)...)
	issues = append(issues, validateColumns(j)...)
	issues = append(issues, validateSpecialRows(j.SpecialRows)...)
	issues = append(issues, validateRemoveColumns(j.RemoveColumns)...)
	issues = append(issues, validateOutput(j.Output)...)
	issues = append(issues, validateStorage(j.Storage)...)

	return issues
}

func validateParser(p Parser, cols []Column) []Issue {
	var issues []Issue

	for _, key := range []string{"delimiter", "comment"} {
		if !p.Options.Has(key) {
			continue
		}
		s, ok := p.Options[key].(string)
		if !ok || utf8.RuneCountInString(s) != 1 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options." + key,
				Message:  fmt.Sprintf("%s must be a single character", key),
			})
		}
	}

	if !p.Options.Bool("header", true) {
		for i, c := range cols {
			if c.Kind == KindCopy {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     fmt.Sprintf("columns[%d]", i),
					Message:  fmt.Sprintf("copy column %q with header=false; input fields are named col_0, col_1, ...", c.Name),
				})
			}
		}
	}

	return issues
}

func validateColumns(j Job) []Issue {
	var issues []Issue

	if len(j.Columns) == 0 && !j.IsoColumns && len(j.SpecialRows) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "columns",
			Message:  "no columns, iso_columns or special_rows configured; every output row will be empty",
		})
		return issues
	}

	seen := make(map[string]int, len(j.Columns))
	for i, c := range j.Columns {
		path := fmt.Sprintf("columns[%d]", i)
		if c.Name == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".name",
				Message:  "column name must not be empty",
			})
		} else if prev, dup := seen[c.Name]; dup {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".name",
				Message:  fmt.Sprintf("column %q repeats columns[%d]; the later rule wins", c.Name, prev),
			})
		} else {
			seen[c.Name] = i
		}

		switch c.Kind {
		case KindCopy:
		case KindLiteral:
			if c.Value == nil {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".value",
					Message:  "literal column has no value; it will render as an empty string",
				})
			}
		case KindDerive:
			issues = append(issues, validateDerive(path, c.Options)...)
		case "":
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".kind",
				Message:  "column kind must not be empty",
			})
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".kind",
				Message:  fmt.Sprintf("unknown column kind %q; want copy, literal or derive", c.Kind),
			})
		}
	}

	return issues
}

func validateDerive(path string, o Options) []Issue {
	fn := o.String("fn", "")
	if fn == "" {
		return []Issue{{
			Severity: SeverityError,
			Path:     path + ".options.fn",
			Message:  "derive column requires options.fn",
		}}
	}
	need, ok := DeriveFuncs[fn]
	if !ok {
		return []Issue{{
			Severity: SeverityError,
			Path:     path + ".options.fn",
			Message:  fmt.Sprintf("unknown derive function %q", fn),
		}}
	}
	switch need {
	case "field":
		if o.String("field", "") == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     path + ".options.field",
				Message:  fmt.Sprintf("derive function %q requires options.field", fn),
			}}
		}
	case "fields":
		if len(o.StringSlice("fields")) == 0 {
			return []Issue{{
				Severity: SeverityError,
				Path:     path + ".options.fields",
				Message:  fmt.Sprintf("derive function %q requires a non-empty options.fields", fn),
			}}
		}
	}
	return nil
}

func validateSpecialRows(rows []SpecialRow) []Issue {
	var issues []Issue
	for i, s := range rows {
		path := fmt.Sprintf("special_rows[%d]", i)
		if _, ok := SpecialKinds[s.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".kind",
				Message:  fmt.Sprintf("unknown special row kind %q", s.Kind),
			})
			continue
		}
		if s.Kind == "skip_if_any_empty" && len(s.Options.StringSlice("fields")) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".options.fields",
				Message:  "skip_if_any_empty has no fields; it will never match",
			})
		}
	}
	return issues
}

func validateRemoveColumns(patterns []string) []Issue {
	var issues []Issue
	for i, p := range patterns {
		path := fmt.Sprintf("remove_columns[%d]", i)
		if p == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path,
				Message:  "empty pattern removes nothing",
			})
			continue
		}
		if expr, ok := RegexpBody(p); ok {
			if _, err := regexp.Compile(expr); err != nil {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path,
					Message:  fmt.Sprintf("invalid regexp: %v", err),
				})
			}
		}
	}
	return issues
}

func validateOutput(o Output) []Issue {
	if !o.Options.Has("delimiter") {
		return nil
	}
	s, ok := o.Options["delimiter"].(string)
	if !ok || utf8.RuneCountInString(s) != 1 {
		return []Issue{{
			Severity: SeverityError,
			Path:     "output.options.delimiter",
			Message:  "delimiter must be a single character",
		}}
	}
	return nil
}

func validateStorage(s Storage) []Issue {
	if strings.TrimSpace(s.Kind) == "" {
		return nil
	}

	var issues []Issue
	if _, ok := StorageKinds[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; want postgres or sqlite", s.Kind),
		})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	if s.DB.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	return issues
}

// RegexpBody reports whether s is written as "/expr/" and returns expr.
func RegexpBody(s string) (string, bool) {
	if len(s) >= 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") {
		return s[1 : len(s)-1], true
	}
	return "", false
}
