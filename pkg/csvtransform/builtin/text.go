package builtin

import (
	"strings"
	"unicode"

	"csvtransform/pkg/csvtransform"
	"csvtransform/pkg/records"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func stringRule(field string, fn func(string) string) csvtransform.Rule {
	return csvtransform.Func(func(row, _ *records.Record) any {
		return fn(row.String(field))
	})
}

// Field copies the input field under the rule's column name. Absent fields
// yield "".
func Field(field string) csvtransform.Rule {
	return stringRule(field, func(s string) string { return s })
}

// Upper upper-cases field.
func Upper(field string) csvtransform.Rule { return stringRule(field, strings.ToUpper) }

// Lower lower-cases field.
func Lower(field string) csvtransform.Rule { return stringRule(field, strings.ToLower) }

// Trim strips surrounding white space from field.
func Trim(field string) csvtransform.Rule { return stringRule(field, strings.TrimSpace) }

// ASCIIFold removes diacritics from field ("Crème Brûlée" -> "Creme Brulee").
func ASCIIFold(field string) csvtransform.Rule { return stringRule(field, foldASCII) }

// Slug turns field into a lower-case, dash-separated ASCII identifier.
func Slug(field string) csvtransform.Rule { return stringRule(field, slugify) }

// Concat joins the named fields with sep. Absent fields contribute "".
func Concat(sep string, fields ...string) csvtransform.Rule {
	return csvtransform.Func(func(row, _ *records.Record) any {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = row.String(f)
		}
		return strings.Join(parts, sep)
	})
}

// FillDown yields field from the row, or the previous output row's value for
// column when the row's value is blank. column is the rule's own output
// name.
func FillDown(column, field string) csvtransform.Rule {
	return csvtransform.Func(func(row, last *records.Record) any {
		if s := row.String(field); strings.TrimSpace(s) != "" {
			return s
		}
		return last.String(column)
	})
}

// foldASCII decomposes s, drops nonspacing marks and recomposes it.
func foldASCII(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func slugify(s string) string {
	s = strings.ToLower(foldASCII(strings.TrimSpace(s)))

	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
