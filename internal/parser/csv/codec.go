// Package csv is the CSV codec used by the transformation pipeline. Decode
// turns delimited text into ordered records keyed by header name and collects
// non-fatal diagnostics instead of aborting; Encode writes records back out
// using an explicit column order.
//
// Both directions are built on encoding/csv and configured from the free-form
// option maps carried by job files (config.Options).
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"csvtransform/internal/config"
	"csvtransform/pkg/records"
)

// Decode error codes.
const (
	CodeParse         = "ParseError"
	CodeTooFewFields  = "TooFewFields"
	CodeTooManyFields = "TooManyFields"
)

// DefaultParseOptions are the decode defaults; caller options are merged over
// them.
var DefaultParseOptions = config.Options{
	"header":         true,
	"skipEmptyLines": true,
}

// DecodeError is a non-fatal problem found while decoding one input line.
type DecodeError struct {
	// Line is the 1-based source line the problem was found on.
	Line int
	// Code classifies the problem (ParseError, TooFewFields, TooManyFields).
	Code string
	// Message is human-readable.
	Message string
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Code, e.Message)
}

// DecodeOptions configures Decode. Use DecodeOptionsFrom to build it from a
// job's option map.
type DecodeOptions struct {
	// Header treats the first row as column names. Without it, fields are
	// keyed col_0, col_1, ...
	Header bool

	// SkipGreedy also drops rows whose fields are all blank.
	SkipGreedy bool

	// KeepEmptyLines decodes each empty line after the header as a record
	// with a single empty field (skipEmptyLines: false).
	KeepEmptyLines bool

	// Comma is the field delimiter; zero means ','.
	Comma rune

	// Comment starts a comment line when non-zero.
	Comment rune

	// TrimSpace trims leading/trailing white space from values and headers.
	TrimSpace bool

	// LazyQuotes relaxes quote handling in the reader.
	LazyQuotes bool

	// NormalizeHeaders lower-cases headers and replaces spaces with
	// underscores.
	NormalizeHeaders bool

	// HeaderMap renames source headers; applied before normalization.
	HeaderMap map[string]string
}

// DecodeOptionsFrom merges o over DefaultParseOptions and converts the result.
//
// Recognized keys: header, skipEmptyLines (bool or "greedy"), delimiter,
// comment, trimSpace, lazyQuotes, normalizeHeaders, headerMap.
func DecodeOptionsFrom(o config.Options) DecodeOptions {
	m := DefaultParseOptions.Merge(o)
	opt := DecodeOptions{
		Header:           m.Bool("header", true),
		Comma:            m.Rune("delimiter", ','),
		Comment:          m.Rune("comment", 0),
		TrimSpace:        m.Bool("trimSpace", false),
		LazyQuotes:       m.Bool("lazyQuotes", false),
		NormalizeHeaders: m.Bool("normalizeHeaders", false),
	}
	switch v := m["skipEmptyLines"].(type) {
	case string:
		opt.SkipGreedy = strings.EqualFold(v, "greedy")
	case bool:
		opt.KeepEmptyLines = !v
	}
	if hm := m.StringMap("headerMap"); len(hm) > 0 {
		opt.HeaderMap = hm
	}
	return opt
}

// Decode parses text into records. Problems with individual lines are
// returned as DecodeErrors and never abort decoding: rows with the wrong
// width are kept (missing fields absent, extra fields dropped), rows the
// reader cannot parse are skipped.
func Decode(text string, opt DecodeOptions) ([]*records.Record, []DecodeError) {
	cr := csv.NewReader(strings.NewReader(text))
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.Comment = opt.Comment
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	d := decoder{opt: opt}
	// off and line track where the reader resumes, so the empty lines it
	// swallows before the next record can be recovered.
	off, line := int64(0), 1

	for {
		row, err := cr.Read()
		next := cr.InputOffset()
		if err == io.EOF {
			d.emptyLines(text[off:], line, 0)
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				d.emptyLines(text[off:next], line, pe.StartLine)
			}
			d.errs = append(d.errs, parseError(err))
			if d.headers == nil && opt.Header {
				// Without a header nothing after it can be keyed.
				return nil, d.errs
			}
			off, line = next, line+strings.Count(text[off:next], "\n")
			continue
		}
		start, _ := cr.FieldPos(0)
		d.emptyLines(text[off:next], line, start)
		off, line = next, line+strings.Count(text[off:next], "\n")

		if opt.TrimSpace {
			for i := range row {
				row[i] = strings.TrimSpace(row[i])
			}
		}

		if opt.Header && d.headers == nil {
			d.headers = normalizeHeaders(row, opt)
			continue
		}

		if opt.SkipGreedy && allBlank(row) {
			continue
		}
		d.add(start, row)
	}

	return d.out, d.errs
}

type decoder struct {
	opt     DecodeOptions
	headers []string
	out     []*records.Record
	errs    []DecodeError
}

// emptyLines adds a record for every empty line in seg, which begins on
// source line first. Lines from stop on belong to the next record; stop <= 0
// scans to the end of seg. A final line without a newline is not counted.
func (d *decoder) emptyLines(seg string, first, stop int) {
	if !d.opt.KeepEmptyLines || (d.opt.Header && d.headers == nil) {
		return
	}
	for n := first; stop <= 0 || n < stop; n++ {
		l, rest, found := strings.Cut(seg, "\n")
		if !found {
			return
		}
		if l == "" || l == "\r" {
			d.add(n, []string{""})
		}
		seg = rest
	}
}

// add keys row by the header (or col_N) and records width mismatches.
func (d *decoder) add(line int, row []string) {
	if d.opt.Header {
		switch {
		case len(row) < len(d.headers):
			d.errs = append(d.errs, DecodeError{
				Line:    line,
				Code:    CodeTooFewFields,
				Message: fmt.Sprintf("expected %d fields, got %d", len(d.headers), len(row)),
			})
		case len(row) > len(d.headers):
			d.errs = append(d.errs, DecodeError{
				Line:    line,
				Code:    CodeTooManyFields,
				Message: fmt.Sprintf("expected %d fields, got %d", len(d.headers), len(row)),
			})
		}
	}

	rec := records.New()
	if d.opt.Header {
		for i, h := range d.headers {
			if i >= len(row) {
				break
			}
			rec.Set(h, row[i])
		}
	} else {
		for i, val := range row {
			rec.Set(keyFor(i), val)
		}
	}
	d.out = append(d.out, rec)
}

func parseError(err error) DecodeError {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return DecodeError{Line: pe.Line, Code: CodeParse, Message: pe.Err.Error()}
	}
	return DecodeError{Code: CodeParse, Message: err.Error()}
}

func allBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// keyFor synthesizes the "col_N" key used for unnamed columns.
func keyFor(idx int) string { return fmt.Sprintf("col_%d", idx) }

// normalizeHeaders produces the record keys for a header row: BOM stripped,
// HeaderMap applied, optional normalization, blanks replaced by col_N and
// duplicates suffixed _1, _2, ...
func normalizeHeaders(h []string, opt DecodeOptions) []string {
	h = StripHeaderBOM(h)
	res := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, col := range h {
		c := col
		if m, ok := opt.HeaderMap[c]; ok {
			c = m
		} else if opt.NormalizeHeaders {
			c = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c)), " ", "_")
		}
		if c == "" {
			c = keyFor(i)
		}
		if n, dup := seen[c]; dup {
			seen[c] = n + 1
			c = fmt.Sprintf("%s_%d", c, n+1)
		} else {
			seen[c] = 0
		}
		res[i] = c
	}
	return res
}

// EncodeOptions configures Encode.
type EncodeOptions struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// UseCRLF ends lines with \r\n instead of \n.
	UseCRLF bool
	// Header writes the column names as the first row.
	Header bool
}

// EncodeOptionsFrom converts a job's output option map. Recognized keys:
// delimiter, crlf, header (default true).
func EncodeOptionsFrom(o config.Options) EncodeOptions {
	return EncodeOptions{
		Comma:   o.Rune("delimiter", ','),
		UseCRLF: o.Bool("crlf", false),
		Header:  o.Bool("header", true),
	}
}

// Encode writes recs using exactly the given column order. Fields a record
// lacks are written empty; fields outside columns are ignored. With no
// columns the output is empty.
func Encode(recs []*records.Record, columns []string, opt EncodeOptions) (string, error) {
	if len(columns) == 0 {
		return "", nil
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	if opt.Comma != 0 {
		w.Comma = opt.Comma
	}
	w.UseCRLF = opt.UseCRLF

	if opt.Header {
		if err := w.Write(columns); err != nil {
			return "", fmt.Errorf("write csv header: %w", err)
		}
	}
	row := make([]string, len(columns))
	for i, rec := range recs {
		for j, c := range columns {
			row[j] = rec.String(c)
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return b.String(), nil
}
