package builtin

import (
	"strings"

	"csvtransform/pkg/csvtransform"
)

// StripHTML drops <...> tag sequences from field and collapses the remaining
// white space, turning an HTML body cell into plain text. It is a scanner,
// not a parser: a literal '<' in text starts a tag.
func StripHTML(field string) csvtransform.Rule {
	return stringRule(field, func(s string) string { return collapseSpace(stripTags(s)) })
}

// Between yields the part of field after the first start and before the
// next end. An empty start means the beginning, an empty end the end of the
// value. When a marker is missing the result is "".
func Between(field, start, end string) csvtransform.Rule {
	return stringRule(field, func(s string) string {
		v, _ := between(s, start, end)
		return v
	})
}

func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapseSpace replaces runs of space, tab, CR and LF with one space and
// trims the result.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			if !space {
				b.WriteByte(' ')
				space = true
			}
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimSpace(b.String())
}

func between(s, start, end string) (string, bool) {
	from := 0
	if start != "" {
		i := strings.Index(s, start)
		if i < 0 {
			return "", false
		}
		from = i + len(start)
	}
	to := len(s)
	if end != "" {
		i := strings.Index(s[from:], end)
		if i < 0 {
			return "", false
		}
		to = from + i
	}
	return s[from:to], from < to
}
