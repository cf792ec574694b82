package builtin

import (
	"fmt"
	"sort"

	"csvtransform/internal/config"
	"csvtransform/pkg/csvtransform"
)

type deriveBuilder func(column string, o config.Options) csvtransform.Rule

var derivers = map[string]deriveBuilder{
	"field":      func(_ string, o config.Options) csvtransform.Rule { return Field(o.String("field", "")) },
	"upper":      func(_ string, o config.Options) csvtransform.Rule { return Upper(o.String("field", "")) },
	"lower":      func(_ string, o config.Options) csvtransform.Rule { return Lower(o.String("field", "")) },
	"trim":       func(_ string, o config.Options) csvtransform.Rule { return Trim(o.String("field", "")) },
	"ascii_fold": func(_ string, o config.Options) csvtransform.Rule { return ASCIIFold(o.String("field", "")) },
	"slug":       func(_ string, o config.Options) csvtransform.Rule { return Slug(o.String("field", "")) },
	"fill_down":  func(c string, o config.Options) csvtransform.Rule { return FillDown(c, o.String("field", "")) },
	"concat": func(_ string, o config.Options) csvtransform.Rule {
		return Concat(o.String("sep", ""), o.StringSlice("fields")...)
	},
	"hash":       func(_ string, o config.Options) csvtransform.Rule { return Hash(o.StringSlice("fields")...) },
	"strip_html": func(_ string, o config.Options) csvtransform.Rule { return StripHTML(o.String("field", "")) },
	"between": func(_ string, o config.Options) csvtransform.Rule {
		return Between(o.String("field", ""), o.String("start", ""), o.String("end", ""))
	},
}

// Derive builds the derived rule for output column from a job column's
// options. options["fn"] selects the function; see config.DeriveFuncs for the
// options each one needs.
func Derive(column string, o config.Options) (csvtransform.Rule, error) {
	fn := o.String("fn", "")
	b, ok := derivers[fn]
	if !ok {
		return csvtransform.Rule{}, fmt.Errorf("builtin: unknown derive function %q", fn)
	}
	return b(column, o), nil
}

// DeriveNames lists the registered derive functions, sorted.
func DeriveNames() []string {
	out := make([]string, 0, len(derivers))
	for k := range derivers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Special builds a special row processor of the given kind.
//
//	skip_if_any_empty: fields
//	catalog_merge:     position_field, handle_field, image_field, alt_field
func Special(kind string, o config.Options) (csvtransform.SpecialRowProcessor, error) {
	switch kind {
	case "skip_if_any_empty":
		return SkipIfAnyEmpty(o.StringSlice("fields")...), nil
	case "catalog_merge":
		return CatalogMerge(CatalogMergeOptions{
			PositionField: o.String("position_field", ""),
			HandleField:   o.String("handle_field", ""),
			ImageField:    o.String("image_field", ""),
			AltField:      o.String("alt_field", ""),
		}), nil
	default:
		return csvtransform.SpecialRowProcessor{}, fmt.Errorf("builtin: unknown special row kind %q", kind)
	}
}
