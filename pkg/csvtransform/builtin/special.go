// Package builtin contains reusable column rules and special row processors
// for csvtransform, plus registries that build them from job file options.
package builtin

import (
	"strconv"
	"strings"

	"csvtransform/pkg/csvtransform"
	"csvtransform/pkg/records"
)

// SkipIfAnyEmpty matches rows where any of fields is missing or blank after
// trimming, and emits an empty record for them. The row still counts as
// output; it encodes as a line of empty fields, which for a single output
// column is an empty line. Decoding that text again only keeps the row with
// skipEmptyLines set to false.
func SkipIfAnyEmpty(fields ...string) csvtransform.SpecialRowProcessor {
	return csvtransform.SpecialRowProcessor{
		Name: "skip_if_any_empty",
		Condition: csvtransform.When(func(row, _ *records.Record) (bool, error) {
			for _, f := range fields {
				if strings.TrimSpace(row.String(f)) == "" {
					return true, nil
				}
			}
			return false, nil
		}),
		FinalData: func(_, _ *records.Record) (*records.Record, error) {
			return records.New(), nil
		},
	}
}

// Catalog merge output columns.
const (
	ColHandle       = "Handle"
	ColImageSrc     = "Image Src"
	ColImagePos     = "Image Position"
	ColImageAlt     = "Image Alt Text"
	ColVariantImage = "Variant Image"
)

// CatalogMergeOptions names the input fields CatalogMerge reads. Empty
// fields take the defaults shown.
type CatalogMergeOptions struct {
	PositionField string // "position"
	HandleField   string // "handle"
	ImageField    string // "image"
	AltField      string // "alt"
}

func (o CatalogMergeOptions) withDefaults() CatalogMergeOptions {
	if o.PositionField == "" {
		o.PositionField = "position"
	}
	if o.HandleField == "" {
		o.HandleField = "handle"
	}
	if o.ImageField == "" {
		o.ImageField = "image"
	}
	if o.AltField == "" {
		o.AltField = "alt"
	}
	return o
}

// CatalogMerge handles the extra image rows of a product catalog export.
// A row whose position parses as an integer of 2 or more becomes an
// image-only row attached to the current product: its Handle comes from the
// last output row (or the row's own handle field when the last row has
// none) and only the five merge columns are emitted.
func CatalogMerge(opts CatalogMergeOptions) csvtransform.SpecialRowProcessor {
	opts = opts.withDefaults()
	return csvtransform.SpecialRowProcessor{
		Name: "catalog_merge",
		Condition: csvtransform.When(func(row, _ *records.Record) (bool, error) {
			_, ok := extraImagePosition(row.String(opts.PositionField))
			return ok, nil
		}),
		FinalData: func(row, last *records.Record) (*records.Record, error) {
			pos, _ := extraImagePosition(row.String(opts.PositionField))
			handle := last.String(ColHandle)
			if handle == "" {
				handle = row.String(opts.HandleField)
			}
			return records.Of(
				records.F(ColHandle, handle),
				records.F(ColImageSrc, row.String(opts.ImageField)),
				records.F(ColImagePos, pos),
				records.F(ColImageAlt, row.String(opts.AltField)),
				records.F(ColVariantImage, ""),
			), nil
		},
	}
}

func extraImagePosition(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 2 {
		return 0, false
	}
	return n, true
}
