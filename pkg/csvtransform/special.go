package csvtransform

import "csvtransform/pkg/records"

// ConditionFunc decides whether a special row processor applies to row.
type ConditionFunc func(row, last *records.Record) (bool, error)

// FinalDataFunc builds the complete output record for a matched row. A nil
// record is treated as empty.
type FinalDataFunc func(row, last *records.Record) (*records.Record, error)

// Condition is either a constant or a function of the row. The zero value
// never matches.
type Condition struct {
	fixed bool
	fn    ConditionFunc
}

// Bool returns a constant condition.
func Bool(b bool) Condition { return Condition{fixed: b} }

// When returns a condition evaluated per row.
func When(fn ConditionFunc) Condition { return Condition{fn: fn} }

func (c Condition) match(row, last *records.Record) (bool, error) {
	if c.fn == nil {
		return c.fixed, nil
	}
	return c.fn(row, last)
}

// SpecialRowProcessor overrides normal processing for rows its Condition
// matches. The output of FinalData is used verbatim: neither iso-columns nor
// column rules are applied to it.
type SpecialRowProcessor struct {
	// Name labels the processor in errors and logs. Optional.
	Name      string
	Condition Condition
	FinalData FinalDataFunc
}
