package csvtransform

import (
	"errors"
	"fmt"
)

// ErrNoInput is returned when a file path input is empty.
var ErrNoInput = errors.New("csvtransform: no input")

// Stages reported by RowError.
const (
	StageCondition = "condition"
	StageFinalData = "final_data"
	StageRule      = "rule"
)

// RowError reports a failure raised by a rule, condition or final-data
// function. It aborts the run.
type RowError struct {
	// Row is the 1-based index of the decoded data row.
	Row int
	// Stage is one of StageCondition, StageFinalData or StageRule.
	Stage string
	// Target names the column (rules) or processor (conditions, final data).
	Target string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s %s: %v", e.Row, e.Stage, e.Target, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
