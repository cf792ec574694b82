package csvtransform

import (
	"fmt"

	"csvtransform/pkg/records"
)

// processor turns input rows into output rows one at a time, threading the
// last emitted row and registering output columns.
type processor struct {
	rules    Rules
	specials []SpecialRowProcessor
	iso      bool
	cols     *columnSet

	last *records.Record
	row  int
}

func newProcessor(rules Rules, opts Options, cols *columnSet) *processor {
	return &processor{
		rules:    rules,
		specials: opts.SpecialRowProcessors,
		iso:      opts.IsoColumns,
		cols:     cols,
	}
}

// process emits exactly one output record for row.
func (p *processor) process(row *records.Record) (*records.Record, error) {
	p.row++

	out, matched, err := p.special(row)
	if err != nil {
		return nil, err
	}
	if !matched {
		out, err = p.apply(row)
		if err != nil {
			return nil, err
		}
	}

	p.cols.addKeys(out)
	p.last = out
	return out, nil
}

// special runs the first matching special processor, if any.
func (p *processor) special(row *records.Record) (*records.Record, bool, error) {
	for i, sp := range p.specials {
		ok, err := sp.Condition.match(row, p.last)
		if err != nil {
			return nil, false, p.rowError(StageCondition, processorName(i, sp), err)
		}
		if !ok {
			continue
		}
		if sp.FinalData == nil {
			return records.New(), true, nil
		}
		out, err := sp.FinalData(row, p.last)
		if err != nil {
			return nil, false, p.rowError(StageFinalData, processorName(i, sp), err)
		}
		if out == nil {
			out = records.New()
		}
		return out, true, nil
	}
	return nil, false, nil
}

// apply builds the output from iso-columns and column rules.
func (p *processor) apply(row *records.Record) (*records.Record, error) {
	out := records.New()
	if p.iso {
		row.Each(out.Set)
	}
	for _, c := range p.rules {
		v, err := c.Rule.Eval(c.Name, row, p.last)
		if err != nil {
			return nil, p.rowError(StageRule, fmt.Sprintf("%q", c.Name), err)
		}
		out.Set(c.Name, v)
	}
	return out, nil
}

func (p *processor) rowError(stage, target string, err error) error {
	return &RowError{Row: p.row, Stage: stage, Target: target, Err: err}
}

func processorName(i int, sp SpecialRowProcessor) string {
	if sp.Name != "" {
		return fmt.Sprintf("%q", sp.Name)
	}
	return fmt.Sprintf("#%d", i)
}
