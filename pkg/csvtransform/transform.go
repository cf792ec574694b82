// Package csvtransform turns CSV input into new CSV output where every output
// column comes from a per-row rule.
//
// A run decodes the input, then processes rows strictly in order. For each
// row the first matching SpecialRowProcessor, if any, supplies the complete
// output record. Otherwise the output starts empty (or, with IsoColumns, as a
// copy of the input row) and every column rule is applied. Each output
// record is handed to the next row's functions as the last row. The output
// column order is the order in which names were first emitted, minus the
// RemoveColumns patterns.
package csvtransform

import (
	"fmt"
	"time"

	"csvtransform/internal/config"
	"csvtransform/internal/datasource/file"
	"csvtransform/internal/metrics"
	pcsv "csvtransform/internal/parser/csv"
	"csvtransform/pkg/records"

	"github.com/sirupsen/logrus"
)

// DefaultJob labels runs whose Options.Job is empty.
const DefaultJob = "csvtransform"

// maxLoggedDecodeErrors caps how many decode errors are logged one by one.
const maxLoggedDecodeErrors = 10

// DecodeError is a non-fatal problem reported while decoding input.
type DecodeError = pcsv.DecodeError

// Options configures a run. The zero value decodes with a header row and
// skips empty lines.
type Options struct {
	// IsFilePath treats the input argument as a path to read.
	IsFilePath bool

	// ParseOptions are merged over {"header": true, "skipEmptyLines": true}
	// and passed to the decoder.
	ParseOptions map[string]any

	// SpecialRowProcessors are tried in order for every row.
	SpecialRowProcessors []SpecialRowProcessor

	// IsoColumns seeds each normally processed output row with a copy of the
	// input row.
	IsoColumns bool

	// RemoveColumns are applied in order to the final column set.
	RemoveColumns []RemovePattern

	// OutputOptions are passed to the encoder (delimiter, crlf, header).
	OutputOptions map[string]any

	// Logger receives decode warnings. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	// Job labels logs and metrics.
	Job string
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

func (o Options) job() string {
	if o.Job != "" {
		return o.Job
	}
	return DefaultJob
}

// Stats summarizes a run.
type Stats struct {
	Decoded      int
	Emitted      int
	DecodeErrors int
	Duration     time.Duration
}

// Result is everything a run produced.
type Result struct {
	// Text is the encoded output.
	Text string
	// Records are the output rows, one per decoded input row.
	Records []*records.Record
	// Columns is the final output column order.
	Columns      []string
	DecodeErrors []DecodeError
	Stats        Stats
}

// Run transforms input (CSV content, or a path when opts.IsFilePath is set)
// with rules. Decode problems are logged as warnings and never abort; an
// error from any rule or processor function aborts the run with a *RowError.
func Run(input string, rules Rules, opts Options) (res *Result, err error) {
	start := time.Now()
	job := opts.job()
	defer func() {
		metrics.RecordStep(job, "transform", err, time.Since(start))
	}()

	content := input
	if opts.IsFilePath {
		if input == "" {
			return nil, ErrNoInput
		}
		content, err = file.ReadText(input)
		if err != nil {
			return nil, err
		}
	}

	recs, decodeErrs := pcsv.Decode(content, pcsv.DecodeOptionsFrom(config.Options(opts.ParseOptions)))
	if len(decodeErrs) > 0 {
		warnDecodeErrors(opts.logger().WithField("job", job), decodeErrs)
	}

	cols := newColumnSet()
	proc := newProcessor(rules, opts, cols)
	out := make([]*records.Record, 0, len(recs))
	for _, row := range recs {
		rec, err := proc.process(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	columns := cols.finalize(opts.RemoveColumns)
	text, err := pcsv.Encode(out, columns, pcsv.EncodeOptionsFrom(config.Options(opts.OutputOptions)))
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}

	metrics.RecordRow(job, "decoded", int64(len(recs)))
	metrics.RecordRow(job, "emitted", int64(len(out)))
	metrics.RecordRow(job, "decode_errors", int64(len(decodeErrs)))

	return &Result{
		Text:         text,
		Records:      out,
		Columns:      columns,
		DecodeErrors: decodeErrs,
		Stats: Stats{
			Decoded:      len(recs),
			Emitted:      len(out),
			DecodeErrors: len(decodeErrs),
			Duration:     time.Since(start),
		},
	}, nil
}

// Transform is Run returning only the encoded text.
func Transform(input string, rules Rules, opts Options) (string, error) {
	res, err := Run(input, rules, opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// TransformToFile reads inputPath, transforms it and writes the output to
// outputPath, replacing any existing content.
func TransformToFile(inputPath, outputPath string, rules Rules, opts Options) error {
	opts.IsFilePath = true
	text, err := Transform(inputPath, rules, opts)
	if err != nil {
		return err
	}
	return file.WriteText(outputPath, text)
}

func warnDecodeErrors(log logrus.FieldLogger, errs []DecodeError) {
	log.WithField("count", len(errs)).Warn("csv decode reported errors; continuing with decoded rows")
	for i, e := range errs {
		if i == maxLoggedDecodeErrors {
			log.Warnf("%d more decode errors not shown", len(errs)-i)
			return
		}
		log.WithFields(logrus.Fields{
			"line": e.Line,
			"code": e.Code,
		}).Warn(e.Message)
	}
}
