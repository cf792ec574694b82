// Package job compiles a config.Job into the rules and options consumed by
// csvtransform.Run and drives the optional storage sink for the result.
package job

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"csvtransform/internal/config"
	"csvtransform/internal/storage"
	"csvtransform/pkg/csvtransform"
	"csvtransform/pkg/csvtransform/builtin"

	"github.com/sirupsen/logrus"
)

// Plan is a compiled job, ready to run any number of times.
type Plan struct {
	// Name labels logs and metrics. Empty jobs use csvtransform.DefaultJob.
	Name string

	Rules         csvtransform.Rules
	Specials      []csvtransform.SpecialRowProcessor
	IsoColumns    bool
	RemoveColumns []csvtransform.RemovePattern
	ParseOptions  map[string]any
	OutputOptions map[string]any

	// Storage is the job's sink configuration. An empty Kind disables it.
	Storage config.Storage
}

// InvalidJobError reports the error-severity validation issues of a job.
type InvalidJobError struct {
	Issues []config.Issue
}

func (e *InvalidJobError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, iss := range e.Issues {
		if iss.Severity == config.SeverityError {
			msgs = append(msgs, iss.Error())
		}
	}
	return "invalid job: " + strings.Join(msgs, "; ")
}

// Compile turns j into a Plan. It does not validate j; use LoadFile or
// config.ValidateJob first for friendlier errors.
func Compile(j config.Job) (*Plan, error) {
	p := &Plan{
		Name:          j.Job,
		IsoColumns:    j.IsoColumns,
		ParseOptions:  map[string]any(j.Parser.Options),
		OutputOptions: map[string]any(j.Output.Options),
		Storage:       j.Storage,
	}
	if p.Name == "" {
		p.Name = csvtransform.DefaultJob
	}

	for i, c := range j.Columns {
		var rule csvtransform.Rule
		switch c.Kind {
		case config.KindCopy:
			rule = csvtransform.Copy()
		case config.KindLiteral:
			rule = csvtransform.Literal(c.Value)
		case config.KindDerive:
			r, err := builtin.Derive(c.Name, c.Options)
			if err != nil {
				return nil, fmt.Errorf("columns[%d] %q: %w", i, c.Name, err)
			}
			rule = r
		default:
			return nil, fmt.Errorf("columns[%d] %q: unknown kind %q", i, c.Name, c.Kind)
		}
		p.Rules = append(p.Rules, csvtransform.Col(c.Name, rule))
	}

	for i, s := range j.SpecialRows {
		sp, err := builtin.Special(s.Kind, s.Options)
		if err != nil {
			return nil, fmt.Errorf("special_rows[%d]: %w", i, err)
		}
		p.Specials = append(p.Specials, sp)
	}

	for i, s := range j.RemoveColumns {
		rp, err := csvtransform.ParseRemovePattern(s)
		if err != nil {
			return nil, fmt.Errorf("remove_columns[%d]: %w", i, err)
		}
		p.RemoveColumns = append(p.RemoveColumns, rp)
	}
	return p, nil
}

// LoadFile reads, validates and compiles the job file at path. Warnings are
// logged; error-severity issues are returned as *InvalidJobError.
func LoadFile(path string, log logrus.FieldLogger) (*Plan, error) {
	j, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return FromJob(j, log)
}

// FromJob validates and compiles j.
func FromJob(j config.Job, log logrus.FieldLogger) (*Plan, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	issues := config.ValidateJob(j)
	for _, iss := range issues {
		if iss.Severity != config.SeverityError {
			log.WithField("path", iss.Path).Warn(iss.Message)
		}
	}
	if config.HasErrors(issues) {
		return nil, &InvalidJobError{Issues: issues}
	}
	return Compile(j)
}

// Options builds the run options for this plan.
func (p *Plan) Options(log logrus.FieldLogger) csvtransform.Options {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return csvtransform.Options{
		ParseOptions:         p.ParseOptions,
		SpecialRowProcessors: p.Specials,
		IsoColumns:           p.IsoColumns,
		RemoveColumns:        p.RemoveColumns,
		OutputOptions:        p.OutputOptions,
		Logger:               log.WithField("job", p.Name),
		Job:                  p.Name,
	}
}

// Run transforms CSV text.
func (p *Plan) Run(input string, log logrus.FieldLogger) (*csvtransform.Result, error) {
	return csvtransform.Run(input, p.Rules, p.Options(log))
}

// RunFile transforms the CSV file at path.
func (p *Plan) RunFile(path string, log logrus.FieldLogger) (*csvtransform.Result, error) {
	opts := p.Options(log)
	opts.IsFilePath = true
	return csvtransform.Run(path, p.Rules, opts)
}

// ErrNoSink is returned by Store when the job has no storage configured.
var ErrNoSink = errors.New("job: no storage configured")

// HasSink reports whether the job configures a storage sink.
func (p *Plan) HasSink() bool { return p.Storage.Kind != "" }

// Store loads res into the job's storage sink using res.Columns as the
// destination columns.
func (p *Plan) Store(ctx context.Context, res *csvtransform.Result, log logrus.FieldLogger) (int64, error) {
	if !p.HasSink() {
		return 0, ErrNoSink
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg := storage.Config{
		Kind:    p.Storage.Kind,
		DSN:     p.Storage.DB.DSN,
		Table:   p.Storage.DB.Table,
		Columns: res.Columns,
	}
	return storage.Sink(ctx, cfg, res.Records, storage.SinkOptions{
		AutoCreateTable: p.Storage.DB.AutoCreateTable,
		BatchSize:       p.Storage.DB.BatchSize,
		Job:             p.Name,
		Logger:          log.WithField("job", p.Name),
	})
}
