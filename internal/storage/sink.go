package storage

import (
	"context"
	"fmt"
	"time"

	"csvtransform/internal/metrics"
	"csvtransform/pkg/records"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is used when SinkOptions.BatchSize is zero.
const DefaultBatchSize = 1000

// SinkOptions configures Sink.
type SinkOptions struct {
	// AutoCreateTable creates the table (all text columns) before loading.
	AutoCreateTable bool
	// BatchSize is the number of rows per CopyFrom call.
	BatchSize int
	// Job labels logs and metrics.
	Job    string
	Logger logrus.FieldLogger
}

// Sink opens the repository described by cfg and loads recs into it using
// columns as the destination column order. Values are rendered as text;
// fields a record lacks are loaded as empty strings.
func Sink(ctx context.Context, cfg Config, recs []*records.Record, opt SinkOptions) (n int64, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStep(opt.Job, "load", err, time.Since(start))
	}()

	if len(cfg.Columns) == 0 {
		return 0, fmt.Errorf("storage: no columns to load into %s", cfg.Table)
	}

	log := opt.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{"storage": cfg.Kind, "table": cfg.Table})

	repo, err := New(ctx, cfg)
	if err != nil {
		return 0, fmt.Errorf("open %s storage: %w", cfg.Kind, err)
	}
	defer repo.Close()

	if opt.AutoCreateTable {
		if err := EnsureTable(ctx, repo, cfg); err != nil {
			return 0, err
		}
	}

	n, batches, err := LoadRecords(ctx, log, repo, cfg.Columns, recs, opt.BatchSize)
	metrics.RecordRow(opt.Job, "loaded", n)
	metrics.RecordBatches(opt.Job, batches)
	if err != nil {
		return n, fmt.Errorf("load %s: %w", cfg.Table, err)
	}
	log.WithFields(logrus.Fields{"rows": n, "batches": batches}).Info("rows loaded")
	return n, nil
}

// LoadRecords streams recs into repo in batches.
func LoadRecords(
	ctx context.Context,
	log logrus.FieldLogger,
	repo Repository,
	columns []string,
	recs []*records.Record,
	batchSize int,
) (total, batches int64, err error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan []any, batchSize)

	g.Go(func() error {
		defer close(rows)
		for _, rec := range recs {
			select {
			case rows <- RowValues(rec, columns):
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, batches, err = LoadBatches(gctx, log, columns, rows, batchSize, repo.CopyFrom)
		return err
	})

	err = g.Wait()
	return total, batches, err
}

// RowValues renders rec as a row aligned to columns.
func RowValues(rec *records.Record, columns []string) []any {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = rec.String(c)
	}
	return row
}
