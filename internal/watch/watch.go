// Package watch re-runs a job whenever its input file is written.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce coalesces bursts of write events from editors and copy
// tools into one run.
const DefaultDebounce = 200 * time.Millisecond

// RunFunc performs one run. Errors are logged and watching continues.
type RunFunc func(ctx context.Context) error

// Options configures Watch.
type Options struct {
	// Input is the file to watch. Its directory is watched so that files
	// replaced by rename are still seen.
	Input string
	// Debounce is the quiet period after the last event before a run.
	Debounce time.Duration
	// RunOnStart runs once as soon as the watcher is armed.
	RunOnStart bool
	Run        RunFunc
	Logger     logrus.FieldLogger
}

// Watch blocks until ctx is canceled, calling opts.Run after writes to
// opts.Input settle. It returns nil on cancellation.
func Watch(ctx context.Context, opts Options) error {
	if opts.Run == nil {
		return fmt.Errorf("watch: Run must not be nil")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	target, err := filepath.Abs(opts.Input)
	if err != nil {
		return fmt.Errorf("watch: bad path %q: %w", opts.Input, err)
	}
	log = log.WithField("input", target)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch: add %s: %w", filepath.Dir(target), err)
	}

	runs := 0
	run := func() {
		runs++
		start := time.Now()
		l := log.WithField("run", runs)
		if err := opts.Run(ctx); err != nil {
			l.WithError(err).Error("run failed")
			return
		}
		l.WithField("elapsed", time.Since(start).Truncate(time.Millisecond)).Info("run completed")
	}

	if opts.RunOnStart {
		run()
	}
	log.Info("watching for changes")

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if abs, _ := filepath.Abs(ev.Name); abs != target {
				continue
			}
			log.WithField("op", ev.Op.String()).Debug("change detected")
			if timer == nil {
				timer = time.NewTimer(opts.Debounce)
			} else {
				timer.Reset(opts.Debounce)
			}
			timerC = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watcher error")

		case <-timerC:
			timerC = nil
			run()
		}
	}
}
