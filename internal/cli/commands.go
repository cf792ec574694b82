package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"csvtransform/internal/config"
	"csvtransform/internal/datasource/file"
	"csvtransform/internal/job"
	"csvtransform/internal/server"
	"csvtransform/internal/watch"
	"csvtransform/pkg/csvtransform"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd(g *globals) *cobra.Command {
	var jobPath, input, output string
	var sink bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Transform one CSV file.",
		Long:  "Transform one CSV file. Output goes to --output, or stdout when it is empty.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := job.LoadFile(jobPath, g.log)
			if err != nil {
				return err
			}
			g.setupMetrics(plan.Name)
			log := g.log.WithField("job", plan.Name)

			res, err := plan.RunFile(input, log)
			if err != nil {
				return err
			}
			if output == "" {
				if _, err := fmt.Fprint(cmd.OutOrStdout(), res.Text); err != nil {
					return err
				}
			} else if err := file.WriteText(output, res.Text); err != nil {
				return err
			}
			logResult(log, input, output, res)

			if sink {
				if _, err := plan.Store(cmd.Context(), res, log); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "job file (JSON)")
	cmd.Flags().StringVar(&input, "input", "", "input CSV file")
	cmd.Flags().StringVar(&output, "output", "", "output CSV file (default stdout)")
	cmd.Flags().BoolVar(&sink, "sink", false, "also load the result into the job's storage")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newValidateCmd(g *globals) *cobra.Command {
	var jobPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a job file and exit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := config.Load(jobPath)
			if err != nil {
				return err
			}
			issues := config.ValidateJob(j)
			out := cmd.OutOrStdout()
			for _, iss := range issues {
				fmt.Fprintf(out, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if config.HasErrors(issues) {
				return fmt.Errorf("job is invalid: %s", jobPath)
			}
			if _, err := job.Compile(j); err != nil {
				return fmt.Errorf("job is invalid: %s: %w", jobPath, err)
			}
			fmt.Fprintf(out, "job is valid: %s\n", jobPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "job file (JSON)")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func newServeCmd(g *globals) *cobra.Command {
	var jobPath, addr string
	var maxBody int64
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a job over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := job.LoadFile(jobPath, g.log)
			if err != nil {
				return err
			}
			g.setupMetrics(plan.Name)
			srv := server.New(plan, server.Options{
				MaxBodyBytes: maxBody,
				Logger:       g.log.WithField("job", plan.Name),
			})
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "job file (JSON)")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().Int64Var(&maxBody, "max-body-bytes", server.DefaultMaxBodyBytes, "request body limit")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func newWatchCmd(g *globals) *cobra.Command {
	var jobPath, input, output string
	var debounce time.Duration
	var sink bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run a job whenever its input changes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := job.LoadFile(jobPath, g.log)
			if err != nil {
				return err
			}
			g.setupMetrics(plan.Name)
			log := g.log.WithField("job", plan.Name)

			return watch.Watch(cmd.Context(), watch.Options{
				Input:      input,
				Debounce:   debounce,
				RunOnStart: true,
				Logger:     log,
				Run: func(ctx context.Context) error {
					res, err := plan.RunFile(input, log)
					if err != nil {
						return err
					}
					if err := file.WriteText(output, res.Text); err != nil {
						return err
					}
					logResult(log, input, output, res)
					if sink {
						if _, err := plan.Store(ctx, res, log); err != nil {
							return err
						}
					}
					return nil
				},
			})
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "job file (JSON)")
	cmd.Flags().StringVar(&input, "input", "", "input CSV file to watch")
	cmd.Flags().StringVar(&output, "output", "", "output CSV file")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before re-running")
	cmd.Flags().BoolVar(&sink, "sink", false, "also load each result into the job's storage")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newBatchCmd(g *globals) *cobra.Command {
	var jobPath, outDir string
	var workers int
	cmd := &cobra.Command{
		Use:   "batch [flags] inputs...",
		Short: "Run one job over many inputs.",
		Long: "Run one job over many inputs concurrently, writing each result to <out-dir>/<basename>.\n" +
			"Inputs may be paths, glob patterns or @list files naming one path per line.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := job.LoadFile(jobPath, g.log)
			if err != nil {
				return err
			}
			g.setupMetrics(plan.Name)
			log := g.log.WithField("job", plan.Name)

			inputs, err := file.Expand(args)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return csvtransform.ErrNoInput
			}
			targets, err := batchTargets(inputs, outDir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create out dir: %w", err)
			}

			if workers < 1 {
				workers = 1
			}
			start := time.Now()
			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.SetLimit(workers)
			for i, in := range inputs {
				out := targets[i]
				eg.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					res, err := plan.RunFile(in, log)
					if err != nil {
						return fmt.Errorf("%s: %w", in, err)
					}
					if err := file.WriteText(out, res.Text); err != nil {
						return err
					}
					logResult(log, in, out, res)
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"files":   len(inputs),
				"workers": workers,
				"elapsed": time.Since(start).Truncate(time.Millisecond),
			}).Info("batch completed")
			return nil
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "job file (JSON)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory for transformed files")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "files processed concurrently")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("out-dir")
	return cmd
}

// batchTargets maps every input to <outDir>/<basename>. Two inputs with the
// same basename would overwrite each other and are rejected.
func batchTargets(inputs []string, outDir string) ([]string, error) {
	seen := make(map[string]string, len(inputs))
	out := make([]string, len(inputs))
	for i, in := range inputs {
		base := filepath.Base(in)
		if prev, dup := seen[base]; dup {
			return nil, fmt.Errorf("inputs %s and %s share the output name %s", prev, in, base)
		}
		seen[base] = in
		out[i] = filepath.Join(outDir, base)
	}
	return out, nil
}

func logResult(log logrus.FieldLogger, input, output string, res *csvtransform.Result) {
	log.WithFields(logrus.Fields{
		"input":         input,
		"output":        output,
		"decoded":       res.Stats.Decoded,
		"emitted":       res.Stats.Emitted,
		"decode_errors": res.Stats.DecodeErrors,
		"elapsed":       res.Stats.Duration.Truncate(time.Millisecond),
	}).Info("transform completed")
}
