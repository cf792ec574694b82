// Package cli implements the csvtransform command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"csvtransform/internal/logging"
	"csvtransform/internal/metrics"
	"csvtransform/internal/metrics/datadog"
	"csvtransform/internal/metrics/prompush"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	// Register the storage backends used by job sinks.
	_ "csvtransform/internal/storage/all"
)

// EnvPrefix prefixes the environment variables that back unset flags, e.g.
// CSVTRANSFORM_LOG_LEVEL for --log-level.
const EnvPrefix = "CSVTRANSFORM_"

// globals holds the persistent flag values shared by every subcommand.
type globals struct {
	logLevel       string
	logFormat      string
	metricsBackend string
	pushgatewayURL string
	statsdAddr     string
	envFile        string

	log logrus.FieldLogger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "csvtransform",
		Short:         "Re-shape CSV files with per-column rules.",
		Long:          "Re-shape CSV files with per-column rules described by a JSON job file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&g.metricsBackend, "metrics-backend", "none", "metrics backend: none, pushgateway or datadog")
	pf.StringVar(&g.pushgatewayURL, "pushgateway-url", "http://localhost:9091", "Pushgateway base URL")
	pf.StringVar(&g.statsdAddr, "statsd-addr", "127.0.0.1:8125", "DogStatsD address for the datadog backend")
	pf.StringVar(&g.envFile, "env-file", ".env", "file of KEY=VALUE lines loaded into the environment")

	root.AddCommand(
		newRunCmd(g),
		newValidateCmd(g),
		newServeCmd(g),
		newWatchCmd(g),
		newBatchCmd(g),
		newProbeCmd(g),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if ferr := metrics.Flush(); ferr != nil {
		logrus.WithError(ferr).Warn("metrics: flush failed")
	}
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "error: %v\n", err)
		return 1
	}
	return 0
}

// init loads the env file, fills unset flags from the environment and
// configures logging.
func (g *globals) init(cmd *cobra.Command) error {
	if err := loadEnvFile(g.envFile, cmd.Flags().Changed("env-file")); err != nil {
		return err
	}
	if err := applyEnv(cmd.Flags()); err != nil {
		return err
	}
	if err := logging.Setup(g.logLevel, g.logFormat, cmd.ErrOrStderr()); err != nil {
		return err
	}
	switch g.metricsBackend {
	case "", "none", "pushgateway", "datadog":
	default:
		return fmt.Errorf("unknown metrics backend %q; want none, pushgateway or datadog", g.metricsBackend)
	}
	g.log = logrus.WithField("command", cmd.Name())
	return nil
}

// loadEnvFile seeds the environment from path without overriding variables
// that are already set. A missing default file is ignored.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// envKey maps a flag name to its environment variable.
func envKey(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// applyEnv sets every flag not given on the command line from its
// environment variable, when present.
func applyEnv(flags *pflag.FlagSet) error {
	var firstErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || firstErr != nil {
			return
		}
		v, ok := os.LookupEnv(envKey(f.Name))
		if !ok {
			return
		}
		if err := flags.Set(f.Name, v); err != nil {
			firstErr = fmt.Errorf("%s: %w", envKey(f.Name), err)
		}
	})
	return firstErr
}

// setupMetrics installs the selected metrics backend for jobName. A backend
// that cannot be created is logged and metrics stay disabled.
func (g *globals) setupMetrics(jobName string) {
	log := g.log.WithField("backend", g.metricsBackend)
	switch g.metricsBackend {
	case "pushgateway":
		b, err := prompush.NewBackend(jobName, g.pushgatewayURL)
		if err != nil {
			log.WithError(err).Warn("metrics: failed to init prom push backend; using nop")
			return
		}
		metrics.SetBackend(b)
		log.WithFields(logrus.Fields{"url": g.pushgatewayURL, "job_name": jobName}).Debug("metrics: enabled")

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       g.statsdAddr,
			Namespace:  "csvtransform.",
			GlobalTags: []string{"job:" + jobName},
		})
		if err != nil {
			log.WithError(err).Warn("metrics: failed to init datadog backend; using nop")
			return
		}
		metrics.SetBackend(b)
		log.WithField("addr", g.statsdAddr).Debug("metrics: enabled")

	default:
		log.Debug("metrics: disabled")
	}
}
