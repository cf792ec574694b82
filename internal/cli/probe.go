package cli

import (
	"fmt"
	"unicode/utf8"

	"csvtransform/internal/datasource/file"
	"csvtransform/internal/probe"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newProbeCmd(g *globals) *cobra.Command {
	var (
		input, output, name, backend, delimiter string
		maxBytes                                int
		normalize                               bool
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Sample a CSV file and print a starter job file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var delim rune
			if delimiter != "" {
				if utf8.RuneCountInString(delimiter) != 1 {
					return fmt.Errorf("--delimiter must be a single character")
				}
				delim, _ = utf8.DecodeRuneInString(delimiter)
			}
			res, err := probe.Probe(probe.Options{
				Path:      input,
				MaxBytes:  maxBytes,
				Delimiter: delim,
				Name:      name,
				Normalize: normalize,
				Backend:   backend,
			})
			if err != nil {
				return err
			}
			g.log.WithFields(logrus.Fields{
				"input":       input,
				"delimiter":   string(res.Delimiter),
				"columns":     len(res.Headers),
				"sample_rows": res.SampleRows,
			}).Info("probe completed")

			b, err := probe.Marshal(res.Job)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			return file.WriteText(output, string(b))
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "CSV file to sample")
	cmd.Flags().StringVar(&output, "output", "", "job file to write (default stdout)")
	cmd.Flags().StringVar(&name, "name", "", "job and table name (default: input base name)")
	cmd.Flags().StringVar(&backend, "backend", "", "add a storage block: postgres or sqlite")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "input delimiter (default: detected)")
	cmd.Flags().IntVar(&maxBytes, "max-bytes", probe.DefaultMaxBytes, "bytes sampled from the start of the input")
	cmd.Flags().BoolVar(&normalize, "normalize", true, "rename columns to lower_snake identifiers")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
