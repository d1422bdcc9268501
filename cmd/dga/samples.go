package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"dga-engine/internal/dga"
	"dga-engine/internal/storage"
)

func importCmd(opts *rootOptions) *cobra.Command {
	var transformer string
	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Import laboratory samples from a CSV export",
		Long: `Import reads a CSV file with the columns sample_code, transformer,
extraction_date, h2, ch4, c2h6, c2h4, c2h2, co, co2, o2 and n2.
Invalid rows are reported and skipped.

Examples:
  dga import lab-2023.csv
  dga import tr7.csv --transformer TR-7   # rows without a transformer column`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.settings)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.store.ImportFile(cmd.Context(), args[0], transformer)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			a.metrics.SamplesImportedAdd(res.Imported)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rows: %d  Imported: %d  Skipped: %d\n", res.TotalRows, res.Imported, res.Skipped)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  %s\n", e)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&transformer, "transformer", "", "transformer reference for rows that have none")
	return cmd
}

func samplesCmd(opts *rootOptions) *cobra.Command {
	var (
		transformer string
		from, to    string
		export      string
	)
	cmd := &cobra.Command{
		Use:   "samples",
		Short: "List or export stored samples",
		Long: `Samples prints the stored samples. With --transformer the listing is limited
to one transformer, optionally within a date range. With --export every
sample is written as CSV in the import format.

Examples:
  dga samples
  dga samples --transformer TR-1 --from 2022-01-01 --to 2022-12-31
  dga samples --export backup.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts.settings)
			if err != nil {
				return err
			}
			defer a.Close()

			if export != "" {
				return exportSamples(cmd, a.store, export)
			}

			var samples []dga.Sample
			if transformer != "" {
				start, end, err := dateRange(from, to)
				if err != nil {
					return err
				}
				samples, err = a.store.GetSamplesInRange(transformer, start, end)
				if err != nil {
					return err
				}
			} else {
				if samples, err = a.store.ListSamples(cmd.Context()); err != nil {
					return err
				}
			}

			printSamples(cmd, samples)
			return nil
		},
	}
	cmd.Flags().StringVar(&transformer, "transformer", "", "only samples of this transformer")
	cmd.Flags().StringVar(&from, "from", "", "first extraction date (with --transformer)")
	cmd.Flags().StringVar(&to, "to", "", "last extraction date (with --transformer)")
	cmd.Flags().StringVar(&export, "export", "", "write all samples to this CSV file")
	return cmd
}

func dateRange(from, to string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now()
	var err error
	if from != "" {
		if start, err = storage.ParseDate(from); err != nil {
			return start, end, fmt.Errorf("--from: %w", err)
		}
	}
	if to != "" {
		if end, err = storage.ParseDate(to); err != nil {
			return start, end, fmt.Errorf("--to: %w", err)
		}
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return start, end, nil
}

func exportSamples(cmd *cobra.Command, store *storage.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := store.Export(cmd.Context(), f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("export samples: %w", err)
	}
	log.Info().Str("file", path).Int("samples", n).Msg("Samples exported")
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d samples to %s\n", n, path)
	return nil
}

func printSamples(cmd *cobra.Command, samples []dga.Sample) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tTRANSFORMER\tDATE\tH2\tCH4\tC2H6\tC2H4\tC2H2\tCO\tCO2\tO2\tN2")
	for _, s := range samples {
		fmt.Fprintf(w, "%s\t%s\t%s", s.Code, s.TransformerID, s.ExtractionDate.Format("2006-01-02"))
		for _, v := range s.Reading.Features() {
			fmt.Fprintf(w, "\t%g", v)
		}
		fmt.Fprintln(w)
	}
	w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "%d samples\n", len(samples))
}
