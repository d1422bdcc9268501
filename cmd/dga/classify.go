package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"dga-engine/internal/dga"
	"dga-engine/internal/ml"
)

// readingRow is one line of a classification CSV. Columns other than the
// gases and sample_code are ignored.
type readingRow struct {
	SampleCode string  `csv:"sample_code"`
	H2         float64 `csv:"h2"`
	CH4        float64 `csv:"ch4"`
	C2H6       float64 `csv:"c2h6"`
	C2H4       float64 `csv:"c2h4"`
	C2H2       float64 `csv:"c2h2"`
	CO         float64 `csv:"co"`
	CO2        float64 `csv:"co2"`
	O2         float64 `csv:"o2"`
	N2         float64 `csv:"n2"`
}

func (r readingRow) reading() dga.GasReading {
	return dga.GasReading{
		H2: r.H2, CH4: r.CH4, C2H6: r.C2H6, C2H4: r.C2H4, C2H2: r.C2H2,
		CO: r.CO, CO2: r.CO2, O2: r.O2, N2: r.N2,
	}
}

func readReadings(path string) ([]string, []dga.GasReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var rows []*readingRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	codes := make([]string, len(rows))
	readings := make([]dga.GasReading, len(rows))
	for i, row := range rows {
		codes[i] = row.SampleCode
		if codes[i] == "" {
			codes[i] = fmt.Sprintf("row %d", i+2)
		}
		readings[i] = row.reading()
	}
	return codes, readings, nil
}

func classifyCmd(opts *rootOptions) *cobra.Command {
	var (
		reading dga.GasReading
		csvPath string
		proba   bool
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify readings with the trained model",
		Long: `Classify loads the persisted model and prints the fault label of one reading
given with the gas flags, or of every row of a CSV file.

Examples:
  dga classify --h2 35 --ch4 6 --c2h6 2 --c2h4 3 --c2h2 0 --co 250 --co2 2100
  dga classify --csv new-samples.csv --proba`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			codes := []string{"reading"}
			readings := []dga.GasReading{reading}
			if csvPath != "" {
				var err error
				if codes, readings, err = readReadings(csvPath); err != nil {
					return err
				}
			}

			a, err := openApp(opts.settings)
			if err != nil {
				return err
			}
			defer a.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			if !proba {
				labels, err := a.service.ClassifyBatch(cmd.Context(), readings)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "SAMPLE\tLABEL\tDESCRIPTION")
				for i, l := range labels {
					fmt.Fprintf(w, "%s\t%s\t%s\n", codes[i], l, l.Description())
				}
				return nil
			}

			fmt.Fprint(w, "SAMPLE\tLABEL\tCONFIDENCE")
			for _, l := range dga.Labels {
				fmt.Fprintf(w, "\t%s", l)
			}
			fmt.Fprintln(w)
			for i, r := range readings {
				p, err := a.service.ClassifyWithProba(cmd.Context(), r)
				if err != nil {
					return fmt.Errorf("%s: %w", codes[i], err)
				}
				printPrediction(w, codes[i], p)
			}
			return nil
		},
	}
	addGasFlags(cmd, &reading)
	cmd.Flags().StringVar(&csvPath, "csv", "", "classify every row of this CSV file")
	cmd.Flags().BoolVar(&proba, "proba", false, "print class probabilities")
	return cmd
}

func printPrediction(w *tabwriter.Writer, code string, p ml.Prediction) {
	fmt.Fprintf(w, "%s\t%s\t%.3f", code, p.Label, p.Confidence)
	for _, l := range dga.Labels {
		fmt.Fprintf(w, "\t%.3f", p.Probabilities[l])
	}
	fmt.Fprintln(w)
}
