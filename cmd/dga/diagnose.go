package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"dga-engine/internal/dga"
	"dga-engine/internal/metrics"
	"dga-engine/internal/ml"
	"dga-engine/internal/normative"
)

// addGasFlags binds one flag per gas, named like the CSV columns.
func addGasFlags(cmd *cobra.Command, r *dga.GasReading) {
	targets := []*float64{&r.H2, &r.CH4, &r.C2H6, &r.C2H4, &r.C2H2, &r.CO, &r.CO2, &r.O2, &r.N2}
	for i, name := range dga.GasNames {
		cmd.Flags().Float64Var(targets[i], name, 0, dga.GasLabels[i]+" in ppm")
	}
}

func diagnoseCmd(opts *rootOptions) *cobra.Command {
	var reading dga.GasReading
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Run the normative methods on one reading",
		Long: `Diagnose prints the verdict of every normative interpretation method,
the consensus label the dataset builder would assign and the share of
methods that chose it.

Example:
  dga diagnose --h2 200 --ch4 50 --c2h6 15 --c2h4 60 --c2h2 120 --co 300 --co2 2500`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := reading.Validate(); err != nil {
				return err
			}
			s := opts.settings
			rules, err := normative.New(s.NormativeMode, s.NormativeURL, s.NormativeTimeout)
			if err != nil {
				return err
			}
			mw := metrics.NewWrapper(metrics.NewWithRegistry(prometheus.NewRegistry()))

			label, votes, err := ml.NewConsensusLabeler(rules, mw).Label(cmd.Context(), reading)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tLABEL\tDESCRIPTION")
			for _, v := range votes {
				if v.Err != nil {
					fmt.Fprintf(w, "%s\t-\t%v\n", v.Method.DisplayName(), v.Err)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", v.Method.DisplayName(), v.Label, v.Label.Description())
			}
			w.Flush()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nConsensus: %s (%s, %.1f%% agreement)\n",
				label, label.Description(), ml.VoteAgreement(votes, label))
			return nil
		},
	}
	addGasFlags(cmd, &reading)
	return cmd
}
