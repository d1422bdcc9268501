package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"dga-engine/internal/dga"
	"dga-engine/internal/ml"
	"dga-engine/internal/report"
)

func prepareCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Label the stored samples and show the class distribution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts.settings)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.service.PrepareData(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Examples: %d  Skipped: %d\n", summary.Examples, summary.Skipped)
			for _, l := range dga.Labels {
				if n := summary.ClassCounts[l]; n > 0 {
					fmt.Fprintf(out, "  %-3s %-36s %d\n", l, l.Description(), n)
				}
			}
			return err
		},
	}
}

func trainCmd(opts *rootOptions) *cobra.Command {
	var (
		folds     int
		reportDir string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Compare the candidate models and persist the best one",
		Long: `Train labels the stored samples, scores random forest, SVM, KNN and MLP
with stratified k-fold cross-validation and saves the best pipeline to the
model directory. The fold count is reduced when the rarest class has fewer
examples than requested.

Examples:
  dga train
  dga train --folds 10 --report reports/`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts.settings)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.service.Train(cmd.Context(), folds)
			if err != nil {
				return err
			}
			if err := report.WriteTrainingSummary(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if reportDir != "" {
				return report.NewReporter(reportDir).GenerateTrainingReport(res)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&folds, "folds", 0, "number of cross-validation folds (default from config)")
	cmd.Flags().StringVar(&reportDir, "report", "", "write training reports to this directory")
	return cmd
}

func evaluateCmd(opts *rootOptions) *cobra.Command {
	var (
		folds      int
		reportDir  string
		importance string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Out-of-fold metrics for every candidate",
		Long: `Evaluate computes accuracy, macro and weighted precision/recall/F1, per-class
metrics and the confusion matrix of every candidate from out-of-fold
predictions. --importance adds permutation feature importance for one
candidate.

Examples:
  dga evaluate
  dga evaluate --importance random_forest --report reports/`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var kind ml.Kind
			if importance != "" {
				var err error
				if kind, err = ml.ParseKind(importance); err != nil {
					return err
				}
			}

			a, err := openApp(opts.settings)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.service.EvaluateAllFolds(cmd.Context(), folds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := report.WriteEvaluationSummary(out, results); err != nil {
				return err
			}

			var scores []ml.FeatureScore
			if importance != "" {
				if scores, err = a.service.FeatureImportance(cmd.Context(), kind); err != nil {
					return err
				}
				fmt.Fprintf(out, "\nFEATURE IMPORTANCE (%s)\n", kind)
				for i, s := range scores {
					fmt.Fprintf(out, "%2d. %-22s %.4f ± %.4f\n", i+1, s.Name, s.Importance, s.Std)
				}
			}

			if reportDir != "" {
				if err := report.NewReporter(reportDir).GenerateEvaluationReport(results, scores); err != nil {
					return err
				}
				log.Info().Str("dir", reportDir).Msg("Evaluation reports written")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&folds, "folds", 0, "number of cross-validation folds (default from config)")
	cmd.Flags().StringVar(&reportDir, "report", "", "write evaluation reports to this directory")
	cmd.Flags().StringVar(&importance, "importance", "", "candidate to compute feature importance for (random_forest, svm, knn, mlp)")
	return cmd
}

func compareCmd(opts *rootOptions) *cobra.Command {
	var (
		csvPath   string
		reportDir string
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Measure agreement between the normative consensus and the model",
		Long: `Compare labels every stored sample with the normative consensus, classifies
it with the trained model and reports how often the two agree. Samples
without a normative consensus are listed but not counted.

Examples:
  dga compare
  dga compare --csv concordance.csv
  dga compare --report reports/`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts.settings)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.service.Compare(cmd.Context())
			if err != nil {
				return err
			}
			if err := report.WriteComparisonSummary(cmd.OutOrStdout(), sum); err != nil {
				return err
			}

			if csvPath != "" {
				f, err := os.Create(csvPath)
				if err != nil {
					return err
				}
				if err := report.WriteConcordanceCSV(f, sum); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				log.Info().Str("file", csvPath).Int("rows", len(sum.Details)).Msg("Concordance exported")
			}
			if reportDir != "" {
				return report.NewReporter(reportDir).GenerateComparisonReport(sum)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "write the per-sample concordance CSV to this file")
	cmd.Flags().StringVar(&reportDir, "report", "", "write comparison reports to this directory")
	return cmd
}
