// Package report writes training, evaluation and comparison results as
// text, CSV and JSON files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"

	"dga-engine/internal/dga"
	"dga-engine/internal/ml"
)

// Reporter generates reports into one output directory
type Reporter struct {
	outputPath string
	now        func() time.Time
}

// NewReporter creates a new reporter
func NewReporter(outputPath string) *Reporter {
	return &Reporter{outputPath: outputPath, now: time.Now}
}

// ClassRow is one line of the per-class metrics CSV.
type ClassRow struct {
	Candidate   string `csv:"candidate"`
	Label       string `csv:"label"`
	Description string `csv:"description"`
	Precision   string `csv:"precision"`
	Recall      string `csv:"recall"`
	F1          string `csv:"f1"`
	Support     int    `csv:"support"`
}

// ImportanceRow is one line of the feature importance CSV.
type ImportanceRow struct {
	Rank       int    `csv:"rank"`
	Gas        string `csv:"gas"`
	Name       string `csv:"name"`
	Importance string `csv:"importance"`
	Std        string `csv:"std"`
}

// ConcordanceRow is one sample of the normative versus model CSV.
type ConcordanceRow struct {
	Sample        string `csv:"sample"`
	Transformer   string `csv:"transformer"`
	Date          string `csv:"date"`
	Normative     string `csv:"normative"`
	AI            string `csv:"ai"`
	Agree         string `csv:"agree"`
	VoteAgreement string `csv:"vote_agreement_pct"`
}

func f4(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

func (r *Reporter) prepare() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// GenerateTrainingReport writes the training summary, CV scores and JSON.
func (r *Reporter) GenerateTrainingReport(res *ml.TrainingResult) error {
	if err := r.prepare(); err != nil {
		return err
	}
	if err := r.writeFile("training_summary.txt", func(w io.Writer) error {
		return WriteTrainingSummary(w, res)
	}); err != nil {
		return err
	}
	if err := r.writeFile("cv_scores.csv", func(w io.Writer) error {
		return writeCVScores(w, res)
	}); err != nil {
		return err
	}
	return r.writeJSON("training_results.json", map[string]any{
		"result":       res,
		"generated_at": r.now(),
	})
}

// GenerateEvaluationReport writes the evaluation summary, per-class metrics,
// one confusion matrix per candidate and, when given, feature importance.
func (r *Reporter) GenerateEvaluationReport(results []ml.EvaluationResult, importance []ml.FeatureScore) error {
	if err := r.prepare(); err != nil {
		return err
	}
	if err := r.writeFile("evaluation_summary.txt", func(w io.Writer) error {
		return WriteEvaluationSummary(w, results)
	}); err != nil {
		return err
	}
	if err := r.writeFile("per_class_metrics.csv", func(w io.Writer) error {
		return gocsv.Marshal(classRows(results), w)
	}); err != nil {
		return err
	}
	for _, res := range results {
		if err := r.writeFile("confusion_"+res.Name+".csv", func(w io.Writer) error {
			return WriteConfusionMatrix(w, res.Confusion)
		}); err != nil {
			return err
		}
	}
	if len(importance) > 0 {
		if err := r.writeFile("feature_importance.csv", func(w io.Writer) error {
			return gocsv.Marshal(importanceRows(importance), w)
		}); err != nil {
			return err
		}
	}
	return r.writeJSON("evaluation_results.json", map[string]any{
		"candidates":         results,
		"feature_importance": importance,
		"generated_at":       r.now(),
	})
}

// GenerateComparisonReport writes the comparison summary, the concordance
// CSV and JSON.
func (r *Reporter) GenerateComparisonReport(sum ml.ComparisonSummary) error {
	if err := r.prepare(); err != nil {
		return err
	}
	if err := r.writeFile("comparison_summary.txt", func(w io.Writer) error {
		return WriteComparisonSummary(w, sum)
	}); err != nil {
		return err
	}
	if err := r.writeFile("concordance.csv", func(w io.Writer) error {
		return WriteConcordanceCSV(w, sum)
	}); err != nil {
		return err
	}
	return r.writeJSON("comparison_results.json", map[string]any{
		"comparison":   sum,
		"generated_at": r.now(),
	})
}

func (r *Reporter) writeFile(name string, fill func(io.Writer) error) error {
	path := filepath.Join(r.outputPath, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := fill(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	log.Info().Str("file", path).Msg("Report generated")
	return nil
}

func (r *Reporter) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	path := filepath.Join(r.outputPath, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}
	log.Info().Str("file", path).Msg("JSON report generated")
	return nil
}

// WriteTrainingSummary prints a human-readable training summary.
func WriteTrainingSummary(w io.Writer, res *ml.TrainingResult) error {
	fmt.Fprintf(w, "TRAINING RESULTS SUMMARY\n")
	fmt.Fprintf(w, "========================\n\n")
	fmt.Fprintf(w, "Run ID: %s\n", res.RunID)
	fmt.Fprintf(w, "Trained at: %s (took %s)\n", res.TrainedAt.Format("2006-01-02 15:04:05"), res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Examples: %d\n", res.Examples)
	if res.EffectiveFolds < res.RequestedFolds {
		fmt.Fprintf(w, "Folds: %d (requested %d, limited by the rarest class)\n\n", res.EffectiveFolds, res.RequestedFolds)
	} else {
		fmt.Fprintf(w, "Folds: %d\n\n", res.EffectiveFolds)
	}

	fmt.Fprintf(w, "CLASS DISTRIBUTION\n")
	fmt.Fprintf(w, "------------------\n")
	for _, l := range res.Classes {
		fmt.Fprintf(w, "%-3s %-36s %d\n", l, l.Description(), res.ClassCounts[l])
	}

	fmt.Fprintf(w, "\nCANDIDATES (cross-validated accuracy)\n")
	fmt.Fprintf(w, "-------------------------------------\n")
	for _, c := range res.Candidates {
		marker := " "
		if c.Kind == res.Best {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-14s %.4f ± %.4f\n", marker, c.Name, c.Mean, c.Std)
	}
	_, err := fmt.Fprintf(w, "\nSelected model: %s\n", res.BestName)
	return err
}

// WriteEvaluationSummary prints accuracy, macro and weighted scores per
// candidate followed by each candidate's per-class table.
func WriteEvaluationSummary(w io.Writer, results []ml.EvaluationResult) error {
	fmt.Fprintf(w, "EVALUATION RESULTS (out-of-fold)\n")
	fmt.Fprintf(w, "================================\n\n")
	fmt.Fprintf(w, "%-14s %8s %8s %8s %8s\n", "candidate", "accuracy", "macroF1", "wF1", "macroP")
	for _, r := range results {
		fmt.Fprintf(w, "%-14s %8.4f %8.4f %8.4f %8.4f\n", r.Name, r.Accuracy, r.MacroF1, r.WeightedF1, r.MacroPrecision)
	}

	for _, r := range results {
		fmt.Fprintf(w, "\n%s (%d examples, %d folds)\n", r.Name, r.Examples, r.EffectiveFolds)
		fmt.Fprintf(w, "  %-3s %9s %9s %9s %8s\n", "", "precision", "recall", "f1", "support")
		for _, c := range r.PerClass {
			if c.Support == 0 && c.Precision == 0 {
				continue
			}
			fmt.Fprintf(w, "  %-3s %9.4f %9.4f %9.4f %8d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
		}
	}
	return nil
}

// WriteConfusionMatrix writes a labelled matrix: rows are true labels,
// columns predicted labels.
func WriteConfusionMatrix(w io.Writer, m ml.ConfusionMatrix) error {
	writer := csv.NewWriter(w)

	header := make([]string, 0, dga.NumLabels+1)
	header = append(header, "true\\predicted")
	for _, l := range dga.Labels {
		header = append(header, l.String())
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for i, l := range dga.Labels {
		record := make([]string, 0, dga.NumLabels+1)
		record = append(record, l.String())
		for j := range dga.Labels {
			record = append(record, strconv.Itoa(m[i][j]))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeCVScores(w io.Writer, res *ml.TrainingResult) error {
	writer := csv.NewWriter(w)

	header := []string{"candidate"}
	for f := 1; f <= res.EffectiveFolds; f++ {
		header = append(header, fmt.Sprintf("fold_%d", f))
	}
	header = append(header, "mean", "std", "selected")
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, c := range res.Candidates {
		record := []string{c.Name}
		for _, s := range c.FoldScores {
			record = append(record, f4(s))
		}
		record = append(record, f4(c.Mean), f4(c.Std), strconv.FormatBool(c.Kind == res.Best))
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func classRows(results []ml.EvaluationResult) []*ClassRow {
	var rows []*ClassRow
	for _, r := range results {
		for _, c := range r.PerClass {
			rows = append(rows, &ClassRow{
				Candidate:   r.Name,
				Label:       c.Label.String(),
				Description: c.Label.Description(),
				Precision:   f4(c.Precision),
				Recall:      f4(c.Recall),
				F1:          f4(c.F1),
				Support:     c.Support,
			})
		}
	}
	return rows
}

func importanceRows(scores []ml.FeatureScore) []*ImportanceRow {
	rows := make([]*ImportanceRow, len(scores))
	for i, s := range scores {
		rows[i] = &ImportanceRow{
			Rank:       i + 1,
			Gas:        s.Gas,
			Name:       s.Name,
			Importance: f4(s.Importance),
			Std:        f4(s.Std),
		}
	}
	return rows
}

// WriteComparisonSummary prints the agreement counts, the normative versus
// model matrix and every disagreeing sample.
func WriteComparisonSummary(w io.Writer, sum ml.ComparisonSummary) error {
	fmt.Fprintf(w, "NORMATIVE VS MODEL CONCORDANCE\n")
	fmt.Fprintf(w, "==============================\n\n")
	fmt.Fprintf(w, "Compared samples: %d\n", sum.Total)
	fmt.Fprintf(w, "Agreements: %d\n", sum.Agreements)
	fmt.Fprintf(w, "Disagreements: %d\n", sum.Disagreements)
	fmt.Fprintf(w, "Agreement: %.1f%%\n", sum.AgreementPct)
	if sum.Unlabeled > 0 {
		fmt.Fprintf(w, "Without normative consensus: %d\n", sum.Unlabeled)
	}

	fmt.Fprintf(w, "\nMATRIX (rows normative, columns model)\n")
	fmt.Fprintf(w, "%-4s", "")
	for _, l := range dga.Labels {
		fmt.Fprintf(w, "%5s", l)
	}
	fmt.Fprintln(w)
	for i, l := range dga.Labels {
		fmt.Fprintf(w, "%-4s", l)
		for j := range dga.Labels {
			fmt.Fprintf(w, "%5d", sum.Confusion[i][j])
		}
		fmt.Fprintln(w)
	}

	var header bool
	for _, d := range sum.Details {
		if d.Normative == nil || d.Agree {
			continue
		}
		if !header {
			fmt.Fprintf(w, "\nDISAGREEMENTS\n")
			fmt.Fprintf(w, "-------------\n")
			header = true
		}
		fmt.Fprintf(w, "%-12s %s  normative %-3s model %-3s (%.1f%% of methods)\n",
			d.SampleCode, d.ExtractionDate.Format("2006-01-02"), *d.Normative, d.Predicted, d.VoteAgreement)
	}
	return nil
}

// WriteConcordanceCSV writes one row per sample in Details order. Samples
// without a normative consensus carry "-" in the normative and agree columns.
func WriteConcordanceCSV(w io.Writer, sum ml.ComparisonSummary) error {
	rows := make([]*ConcordanceRow, len(sum.Details))
	for i, d := range sum.Details {
		row := &ConcordanceRow{
			Sample:        d.SampleCode,
			Transformer:   d.TransformerID,
			Date:          d.ExtractionDate.Format("2006-01-02"),
			Normative:     "-",
			AI:            d.Predicted.String(),
			Agree:         "-",
			VoteAgreement: strconv.FormatFloat(d.VoteAgreement, 'f', 1, 64),
		}
		if d.Normative != nil {
			row.Normative = d.Normative.String()
			row.Agree = "no"
			if d.Agree {
				row.Agree = "yes"
			}
		}
		rows[i] = row
	}
	return gocsv.Marshal(rows, w)
}
