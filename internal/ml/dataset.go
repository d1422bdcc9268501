package ml

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"dga-engine/internal/dga"
)

// SampleSource supplies the historical samples used for training.
type SampleSource interface {
	ListSamples(ctx context.Context) ([]dga.Sample, error)
}

// Example is a labelled feature vector.
type Example struct {
	Features   []float64      `json:"features"`
	Label      dga.FaultLabel `json:"label"`
	SampleCode string         `json:"sample_code,omitempty"`
}

// Dataset is the labelled training set built for one operation. It is never
// cached between calls.
type Dataset struct {
	Examples    []Example
	ClassCounts [dga.NumLabels]int
	Skipped     int
}

// NewDataset computes class counts for examples.
func NewDataset(examples []Example) *Dataset {
	ds := &Dataset{Examples: examples}
	for _, e := range examples {
		ds.ClassCounts[e.Label]++
	}
	return ds
}

func (d *Dataset) Len() int { return len(d.Examples) }

// X returns the feature matrix; rows alias the examples.
func (d *Dataset) X() [][]float64 {
	x := make([][]float64, len(d.Examples))
	for i, e := range d.Examples {
		x[i] = e.Features
	}
	return x
}

// Y returns class indices.
func (d *Dataset) Y() []int {
	y := make([]int, len(d.Examples))
	for i, e := range d.Examples {
		y[i] = e.Label.Index()
	}
	return y
}

// Classes returns the labels present, ascending by class index.
func (d *Dataset) Classes() []dga.FaultLabel {
	var out []dga.FaultLabel
	for i, c := range d.ClassCounts {
		if c > 0 {
			out = append(out, dga.FaultLabel(i))
		}
	}
	return out
}

// MinClassCount returns the size of the rarest present class, or 0.
func (d *Dataset) MinClassCount() int {
	m := 0
	for _, c := range d.ClassCounts {
		if c > 0 && (m == 0 || c < m) {
			m = c
		}
	}
	return m
}

// Summary reports the dataset shape.
func (d *Dataset) Summary() DatasetSummary {
	s := DatasetSummary{
		Examples:    len(d.Examples),
		Skipped:     d.Skipped,
		ClassCounts: make(map[dga.FaultLabel]int),
	}
	for i, c := range d.ClassCounts {
		if c > 0 {
			s.ClassCounts[dga.FaultLabel(i)] = c
		}
	}
	return s
}

// validateForTraining requires at least two distinct classes.
func (d *Dataset) validateForTraining() error {
	if d == nil {
		return &dga.InsufficientDataError{Reason: "no dataset"}
	}
	if n := len(d.Classes()); n < 2 {
		return &dga.InsufficientDataError{
			Reason:   "at least two distinct fault classes are required",
			Examples: len(d.Examples),
			Classes:  n,
		}
	}
	return nil
}

// DatasetSummary is what PrepareData reports.
type DatasetSummary struct {
	Examples    int                    `json:"examples"`
	Skipped     int                    `json:"skipped"`
	ClassCounts map[dga.FaultLabel]int `json:"class_counts"`
}

// DatasetBuilder turns stored samples into a labelled dataset.
type DatasetBuilder struct {
	source  SampleSource
	labeler *ConsensusLabeler
	workers int
	metrics MetricsInterface
}

func NewDatasetBuilder(source SampleSource, labeler *ConsensusLabeler, workers int, metrics MetricsInterface) *DatasetBuilder {
	return &DatasetBuilder{source: source, labeler: labeler, workers: max(workers, 1), metrics: orNoop(metrics)}
}

// Build reads every sample from the source and labels it.
func (b *DatasetBuilder) Build(ctx context.Context) (*Dataset, error) {
	samples, err := b.source.ListSamples(ctx)
	if err != nil {
		return nil, err
	}
	return b.BuildFromSamples(ctx, samples)
}

// BuildFromSamples labels samples concurrently and keeps their order.
// Readings that no method can label are skipped and counted.
func (b *DatasetBuilder) BuildFromSamples(ctx context.Context, samples []dga.Sample) (*Dataset, error) {
	verdicts, err := b.labelSamples(ctx, samples)
	if err != nil {
		return nil, err
	}

	examples := make([]Example, 0, len(samples))
	skipped := 0
	for i, s := range samples {
		if !verdicts[i].ok {
			skipped++
			continue
		}
		examples = append(examples, Example{Features: s.Reading.Features(), Label: verdicts[i].label, SampleCode: s.Code})
	}
	ds := NewDataset(examples)
	ds.Skipped = skipped

	b.metrics.DatasetExamplesSet(float64(len(examples)))
	b.metrics.DatasetSkippedSet(float64(skipped))
	log.Info().
		Int("data.samples", len(samples)).
		Int("data.examples", len(examples)).
		Int("data.skipped", skipped).
		Int("data.classes", len(ds.Classes())).
		Msg("Dataset built")

	if err := ds.validateForTraining(); err != nil {
		return ds, err
	}
	return ds, nil
}

// verdict is one sample's consensus outcome; ok is false when no method
// produced a label.
type verdict struct {
	label dga.FaultLabel
	votes []Vote
	ok    bool
}

// labelSamples runs the consensus labeler over samples with at most
// b.workers in flight. The result is index-aligned with samples.
func (b *DatasetBuilder) labelSamples(ctx context.Context, samples []dga.Sample) ([]verdict, error) {
	out := make([]verdict, len(samples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range samples {
		i := i
		g.Go(func() error {
			label, votes, err := b.labeler.Label(gctx, samples[i].Reading)
			switch {
			case err == nil:
				out[i] = verdict{label: label, votes: votes, ok: true}
			case errors.Is(err, dga.ErrNoVotes):
				out[i] = verdict{votes: votes}
				log.Debug().Str("sample", samples[i].Code).Msg("Skipping sample without consensus")
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
