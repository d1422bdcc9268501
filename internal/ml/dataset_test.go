package ml

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dga-engine/internal/dga"
	"dga-engine/internal/normative"
)

// failingForRules fails every method for readings with H2 equal to marker.
type failingForRules struct {
	marker float64
}

func (f failingForRules) Diagnose(ctx context.Context, m normative.Method, r dga.GasReading) (dga.FaultLabel, error) {
	if r.H2 == f.marker {
		return 0, errors.New("no verdict")
	}
	return dominantGasRules{}.Diagnose(ctx, m, r)
}

func TestDatasetBuilderLabelsInOrder(t *testing.T) {
	samples := clusteredSamples(map[int]int{0: 10, 4: 8, 6: 5}, 1)
	metrics := &MockMetrics{}
	b := NewDatasetBuilder(sliceSource{samples: samples}, NewConsensusLabeler(dominantGasRules{}, metrics), 4, metrics)

	ds, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(samples), ds.Len())
	assert.Zero(t, ds.Skipped)

	for i, e := range ds.Examples {
		assert.Equal(t, samples[i].Code, e.SampleCode)
		assert.Equal(t, samples[i].Reading.Features(), e.Features)
	}
	assert.Equal(t, 10, ds.ClassCounts[dga.Normal])
	assert.Equal(t, 8, ds.ClassCounts[dga.ThermalLow])
	assert.Equal(t, 5, ds.ClassCounts[dga.ThermalHigh])
	assert.Equal(t, []dga.FaultLabel{dga.Normal, dga.ThermalLow, dga.ThermalHigh}, ds.Classes())
	assert.Equal(t, 5, ds.MinClassCount())
	assert.Equal(t, float64(len(samples)), metrics.datasetExamples)
}

func TestDatasetBuilderSkipsUnlabelled(t *testing.T) {
	samples := clusteredSamples(map[int]int{0: 6, 3: 6}, 2)
	samples[2].Reading.H2 = 7777
	samples[9].Reading.H2 = 7777

	metrics := &MockMetrics{}
	b := NewDatasetBuilder(sliceSource{samples: samples}, NewConsensusLabeler(failingForRules{marker: 7777}, metrics), 2, metrics)

	ds, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, ds.Len())
	assert.Equal(t, 2, ds.Skipped)
	assert.Equal(t, 2.0, metrics.datasetSkipped)
	for _, e := range ds.Examples {
		assert.NotEqual(t, samples[2].Code, e.SampleCode)
		assert.NotEqual(t, samples[9].Code, e.SampleCode)
	}

	summary := ds.Summary()
	assert.Equal(t, 10, summary.Examples)
	assert.Equal(t, 2, summary.Skipped)
	assert.Len(t, summary.ClassCounts, 2)
}

func TestDatasetBuilderInsufficientData(t *testing.T) {
	tests := []struct {
		name    string
		samples []dga.Sample
	}{
		{"empty source", nil},
		{"single class", clusteredSamples(map[int]int{5: 12}, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewDatasetBuilder(sliceSource{samples: tt.samples}, NewConsensusLabeler(dominantGasRules{}, nil), 2, nil)
			ds, err := b.Build(context.Background())
			require.ErrorIs(t, err, dga.ErrInsufficientData)
			require.NotNil(t, ds)
			assert.Equal(t, len(tt.samples), ds.Len())
		})
	}
}

func TestDatasetBuilderSourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	b := NewDatasetBuilder(sliceSource{err: boom}, NewConsensusLabeler(dominantGasRules{}, nil), 1, nil)
	_, err := b.Build(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestDatasetBuilderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewDatasetBuilder(sliceSource{samples: clusteredSamples(map[int]int{0: 5, 1: 5}, 1)}, NewConsensusLabeler(dominantGasRules{}, nil), 2, nil)
	_, err := b.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
