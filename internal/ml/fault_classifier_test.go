package ml

import (
	"context"
	"io/fs"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dga-engine/internal/dga"
)

func trainedClassifier(t *testing.T, kind Kind) (*FaultClassifier, *ModelStore, *MockMetrics) {
	t.Helper()
	store, err := NewModelStore(t.TempDir())
	require.NoError(t, err)
	p, _ := fittedPipeline(t, kind)
	require.NoError(t, store.Save(p, ModelMetadata{RunID: "r1", Kind: kind, Name: kind.String()}))
	metrics := &MockMetrics{}
	return NewFaultClassifier(store, metrics), store, metrics
}

// readingFor builds a reading dominated by the gas of the given class.
func readingFor(class int) dga.GasReading {
	f := make([]float64, dga.NumGases)
	for i := range f {
		f[i] = 6
	}
	f[class] = 110
	r, _ := dga.ReadingFromFeatures(f)
	return r
}

func TestFaultClassifierLazyLoad(t *testing.T) {
	c, _, metrics := trainedClassifier(t, KindRandomForest)
	assert.Equal(t, ModelAbsent, c.State())
	assert.True(t, c.HasModel())

	label, err := c.Classify(context.Background(), readingFor(3))
	require.NoError(t, err)
	assert.Equal(t, dga.HighEnergyDischarge, label)
	assert.Equal(t, ModelLoaded, c.State())
	assert.Equal(t, 1, metrics.modelLoads)

	meta, ok := c.Metadata()
	require.True(t, ok)
	assert.Equal(t, "r1", meta.RunID)

	require.NoError(t, c.Load())
	assert.Equal(t, ModelReloaded, c.State())
}

func TestFaultClassifierProbabilities(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			c, _, _ := trainedClassifier(t, kind)
			pred, err := c.ClassifyWithProbabilities(context.Background(), readingFor(5))
			require.NoError(t, err)

			require.Len(t, pred.Probabilities, dga.NumLabels)
			var sum float64
			best := dga.Normal
			for _, l := range dga.Labels {
				p := pred.Probabilities[l]
				assert.False(t, math.IsNaN(p))
				sum += p
				if p > pred.Probabilities[best] {
					best = l
				}
			}
			assert.InDelta(t, 1.0, sum, 1e-6)
			assert.Equal(t, best, pred.Label)
			assert.Equal(t, dga.ThermalMedium, pred.Label)
			assert.Equal(t, pred.Probabilities[pred.Label], pred.Confidence)

			label, err := c.Classify(context.Background(), readingFor(5))
			require.NoError(t, err)
			assert.Equal(t, pred.Label, label)
		})
	}
}

func TestFaultClassifierBatch(t *testing.T) {
	c, _, metrics := trainedClassifier(t, KindKNN)
	readings := []dga.GasReading{readingFor(0), readingFor(5), readingFor(3), readingFor(0)}

	labels, err := c.ClassifyBatch(context.Background(), readings)
	require.NoError(t, err)
	assert.Equal(t, []dga.FaultLabel{dga.Normal, dga.ThermalMedium, dga.HighEnergyDischarge, dga.Normal}, labels)
	assert.Equal(t, 2, metrics.classifications["N"])

	for i, r := range readings {
		single, err := c.Classify(context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, labels[i], single)
	}

	empty, err := c.ClassifyBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)
}

func TestFaultClassifierInvalidReading(t *testing.T) {
	c, _, metrics := trainedClassifier(t, KindKNN)
	bad := readingFor(0)
	bad.CO = -1

	_, err := c.Classify(context.Background(), bad)
	assert.ErrorIs(t, err, dga.ErrInvalidGasValue)

	_, err = c.ClassifyBatch(context.Background(), []dga.GasReading{readingFor(0), bad})
	assert.ErrorIs(t, err, dga.ErrInvalidGasValue)
	assert.Contains(t, err.Error(), "reading 1")
	assert.Equal(t, 2, metrics.classificationErrors)
	assert.Equal(t, ModelAbsent, c.State(), "validation happens before loading")
}

func TestFaultClassifierNotTrained(t *testing.T) {
	store, err := NewModelStore(t.TempDir())
	require.NoError(t, err)
	metrics := &MockMetrics{}
	c := NewFaultClassifier(store, metrics)

	assert.False(t, c.HasModel())
	_, err = c.Classify(context.Background(), readingFor(0))
	assert.ErrorIs(t, err, dga.ErrModelNotTrained)
	_, err = c.ClassifyWithProbabilities(context.Background(), readingFor(0))
	assert.ErrorIs(t, err, dga.ErrModelNotTrained)
	assert.Zero(t, metrics.modelLoadFailures)
	assert.Equal(t, ModelAbsent, c.State())
}

func TestFaultClassifierMissingArtifactIsLoadError(t *testing.T) {
	store, err := NewModelStore(t.TempDir())
	require.NoError(t, err)
	c := NewFaultClassifier(store, &MockMetrics{})

	err = c.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, dga.ErrModelNotTrained)
	assert.ErrorIs(t, err, dga.ErrModelLoad)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	var loadErr *dga.ModelLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, store.Path(), loadErr.Path)
}

func TestFaultClassifierCorruptArtifact(t *testing.T) {
	c, store, metrics := trainedClassifier(t, KindKNN)
	require.NoError(t, os.WriteFile(store.Path(), []byte{0x01, 0x02}, 0o644))

	_, err := c.Classify(context.Background(), readingFor(0))
	assert.ErrorIs(t, err, dga.ErrModelLoad)
	assert.NotErrorIs(t, err, dga.ErrModelNotTrained)
	assert.Equal(t, 1, metrics.modelLoadFailures)
}

func TestFaultClassifierSetReplacesResident(t *testing.T) {
	c, _, _ := trainedClassifier(t, KindKNN)
	_, err := c.Classify(context.Background(), readingFor(0))
	require.NoError(t, err)

	p, _ := fittedPipeline(t, KindRandomForest)
	c.Set(p, ModelMetadata{RunID: "r2", Kind: KindRandomForest})
	assert.Equal(t, ModelReloaded, c.State())
	meta, _ := c.Metadata()
	assert.Equal(t, "r2", meta.RunID)
}

func TestFaultClassifierConcurrent(t *testing.T) {
	c, _, _ := trainedClassifier(t, KindKNN)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			label, err := c.Classify(context.Background(), readingFor(3))
			assert.NoError(t, err)
			assert.Equal(t, dga.HighEnergyDischarge, label)
		}()
	}
	wg.Wait()
	assert.Equal(t, ModelLoaded, c.State())
}

func TestNormalise(t *testing.T) {
	assert.Equal(t, []float64{0.25, 0.75}, normalise([]float64{1, 3}))
	assert.Equal(t, []float64{0.5, 0.5}, normalise([]float64{0, 0}))
	assert.Equal(t, []float64{0, 1}, normalise([]float64{math.NaN(), 2}))
}
