package ml

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"dga-engine/internal/dga"
	"dga-engine/internal/normative"
)

// clusteredData generates well separated clusters: class c has gas c%9
// raised far above the background of every other gas.
func clusteredData(perClass map[int]int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	var x [][]float64
	var y []int
	for c := 0; c < dga.NumLabels; c++ {
		for i := 0; i < perClass[c]; i++ {
			row := make([]float64, dga.NumGases)
			for f := range row {
				row[f] = 5 + rng.Float64()*2
			}
			row[c%dga.NumGases] += 100 + rng.Float64()*10
			x = append(x, row)
			y = append(y, c)
		}
	}
	return x, y
}

func clusteredDataset(perClass map[int]int, seed int64) *Dataset {
	x, y := clusteredData(perClass, seed)
	examples := make([]Example, len(x))
	for i := range x {
		examples[i] = Example{Features: x[i], Label: dga.FaultLabel(y[i]), SampleCode: fmt.Sprintf("S%03d", i)}
	}
	return NewDataset(examples)
}

func clusteredSamples(perClass map[int]int, seed int64) []dga.Sample {
	x, _ := clusteredData(perClass, seed)
	samples := make([]dga.Sample, len(x))
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, row := range x {
		r, _ := dga.ReadingFromFeatures(row)
		samples[i] = dga.Sample{
			Code:           fmt.Sprintf("S%03d", i),
			TransformerID:  "TR-1",
			ExtractionDate: base.AddDate(0, 0, i),
			Reading:        r,
		}
	}
	return samples
}

// testHyperparameters keeps every candidate small enough for unit tests.
func testHyperparameters() Hyperparameters {
	hp := DefaultHyperparameters()
	hp.ForestTrees = 15
	hp.KNNNeighbors = 3
	hp.SVMMaxIter = 50
	hp.MLPHidden = []int{16}
	hp.MLPLearningRate = 0.01
	hp.MLPMaxEpochs = 150
	hp.MLPBatchSize = 32
	hp.MLPValidationFraction = 0
	hp.PermutationRepeats = 2
	return hp
}

func testConfig() Config {
	return Config{Hyperparameters: testHyperparameters(), Seed: 42, Workers: 4}
}

// dominantGasRules labels a reading by its highest gas: gas i maps to label i.
type dominantGasRules struct{}

func (dominantGasRules) Diagnose(ctx context.Context, _ normative.Method, r dga.GasReading) (dga.FaultLabel, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return dga.FaultLabel(argmax(r.Features())), nil
}

// scriptedRules answers each method with a fixed verdict or error.
type scriptedRules struct {
	mu      sync.Mutex
	labels  map[normative.Method]dga.FaultLabel
	errs    map[normative.Method]error
	callsBy map[normative.Method]int
}

func (s *scriptedRules) Diagnose(_ context.Context, m normative.Method, _ dga.GasReading) (dga.FaultLabel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callsBy == nil {
		s.callsBy = make(map[normative.Method]int)
	}
	s.callsBy[m]++
	if err, ok := s.errs[m]; ok {
		return 0, err
	}
	return s.labels[m], nil
}

type sliceSource struct {
	samples []dga.Sample
	err     error
}

func (s sliceSource) ListSamples(context.Context) ([]dga.Sample, error) {
	return s.samples, s.err
}
