package ml

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dga-engine/internal/dga"
)

func TestTrainerSelectsBestCandidate(t *testing.T) {
	ds := clusteredDataset(map[int]int{0: 30, 3: 12, 4: 12, 7: 10}, 1)
	metrics := &MockMetrics{}
	tr := NewTrainer(testConfig(), metrics)

	res, pipe, err := tr.Train(context.Background(), ds, 5)
	require.NoError(t, err)
	require.NotNil(t, pipe)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 5, res.RequestedFolds)
	assert.Equal(t, 5, res.EffectiveFolds)
	assert.Equal(t, ds.Len(), res.Examples)
	require.Len(t, res.Candidates, len(Kinds))

	best := res.BestScore()
	for i, c := range res.Candidates {
		assert.Equal(t, Kinds[i], c.Kind)
		assert.Len(t, c.FoldScores, 5)
		assert.LessOrEqual(t, c.Mean, best.Mean)
		assert.Contains(t, metrics.candidateScores, c.Name)
	}
	assert.Equal(t, res.Best, pipe.Kind)
	assert.Equal(t, res.Best.String(), res.BestName)
	assert.GreaterOrEqual(t, best.Mean, 0.9)

	assert.Equal(t, 1, metrics.trainingRuns)
	assert.Zero(t, metrics.trainingFailures)
	assert.Len(t, metrics.trainingDurations, 1)

	assert.GreaterOrEqual(t, accuracy(ds.Y(), pipe.Predict(ds.X())), 0.9)
}

func TestTrainerReducesFolds(t *testing.T) {
	ds := clusteredDataset(map[int]int{0: 20, 1: 2, 4: 10}, 2)
	res, _, err := NewTrainer(testConfig(), nil).Train(context.Background(), ds, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, res.RequestedFolds)
	assert.Equal(t, 2, res.EffectiveFolds)
	for _, c := range res.Candidates {
		assert.Len(t, c.FoldScores, 2)
	}
}

func TestTrainerDeterministic(t *testing.T) {
	ds := clusteredDataset(map[int]int{0: 20, 2: 10, 5: 10}, 3)

	strip := func(r *TrainingResult) TrainingResult {
		out := *r
		out.RunID, out.TrainedAt, out.Duration = "", time.Time{}, 0
		return out
	}

	cfg := testConfig()
	a, pa, err := NewTrainer(cfg, nil).Train(context.Background(), ds, 4)
	require.NoError(t, err)
	cfg.Workers = 1
	b, pb, err := NewTrainer(cfg, nil).Train(context.Background(), ds, 4)
	require.NoError(t, err)

	assert.Equal(t, strip(a), strip(b))
	assert.Equal(t, pa.PredictProba(ds.X()), pb.PredictProba(ds.X()))
}

func TestTrainerInsufficientData(t *testing.T) {
	metrics := &MockMetrics{}
	tr := NewTrainer(testConfig(), metrics)

	_, _, err := tr.Train(context.Background(), clusteredDataset(map[int]int{0: 20}, 1), 5)
	require.ErrorIs(t, err, dga.ErrInsufficientData)

	_, _, err = tr.Train(context.Background(), clusteredDataset(map[int]int{0: 20, 3: 1}, 1), 5)
	var insufficient *dga.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	require.NotNil(t, insufficient.Label)
	assert.Equal(t, dga.HighEnergyDischarge, *insufficient.Label)

	_, _, err = tr.Train(context.Background(), clusteredDataset(map[int]int{0: 20, 3: 10}, 1), 1)
	require.ErrorIs(t, err, ErrInvalidFolds)

	assert.Equal(t, 3, metrics.trainingFailures)
}

func TestTrainerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewTrainer(testConfig(), nil).Train(ctx, clusteredDataset(map[int]int{0: 10, 3: 10}, 1), 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBetterScore(t *testing.T) {
	assert.True(t, betterScore(CandidateScore{Mean: 0.9}, CandidateScore{Mean: 0.8}))
	assert.True(t, betterScore(CandidateScore{Mean: 0.9, Std: 0.01}, CandidateScore{Mean: 0.9, Std: 0.02}))
	assert.False(t, betterScore(CandidateScore{Mean: 0.9, Std: 0.02}, CandidateScore{Mean: 0.9, Std: 0.02}))
}
