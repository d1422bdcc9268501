package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"dga-engine/internal/dga"
)

// CandidateScore is the cross-validated accuracy of one candidate.
type CandidateScore struct {
	Kind       Kind      `json:"kind"`
	Name       string    `json:"name"`
	FoldScores []float64 `json:"fold_scores"`
	Mean       float64   `json:"mean"`
	Std        float64   `json:"std"`
}

// TrainingResult describes a finished training run.
type TrainingResult struct {
	RunID          string             `json:"run_id"`
	Best           Kind               `json:"best"`
	BestName       string             `json:"best_name"`
	Candidates     []CandidateScore   `json:"candidates"`
	RequestedFolds int                `json:"requested_folds"`
	EffectiveFolds int                `json:"effective_folds"`
	Examples       int                `json:"examples"`
	Classes        []dga.FaultLabel   `json:"classes"`
	ClassCounts    [dga.NumLabels]int `json:"class_counts"`
	TrainedAt      time.Time          `json:"trained_at"`
	Duration       time.Duration      `json:"duration"`
}

// BestScore returns the score entry of the winning candidate.
func (r *TrainingResult) BestScore() CandidateScore {
	for _, c := range r.Candidates {
		if c.Kind == r.Best {
			return c
		}
	}
	return CandidateScore{}
}

// Config holds what the trainer and evaluator need beyond the data.
type Config struct {
	Hyperparameters Hyperparameters
	Seed            int64
	Workers         int
}

// Trainer compares the candidates under stratified cross-validation and
// refits the winner on the full dataset.
type Trainer struct {
	cfg     Config
	metrics MetricsInterface
	now     func() time.Time
}

func NewTrainer(cfg Config, metrics MetricsInterface) *Trainer {
	cfg.Workers = max(cfg.Workers, 1)
	return &Trainer{cfg: cfg, metrics: orNoop(metrics), now: time.Now}
}

type cvUnit struct {
	candidate int
	fold      int
}

// crossValidate runs fn for every candidate/fold pair on a bounded worker
// pool. Each unit gets its own seed derived from its coordinates.
func crossValidate(ctx context.Context, workers int, seed int64, candidates, folds int, fn func(ctx context.Context, u cvUnit, seed int64) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for c := 0; c < candidates; c++ {
		for f := 0; f < folds; f++ {
			u := cvUnit{candidate: c, fold: f}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return fn(gctx, u, unitSeed(seed, u.candidate, u.fold))
			})
		}
	}
	return g.Wait()
}

// Train scores every candidate on the same folds and returns the result
// together with the winner refitted on all examples.
func (t *Trainer) Train(ctx context.Context, ds *Dataset, nFolds int) (*TrainingResult, *Pipeline, error) {
	start := t.now()
	t.metrics.TrainingRunsInc()

	res, pipe, err := t.train(ctx, ds, nFolds)
	if err != nil {
		t.metrics.TrainingFailuresInc()
		return nil, nil, err
	}
	res.TrainedAt = start
	res.Duration = t.now().Sub(start)
	t.metrics.TrainingDurationObserve(res.Duration.Seconds())
	return res, pipe, nil
}

func (t *Trainer) train(ctx context.Context, ds *Dataset, nFolds int) (*TrainingResult, *Pipeline, error) {
	if err := ds.validateForTraining(); err != nil {
		return nil, nil, err
	}
	k, err := EffectiveFolds(ds.ClassCounts, nFolds)
	if err != nil {
		return nil, nil, err
	}
	if k < nFolds {
		log.Warn().Int("requested_folds", nFolds).Int("effective_folds", k).
			Msg("Reducing folds to the size of the rarest class")
	}

	x, y := ds.X(), ds.Y()
	folds := stratifiedFolds(y, k, t.cfg.Seed)
	candidates := Candidates()
	scores := make([][]float64, len(candidates))
	for i := range scores {
		scores[i] = make([]float64, k)
	}

	err = crossValidate(ctx, t.cfg.Workers, t.cfg.Seed, len(candidates), k, func(_ context.Context, u cvUnit, seed int64) error {
		test := folds[u.fold]
		xTrain, yTrain := subset(x, y, trainIndices(len(y), test))
		xTest, yTest := subset(x, y, test)

		pipe, err := NewPipeline(candidates[u.candidate].Kind, t.cfg.Hyperparameters, seed)
		if err != nil {
			return err
		}
		if err := pipe.Fit(xTrain, yTrain); err != nil {
			return fmt.Errorf("%s fold %d: %w", candidates[u.candidate].Name, u.fold, err)
		}
		scores[u.candidate][u.fold] = accuracy(yTest, pipe.Predict(xTest))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	res := &TrainingResult{
		RunID:          uuid.NewString(),
		RequestedFolds: nFolds,
		EffectiveFolds: k,
		Examples:       ds.Len(),
		Classes:        ds.Classes(),
		ClassCounts:    ds.ClassCounts,
	}
	best := -1
	for i, c := range candidates {
		mean, std := meanStd(scores[i])
		res.Candidates = append(res.Candidates, CandidateScore{
			Kind: c.Kind, Name: c.Name, FoldScores: scores[i], Mean: mean, Std: std,
		})
		t.metrics.CandidateScoreSet(c.Name, mean)
		log.Info().
			Str("model.name", c.Name).
			Float64("cv_mean", mean).
			Float64("cv_std", std).
			Int("folds", k).
			Msg("Candidate cross-validated")
		if best < 0 || betterScore(res.Candidates[i], res.Candidates[best]) {
			best = i
		}
	}
	res.Best = res.Candidates[best].Kind
	res.BestName = res.Candidates[best].Name

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	pipe, err := NewPipeline(res.Best, t.cfg.Hyperparameters, unitSeed(t.cfg.Seed, best, k))
	if err != nil {
		return nil, nil, err
	}
	if err := pipe.Fit(x, y); err != nil {
		return nil, nil, fmt.Errorf("refit %s: %w", res.BestName, err)
	}

	log.Info().
		Str("run_id", res.RunID).
		Str("model.name", res.BestName).
		Float64("cv_mean", res.Candidates[best].Mean).
		Int("data.samples", ds.Len()).
		Msg("Best candidate refitted on full dataset")
	return res, pipe, nil
}

// betterScore ranks by higher mean, then lower spread. Equal scores keep the
// earlier candidate.
func betterScore(a, b CandidateScore) bool {
	if a.Mean != b.Mean {
		return a.Mean > b.Mean
	}
	return a.Std < b.Std
}
