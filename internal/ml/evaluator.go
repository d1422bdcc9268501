package ml

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"dga-engine/internal/dga"
)

// EvaluationResult holds out-of-fold metrics for one candidate: every
// example is predicted exactly once by a model that did not see it.
type EvaluationResult struct {
	Kind              Kind                        `json:"kind"`
	Name              string                      `json:"name"`
	Accuracy          float64                     `json:"accuracy"`
	MacroPrecision    float64                     `json:"macro_precision"`
	MacroRecall       float64                     `json:"macro_recall"`
	MacroF1           float64                     `json:"macro_f1"`
	WeightedPrecision float64                     `json:"weighted_precision"`
	WeightedRecall    float64                     `json:"weighted_recall"`
	WeightedF1        float64                     `json:"weighted_f1"`
	PerClass          [dga.NumLabels]ClassMetrics `json:"per_class"`
	Confusion         ConfusionMatrix             `json:"confusion_matrix"`
	Examples          int                         `json:"examples"`
	EffectiveFolds    int                         `json:"effective_folds"`
}

// Evaluator computes unbiased per-class metrics for every candidate.
type Evaluator struct {
	cfg     Config
	metrics MetricsInterface
}

func NewEvaluator(cfg Config, metrics MetricsInterface) *Evaluator {
	cfg.Workers = max(cfg.Workers, 1)
	return &Evaluator{cfg: cfg, metrics: orNoop(metrics)}
}

// EvaluateAll returns one result per candidate in declaration order.
func (e *Evaluator) EvaluateAll(ctx context.Context, ds *Dataset, nFolds int) ([]EvaluationResult, error) {
	if err := ds.validateForTraining(); err != nil {
		return nil, err
	}
	k, err := EffectiveFolds(ds.ClassCounts, nFolds)
	if err != nil {
		return nil, err
	}

	x, y := ds.X(), ds.Y()
	folds := stratifiedFolds(y, k, e.cfg.Seed)
	candidates := Candidates()
	preds := make([][]int, len(candidates))
	for i := range preds {
		preds[i] = make([]int, len(y))
	}

	err = crossValidate(ctx, e.cfg.Workers, e.cfg.Seed, len(candidates), k, func(_ context.Context, u cvUnit, seed int64) error {
		test := folds[u.fold]
		xTrain, yTrain := subset(x, y, trainIndices(len(y), test))
		xTest, _ := subset(x, y, test)

		pipe, err := NewPipeline(candidates[u.candidate].Kind, e.cfg.Hyperparameters, seed)
		if err != nil {
			return err
		}
		if err := pipe.Fit(xTrain, yTrain); err != nil {
			return fmt.Errorf("%s fold %d: %w", candidates[u.candidate].Name, u.fold, err)
		}
		// Folds are disjoint, so units write disjoint positions.
		for i, p := range pipe.Predict(xTest) {
			preds[u.candidate][test[i]] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]EvaluationResult, len(candidates))
	for i, c := range candidates {
		cm := confusion(y, preds[i])
		agg := scoreConfusion(cm)
		results[i] = EvaluationResult{
			Kind:              c.Kind,
			Name:              c.Name,
			Accuracy:          agg.accuracy,
			MacroPrecision:    agg.macroPrecision,
			MacroRecall:       agg.macroRecall,
			MacroF1:           agg.macroF1,
			WeightedPrecision: agg.weightedPrecision,
			WeightedRecall:    agg.weightedRecall,
			WeightedF1:        agg.weightedF1,
			PerClass:          agg.perClass,
			Confusion:         cm,
			Examples:          len(y),
			EffectiveFolds:    k,
		}
		log.Info().
			Str("model.name", c.Name).
			Float64("accuracy", agg.accuracy).
			Float64("macro_f1", agg.macroF1).
			Float64("weighted_f1", agg.weightedF1).
			Msg("Candidate evaluated")
	}
	return results, nil
}
