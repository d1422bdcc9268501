package ml

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"

	"dga-engine/internal/dga"
)

// FeatureScore is the permutation importance of one gas: the mean drop in
// held-out accuracy when its column is shuffled.
type FeatureScore struct {
	Gas        string  `json:"gas"`
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
	Std        float64 `json:"std"`
}

// FeatureImportance measures cross-validated permutation importance for one
// candidate. Scores are sorted by importance, highest first.
func (e *Evaluator) FeatureImportance(ctx context.Context, ds *Dataset, kind Kind, nFolds int) ([]FeatureScore, error) {
	if err := ds.validateForTraining(); err != nil {
		return nil, err
	}
	k, err := EffectiveFolds(ds.ClassCounts, nFolds)
	if err != nil {
		return nil, err
	}
	repeats := max(e.cfg.Hyperparameters.PermutationRepeats, 1)

	x, y := ds.X(), ds.Y()
	folds := stratifiedFolds(y, k, e.cfg.Seed)
	drops := make([][][]float64, k) // fold -> feature -> repeat
	candidate := int(kind)

	err = crossValidate(ctx, e.cfg.Workers, e.cfg.Seed, 1, k, func(ctx context.Context, u cvUnit, seed int64) error {
		test := folds[u.fold]
		xTrain, yTrain := subset(x, y, trainIndices(len(y), test))
		xTest, yTest := subset(x, y, test)

		pipe, err := NewPipeline(kind, e.cfg.Hyperparameters, unitSeed(e.cfg.Seed, candidate, u.fold))
		if err != nil {
			return err
		}
		if err := pipe.Fit(xTrain, yTrain); err != nil {
			return fmt.Errorf("%s fold %d: %w", kind, u.fold, err)
		}
		baseline := accuracy(yTest, pipe.Predict(xTest))

		rng := rand.New(rand.NewSource(seed))
		drops[u.fold] = make([][]float64, dga.NumGases)
		for f := 0; f < dga.NumGases; f++ {
			for r := 0; r < repeats; r++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				permuted := permuteColumn(xTest, f, rng)
				drops[u.fold][f] = append(drops[u.fold][f], baseline-accuracy(yTest, pipe.Predict(permuted)))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	scores := make([]FeatureScore, dga.NumGases)
	for f := range scores {
		var all []float64
		for fold := range drops {
			all = append(all, drops[fold][f]...)
		}
		mean, std := meanStd(all)
		scores[f] = FeatureScore{Gas: dga.GasNames[f], Name: dga.GasLabels[f], Importance: mean, Std: std}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Importance > scores[j].Importance
	})

	log.Info().
		Str("model.name", kind.String()).
		Str("top_feature", scores[0].Gas).
		Float64("top_importance", scores[0].Importance).
		Msg("Permutation importance computed")
	return scores, nil
}

// permuteColumn returns a copy of x with column f shuffled across rows.
func permuteColumn(x [][]float64, f int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = append([]float64(nil), row...)
	}
	perm := rng.Perm(len(x))
	for i, j := range perm {
		out[i][f] = x[j][f]
	}
	return out
}

// TopFeatures returns the gas names of the n highest scores.
func TopFeatures(scores []FeatureScore, n int) []string {
	n = min(n, len(scores))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = scores[i].Gas
	}
	return out
}
