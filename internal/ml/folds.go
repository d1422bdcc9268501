package ml

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"dga-engine/internal/dga"
)

// ErrInvalidFolds is returned when fewer than two folds are requested.
var ErrInvalidFolds = errors.New("number of folds must be at least 2")

// EffectiveFolds resolves the fold count actually used for cross-validation:
// the requested count capped by the size of the rarest present class.
func EffectiveFolds(counts [dga.NumLabels]int, requested int) (int, error) {
	if requested < 2 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidFolds, requested)
	}

	total, classes := 0, 0
	rarest := -1
	for i, c := range counts {
		if c == 0 {
			continue
		}
		total += c
		classes++
		if rarest < 0 || c < counts[rarest] {
			rarest = i
		}
	}
	if classes < 2 {
		return 0, &dga.InsufficientDataError{
			Reason:         "at least two distinct fault classes are required",
			Examples:       total,
			Classes:        classes,
			RequestedFolds: requested,
		}
	}

	effective := min(requested, counts[rarest])
	if effective < 2 {
		label := dga.FaultLabel(rarest)
		return 0, &dga.InsufficientDataError{
			Reason:         "every class needs at least two examples for stratified cross-validation",
			Examples:       total,
			Classes:        classes,
			RequestedFolds: requested,
			EffectiveFolds: effective,
			Label:          &label,
		}
	}
	return effective, nil
}

// stratifiedFolds assigns every index to one of k test folds so that each
// class is spread as evenly as possible. Members of a class are shuffled
// with the seeded generator and dealt round-robin, continuing from the fold
// where the previous class stopped so fold sizes stay balanced.
func stratifiedFolds(y []int, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))

	byClass := make([][]int, dga.NumLabels)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}

	folds := make([][]int, k)
	start := 0
	for _, members := range byClass {
		if len(members) == 0 {
			continue
		}
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		for i, idx := range members {
			f := (start + i) % k
			folds[f] = append(folds[f], idx)
		}
		start = (start + len(members)) % k
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds
}

// trainIndices returns every index not in test, ascending.
func trainIndices(n int, test []int) []int {
	inTest := make([]bool, n)
	for _, i := range test {
		inTest[i] = true
	}
	out := make([]int, 0, n-len(test))
	for i := 0; i < n; i++ {
		if !inTest[i] {
			out = append(out, i)
		}
	}
	return out
}

func subset(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = x[j]
		ys[i] = y[j]
	}
	return xs, ys
}

// unitSeed derives the RNG seed for one candidate/fold unit so results do not
// depend on the order in which units are scheduled.
func unitSeed(seed int64, candidate, fold int) int64 {
	h := uint64(seed)
	h ^= uint64(candidate+1) * 0x9E3779B97F4A7C15
	h ^= uint64(fold+1) * 0xBF58476D1CE4E5B9
	h ^= h >> 31
	h *= 0x94D049BB133111EB
	h ^= h >> 29
	return int64(h & 0x7FFFFFFFFFFFFFFF)
}
