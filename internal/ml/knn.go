package ml

import (
	"math"
	"sort"

	"dga-engine/internal/dga"
)

// KNearest votes among the k closest training rows by Euclidean distance.
// With distance weighting, rows at distance zero take all the weight.
type KNearest struct {
	K       int
	Uniform bool
	X       [][]float64
	Y       []int
}

func NewKNearest(hp Hyperparameters) *KNearest {
	return &KNearest{K: max(hp.KNNNeighbors, 1), Uniform: hp.KNNUniform}
}

func (k *KNearest) Fit(x [][]float64, y []int) error {
	if err := validateTraining(x, y); err != nil {
		return err
	}
	k.X = make([][]float64, len(x))
	for i, row := range x {
		k.X[i] = append([]float64(nil), row...)
	}
	k.Y = append([]int(nil), y...)
	return nil
}

type neighbour struct {
	dist float64
	idx  int
}

func (k *KNearest) PredictProba(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	kk := min(k.K, len(k.X))
	neighbours := make([]neighbour, len(k.X))
	for i, row := range x {
		for j, ref := range k.X {
			var d float64
			for f := range row {
				diff := row[f] - ref[f]
				d += diff * diff
			}
			neighbours[j] = neighbour{dist: math.Sqrt(d), idx: j}
		}
		sort.Slice(neighbours, func(a, b int) bool {
			if neighbours[a].dist != neighbours[b].dist {
				return neighbours[a].dist < neighbours[b].dist
			}
			return neighbours[a].idx < neighbours[b].idx
		})

		p := make([]float64, dga.NumLabels)
		nearest := neighbours[:kk]
		exact := kk > 0 && nearest[0].dist == 0
		for _, nb := range nearest {
			w := 1.0
			switch {
			case k.Uniform:
			case exact:
				if nb.dist != 0 {
					w = 0
				}
			default:
				w = 1 / nb.dist
			}
			p[k.Y[nb.idx]] += w
		}
		var z float64
		for _, v := range p {
			z += v
		}
		if z > 0 {
			for c := range p {
				p[c] /= z
			}
		}
		out[i] = p
	}
	return out
}

func (k *KNearest) Predict(x [][]float64) []int {
	return argmaxRows(k.PredictProba(x))
}
