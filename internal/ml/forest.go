package ml

import (
	"math"
	"math/rand"
	"sort"

	"dga-engine/internal/dga"
)

// TreeNode is one node of a fitted decision tree. Leaves have Feature -1 and
// carry the class distribution of the training rows that reached them.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64
}

// DecisionTree is a CART classifier grown on Gini impurity.
type DecisionTree struct {
	Nodes []TreeNode
}

func (t *DecisionTree) proba(row []float64) []float64 {
	n := 0
	for t.Nodes[n].Feature >= 0 {
		node := t.Nodes[n]
		if row[node.Feature] <= node.Threshold {
			n = node.Left
		} else {
			n = node.Right
		}
	}
	return t.Nodes[n].Value
}

// RandomForest averages the class distributions of bootstrapped trees, each
// split considering a random subset of the features.
type RandomForest struct {
	Trees []DecisionTree

	nTrees      int
	minSplit    int
	minLeaf     int
	maxDepth    int
	maxFeatures int
	seed        int64
}

func NewRandomForest(hp Hyperparameters, seed int64) *RandomForest {
	return &RandomForest{
		nTrees:      hp.ForestTrees,
		minSplit:    max(hp.ForestMinSplit, 2),
		minLeaf:     max(hp.ForestMinLeaf, 1),
		maxDepth:    hp.ForestMaxDepth,
		maxFeatures: hp.ForestMaxFeatures,
		seed:        seed,
	}
}

func (f *RandomForest) Fit(x [][]float64, y []int) error {
	if err := validateTraining(x, y); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(f.seed))
	d := len(x[0])
	mtry := f.maxFeatures
	if mtry <= 0 || mtry > d {
		mtry = max(1, int(math.Sqrt(float64(d))))
	}

	n := len(x)
	f.Trees = make([]DecisionTree, max(f.nTrees, 1))
	for t := range f.Trees {
		treeRng := rand.New(rand.NewSource(rng.Int63()))
		sample := make([]int, n)
		for i := range sample {
			sample[i] = treeRng.Intn(n)
		}
		b := &treeBuilder{
			x: x, y: y, rng: treeRng, mtry: mtry,
			minSplit: f.minSplit, minLeaf: f.minLeaf, maxDepth: f.maxDepth,
		}
		b.grow(sample, 0)
		f.Trees[t] = DecisionTree{Nodes: b.nodes}
	}
	return nil
}

func (f *RandomForest) PredictProba(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		p := make([]float64, dga.NumLabels)
		for t := range f.Trees {
			for c, v := range f.Trees[t].proba(row) {
				p[c] += v
			}
		}
		for c := range p {
			p[c] /= float64(len(f.Trees))
		}
		out[i] = p
	}
	return out
}

func (f *RandomForest) Predict(x [][]float64) []int {
	return argmaxRows(f.PredictProba(x))
}

type treeBuilder struct {
	x        [][]float64
	y        []int
	rng      *rand.Rand
	mtry     int
	minSplit int
	minLeaf  int
	maxDepth int
	nodes    []TreeNode
}

func (b *treeBuilder) classCounts(idx []int) [dga.NumLabels]float64 {
	var counts [dga.NumLabels]float64
	for _, i := range idx {
		counts[b.y[i]]++
	}
	return counts
}

func gini(counts *[dga.NumLabels]float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

func (b *treeBuilder) leaf(counts [dga.NumLabels]float64, n int) int {
	value := make([]float64, dga.NumLabels)
	for c := range value {
		value[c] = counts[c] / float64(n)
	}
	b.nodes = append(b.nodes, TreeNode{Feature: -1, Value: value})
	return len(b.nodes) - 1
}

// grow appends the subtree for idx and returns its root position.
func (b *treeBuilder) grow(idx []int, depth int) int {
	counts := b.classCounts(idx)
	n := len(idx)
	pure := false
	for _, c := range counts {
		if int(c) == n {
			pure = true
		}
	}
	if pure || n < b.minSplit || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return b.leaf(counts, n)
	}

	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		return b.leaf(counts, n)
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	pos := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{Feature: feature, Threshold: threshold})
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[pos].Left = l
	b.nodes[pos].Right = r
	return pos
}

// bestSplit scans features in random order until mtry non-constant features
// have been examined and returns the split with the lowest weighted Gini.
func (b *treeBuilder) bestSplit(idx []int, total [dga.NumLabels]float64) (int, float64, bool) {
	n := float64(len(idx))
	bestScore := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0
	sorted := make([]int, len(idx))
	visited := 0

	for _, feature := range b.rng.Perm(len(b.x[0])) {
		if visited >= b.mtry && bestFeature >= 0 {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i]][feature] < b.x[sorted[j]][feature]
		})
		if b.x[sorted[0]][feature] == b.x[sorted[len(sorted)-1]][feature] {
			continue
		}
		visited++

		var left [dga.NumLabels]float64
		right := total
		for k := 0; k < len(sorted)-1; k++ {
			c := b.y[sorted[k]]
			left[c]++
			right[c]--
			nl := k + 1
			nr := len(sorted) - nl
			lo, hi := b.x[sorted[k]][feature], b.x[sorted[k+1]][feature]
			if lo == hi || nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			score := (float64(nl)*gini(&left, float64(nl)) + float64(nr)*gini(&right, float64(nr))) / n
			if score < bestScore {
				bestScore = score
				bestFeature = feature
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
