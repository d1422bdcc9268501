package ml

import (
	"math"
	"math/rand"

	"dga-engine/internal/dga"
)

// DenseLayer is a fully connected layer; W is indexed [out][in].
type DenseLayer struct {
	W [][]float64
	B []float64
}

// NeuralNet is a multilayer perceptron with ReLU hidden layers and a softmax
// output over the classes seen during training, trained with Adam on
// cross-entropy plus L2 regularisation. When early stopping is enabled a
// stratified validation split is held out and the weights with the best
// validation accuracy are kept.
type NeuralNet struct {
	Layers  []DenseLayer
	Classes []int

	hidden      []int
	lr          float64
	maxEpochs   int
	batchSize   int
	alpha       float64
	valFraction float64
	patience    int
	seed        int64
	steps       int
}

func NewNeuralNet(hp Hyperparameters, seed int64) *NeuralNet {
	hidden := hp.MLPHidden
	if len(hidden) == 0 {
		hidden = []int{64, 32}
	}
	return &NeuralNet{
		hidden:      append([]int(nil), hidden...),
		lr:          hp.MLPLearningRate,
		maxEpochs:   max(hp.MLPMaxEpochs, 1),
		batchSize:   hp.MLPBatchSize,
		alpha:       hp.MLPAlpha,
		valFraction: hp.MLPValidationFraction,
		patience:    max(hp.MLPPatience, 1),
		seed:        seed,
	}
}

func (nn *NeuralNet) Fit(x [][]float64, y []int) error {
	if err := validateTraining(x, y); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(nn.seed))
	nn.Classes = presentClasses(y)
	classPos := make(map[int]int, len(nn.Classes))
	for i, c := range nn.Classes {
		classPos[c] = i
	}
	target := make([]int, len(y))
	for i, c := range y {
		target[i] = classPos[c]
	}

	sizes := append([]int{len(x[0])}, nn.hidden...)
	sizes = append(sizes, len(nn.Classes))
	nn.Layers = make([]DenseLayer, len(sizes)-1)
	for l := range nn.Layers {
		in, out := sizes[l], sizes[l+1]
		// Glorot uniform
		bound := math.Sqrt(6 / float64(in+out))
		layer := DenseLayer{W: make([][]float64, out), B: make([]float64, out)}
		for o := 0; o < out; o++ {
			layer.W[o] = make([]float64, in)
			for i := 0; i < in; i++ {
				layer.W[o][i] = (rng.Float64()*2 - 1) * bound
			}
			layer.B[o] = (rng.Float64()*2 - 1) * bound
		}
		nn.Layers[l] = layer
	}
	if len(nn.Classes) < 2 {
		return nil
	}

	trainIdx, valIdx := nn.validationSplit(target, rng)
	opt := newAdam(nn.Layers, nn.lr)
	batch := nn.batchSize
	if batch <= 0 || batch > len(trainIdx) {
		batch = min(200, len(trainIdx))
	}

	stopper := &earlyStopping{patience: nn.patience, minSteps: minEarlyStopSteps, best: -1}
	steps := 0
	var best []DenseLayer
	for epoch := 0; epoch < nn.maxEpochs; epoch++ {
		rng.Shuffle(len(trainIdx), func(i, j int) { trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i] })
		for start := 0; start < len(trainIdx); start += batch {
			end := min(start+batch, len(trainIdx))
			grads := nn.gradients(x, target, trainIdx[start:end])
			opt.step(nn.Layers, grads)
			steps++
		}

		if len(valIdx) == 0 {
			continue
		}
		keep, stop := stopper.observe(nn.indexAccuracy(x, target, valIdx), steps)
		if keep {
			best = cloneLayers(nn.Layers)
		}
		if stop {
			break
		}
	}
	nn.steps = steps
	if best != nil {
		nn.Layers = best
	}
	return nil
}

// minEarlyStopSteps is the number of optimiser steps taken before early
// stopping may end training. Small datasets fit in one batch, so an epoch
// can be a single step.
const minEarlyStopSteps = 300

// earlyStopping tracks validation accuracy across epochs. Patience counts
// epochs without improvement once minSteps optimiser steps have run.
type earlyStopping struct {
	patience int
	minSteps int
	best     float64
	stale    int
}

// observe records one epoch's score. keep reports whether the current
// weights are at least as good as the best seen; stop ends training.
func (e *earlyStopping) observe(score float64, steps int) (keep, stop bool) {
	switch {
	case score > e.best+1e-4:
		e.best, e.stale = score, 0
		return true, false
	case score >= e.best:
		keep = true
	}
	if steps < e.minSteps {
		return keep, false
	}
	e.stale++
	return keep, e.stale >= e.patience
}

// validationSplit holds out a stratified fraction of rows; it returns no
// validation rows when the split would leave a class without training data.
func (nn *NeuralNet) validationSplit(target []int, rng *rand.Rand) ([]int, []int) {
	all := make([]int, len(target))
	for i := range all {
		all[i] = i
	}
	if nn.valFraction <= 0 {
		return all, nil
	}
	byClass := make([][]int, len(nn.Classes))
	for i, c := range target {
		byClass[c] = append(byClass[c], i)
	}
	var train, val []int
	for _, members := range byClass {
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		nVal := int(math.Round(nn.valFraction * float64(len(members))))
		if nVal >= len(members) {
			nVal = len(members) - 1
		}
		val = append(val, members[:nVal]...)
		train = append(train, members[nVal:]...)
	}
	if len(val) < 2 {
		return all, nil
	}
	return train, val
}

func (nn *NeuralNet) forward(row []float64) [][]float64 {
	acts := make([][]float64, len(nn.Layers)+1)
	acts[0] = row
	for l, layer := range nn.Layers {
		out := make([]float64, len(layer.B))
		for o := range out {
			s := layer.B[o]
			w := layer.W[o]
			for i, v := range acts[l] {
				s += w[i] * v
			}
			out[o] = s
		}
		if l < len(nn.Layers)-1 {
			for o := range out {
				if out[o] < 0 {
					out[o] = 0
				}
			}
		} else {
			softmax(out)
		}
		acts[l+1] = out
	}
	return acts
}

func softmax(v []float64) {
	top := math.Inf(-1)
	for _, x := range v {
		top = math.Max(top, x)
	}
	var z float64
	for i, x := range v {
		v[i] = math.Exp(x - top)
		z += v[i]
	}
	for i := range v {
		v[i] /= z
	}
}

// gradients returns the mean cross-entropy gradient over the batch,
// including the L2 penalty on the weights.
func (nn *NeuralNet) gradients(x [][]float64, target []int, batch []int) []DenseLayer {
	grads := make([]DenseLayer, len(nn.Layers))
	for l, layer := range nn.Layers {
		grads[l] = DenseLayer{W: make([][]float64, len(layer.W)), B: make([]float64, len(layer.B))}
		for o := range layer.W {
			grads[l].W[o] = make([]float64, len(layer.W[o]))
		}
	}

	for _, idx := range batch {
		acts := nn.forward(x[idx])
		delta := append([]float64(nil), acts[len(acts)-1]...)
		delta[target[idx]] -= 1
		for l := len(nn.Layers) - 1; l >= 0; l-- {
			in := acts[l]
			g := grads[l]
			for o, d := range delta {
				g.B[o] += d
				for i, v := range in {
					g.W[o][i] += d * v
				}
			}
			if l == 0 {
				break
			}
			prev := make([]float64, len(in))
			for o, d := range delta {
				for i := range prev {
					prev[i] += nn.Layers[l].W[o][i] * d
				}
			}
			for i := range prev {
				if in[i] <= 0 {
					prev[i] = 0
				}
			}
			delta = prev
		}
	}

	n := float64(len(batch))
	for l, layer := range nn.Layers {
		for o := range layer.W {
			for i := range layer.W[o] {
				grads[l].W[o][i] = grads[l].W[o][i]/n + nn.alpha*layer.W[o][i]/n
			}
			grads[l].B[o] /= n
		}
	}
	return grads
}

func (nn *NeuralNet) indexAccuracy(x [][]float64, target []int, idx []int) float64 {
	correct := 0
	for _, i := range idx {
		acts := nn.forward(x[i])
		if argmax(acts[len(acts)-1]) == target[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(idx))
}

func (nn *NeuralNet) PredictProba(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		p := make([]float64, dga.NumLabels)
		if len(nn.Classes) == 1 {
			p[nn.Classes[0]] = 1
		} else if len(nn.Layers) > 0 {
			acts := nn.forward(row)
			for k, v := range acts[len(acts)-1] {
				p[nn.Classes[k]] = v
			}
		}
		out[i] = p
	}
	return out
}

func (nn *NeuralNet) Predict(x [][]float64) []int {
	return argmaxRows(nn.PredictProba(x))
}

func cloneLayers(layers []DenseLayer) []DenseLayer {
	out := make([]DenseLayer, len(layers))
	for l, layer := range layers {
		out[l] = DenseLayer{W: make([][]float64, len(layer.W)), B: append([]float64(nil), layer.B...)}
		for o, w := range layer.W {
			out[l].W[o] = append([]float64(nil), w...)
		}
	}
	return out
}

type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  []DenseLayer
}

func newAdam(layers []DenseLayer, lr float64) *adam {
	zero := func() []DenseLayer {
		out := cloneLayers(layers)
		for _, l := range out {
			for o := range l.W {
				clear(l.W[o])
			}
			clear(l.B)
		}
		return out
	}
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8, m: zero(), v: zero()}
}

func (a *adam) step(layers, grads []DenseLayer) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	rate := a.lr * math.Sqrt(c2) / c1
	update := func(param, grad, m, v []float64) {
		for i := range param {
			m[i] = a.beta1*m[i] + (1-a.beta1)*grad[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*grad[i]*grad[i]
			param[i] -= rate * m[i] / (math.Sqrt(v[i]) + a.eps)
		}
	}
	for l := range layers {
		for o := range layers[l].W {
			update(layers[l].W[o], grads[l].W[o], a.m[l].W[o], a.v[l].W[o])
		}
		update(layers[l].B, grads[l].B, a.m[l].B, a.v[l].B)
	}
}
