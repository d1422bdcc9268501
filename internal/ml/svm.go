package ml

import (
	"math"
	"math/rand"

	"dga-engine/internal/dga"
)

// kernelCacheLimit bounds the training size for which the full Gram matrix
// is precomputed.
const kernelCacheLimit = 3000

// BinarySVM separates one class from the rest.
type BinarySVM struct {
	Class   int
	Vectors [][]float64
	Coef    []float64 // alpha_i * y_i per support vector
	Bias    float64
}

// KernelSVM is a one-vs-rest RBF support vector classifier trained with
// sequential minimal optimisation. Probabilities are the softmax of the
// per-class decision values.
type KernelSVM struct {
	Gamma    float64
	Classes  []int
	Machines []BinarySVM

	c         float64
	gamma     float64
	tol       float64
	maxPasses int
	maxIter   int
	seed      int64
}

func NewKernelSVM(hp Hyperparameters, seed int64) *KernelSVM {
	s := &KernelSVM{
		c:         hp.SVMC,
		gamma:     hp.SVMGamma,
		tol:       hp.SVMTolerance,
		maxPasses: hp.SVMMaxPasses,
		maxIter:   hp.SVMMaxIter,
		seed:      seed,
	}
	if s.tol <= 0 {
		s.tol = 1e-3
	}
	if s.maxPasses <= 0 {
		s.maxPasses = 5
	}
	if s.maxIter <= 0 {
		s.maxIter = 200
	}
	return s
}

func rbf(a, b []float64, gamma float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return math.Exp(-gamma * d)
}

// scaleGamma mirrors the "scale" heuristic: 1 / (n_features * Var(X)).
func scaleGamma(x [][]float64) float64 {
	var sum, sq float64
	var n float64
	for _, row := range x {
		for _, v := range row {
			sum += v
			sq += v * v
			n++
		}
	}
	if n == 0 {
		return 1
	}
	mean := sum / n
	variance := sq/n - mean*mean
	if variance <= 1e-12 {
		return 1
	}
	return 1 / (float64(len(x[0])) * variance)
}

func (s *KernelSVM) Fit(x [][]float64, y []int) error {
	if err := validateTraining(x, y); err != nil {
		return err
	}
	s.Gamma = s.gamma
	if s.Gamma <= 0 {
		s.Gamma = scaleGamma(x)
	}
	s.Classes = presentClasses(y)
	s.Machines = nil
	if len(s.Classes) < 2 {
		return nil
	}

	n := len(x)
	var gram []float64
	if n <= kernelCacheLimit {
		gram = make([]float64, n*n)
		for i := 0; i < n; i++ {
			gram[i*n+i] = 1
			for j := i + 1; j < n; j++ {
				k := rbf(x[i], x[j], s.Gamma)
				gram[i*n+j] = k
				gram[j*n+i] = k
			}
		}
	}
	kernel := func(i, j int) float64 {
		if gram != nil {
			return gram[i*n+j]
		}
		return rbf(x[i], x[j], s.Gamma)
	}

	rng := rand.New(rand.NewSource(s.seed))
	for _, class := range s.Classes {
		target := make([]float64, n)
		for i, c := range y {
			if c == class {
				target[i] = 1
			} else {
				target[i] = -1
			}
		}
		alpha, bias := s.smo(target, kernel, rand.New(rand.NewSource(rng.Int63())))

		m := BinarySVM{Class: class, Bias: bias}
		for i, a := range alpha {
			if a > 1e-8 {
				m.Vectors = append(m.Vectors, x[i])
				m.Coef = append(m.Coef, a*target[i])
			}
		}
		s.Machines = append(s.Machines, m)
	}
	return nil
}

// smo runs the simplified SMO solver and returns the dual coefficients and bias.
func (s *KernelSVM) smo(target []float64, kernel func(i, j int) float64, rng *rand.Rand) ([]float64, float64) {
	n := len(target)
	alpha := make([]float64, n)
	var b float64

	output := func(i int) float64 {
		f := b
		for k, a := range alpha {
			if a != 0 {
				f += a * target[k] * kernel(k, i)
			}
		}
		return f
	}

	passes, iter := 0, 0
	for passes < s.maxPasses && iter < s.maxIter {
		changed := 0
		for i := 0; i < n; i++ {
			ei := output(i) - target[i]
			if !((target[i]*ei < -s.tol && alpha[i] < s.c) || (target[i]*ei > s.tol && alpha[i] > 0)) {
				continue
			}
			j := rng.Intn(n - 1)
			if j >= i {
				j++
			}
			ej := output(j) - target[j]

			ai, aj := alpha[i], alpha[j]
			var lo, hi float64
			if target[i] != target[j] {
				lo = math.Max(0, aj-ai)
				hi = math.Min(s.c, s.c+aj-ai)
			} else {
				lo = math.Max(0, ai+aj-s.c)
				hi = math.Min(s.c, ai+aj)
			}
			if lo == hi {
				continue
			}
			kij, kii, kjj := kernel(i, j), kernel(i, i), kernel(j, j)
			eta := 2*kij - kii - kjj
			if eta >= 0 {
				continue
			}

			newAj := aj - target[j]*(ei-ej)/eta
			newAj = math.Min(hi, math.Max(lo, newAj))
			if math.Abs(newAj-aj) < 1e-5 {
				continue
			}
			newAi := ai + target[i]*target[j]*(aj-newAj)
			alpha[i], alpha[j] = newAi, newAj

			b1 := b - ei - target[i]*(newAi-ai)*kii - target[j]*(newAj-aj)*kij
			b2 := b - ej - target[i]*(newAi-ai)*kij - target[j]*(newAj-aj)*kjj
			switch {
			case newAi > 0 && newAi < s.c:
				b = b1
			case newAj > 0 && newAj < s.c:
				b = b2
			default:
				b = (b1 + b2) / 2
			}
			changed++
		}
		iter++
		if changed == 0 {
			passes++
		} else {
			passes = 0
		}
	}
	return alpha, b
}

func (m *BinarySVM) decision(row []float64, gamma float64) float64 {
	f := m.Bias
	for i, v := range m.Vectors {
		f += m.Coef[i] * rbf(v, row, gamma)
	}
	return f
}

func (s *KernelSVM) PredictProba(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		p := make([]float64, dga.NumLabels)
		switch {
		case len(s.Classes) == 1:
			p[s.Classes[0]] = 1
		case len(s.Machines) > 0:
			scores := make([]float64, len(s.Machines))
			top := math.Inf(-1)
			for k := range s.Machines {
				scores[k] = s.Machines[k].decision(row, s.Gamma)
				top = math.Max(top, scores[k])
			}
			var z float64
			for k := range scores {
				scores[k] = math.Exp(scores[k] - top)
				z += scores[k]
			}
			for k, m := range s.Machines {
				p[m.Class] = scores[k] / z
			}
		}
		out[i] = p
	}
	return out
}

func (s *KernelSVM) Predict(x [][]float64) []int {
	return argmaxRows(s.PredictProba(x))
}
