package ml

import (
	"errors"
	"fmt"
	"strings"

	"dga-engine/internal/dga"
)

// Kind identifies one of the candidate algorithms. The set is closed.
type Kind int

const (
	KindRandomForest Kind = iota
	KindKernelSVM
	KindKNN
	KindMLP
)

// Kinds lists every candidate in declaration order, which is also the final
// tie-break when two candidates score identically.
var Kinds = []Kind{KindRandomForest, KindKernelSVM, KindKNN, KindMLP}

var kindNames = map[Kind]string{
	KindRandomForest: "random_forest",
	KindKernelSVM:    "svm",
	KindKNN:          "knn",
	KindMLP:          "mlp",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the names printed by String.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown candidate %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Hyperparameters configure every candidate. Zero values in optional fields
// select the documented automatic behaviour.
type Hyperparameters struct {
	ForestTrees       int `yaml:"forest_trees"`
	ForestMinSplit    int `yaml:"forest_min_split"`
	ForestMinLeaf     int `yaml:"forest_min_leaf"`
	ForestMaxDepth    int `yaml:"forest_max_depth"`    // 0 = unlimited
	ForestMaxFeatures int `yaml:"forest_max_features"` // 0 = sqrt(features)

	SVMC         float64 `yaml:"svm_c"`
	SVMGamma     float64 `yaml:"svm_gamma"` // 0 = 1/(features * var(X))
	SVMTolerance float64 `yaml:"svm_tolerance"`
	SVMMaxPasses int     `yaml:"svm_max_passes"`
	SVMMaxIter   int     `yaml:"svm_max_iter"`

	KNNNeighbors int  `yaml:"knn_neighbors"`
	KNNUniform   bool `yaml:"knn_uniform"`

	MLPHidden             []int   `yaml:"mlp_hidden"`
	MLPLearningRate       float64 `yaml:"mlp_learning_rate"`
	MLPMaxEpochs          int     `yaml:"mlp_max_epochs"`
	MLPBatchSize          int     `yaml:"mlp_batch_size"`
	MLPAlpha              float64 `yaml:"mlp_alpha"`
	MLPValidationFraction float64 `yaml:"mlp_validation_fraction"`
	MLPPatience           int     `yaml:"mlp_patience"`

	PermutationRepeats int `yaml:"permutation_repeats"`
}

// DefaultHyperparameters returns the production configuration.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		ForestTrees:    200,
		ForestMinSplit: 3,
		ForestMinLeaf:  1,

		SVMC:         10,
		SVMTolerance: 1e-3,
		SVMMaxPasses: 5,
		SVMMaxIter:   200,

		KNNNeighbors: 5,

		MLPHidden:             []int{64, 32},
		MLPLearningRate:       1e-3,
		MLPMaxEpochs:          500,
		MLPBatchSize:          200,
		MLPAlpha:              1e-4,
		MLPValidationFraction: 0.15,
		MLPPatience:           10,

		PermutationRepeats: 5,
	}
}

// Validate rejects values no candidate can train with.
func (h Hyperparameters) Validate() error {
	var errs []error
	if h.ForestTrees < 1 {
		errs = append(errs, errors.New("forest_trees must be positive"))
	}
	if h.ForestMinSplit < 2 {
		errs = append(errs, errors.New("forest_min_split must be at least 2"))
	}
	if h.ForestMinLeaf < 1 {
		errs = append(errs, errors.New("forest_min_leaf must be at least 1"))
	}
	if h.SVMC <= 0 {
		errs = append(errs, errors.New("svm_c must be positive"))
	}
	if h.SVMGamma < 0 {
		errs = append(errs, errors.New("svm_gamma cannot be negative"))
	}
	if h.KNNNeighbors < 1 {
		errs = append(errs, errors.New("knn_neighbors must be positive"))
	}
	if len(h.MLPHidden) == 0 {
		errs = append(errs, errors.New("mlp_hidden needs at least one layer"))
	}
	for _, n := range h.MLPHidden {
		if n < 1 {
			errs = append(errs, errors.New("mlp_hidden layer sizes must be positive"))
			break
		}
	}
	if h.MLPLearningRate <= 0 {
		errs = append(errs, errors.New("mlp_learning_rate must be positive"))
	}
	if h.MLPMaxEpochs < 1 {
		errs = append(errs, errors.New("mlp_max_epochs must be positive"))
	}
	if h.MLPValidationFraction < 0 || h.MLPValidationFraction >= 1 {
		errs = append(errs, errors.New("mlp_validation_fraction must be in [0, 1)"))
	}
	return errors.Join(errs...)
}

// Candidate is one algorithm with its hyperparameters, before fitting.
type Candidate struct {
	Kind Kind
	Name string
}

// Candidates returns the fixed catalogue in declaration order.
func Candidates() []Candidate {
	out := make([]Candidate, len(Kinds))
	for i, k := range Kinds {
		out[i] = Candidate{Kind: k, Name: k.String()}
	}
	return out
}

// Classifier is a multi-class model over class indices 0..dga.NumLabels-1.
// PredictProba rows always have dga.NumLabels columns; classes absent from
// the training data get probability 0.
type Classifier interface {
	Fit(x [][]float64, y []int) error
	Predict(x [][]float64) []int
	PredictProba(x [][]float64) [][]float64
}

func newClassifier(kind Kind, hp Hyperparameters, seed int64) (Classifier, error) {
	switch kind {
	case KindRandomForest:
		return NewRandomForest(hp, seed), nil
	case KindKernelSVM:
		return NewKernelSVM(hp, seed), nil
	case KindKNN:
		return NewKNearest(hp), nil
	case KindMLP:
		return NewNeuralNet(hp, seed), nil
	}
	return nil, fmt.Errorf("unknown candidate kind %d", int(kind))
}

// Pipeline is a standardisation step followed by a classifier.
type Pipeline struct {
	Kind   Kind
	Scaler *StandardScaler
	Model  Classifier
}

// NewPipeline builds an unfitted pipeline.
func NewPipeline(kind Kind, hp Hyperparameters, seed int64) (*Pipeline, error) {
	model, err := newClassifier(kind, hp, seed)
	if err != nil {
		return nil, err
	}
	return &Pipeline{Kind: kind, Scaler: &StandardScaler{}, Model: model}, nil
}

// Fit fits the scaler and then the classifier on the same rows.
func (p *Pipeline) Fit(x [][]float64, y []int) error {
	if len(x) == 0 {
		return errors.New("cannot fit on an empty training set")
	}
	p.Scaler.Fit(x)
	return p.Model.Fit(p.Scaler.Transform(x), y)
}

func (p *Pipeline) Predict(x [][]float64) []int {
	return p.Model.Predict(p.Scaler.Transform(x))
}

func (p *Pipeline) PredictProba(x [][]float64) [][]float64 {
	return p.Model.PredictProba(p.Scaler.Transform(x))
}

// argmax returns the first index holding the maximum.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func argmaxRows(proba [][]float64) []int {
	out := make([]int, len(proba))
	for i, row := range proba {
		out[i] = argmax(row)
	}
	return out
}

// presentClasses returns the distinct labels of y in ascending order.
func presentClasses(y []int) []int {
	var seen [dga.NumLabels]bool
	for _, c := range y {
		seen[c] = true
	}
	var out []int
	for c, ok := range seen {
		if ok {
			out = append(out, c)
		}
	}
	return out
}

func validateTraining(x [][]float64, y []int) error {
	if len(x) == 0 {
		return errors.New("empty training set")
	}
	if len(x) != len(y) {
		return fmt.Errorf("features and labels differ in length: %d vs %d", len(x), len(y))
	}
	for _, c := range y {
		if c < 0 || c >= dga.NumLabels {
			return fmt.Errorf("class index %d out of range", c)
		}
	}
	return nil
}
