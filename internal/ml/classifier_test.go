package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dga-engine/internal/dga"
)

func TestKindNames(t *testing.T) {
	for _, k := range Kinds {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("xgboost")
	assert.Error(t, err)

	got, err := ParseKind(" SVM ")
	require.NoError(t, err)
	assert.Equal(t, KindKernelSVM, got)
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestCandidatesOrder(t *testing.T) {
	names := make([]string, 0, 4)
	for _, c := range Candidates() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"random_forest", "svm", "knn", "mlp"}, names)
}

func TestHyperparametersValidate(t *testing.T) {
	require.NoError(t, DefaultHyperparameters().Validate())

	hp := DefaultHyperparameters()
	hp.ForestTrees = 0
	hp.SVMC = 0
	hp.MLPHidden = nil
	err := hp.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forest_trees")
	assert.Contains(t, err.Error(), "svm_c")
	assert.Contains(t, err.Error(), "mlp_hidden")
}

func TestClassifiersSeparateClusters(t *testing.T) {
	train := map[int]int{0: 25, 3: 20, 4: 20, 6: 15}
	xTrain, yTrain := clusteredData(train, 1)
	xTest, yTest := clusteredData(map[int]int{0: 10, 3: 10, 4: 10, 6: 10}, 2)

	for _, kind := range Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			pipe, err := NewPipeline(kind, testHyperparameters(), 11)
			require.NoError(t, err)
			require.NoError(t, pipe.Fit(xTrain, yTrain))

			acc := accuracy(yTest, pipe.Predict(xTest))
			assert.GreaterOrEqual(t, acc, 0.9, "held-out accuracy")

			proba := pipe.PredictProba(xTest)
			require.Len(t, proba, len(xTest))
			for i, row := range proba {
				require.Len(t, row, dga.NumLabels)
				var sum float64
				for _, v := range row {
					assert.GreaterOrEqual(t, v, 0.0)
					sum += v
				}
				assert.InDelta(t, 1.0, sum, 1e-6, "row %d", i)
				// classes never seen in training get nothing
				assert.Zero(t, row[dga.Overheating])
				assert.Zero(t, row[dga.PartialDischarge])
			}
		})
	}
}

func TestClassifiersDeterministicForSeed(t *testing.T) {
	x, y := clusteredData(map[int]int{0: 15, 2: 15, 5: 15}, 3)

	for _, kind := range Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			a, err := NewPipeline(kind, testHyperparameters(), 5)
			require.NoError(t, err)
			b, err := NewPipeline(kind, testHyperparameters(), 5)
			require.NoError(t, err)
			require.NoError(t, a.Fit(x, y))
			require.NoError(t, b.Fit(x, y))
			assert.Equal(t, a.PredictProba(x), b.PredictProba(x))
		})
	}
}

func TestClassifiersRejectBadInput(t *testing.T) {
	for _, kind := range Kinds {
		pipe, err := NewPipeline(kind, testHyperparameters(), 1)
		require.NoError(t, err)
		assert.Error(t, pipe.Fit(nil, nil), kind.String())

		model, err := newClassifier(kind, testHyperparameters(), 1)
		require.NoError(t, err)
		assert.Error(t, model.Fit([][]float64{{1}, {2}}, []int{0}), kind.String())
		assert.Error(t, model.Fit([][]float64{{1}}, []int{dga.NumLabels}), kind.String())
	}
}

func TestKNearestExactMatchDominates(t *testing.T) {
	knn := NewKNearest(Hyperparameters{KNNNeighbors: 3})
	require.NoError(t, knn.Fit(
		[][]float64{{0, 0}, {0.1, 0}, {0.2, 0}, {5, 5}},
		[]int{1, 2, 2, 3},
	))

	p := knn.PredictProba([][]float64{{0, 0}})[0]
	assert.Equal(t, 1.0, p[1])
	assert.Zero(t, p[2])

	uniform := NewKNearest(Hyperparameters{KNNNeighbors: 3, KNNUniform: true})
	require.NoError(t, uniform.Fit(knn.X, knn.Y))
	p = uniform.PredictProba([][]float64{{0, 0}})[0]
	assert.InDelta(t, 1.0/3, p[1], 1e-12)
	assert.InDelta(t, 2.0/3, p[2], 1e-12)
}

func TestSingleClassTraining(t *testing.T) {
	x, y := clusteredData(map[int]int{4: 6}, 1)
	for _, kind := range Kinds {
		model, err := newClassifier(kind, testHyperparameters(), 1)
		require.NoError(t, err)
		require.NoError(t, model.Fit(x, y), kind.String())
		for _, p := range model.Predict(x) {
			assert.Equal(t, 4, p, kind.String())
		}
	}
}

func TestArgmaxFirstMaximum(t *testing.T) {
	assert.Equal(t, 1, argmax([]float64{0.1, 0.4, 0.4, 0.1}))
	assert.Equal(t, 0, argmax([]float64{0.5, 0.5}))
}
