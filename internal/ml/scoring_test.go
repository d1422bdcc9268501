package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dga-engine/internal/dga"
)

func TestScoreConfusion(t *testing.T) {
	// truth:      N N N T1 T1 D2
	// predicted:  N N T1 T1 N D2
	yTrue := []int{0, 0, 0, 4, 4, 3}
	yPred := []int{0, 0, 4, 4, 0, 3}

	cm := confusion(yTrue, yPred)
	assert.Equal(t, 2, cm[0][0])
	assert.Equal(t, 1, cm[0][4])
	assert.Equal(t, 1, cm[4][0])

	agg := scoreConfusion(cm)
	assert.InDelta(t, 4.0/6, agg.accuracy, 1e-12)

	n := agg.perClass[dga.Normal]
	assert.InDelta(t, 2.0/3, n.Precision, 1e-12)
	assert.InDelta(t, 2.0/3, n.Recall, 1e-12)
	assert.Equal(t, 3, n.Support)

	t1 := agg.perClass[dga.ThermalLow]
	assert.InDelta(t, 0.5, t1.Precision, 1e-12)
	assert.InDelta(t, 0.5, t1.Recall, 1e-12)
	assert.InDelta(t, 0.5, t1.F1, 1e-12)

	assert.Equal(t, 1.0, agg.perClass[dga.HighEnergyDischarge].F1)

	// macro over N, D2, T1
	assert.InDelta(t, (2.0/3+1+0.5)/3, agg.macroF1, 1e-12)
	// weighted by support 3, 1, 2
	assert.InDelta(t, (3*(2.0/3)+1*1+2*0.5)/6, agg.weightedF1, 1e-12)
}

func TestScoreConfusionZeroDivision(t *testing.T) {
	// class T3 is predicted but never true: precision 0, recall 0
	cm := confusion([]int{0, 0}, []int{0, 6})
	agg := scoreConfusion(cm)

	t3 := agg.perClass[dga.ThermalHigh]
	assert.Equal(t, 0.0, t3.Precision)
	assert.Equal(t, 0.0, t3.Recall)
	assert.Equal(t, 0.0, t3.F1)
	assert.Equal(t, 0, t3.Support)

	// macro includes T3 because it was predicted
	n := agg.perClass[dga.Normal]
	assert.InDelta(t, n.F1/2, agg.macroF1, 1e-12)

	empty := scoreConfusion(ConfusionMatrix{})
	assert.Equal(t, 0.0, empty.accuracy)
	assert.Equal(t, 0.0, empty.macroF1)
}

func TestMeanStd(t *testing.T) {
	mean, std := meanStd([]float64{1, 1, 1, 1})
	assert.Equal(t, 1.0, mean)
	assert.Equal(t, 0.0, std)

	mean, std = meanStd([]float64{2, 4})
	assert.Equal(t, 3.0, mean)
	assert.Equal(t, 1.0, std)

	mean, std = meanStd(nil)
	assert.Zero(t, mean)
	assert.Zero(t, std)
}

func TestStandardScaler(t *testing.T) {
	x := [][]float64{{1, 10}, {3, 10}, {5, 10}}
	s := &StandardScaler{}
	s.Fit(x)

	assert.InDeltaSlice(t, []float64{3, 10}, s.Mean, 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant feature keeps unit scale")

	out := s.Transform(x)
	assert.InDelta(t, 0, out[1][0], 1e-12)
	assert.InDelta(t, -out[0][0], out[2][0], 1e-12)
	assert.Equal(t, 0.0, out[0][1])
	assert.Equal(t, 1.0, x[0][0], "input must not be modified")
}
