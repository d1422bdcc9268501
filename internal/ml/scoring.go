package ml

import (
	"math"

	"dga-engine/internal/dga"
)

// ConfusionMatrix counts predictions; rows are true labels, columns predicted.
type ConfusionMatrix [dga.NumLabels][dga.NumLabels]int

func confusion(yTrue, yPred []int) ConfusionMatrix {
	var m ConfusionMatrix
	for i := range yTrue {
		m[yTrue[i]][yPred[i]]++
	}
	return m
}

func accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// meanStd returns the mean and population standard deviation.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// ClassMetrics are the one-vs-rest scores of a single label.
type ClassMetrics struct {
	Label     dga.FaultLabel `json:"label"`
	Precision float64        `json:"precision"`
	Recall    float64        `json:"recall"`
	F1        float64        `json:"f1"`
	Support   int            `json:"support"`
}

type aggregate struct {
	accuracy          float64
	macroPrecision    float64
	macroRecall       float64
	macroF1           float64
	weightedPrecision float64
	weightedRecall    float64
	weightedF1        float64
	perClass          [dga.NumLabels]ClassMetrics
}

// scoreConfusion derives per-class, macro and support-weighted scores. Macro
// averages cover the labels that occur in either the truth or the predictions.
func scoreConfusion(m ConfusionMatrix) aggregate {
	var agg aggregate
	var total, correct int
	var predicted [dga.NumLabels]int
	for i := 0; i < dga.NumLabels; i++ {
		for j := 0; j < dga.NumLabels; j++ {
			total += m[i][j]
			predicted[j] += m[i][j]
		}
		correct += m[i][i]
	}
	agg.accuracy = safeDiv(float64(correct), float64(total))

	present := 0
	for i := 0; i < dga.NumLabels; i++ {
		support := 0
		for j := 0; j < dga.NumLabels; j++ {
			support += m[i][j]
		}
		tp := float64(m[i][i])
		p := safeDiv(tp, float64(predicted[i]))
		r := safeDiv(tp, float64(support))
		f1 := safeDiv(2*p*r, p+r)
		agg.perClass[i] = ClassMetrics{Label: dga.FaultLabel(i), Precision: p, Recall: r, F1: f1, Support: support}

		if support > 0 || predicted[i] > 0 {
			present++
			agg.macroPrecision += p
			agg.macroRecall += r
			agg.macroF1 += f1
		}
		w := safeDiv(float64(support), float64(total))
		agg.weightedPrecision += w * p
		agg.weightedRecall += w * r
		agg.weightedF1 += w * f1
	}
	if present > 0 {
		agg.macroPrecision /= float64(present)
		agg.macroRecall /= float64(present)
		agg.macroF1 /= float64(present)
	}
	return agg
}
