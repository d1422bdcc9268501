// Package ml implements the fault-classification engine: consensus labelling
// of historical readings, stratified cross-validated comparison of four
// candidate classifiers, out-of-fold evaluation, persistence of the winning
// pipeline and classification of new readings.
package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu                    sync.Mutex
	voteFailures          map[string]int
	datasetExamples       float64
	datasetSkipped        float64
	trainingRuns          int
	trainingFailures      int
	trainingDurations     []float64
	candidateScores       map[string]float64
	classifications       map[string]int
	classificationErrors  int
	classificationLatency []float64
	modelLoads            int
	modelLoadFailures     int
}

func (m *MockMetrics) VoteFailuresInc(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voteFailures == nil {
		m.voteFailures = make(map[string]int)
	}
	m.voteFailures[method]++
}

func (m *MockMetrics) DatasetExamplesSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasetExamples = v
}

func (m *MockMetrics) DatasetSkippedSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasetSkipped = v
}

func (m *MockMetrics) TrainingRunsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainingRuns++
}

func (m *MockMetrics) TrainingFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainingFailures++
}

func (m *MockMetrics) TrainingDurationObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainingDurations = append(m.trainingDurations, v)
}

func (m *MockMetrics) CandidateScoreSet(candidate string, mean float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.candidateScores == nil {
		m.candidateScores = make(map[string]float64)
	}
	m.candidateScores[candidate] = mean
}

func (m *MockMetrics) ClassificationsInc(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.classifications == nil {
		m.classifications = make(map[string]int)
	}
	m.classifications[label]++
}

func (m *MockMetrics) ClassificationFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classificationErrors++
}

func (m *MockMetrics) ClassificationLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classificationLatency = append(m.classificationLatency, v)
}

func (m *MockMetrics) ModelLoadsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelLoads++
}

func (m *MockMetrics) ModelLoadFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelLoadFailures++
}
