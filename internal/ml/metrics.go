package ml

// MetricsInterface defines the metrics hooks used by the engine. The
// prometheus-backed implementation lives in internal/metrics.
type MetricsInterface interface {
	VoteFailuresInc(method string)
	DatasetExamplesSet(float64)
	DatasetSkippedSet(float64)
	TrainingRunsInc()
	TrainingFailuresInc()
	TrainingDurationObserve(float64)
	CandidateScoreSet(candidate string, mean float64)
	ClassificationsInc(label string)
	ClassificationFailuresInc()
	ClassificationLatencyObserve(float64)
	ModelLoadsInc()
	ModelLoadFailuresInc()
}

type noopMetrics struct{}

func (noopMetrics) VoteFailuresInc(string)               {}
func (noopMetrics) DatasetExamplesSet(float64)           {}
func (noopMetrics) DatasetSkippedSet(float64)            {}
func (noopMetrics) TrainingRunsInc()                     {}
func (noopMetrics) TrainingFailuresInc()                 {}
func (noopMetrics) TrainingDurationObserve(float64)      {}
func (noopMetrics) CandidateScoreSet(string, float64)    {}
func (noopMetrics) ClassificationsInc(string)            {}
func (noopMetrics) ClassificationFailuresInc()           {}
func (noopMetrics) ClassificationLatencyObserve(float64) {}
func (noopMetrics) ModelLoadsInc()                       {}
func (noopMetrics) ModelLoadFailuresInc()                {}

func orNoop(m MetricsInterface) MetricsInterface {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
