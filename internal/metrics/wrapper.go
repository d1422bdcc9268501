package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow interface the ml package
// records against.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) VoteFailuresInc(method string) {
	w.m.VoteFailures.WithLabelValues(method).Inc()
}

func (w *MetricsWrapper) DatasetExamplesSet(v float64) {
	w.m.DatasetExamples.Set(v)
}

func (w *MetricsWrapper) DatasetSkippedSet(v float64) {
	w.m.DatasetSkipped.Set(v)
}

func (w *MetricsWrapper) SamplesImportedAdd(n int) {
	w.m.SamplesImported.Add(float64(n))
}

func (w *MetricsWrapper) TrainingRunsInc() {
	w.m.TrainingRuns.Inc()
}

func (w *MetricsWrapper) TrainingFailuresInc() {
	w.m.TrainingFailures.Inc()
}

func (w *MetricsWrapper) TrainingDurationObserve(seconds float64) {
	w.m.TrainingDuration.Observe(seconds)
}

func (w *MetricsWrapper) CandidateScoreSet(candidate string, mean float64) {
	w.m.CandidateScore.WithLabelValues(candidate).Set(mean)
}

func (w *MetricsWrapper) ClassificationsInc(label string) {
	w.m.Classifications.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) ClassificationFailuresInc() {
	w.m.ClassificationErrors.Inc()
}

func (w *MetricsWrapper) ClassificationLatencyObserve(seconds float64) {
	w.m.ClassificationLatency.Observe(seconds)
}

func (w *MetricsWrapper) ModelLoadsInc() {
	w.m.ModelLoads.Inc()
}

func (w *MetricsWrapper) ModelLoadFailuresInc() {
	w.m.ModelLoadFailures.Inc()
}

// ObserveRequest records one served HTTP request.
func (w *MetricsWrapper) ObserveRequest(route string, code int, seconds float64) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	w.m.HTTPDuration.WithLabelValues(route).Observe(seconds)
}
