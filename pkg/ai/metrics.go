package ai

import (
	"math"
	"sync"
)

// MetricsRecorder accumulates ModelMetrics across calls. Adapters embed it
// to satisfy the metrics half of GraphAIClient. The zero value is ready to
// use.
type MetricsRecorder struct {
	mu      sync.Mutex
	metrics ModelMetrics
}

// Record adds m to the running totals and recomputes the token rate.
func (r *MetricsRecorder) Record(m ModelMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.InputTokens += m.InputTokens
	r.metrics.OutputTokens += m.OutputTokens
	r.metrics.TotalTokens += m.TotalTokens
	r.metrics.DurationMs += m.DurationMs

	if r.metrics.DurationMs > 0 {
		perSecond := float64(r.metrics.TotalTokens) * 1000 / float64(r.metrics.DurationMs)
		r.metrics.TokenPerSecond = float32(math.Round(perSecond*100) / 100)
	}
}

// GetMetrics returns the totals since the last reset.
func (r *MetricsRecorder) GetMetrics() ModelMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// ResetMetrics zeroes the totals.
func (r *MetricsRecorder) ResetMetrics() {
	r.mu.Lock()
	r.metrics = ModelMetrics{}
	r.mu.Unlock()
}
