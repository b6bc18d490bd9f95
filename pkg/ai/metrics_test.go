package ai

import (
	"sync"
	"testing"
)

func TestMetricsRecorder(t *testing.T) {
	var r MetricsRecorder

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(ModelMetrics{InputTokens: 80, OutputTokens: 20, TotalTokens: 100, DurationMs: 500})
		}()
	}
	wg.Wait()

	got := r.GetMetrics()
	want := ModelMetrics{InputTokens: 800, OutputTokens: 200, TotalTokens: 1000, DurationMs: 5000, TokenPerSecond: 200}
	if got != want {
		t.Fatalf("metrics = %+v, want %+v", got, want)
	}

	r.ResetMetrics()
	if got := r.GetMetrics(); got != (ModelMetrics{}) {
		t.Fatalf("after reset = %+v", got)
	}
}

func TestMetricsRecorderZeroDuration(t *testing.T) {
	var r MetricsRecorder
	r.Record(ModelMetrics{TotalTokens: 10})
	if got := r.GetMetrics().TokenPerSecond; got != 0 {
		t.Fatalf("token rate without duration = %v", got)
	}
}
