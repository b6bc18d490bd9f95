// Package timing formats processing durations for worker logs.
package timing

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/ai"
)

// Clock renders d as HH:MM:SS. Hours are not wrapped.
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// AIDuration converts the accumulated model time of m.
func AIDuration(m ai.ModelMetrics) time.Duration {
	return time.Duration(m.DurationMs) * time.Millisecond
}

// MetricsKeyvals returns logger key/value pairs describing m.
func MetricsKeyvals(m ai.ModelMetrics) []any {
	return []any{
		"input_tokens", m.InputTokens,
		"output_tokens", m.OutputTokens,
		"total_tokens", m.TotalTokens,
		"tokens_per_second", m.TokenPerSecond,
		"duration", Clock(AIDuration(m)),
	}
}
