package graph

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/ai"
)

// stubClient answers completions with respond and tracks concurrency.
type stubClient struct {
	respond func(ctx context.Context, prompt string) (string, error)

	mu       sync.Mutex
	prompts  []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *stubClient) GenerateCompletion(ctx context.Context, prompt string, _ ...ai.GenerateOption) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.respond(ctx, prompt)
}

func (s *stubClient) GenerateEmbedding(context.Context, []byte) ([]float32, error) {
	return []float32{0, 0, 0}, nil
}

func (s *stubClient) ResetMetrics()               {}
func (s *stubClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func (s *stubClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *stubClient) promptsContaining(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.prompts {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}

// fixed returns the same response for every prompt.
func fixed(resp string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return resp, nil }
}

const johnMapoResponse = `Here is the extraction:
{
  "entities": [
    {"name": "John", "type": "Person", "description": "John lives in Mapo-gu.", "confidence": 0.9},
    {"name": "Mapo-gu", "type": "Location", "description": "District with high flood risk.", "confidence": "0.95", "properties": {"risk_zone": "flood"}}
  ],
  "relationships": [
    {"source": "John", "target": "Mapo-gu", "type": "lives in", "description": "John lives in Mapo-gu.", "confidence": 0.9}
  ]
}
Let me know if you need more.`
