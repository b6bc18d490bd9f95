package graph

import "fmt"

// ChunkingConfigurationError is returned by the chunker when its size
// parameters could never make progress.
type ChunkingConfigurationError struct {
	ChunkSize    int
	ChunkOverlap int
	Reason       string
}

func (e *ChunkingConfigurationError) Error() string {
	return fmt.Sprintf("invalid chunking configuration (size=%d, overlap=%d): %s",
		e.ChunkSize, e.ChunkOverlap, e.Reason)
}

// ExtractionParseError means the model answered but the answer held no
// decodable extraction payload. Raw keeps the response for diagnostics.
type ExtractionParseError struct {
	UnitID string
	Raw    string
	Err    error
}

func (e *ExtractionParseError) Error() string {
	return fmt.Sprintf("failed to parse extraction for unit %s: %v", e.UnitID, e.Err)
}

func (e *ExtractionParseError) Unwrap() error { return e.Err }

// ExtractionTransportError wraps a failed LLM call.
type ExtractionTransportError struct {
	UnitID string
	Err    error
}

func (e *ExtractionTransportError) Error() string {
	return fmt.Sprintf("llm call failed for unit %s: %v", e.UnitID, e.Err)
}

func (e *ExtractionTransportError) Unwrap() error { return e.Err }
