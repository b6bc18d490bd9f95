package graph

import (
	"errors"
	"time"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/ai"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"
)

// GraphClient is the main client of the ingestion pipeline. It chunks
// documents, extracts entities and relationships with an LLM, merges them
// and writes the result into a graph store.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	chunker   *Chunker
	extractor *Extractor
	writer    *store.GraphWriter
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// AIClient and Store are required. A zero Chunk config uses
// DefaultChunkConfig. FailurePolicy, CallTimeout, MaxRetries and
// RetryBackoff are passed to the Extractor.
type NewGraphClientParams struct {
	AIClient ai.GraphAIClient
	Store    store.GraphStore
	Chunk    ChunkConfig

	FailurePolicy   FailurePolicy
	CallTimeout     time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	GenerateOptions []ai.GenerateOption
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		AIClient: aiClient,
//		Store:    neo4jStore,
//		Chunk:    graph.ChunkConfig{ChunkSize: 1000, ChunkOverlap: 200, Mode: graph.ChunkModePolicy},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.Store == nil {
		return nil, errors.New("graph client requires a graph store")
	}
	chunkCfg := params.Chunk
	if chunkCfg == (ChunkConfig{}) {
		chunkCfg = DefaultChunkConfig()
	}
	chunker, err := NewChunker(chunkCfg)
	if err != nil {
		return nil, err
	}
	extractor, err := NewExtractor(NewExtractorParams{
		Client:          params.AIClient,
		FailurePolicy:   params.FailurePolicy,
		CallTimeout:     params.CallTimeout,
		MaxRetries:      params.MaxRetries,
		RetryBackoff:    params.RetryBackoff,
		GenerateOptions: params.GenerateOptions,
	})
	if err != nil {
		return nil, err
	}

	return &GraphClient{
		chunker:   chunker,
		extractor: extractor,
		writer:    store.NewGraphWriter(params.Store),
	}, nil
}

// Writer returns the graph writer used by the client.
func (g *GraphClient) Writer() *store.GraphWriter { return g.writer }

// Store returns the underlying graph store.
func (g *GraphClient) Store() store.GraphStore { return g.writer.Store() }
