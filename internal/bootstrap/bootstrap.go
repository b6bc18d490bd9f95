// Package bootstrap builds the pipeline collaborators from a Config.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kiwi-insure/internal/config"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/ai"
	oai "github.com/OFFIS-RIT/kiwi-insure/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/kiwi-insure/pkg/ai/openai"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/graph"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store/memory"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store/neo4j"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store/pgx"
)

// NewAIClient returns the adapter selected by cfg.AI.Adapter.
func NewAIClient(cfg config.AIConfig) (ai.GraphAIClient, error) {
	switch cfg.Adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel:  cfg.EmbedModel,
			ExtractionModel: cfg.ExtractModel,
			EmbeddingDim:    cfg.EmbedDim,
			Temperature:     cfg.Temperature,
			MaxTokens:       cfg.MaxTokens,

			BaseURL: cfg.ChatURL,
			ApiKey:  cfg.ChatKey,

			MaxConcurrentRequests: cfg.MaxConcurrency,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case "openai", "":
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ExtractionModel: cfg.ExtractModel,
			EmbeddingModel:  cfg.EmbedModel,
			EmbeddingDim:    cfg.EmbedDim,
			Temperature:     cfg.Temperature,
			MaxTokens:       cfg.MaxTokens,

			ChatURL:      cfg.ChatURL,
			ChatKey:      cfg.ChatKey,
			EmbeddingURL: cfg.EmbedURL,
			EmbeddingKey: cfg.EmbedKey,

			MaxConcurrentRequests: cfg.MaxConcurrency,
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI adapter %q", cfg.Adapter)
	}
}

// OpenStore connects the graph store named by kind. aiClient is only used
// by the pgx store when embeddings are enabled.
func OpenStore(ctx context.Context, kind string, cfg *config.Config, aiClient ai.GraphAIClient) (store.GraphStore, error) {
	switch kind {
	case "memory":
		return memory.NewGraphStore(), nil
	case "pgx":
		var opts []pgx.GraphDBStorageOption
		if cfg.StoreEmbeddings && aiClient != nil {
			opts = append(opts, pgx.WithEmbeddings(aiClient))
		}
		s, err := pgx.Open(ctx, cfg.DatabaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "neo4j", "":
		s, err := neo4j.NewGraphStore(ctx, neo4j.Params{
			URI:         cfg.Neo4j.URI,
			User:        cfg.Neo4j.User,
			Password:    cfg.Neo4j.Password,
			Database:    cfg.Neo4j.Database,
			Timeout:     cfg.Neo4j.Timeout,
			MaxPoolSize: cfg.Neo4j.MaxPoolSize,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown graph store %q", kind)
	}
}

// ChunkConfig converts the environment chunk settings.
func ChunkConfig(cfg config.ChunkConfig) (graph.ChunkConfig, error) {
	mode, err := graph.ParseChunkMode(cfg.Mode)
	if err != nil {
		return graph.ChunkConfig{}, err
	}
	c := graph.ChunkConfig{
		ChunkSize:          cfg.Size,
		ChunkOverlap:       cfg.Overlap,
		PreserveBoundaries: mode != graph.ChunkModeSimple,
		Mode:               mode,
	}
	return c, c.Validate()
}

// NewGraphClient wires a GraphClient from cfg.
func NewGraphClient(cfg *config.Config, aiClient ai.GraphAIClient, s store.GraphStore) (*graph.GraphClient, error) {
	chunk, err := ChunkConfig(cfg.Chunk)
	if err != nil {
		return nil, err
	}
	policy, err := graph.ParseFailurePolicy(cfg.Extract.FailurePolicy)
	if err != nil {
		return nil, err
	}
	return graph.NewGraphClient(graph.NewGraphClientParams{
		AIClient:      aiClient,
		Store:         s,
		Chunk:         chunk,
		FailurePolicy: policy,
		CallTimeout:   cfg.Extract.CallTimeout,
		MaxRetries:    cfg.Extract.MaxRetries,
		RetryBackoff:  time.Second,
	})
}
