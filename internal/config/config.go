// Package config assembles the process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kiwi-insure/internal/util"
)

// AIConfig configures the LLM adapter.
type AIConfig struct {
	Adapter        string // openai | ollama
	ChatURL        string
	ChatKey        string
	ExtractModel   string
	EmbedURL       string
	EmbedKey       string
	EmbedModel     string
	EmbedDim       int
	Temperature    float64
	MaxTokens      int
	MaxConcurrency int64
}

// Neo4jConfig configures the neo4j graph store.
type Neo4jConfig struct {
	URI         string
	User        string
	Password    string
	Database    string
	Timeout     time.Duration
	MaxPoolSize int
}

// ChunkConfig mirrors graph.ChunkConfig without importing it.
type ChunkConfig struct {
	Size    int
	Overlap int
	Mode    string
}

// ExtractConfig configures the extraction stage.
type ExtractConfig struct {
	FailurePolicy string // skip | abort
	CallTimeout   time.Duration
	MaxRetries    int
}

// QueueConfig configures RabbitMQ.
type QueueConfig struct {
	User     string
	Password string
	Host     string
	Port     string
}

// URL returns the amqp connection string.
func (q QueueConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", q.User, q.Password, q.Host, q.Port)
}

// S3Config configures the document bucket.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// Config is the full process configuration.
type Config struct {
	AI         AIConfig
	GraphStore string // neo4j | pgx | memory
	Neo4j      Neo4jConfig

	// StoreEmbeddings makes the pgx store embed entity descriptions.
	StoreEmbeddings bool
	DatabaseURL     string

	Chunk   ChunkConfig
	Extract ExtractConfig
	Queue   QueueConfig
	S3      S3Config

	AuthURL      string
	MasterAPIKey string
	Port         string
	Debug        bool
}

// Load reads the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		AI: AIConfig{
			Adapter:        strings.ToLower(util.GetEnvString("AI_ADAPTER", "openai")),
			ChatURL:        util.GetEnv("AI_CHAT_URL"),
			ChatKey:        util.GetEnv("AI_CHAT_KEY"),
			ExtractModel:   util.GetEnvString("AI_CHAT_EXTRACT_MODEL", "gpt-4o-mini"),
			EmbedURL:       util.GetEnv("AI_EMBED_URL"),
			EmbedKey:       util.GetEnv("AI_EMBED_KEY"),
			EmbedModel:     util.GetEnvString("AI_EMBED_MODEL", "text-embedding-3-small"),
			EmbedDim:       util.GetEnvInt("AI_EMBED_DIM", 1536),
			Temperature:    util.GetEnvFloat("AI_TEMPERATURE", 0.1),
			MaxTokens:      util.GetEnvInt("AI_MAX_TOKENS", 2000),
			MaxConcurrency: int64(util.GetEnvInt("AI_MAX_CONCURRENCY", 15)),
		},
		GraphStore:      strings.ToLower(util.GetEnvString("GRAPH_STORE", "neo4j")),
		StoreEmbeddings: util.GetEnvBool("GRAPH_STORE_EMBEDDINGS", false),
		Neo4j: Neo4jConfig{
			URI:         util.GetEnvString("NEO4J_URI", "bolt://localhost:7687"),
			User:        util.GetEnvString("NEO4J_USER", "neo4j"),
			Password:    util.GetEnv("NEO4J_PASSWORD"),
			Database:    util.GetEnvString("NEO4J_DATABASE", "neo4j"),
			Timeout:     util.GetEnvSeconds("NEO4J_TIMEOUT_SECONDS", 30*time.Second),
			MaxPoolSize: util.GetEnvInt("NEO4J_MAX_POOL_SIZE", 50),
		},
		DatabaseURL: util.GetEnv("DATABASE_URL"),
		Chunk: ChunkConfig{
			Size:    util.GetEnvInt("CHUNK_SIZE", 1000),
			Overlap: util.GetEnvInt("CHUNK_OVERLAP", 200),
			Mode:    strings.ToLower(util.GetEnvString("CHUNK_MODE", "boundary")),
		},
		Extract: ExtractConfig{
			FailurePolicy: strings.ToLower(util.GetEnvString("EXTRACT_FAILURE_POLICY", "skip")),
			CallTimeout:   util.GetEnvSeconds("EXTRACT_CALL_TIMEOUT_SECONDS", 0),
			MaxRetries:    util.GetEnvInt("EXTRACT_MAX_RETRIES", 1),
		},
		Queue: QueueConfig{
			User:     util.GetEnvString("RABBITMQ_USER", "guest"),
			Password: util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
			Host:     util.GetEnvString("RABBITMQ_HOST", "localhost"),
			Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
		},
		S3: S3Config{
			Region:    util.GetEnvString("AWS_REGION", "us-east-1"),
			Endpoint:  util.GetEnv("AWS_ENDPOINT"),
			AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey: util.GetEnv("AWS_SECRET_KEY"),
			Bucket:    util.GetEnvString("AWS_BUCKET", "documents"),
		},
		AuthURL:      util.GetEnv("AUTH_URL"),
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
		Port:         util.GetEnvString("PORT", "8080"),
		Debug:        util.GetEnvBool("DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated values and obvious misconfiguration.
func (c *Config) Validate() error {
	switch c.AI.Adapter {
	case "openai", "ollama":
	default:
		return fmt.Errorf("invalid AI_ADAPTER %q: want openai or ollama", c.AI.Adapter)
	}
	switch c.GraphStore {
	case "neo4j", "pgx", "memory":
	default:
		return fmt.Errorf("invalid GRAPH_STORE %q: want neo4j, pgx or memory", c.GraphStore)
	}
	if c.GraphStore == "pgx" && c.DatabaseURL == "" {
		return fmt.Errorf("GRAPH_STORE=pgx requires DATABASE_URL")
	}
	switch c.Chunk.Mode {
	case "simple", "boundary", "policy":
	default:
		return fmt.Errorf("invalid CHUNK_MODE %q: want simple, boundary or policy", c.Chunk.Mode)
	}
	switch c.Extract.FailurePolicy {
	case "skip", "abort":
	default:
		return fmt.Errorf("invalid EXTRACT_FAILURE_POLICY %q: want skip or abort", c.Extract.FailurePolicy)
	}
	if c.Extract.MaxRetries < 1 {
		return fmt.Errorf("EXTRACT_MAX_RETRIES must be >= 1, got %d", c.Extract.MaxRetries)
	}
	return nil
}
