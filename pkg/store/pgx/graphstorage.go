// Package pgx implements store.GraphStore on PostgreSQL. Entities and
// relationships live in two tables with uniqueness constraints matching the
// upsert keys; entity descriptions are optionally embedded with pgvector.
package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/ai"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStore using PostgreSQL.
type GraphDBStorage struct {
	conn        pgxIConn
	pool        *pgxpool.Pool
	databaseURL string
	aiClient    ai.GraphAIClient
}

var _ store.GraphStore = (*GraphDBStorage)(nil)

// GraphDBStorageOption configures a GraphDBStorage.
type GraphDBStorageOption func(*GraphDBStorage)

// WithEmbeddings stores an embedding of every upserted entity, generated by
// client.
func WithEmbeddings(client ai.GraphAIClient) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.aiClient = client
	}
}

// WithMigrationURL makes EnsureSchema run the embedded migrations against
// databaseURL with golang-migrate instead of applying the schema directly.
func WithMigrationURL(databaseURL string) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.databaseURL = databaseURL
	}
}

// NewGraphDBStorageWithConnection wraps an existing connection or pool.
func NewGraphDBStorageWithConnection(conn pgxIConn, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{conn: conn}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

var (
	migrateSchema = Migrate
	connectPool   = pgxpool.NewWithConfig
)

// Open migrates databaseURL and connects a pool with pgvector types
// registered. The vector type only exists once the migrations have created
// the extension, so migrating comes first. The pool is closed by Close.
func Open(ctx context.Context, databaseURL string, opts ...GraphDBStorageOption) (*GraphDBStorage, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if err := migrateSchema(databaseURL); err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgxv5.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := connectPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := NewGraphDBStorageWithConnection(pool, append([]GraphDBStorageOption{WithMigrationURL(databaseURL)}, opts...)...)
	s.pool = pool
	return s, nil
}

// Close closes the pool opened by Open. Connections passed in by the
// caller are left alone.
func (s *GraphDBStorage) Close(context.Context) error {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}
