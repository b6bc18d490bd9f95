// Package neo4j implements store.GraphStore on Neo4j. Every entity is an
// :Entity node carrying a second label named after its type; relationship
// types become Neo4j relationship types.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphStore is a store.GraphStore backed by a Neo4j driver.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ store.GraphStore = (*GraphStore)(nil)

// Params configures the connection. Timeout bounds the connect and the
// initial connectivity check.
type Params struct {
	URI         string
	User        string
	Password    string
	Database    string
	Timeout     time.Duration
	MaxPoolSize int
}

// NewGraphStore opens a driver and verifies connectivity.
func NewGraphStore(ctx context.Context, p Params) (*GraphStore, error) {
	if p.URI == "" {
		return nil, fmt.Errorf("neo4j: uri required")
	}
	if p.User == "" {
		p.User = "neo4j"
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	if p.MaxPoolSize <= 0 {
		p.MaxPoolSize = 50
	}

	auth := neo4j.BasicAuth(p.User, p.Password, "")
	driver, err := neo4j.NewDriverWithContext(p.URI, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = p.MaxPoolSize
		cfg.SocketConnectTimeout = p.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	return &GraphStore{driver: driver, database: p.Database}, nil
}

// Close releases the driver.
func (s *GraphStore) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}

// Run executes cypher in a managed transaction of the given access mode and
// returns every record as a map keyed by column name.
func (s *GraphStore) Run(
	ctx context.Context,
	mode neo4j.AccessMode,
	cypher string,
	params map[string]any,
) ([]map[string]any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(records))
		for _, r := range records {
			rows = append(rows, r.AsMap())
		}
		return rows, nil
	}

	var (
		out any
		err error
	)
	if mode == neo4j.AccessModeRead {
		out, err = session.ExecuteRead(ctx, work)
	} else {
		out, err = session.ExecuteWrite(ctx, work)
	}
	if err != nil {
		return nil, err
	}
	rows, _ := out.([]map[string]any)
	return rows, nil
}
