package store

import (
	"context"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
)

// Default read limits used by the search and recommendation paths.
const (
	GlobalSearchLimit   = 10
	LocalSearchLimit    = 20
	RecommendationLimit = 10
)

// EntityRef identifies a node by its upsert key.
type EntityRef struct {
	ID   string
	Name string
	Type common.EntityType
}

// Edge is a relationship whose endpoints have been resolved to nodes.
type Edge struct {
	Source       EntityRef
	Target       EntityRef
	Relationship common.Relationship
}

// GraphStore is the graph database collaborator.
//
// Nodes are keyed by (name, type) and edges by (source, type, target).
// Upserts must be idempotent: repeating one updates the stored record
// instead of creating a duplicate. EnsureSchema must tolerate constraints
// that already exist.
type GraphStore interface {
	EnsureSchema(ctx context.Context) error

	UpsertEntity(ctx context.Context, entity common.Entity) error
	UpsertRelationship(ctx context.Context, edge Edge) error

	// SearchEntities matches query case-insensitively as a substring of
	// name or description.
	SearchEntities(ctx context.Context, query string, limit int) ([]common.Entity, error)
	// Neighborhood returns the edges incident to the entity with the given
	// name, compared case-insensitively, with the entity on the other end.
	Neighborhood(ctx context.Context, entityName string, limit int) ([]common.Neighbor, error)
	// Recommendations returns Insurance nodes linked to Risk nodes within two
	// hops of the Person whose user_id property or name equals userID.
	Recommendations(ctx context.Context, userID string, limit int) ([]common.Recommendation, error)

	Close(ctx context.Context) error
}
