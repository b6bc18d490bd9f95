package store

import (
	"context"
	"sync"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"
)

// WriteReport counts what StoreInGraph wrote. It is returned alongside a
// GraphWriteError too, describing the partial result.
type WriteReport struct {
	Entities      int
	Relationships int
	Dropped       []RelationshipResolutionWarning
}

// GraphWriter persists merged entities and their relationships into a
// GraphStore.
//
// No transaction spans a StoreInGraph call. A failure part way through
// leaves the earlier upserts in place; callers may simply retry, since every
// write is an idempotent upsert.
type GraphWriter struct {
	store GraphStore

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewGraphWriter returns a GraphWriter for s.
func NewGraphWriter(s GraphStore) *GraphWriter {
	return &GraphWriter{store: s}
}

// Store returns the underlying GraphStore.
func (w *GraphWriter) Store() GraphStore { return w.store }

// EnsureSchema initializes constraints once per writer. A failed attempt is
// retried on the next call.
func (w *GraphWriter) EnsureSchema(ctx context.Context) error {
	w.schemaMu.Lock()
	defer w.schemaMu.Unlock()
	if w.schemaReady {
		return nil
	}
	if err := w.store.EnsureSchema(ctx); err != nil {
		return &GraphWriteError{Op: "ensure schema", Err: err}
	}
	w.schemaReady = true
	return nil
}

// StoreInGraph upserts every entity, then every relationship whose source
// and target both resolve against entities by exact name. Relationships that
// do not resolve are never written; they are logged and listed in
// WriteReport.Dropped.
func (w *GraphWriter) StoreInGraph(
	ctx context.Context,
	entities []common.Entity,
	relationships []common.Relationship,
) (*WriteReport, error) {
	report := &WriteReport{}
	if err := w.EnsureSchema(ctx); err != nil {
		return report, err
	}

	edges, dropped := ResolveRelationships(entities, relationships)
	report.Dropped = dropped
	for _, d := range dropped {
		logger.Warn("[Store] Dropping relationship with unresolved endpoint",
			"id", d.RelationshipID, "source", d.SourceName, "target", d.TargetName,
			"type", d.Type, "missing", d.Missing)
	}

	for _, e := range entities {
		if err := w.store.UpsertEntity(ctx, e); err != nil {
			return report, &GraphWriteError{Op: "upsert entity", Key: string(e.Type) + ":" + e.Name, Err: err}
		}
		report.Entities++
	}

	for _, edge := range edges {
		if err := w.store.UpsertRelationship(ctx, edge); err != nil {
			key := edge.Source.Name + "-" + edge.Relationship.Type + "->" + edge.Target.Name
			return report, &GraphWriteError{Op: "upsert relationship", Key: key, Err: err}
		}
		report.Relationships++
	}

	logger.Debug("[Store] Stored graph batch",
		"entities", report.Entities, "relationships", report.Relationships, "dropped", len(report.Dropped))
	return report, nil
}

// ResolveRelationships splits relationships into edges with both endpoints
// resolved against entities and warnings for the rest. Input order is kept.
func ResolveRelationships(
	entities []common.Entity,
	relationships []common.Relationship,
) ([]Edge, []RelationshipResolutionWarning) {
	byID := make(map[string]common.Entity, len(entities))
	for _, e := range entities {
		if _, ok := byID[e.ID]; !ok {
			byID[e.ID] = e
		}
	}
	ref := func(id string) EntityRef {
		e := byID[id]
		return EntityRef{ID: e.ID, Name: e.Name, Type: e.Type}
	}

	edges := make([]Edge, 0, len(relationships))
	var dropped []RelationshipResolutionWarning
	for _, r := range relationships {
		srcID, srcOK := Resolve(r.SourceName, entities)
		tgtID, tgtOK := Resolve(r.TargetName, entities)
		if !srcOK || !tgtOK {
			w := RelationshipResolutionWarning{
				RelationshipID: r.ID,
				SourceName:     r.SourceName,
				TargetName:     r.TargetName,
				Type:           r.Type,
			}
			if !srcOK {
				w.Missing = append(w.Missing, r.SourceName)
			}
			if !tgtOK {
				w.Missing = append(w.Missing, r.TargetName)
			}
			dropped = append(dropped, w)
			continue
		}
		edges = append(edges, Edge{Source: ref(srcID), Target: ref(tgtID), Relationship: r})
	}
	return edges, dropped
}

// Recommendations delegates the read-only recommendation query to the store.
func (w *GraphWriter) Recommendations(ctx context.Context, userID string) ([]common.Recommendation, error) {
	return w.store.Recommendations(ctx, userID, RecommendationLimit)
}
