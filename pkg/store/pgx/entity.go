package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/kiwi-insure/internal/util"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"

	"github.com/pgvector/pgvector-go"
)

const upsertEntitySQL = `
INSERT INTO kg_entities (public_id, name, type, description, confidence, text_units, properties, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
ON CONFLICT (name, type) DO UPDATE SET
    description = CASE WHEN EXCLUDED.description <> '' THEN EXCLUDED.description ELSE kg_entities.description END,
    confidence  = EXCLUDED.confidence,
    text_units  = ARRAY(SELECT DISTINCT u FROM unnest(kg_entities.text_units || EXCLUDED.text_units) AS u),
    properties  = kg_entities.properties || EXCLUDED.properties,
    embedding   = COALESCE(EXCLUDED.embedding, kg_entities.embedding),
    updated_at  = now()
`

const ensureNodeSQL = `
INSERT INTO kg_entities (public_id, name, type)
VALUES ($1, $2, $3)
ON CONFLICT (name, type) DO UPDATE SET updated_at = kg_entities.updated_at
RETURNING id
`

const upsertRelationshipSQL = `
INSERT INTO kg_relationships (public_id, source_id, target_id, type, description, confidence, weight, text_units)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (source_id, type, target_id) DO UPDATE SET
    description = EXCLUDED.description,
    confidence  = EXCLUDED.confidence,
    weight      = EXCLUDED.weight,
    text_units  = ARRAY(SELECT DISTINCT u FROM unnest(kg_relationships.text_units || EXCLUDED.text_units) AS u),
    updated_at  = now()
`

// UpsertEntity inserts or updates the row keyed by (name, type).
func (s *GraphDBStorage) UpsertEntity(ctx context.Context, e common.Entity) error {
	props, err := propertiesJSON(e.Properties)
	if err != nil {
		return err
	}

	var embedding any
	if s.aiClient != nil {
		vec, err := store.GenerateEmbedding(ctx, s.aiClient, e)
		if err != nil {
			logger.Warn("[Store][pgx] Embedding failed, storing entity without one", "name", e.Name, "err", err)
		} else {
			embedding = pgvector.NewVector(vec)
		}
	}

	_, err = s.conn.Exec(ctx, upsertEntitySQL,
		e.ID,
		util.SanitizePostgresText(e.Name),
		string(e.Type),
		util.SanitizePostgresText(e.Description),
		e.Confidence,
		sanitizeAll(store.DedupeStrings(e.TextUnits)),
		props,
		embedding,
	)
	return err
}

// UpsertRelationship makes sure both endpoint rows exist, then upserts the
// edge keyed by (source, type, target) in one transaction.
func (s *GraphDBStorage) UpsertRelationship(ctx context.Context, edge store.Edge) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var srcID, tgtID int64
	if err := tx.QueryRow(ctx, ensureNodeSQL, edge.Source.ID, util.SanitizePostgresText(edge.Source.Name), string(edge.Source.Type)).Scan(&srcID); err != nil {
		return fmt.Errorf("resolve source node: %w", err)
	}
	if err := tx.QueryRow(ctx, ensureNodeSQL, edge.Target.ID, util.SanitizePostgresText(edge.Target.Name), string(edge.Target.Type)).Scan(&tgtID); err != nil {
		return fmt.Errorf("resolve target node: %w", err)
	}

	r := edge.Relationship
	if _, err := tx.Exec(ctx, upsertRelationshipSQL,
		r.ID,
		srcID,
		tgtID,
		r.Type,
		util.SanitizePostgresText(r.Description),
		r.Confidence,
		r.Weight,
		sanitizeAll(store.DedupeStrings(r.TextUnits)),
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func propertiesJSON(p common.Properties) (string, error) {
	out := make(map[string]any)
	for k, v := range p.Flatten() {
		if store.ReservedProperty(k) {
			continue
		}
		if s, ok := v.(string); ok {
			v = util.SanitizePostgresText(s)
		}
		out[k] = v
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(b), nil
}

func sanitizeAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = util.SanitizePostgresText(s)
	}
	return out
}
