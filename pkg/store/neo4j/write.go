package neo4j

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func upsertEntityCypher(label string) string {
	return fmt.Sprintf(`
MERGE (e:Entity {name: $name, type: $type})
ON CREATE SET e.id = $id
SET e:%s,
    e.description = CASE WHEN $description <> '' THEN $description ELSE coalesce(e.description, '') END,
    e.confidence = $confidence,
    e.text_units = coalesce(e.text_units, []) + [u IN $text_units WHERE NOT u IN coalesce(e.text_units, [])],
    e += $props
`, "`"+label+"`")
}

func upsertRelationshipCypher(relType string) string {
	return fmt.Sprintf(`
MERGE (a:Entity {name: $source, type: $source_type})
ON CREATE SET a.id = $source_id
MERGE (b:Entity {name: $target, type: $target_type})
ON CREATE SET b.id = $target_id
MERGE (a)-[r:%s]->(b)
ON CREATE SET r.id = $id
SET r.description = $description,
    r.confidence = $confidence,
    r.weight = $weight,
    r.text_units = coalesce(r.text_units, []) + [u IN $text_units WHERE NOT u IN coalesce(r.text_units, [])]
`, "`"+relType+"`")
}

func (s *GraphStore) UpsertEntity(ctx context.Context, e common.Entity) error {
	_, err := s.Run(ctx, neo4j.AccessModeWrite, upsertEntityCypher(Label(e.Type)), entityParams(e))
	return err
}

func (s *GraphStore) UpsertRelationship(ctx context.Context, edge store.Edge) error {
	r := edge.Relationship
	var weight any
	if r.Weight != nil {
		weight = *r.Weight
	}
	params := map[string]any{
		"source":      edge.Source.Name,
		"source_type": string(edge.Source.Type),
		"source_id":   edge.Source.ID,
		"target":      edge.Target.Name,
		"target_type": string(edge.Target.Type),
		"target_id":   edge.Target.ID,
		"id":          r.ID,
		"description": r.Description,
		"confidence":  r.Confidence,
		"weight":      weight,
		"text_units":  toAnySlice(r.TextUnits),
	}
	_, err := s.Run(ctx, neo4j.AccessModeWrite, upsertRelationshipCypher(RelType(r.Type)), params)
	return err
}

func entityParams(e common.Entity) map[string]any {
	props := make(map[string]any)
	for k, v := range e.Properties.Flatten() {
		if store.ReservedProperty(k) {
			continue
		}
		props[k] = v
	}
	return map[string]any{
		"id":          e.ID,
		"name":        e.Name,
		"type":        string(e.Type),
		"description": e.Description,
		"confidence":  e.Confidence,
		"text_units":  toAnySlice(e.TextUnits),
		"props":       props,
	}
}

func toAnySlice(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
