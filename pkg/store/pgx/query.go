package pgx

import (
	"context"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const searchEntitiesSQL = `
SELECT public_id, name, type, description, confidence, text_units, properties
FROM kg_entities
WHERE strpos(lower(name), $1) > 0 OR strpos(lower(description), $1) > 0
ORDER BY confidence DESC, name
LIMIT $2
`

const neighborhoodSQL = `
SELECT r.public_id, r.type, r.description, r.confidence, r.weight, r.text_units,
       r.source_id = c.id AS outgoing, c.name,
       n.public_id, n.name, n.type, n.description, n.confidence, n.text_units, n.properties
FROM kg_entities c
JOIN kg_relationships r ON r.source_id = c.id OR r.target_id = c.id
JOIN kg_entities n ON n.id = CASE WHEN r.source_id = c.id THEN r.target_id ELSE r.source_id END
WHERE lower(c.name) = $1
ORDER BY r.id
LIMIT $2
`

const recommendationsSQL = `
WITH RECURSIVE persons AS (
    SELECT id FROM kg_entities
    WHERE type = 'Person' AND (properties->>'user_id' = $1 OR name = $1)
), edges AS (
    SELECT source_id AS a, target_id AS b FROM kg_relationships
    UNION ALL
    SELECT target_id, source_id FROM kg_relationships
), reach (id, depth) AS (
    SELECT id, 0 FROM persons
    UNION
    SELECT e.b, reach.depth + 1 FROM reach JOIN edges e ON e.a = reach.id WHERE reach.depth < 2
), risks AS (
    SELECT DISTINCT k.id, k.name
    FROM reach JOIN kg_entities k ON k.id = reach.id
    WHERE k.type = 'Risk' AND reach.depth > 0
)
SELECT i.public_id, i.name, i.type, i.description, i.confidence, i.text_units, i.properties,
       array_agg(DISTINCT risks.name ORDER BY risks.name) AS risks,
       count(DISTINCT risks.id) AS score
FROM risks
JOIN edges e ON e.a = risks.id
JOIN kg_entities i ON i.id = e.b AND i.type = 'Insurance'
GROUP BY i.id
ORDER BY score DESC, i.name
LIMIT $2
`

func (s *GraphDBStorage) SearchEntities(ctx context.Context, query string, limit int) ([]common.Entity, error) {
	rows, err := s.conn.Query(ctx, searchEntitiesSQL, strings.ToLower(strings.TrimSpace(query)), limit)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Entity, error) {
		var r entityRow
		if err := row.Scan(&r.publicID, &r.name, &r.kind, &r.description, &r.confidence, &r.textUnits, &r.properties); err != nil {
			return common.Entity{}, err
		}
		return r.entity(), nil
	})
}

func (s *GraphDBStorage) Neighborhood(ctx context.Context, entityName string, limit int) ([]common.Neighbor, error) {
	rows, err := s.conn.Query(ctx, neighborhoodSQL, strings.ToLower(strings.TrimSpace(entityName)), limit)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Neighbor, error) {
		var (
			rel      common.Relationship
			outgoing bool
			center   string
			n        entityRow
		)
		if err := row.Scan(
			&rel.ID, &rel.Type, &rel.Description, &rel.Confidence, &rel.Weight, &rel.TextUnits,
			&outgoing, &center,
			&n.publicID, &n.name, &n.kind, &n.description, &n.confidence, &n.textUnits, &n.properties,
		); err != nil {
			return common.Neighbor{}, err
		}
		if outgoing {
			rel.SourceName, rel.TargetName = center, n.name
		} else {
			rel.SourceName, rel.TargetName = n.name, center
		}
		return common.Neighbor{Relationship: rel, Entity: n.entity(), Outgoing: outgoing}, nil
	})
}

func (s *GraphDBStorage) Recommendations(ctx context.Context, userID string, limit int) ([]common.Recommendation, error) {
	rows, err := s.conn.Query(ctx, recommendationsSQL, userID, limit)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Recommendation, error) {
		var (
			r     entityRow
			risks []string
			score int64
		)
		if err := row.Scan(&r.publicID, &r.name, &r.kind, &r.description, &r.confidence, &r.textUnits, &r.properties, &risks, &score); err != nil {
			return common.Recommendation{}, err
		}
		return common.Recommendation{Insurance: r.entity(), Risks: risks, Score: int(score)}, nil
	})
}

type entityRow struct {
	publicID    string
	name        string
	kind        string
	description string
	confidence  float64
	textUnits   []string
	properties  map[string]any
}

func (r entityRow) entity() common.Entity {
	kind := common.EntityType(r.kind)
	extra := make(map[string]any, len(r.properties))
	for k, v := range r.properties {
		if !store.ReservedProperty(k) {
			extra[k] = v
		}
	}
	return common.Entity{
		ID:          r.publicID,
		Name:        r.name,
		Type:        kind,
		Description: r.description,
		Confidence:  r.confidence,
		TextUnits:   r.textUnits,
		Properties:  common.NewProperties(kind, extra),
	}
}
