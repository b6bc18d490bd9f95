package neo4j

import (
	"context"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const searchCypher = `
MATCH (e:Entity)
WHERE toLower(e.name) CONTAINS $q OR toLower(coalesce(e.description, '')) CONTAINS $q
RETURN properties(e) AS entity
ORDER BY e.confidence DESC, e.name
LIMIT $limit
`

const neighborhoodCypher = `
MATCH (e:Entity)
WHERE toLower(e.name) = $name
MATCH (e)-[r]-(n:Entity)
RETURN type(r) AS rel_type, properties(r) AS rel, properties(n) AS neighbor,
       startNode(r) = e AS outgoing, e.name AS center
LIMIT $limit
`

const recommendationsCypher = `
MATCH (p:Entity:Person)
WHERE p.user_id = $user_id OR p.name = $user_id
MATCH (p)-[*1..2]-(r:Entity:Risk)
WITH DISTINCT r
MATCH (r)--(i:Entity:Insurance)
WITH i, collect(DISTINCT r.name) AS risks
RETURN properties(i) AS insurance, risks, size(risks) AS score
ORDER BY score DESC, i.name
LIMIT $limit
`

func (s *GraphStore) SearchEntities(ctx context.Context, query string, limit int) ([]common.Entity, error) {
	rows, err := s.Run(ctx, neo4j.AccessModeRead, searchCypher, map[string]any{
		"q":     strings.ToLower(strings.TrimSpace(query)),
		"limit": int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]common.Entity, 0, len(rows))
	for _, row := range rows {
		out = append(out, entityFromProps(asMap(row["entity"])))
	}
	return out, nil
}

func (s *GraphStore) Neighborhood(ctx context.Context, entityName string, limit int) ([]common.Neighbor, error) {
	rows, err := s.Run(ctx, neo4j.AccessModeRead, neighborhoodCypher, map[string]any{
		"name":  strings.ToLower(strings.TrimSpace(entityName)),
		"limit": int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]common.Neighbor, 0, len(rows))
	for _, row := range rows {
		neighbor := entityFromProps(asMap(row["neighbor"]))
		center, _ := row["center"].(string)
		outgoing, _ := row["outgoing"].(bool)
		rel := relationshipFromProps(asMap(row["rel"]))
		rel.Type, _ = row["rel_type"].(string)
		if outgoing {
			rel.SourceName, rel.TargetName = center, neighbor.Name
		} else {
			rel.SourceName, rel.TargetName = neighbor.Name, center
		}
		out = append(out, common.Neighbor{Relationship: rel, Entity: neighbor, Outgoing: outgoing})
	}
	return out, nil
}

func (s *GraphStore) Recommendations(ctx context.Context, userID string, limit int) ([]common.Recommendation, error) {
	rows, err := s.Run(ctx, neo4j.AccessModeRead, recommendationsCypher, map[string]any{
		"user_id": userID,
		"limit":   int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]common.Recommendation, 0, len(rows))
	for _, row := range rows {
		score, _ := row["score"].(int64)
		out = append(out, common.Recommendation{
			Insurance: entityFromProps(asMap(row["insurance"])),
			Risks:     toStrings(row["risks"]),
			Score:     int(score),
		})
	}
	return out, nil
}

func entityFromProps(props map[string]any) common.Entity {
	kind := common.EntityType(str(props["type"]))
	extra := make(map[string]any)
	for k, v := range props {
		if !store.ReservedProperty(k) {
			extra[k] = v
		}
	}
	return common.Entity{
		ID:          str(props["id"]),
		Name:        str(props["name"]),
		Type:        kind,
		Description: str(props["description"]),
		Confidence:  num(props["confidence"]),
		TextUnits:   toStrings(props["text_units"]),
		Properties:  common.NewProperties(kind, extra),
	}
}

func relationshipFromProps(props map[string]any) common.Relationship {
	r := common.Relationship{
		ID:          str(props["id"]),
		Description: str(props["description"]),
		Confidence:  num(props["confidence"]),
		TextUnits:   toStrings(props["text_units"]),
	}
	if w, ok := props["weight"]; ok && w != nil {
		f := num(w)
		r.Weight = &f
	}
	return r
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func toStrings(v any) []string {
	switch xs := v.(type) {
	case []string:
		return xs
	case []any:
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
