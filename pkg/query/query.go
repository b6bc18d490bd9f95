// Package query answers read-only questions against the knowledge graph.
package query

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"
)

// PlaceholderConfidence is reported on every SearchResult. Nothing scores
// answers yet.
const PlaceholderConfidence = 0.8

// Search modes reported in SearchResult.Mode.
const (
	ModeGlobal = "global"
	ModeLocal  = "local"
)

// SearchResult is the envelope returned by both search modes. Citations and
// Communities are always present and currently always empty.
type SearchResult struct {
	Query         string                `json:"query"`
	Mode          string                `json:"mode"`
	Entities      []common.Entity       `json:"entities"`
	Relationships []common.Relationship `json:"relationships"`
	Confidence    float64               `json:"confidence"`
	Citations     []string              `json:"citations"`
	Communities   []common.Community    `json:"communities"`
}

func newResult(q, mode string) *SearchResult {
	return &SearchResult{
		Query:         q,
		Mode:          mode,
		Entities:      []common.Entity{},
		Relationships: []common.Relationship{},
		Confidence:    PlaceholderConfidence,
		Citations:     []string{},
		Communities:   []common.Community{},
	}
}

// SearchService runs global and local searches on a GraphStore.
//
// A SearchService should be created using NewSearchService.
type SearchService struct {
	store  store.GraphStore
	tracer Tracer
}

// SearchOption configures a SearchService.
type SearchOption func(*SearchService)

// WithTracer records what every search touched into t.
func WithTracer(t Tracer) SearchOption {
	return func(s *SearchService) { s.tracer = t }
}

// NewSearchService returns a SearchService reading from s.
func NewSearchService(s store.GraphStore, opts ...SearchOption) *SearchService {
	svc := &SearchService{store: s}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// GlobalSearch matches q as a case-insensitive substring of entity names
// and descriptions. At most store.GlobalSearchLimit entities are returned,
// most confident first.
func (s *SearchService) GlobalSearch(ctx context.Context, q string) (*SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, errors.New("search query is empty")
	}

	entities, err := s.store.SearchEntities(ctx, q, store.GlobalSearchLimit)
	if err != nil {
		return nil, err
	}

	res := newResult(q, ModeGlobal)
	res.Entities = append(res.Entities, entities...)
	s.trace(res)
	logger.Debug("[Query] Global search", "query", q, "entities", len(res.Entities))
	return res, nil
}

// LocalSearch returns the one-hop neighborhood of entityName with at most
// store.LocalSearchLimit relationships. Neighbors whose name or description
// contains q are listed first. The entity itself leads Entities when it
// exists.
func (s *SearchService) LocalSearch(ctx context.Context, q, entityName string) (*SearchResult, error) {
	q = strings.TrimSpace(q)
	entityName = strings.TrimSpace(entityName)
	if entityName == "" {
		return nil, errors.New("entity name is empty")
	}

	neighbors, err := s.store.Neighborhood(ctx, entityName, store.LocalSearchLimit)
	if err != nil {
		return nil, err
	}
	if q != "" {
		needle := strings.ToLower(q)
		slices.SortStableFunc(neighbors, func(a, b common.Neighbor) int {
			return cmp.Compare(rank(a, needle), rank(b, needle))
		})
	}

	res := newResult(q, ModeLocal)
	if focal, ok, err := s.lookup(ctx, entityName); err != nil {
		return nil, err
	} else if ok {
		res.Entities = append(res.Entities, focal)
	}

	seen := make(map[string]struct{})
	for _, e := range res.Entities {
		seen[entityKey(e)] = struct{}{}
	}
	for _, n := range neighbors {
		res.Relationships = append(res.Relationships, n.Relationship)
		if _, ok := seen[entityKey(n.Entity)]; ok {
			continue
		}
		seen[entityKey(n.Entity)] = struct{}{}
		res.Entities = append(res.Entities, n.Entity)
	}

	s.trace(res)
	logger.Debug("[Query] Local search", "query", q, "entity", entityName,
		"entities", len(res.Entities), "relationships", len(res.Relationships))
	return res, nil
}

// lookup finds the entity whose name equals name, ignoring case.
func (s *SearchService) lookup(ctx context.Context, name string) (common.Entity, bool, error) {
	candidates, err := s.store.SearchEntities(ctx, name, store.LocalSearchLimit)
	if err != nil {
		return common.Entity{}, false, err
	}
	for _, c := range candidates {
		if strings.EqualFold(c.Name, name) {
			return c, true, nil
		}
	}
	return common.Entity{}, false, nil
}

func (s *SearchService) trace(res *SearchResult) {
	if s.tracer == nil {
		return
	}
	ids := make([]string, 0, len(res.Entities))
	var units []string
	for _, e := range res.Entities {
		ids = append(ids, e.ID)
		units = append(units, e.TextUnits...)
	}
	RecordQueriedEntities(s.tracer, ids...)
	RecordConsideredTextUnits(s.tracer, units...)
	if len(res.Relationships) > 0 {
		rels := make([]string, 0, len(res.Relationships))
		for _, r := range res.Relationships {
			rels = append(rels, r.SourceName+"-"+r.Type+"->"+r.TargetName)
		}
		RecordQueriedRelationships(s.tracer, rels...)
	}
}

func rank(n common.Neighbor, needle string) int {
	if strings.Contains(strings.ToLower(n.Entity.Name), needle) ||
		strings.Contains(strings.ToLower(n.Entity.Description), needle) ||
		strings.Contains(strings.ToLower(n.Relationship.Description), needle) {
		return 0
	}
	return 1
}

func entityKey(e common.Entity) string {
	return string(e.Type) + "\x00" + e.Name
}
