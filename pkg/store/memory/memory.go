// Package memory implements store.GraphStore in process memory.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"
)

type nodeKey struct {
	name string
	kind common.EntityType
}

type edgeKey struct {
	source nodeKey
	kind   string
	target nodeKey
}

type edge struct {
	key edgeKey
	rel common.Relationship
	seq int
}

// GraphStore is a mutex guarded in-memory graph with the upsert semantics
// of the database backed stores.
type GraphStore struct {
	mu      sync.RWMutex
	nodes   map[nodeKey]*common.Entity
	order   []nodeKey
	edges   map[edgeKey]*edge
	nextSeq int

	schemaCalls int
	entityCalls int
	edgeCalls   int
}

var _ store.GraphStore = (*GraphStore)(nil)

// NewGraphStore returns an empty store.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		nodes: make(map[nodeKey]*common.Entity),
		edges: make(map[edgeKey]*edge),
	}
}

func (s *GraphStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	s.schemaCalls++
	s.mu.Unlock()
	return ctx.Err()
}

func (s *GraphStore) UpsertEntity(ctx context.Context, e common.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entityCalls++

	k := nodeKey{name: e.Name, kind: e.Type}
	cur, ok := s.nodes[k]
	if !ok {
		n := e
		n.TextUnits = store.DedupeStrings(e.TextUnits)
		n.Properties = common.Properties{Kind: e.Type}.Merge(e.Properties)
		s.nodes[k] = &n
		s.order = append(s.order, k)
		return nil
	}
	if e.Description != "" {
		cur.Description = e.Description
	}
	cur.Confidence = e.Confidence
	cur.TextUnits = store.DedupeStrings(append(append([]string(nil), cur.TextUnits...), e.TextUnits...))
	cur.Properties = cur.Properties.Merge(e.Properties)
	return nil
}

func (s *GraphStore) UpsertRelationship(ctx context.Context, ed store.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edgeCalls++

	src := nodeKey{name: ed.Source.Name, kind: ed.Source.Type}
	tgt := nodeKey{name: ed.Target.Name, kind: ed.Target.Type}
	for _, k := range []nodeKey{src, tgt} {
		if _, ok := s.nodes[k]; !ok {
			s.nodes[k] = &common.Entity{Name: k.name, Type: k.kind, Properties: common.Properties{Kind: k.kind}}
			s.order = append(s.order, k)
		}
	}

	k := edgeKey{source: src, kind: ed.Relationship.Type, target: tgt}
	rel := ed.Relationship
	rel.SourceName, rel.TargetName = src.name, tgt.name
	if cur, ok := s.edges[k]; ok {
		rel.TextUnits = store.DedupeStrings(append(append([]string(nil), cur.rel.TextUnits...), rel.TextUnits...))
		cur.rel = rel
		return nil
	}
	rel.TextUnits = store.DedupeStrings(rel.TextUnits)
	s.edges[k] = &edge{key: k, rel: rel, seq: s.nextSeq}
	s.nextSeq++
	return nil
}

func (s *GraphStore) SearchEntities(ctx context.Context, query string, limit int) ([]common.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []common.Entity
	for _, k := range s.order {
		n := s.nodes[k]
		if strings.Contains(strings.ToLower(n.Name), q) || strings.Contains(strings.ToLower(n.Description), q) {
			out = append(out, *n)
		}
	}
	slices.SortStableFunc(out, func(a, b common.Entity) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return truncate(out, limit), nil
}

func (s *GraphStore) Neighborhood(ctx context.Context, entityName string, limit int) ([]common.Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.ToLower(strings.TrimSpace(entityName))
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []common.Neighbor
	for _, e := range s.sortedEdges() {
		switch {
		case strings.ToLower(e.key.source.name) == name:
			out = append(out, common.Neighbor{Relationship: e.rel, Entity: *s.nodes[e.key.target], Outgoing: true})
		case strings.ToLower(e.key.target.name) == name:
			out = append(out, common.Neighbor{Relationship: e.rel, Entity: *s.nodes[e.key.source], Outgoing: false})
		}
	}
	return truncate(out, limit), nil
}

func (s *GraphStore) Recommendations(ctx context.Context, userID string, limit int) ([]common.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	adj := make(map[nodeKey][]nodeKey)
	for _, e := range s.edges {
		adj[e.key.source] = append(adj[e.key.source], e.key.target)
		adj[e.key.target] = append(adj[e.key.target], e.key.source)
	}

	// Risk nodes within two hops of the user's Person nodes.
	risks := make(map[nodeKey]struct{})
	for _, k := range s.order {
		if k.kind != common.EntityPerson || !matchesUser(s.nodes[k], userID) {
			continue
		}
		frontier := []nodeKey{k}
		seen := map[nodeKey]struct{}{k: {}}
		for hop := 0; hop < 2; hop++ {
			var next []nodeKey
			for _, n := range frontier {
				for _, m := range adj[n] {
					if _, ok := seen[m]; ok {
						continue
					}
					seen[m] = struct{}{}
					next = append(next, m)
					if m.kind == common.EntityRisk {
						risks[m] = struct{}{}
					}
				}
			}
			frontier = next
		}
	}

	byInsurance := make(map[nodeKey]map[string]struct{})
	for r := range risks {
		for _, m := range adj[r] {
			if m.kind != common.EntityInsurance {
				continue
			}
			if byInsurance[m] == nil {
				byInsurance[m] = make(map[string]struct{})
			}
			byInsurance[m][r.name] = struct{}{}
		}
	}

	out := make([]common.Recommendation, 0, len(byInsurance))
	for k, names := range byInsurance {
		rs := make([]string, 0, len(names))
		for n := range names {
			rs = append(rs, n)
		}
		slices.Sort(rs)
		out = append(out, common.Recommendation{Insurance: *s.nodes[k], Risks: rs, Score: len(rs)})
	}
	slices.SortFunc(out, func(a, b common.Recommendation) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Insurance.Name, b.Insurance.Name)
	})
	return truncate(out, limit), nil
}

func (s *GraphStore) Close(context.Context) error { return nil }

// Stats reports how often each write method was called.
type Stats struct {
	SchemaCalls       int
	EntityUpserts     int
	RelationshipCalls int
	Nodes             int
	Edges             int
}

// Stats returns call counters and sizes.
func (s *GraphStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		SchemaCalls:       s.schemaCalls,
		EntityUpserts:     s.entityCalls,
		RelationshipCalls: s.edgeCalls,
		Nodes:             len(s.nodes),
		Edges:             len(s.edges),
	}
}

// Entity returns the stored node for (name, type).
func (s *GraphStore) Entity(name string, kind common.EntityType) (common.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[nodeKey{name: name, kind: kind}]
	if !ok {
		return common.Entity{}, false
	}
	return *n, true
}

// Relationships returns all stored edges in insertion order.
func (s *GraphStore) Relationships() []common.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []common.Relationship
	for _, e := range s.sortedEdges() {
		out = append(out, e.rel)
	}
	return out
}

func (s *GraphStore) sortedEdges() []*edge {
	out := make([]*edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *edge) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

func matchesUser(e *common.Entity, userID string) bool {
	if v, ok := e.Properties.Get("user_id"); ok && v == userID {
		return true
	}
	return e.Name == userID
}

func truncate[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
