package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"
	logmem "github.com/OFFIS-RIT/kiwi-insure/pkg/logger/memory"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store/memory"
)

// recordingStore records every write and can fail the n-th entity upsert.
type recordingStore struct {
	*memory.GraphStore
	schemaErr   error
	failEntity  int
	entityCalls []common.Entity
	edgeCalls   []store.Edge
}

func newRecordingStore() *recordingStore {
	return &recordingStore{GraphStore: memory.NewGraphStore()}
}

func (r *recordingStore) EnsureSchema(ctx context.Context) error {
	if r.schemaErr != nil {
		return r.schemaErr
	}
	return r.GraphStore.EnsureSchema(ctx)
}

func (r *recordingStore) UpsertEntity(ctx context.Context, e common.Entity) error {
	r.entityCalls = append(r.entityCalls, e)
	if r.failEntity > 0 && len(r.entityCalls) == r.failEntity {
		return errors.New("connection reset")
	}
	return r.GraphStore.UpsertEntity(ctx, e)
}

func (r *recordingStore) UpsertRelationship(ctx context.Context, e store.Edge) error {
	r.edgeCalls = append(r.edgeCalls, e)
	return r.GraphStore.UpsertRelationship(ctx, e)
}

func entity(id, name string, kind common.EntityType) common.Entity {
	return common.Entity{ID: id, Name: name, Type: kind, Confidence: 0.9, Properties: common.Properties{Kind: kind}}
}

func rel(id, source, target, kind string) common.Relationship {
	return common.Relationship{ID: id, SourceName: source, TargetName: target, Type: kind, Confidence: 0.8}
}

func TestResolve(t *testing.T) {
	candidates := []common.Entity{
		entity("e1", "Mapo-gu", common.EntityLocation),
		entity("e2", "Flood", common.EntityRisk),
		entity("e3", "Flood", common.EntityEvent),
	}
	tests := []struct {
		name   string
		in     string
		wantID string
		wantOK bool
	}{
		{"Exact", "Mapo-gu", "e1", true},
		{"SurroundingSpace", "  Mapo-gu ", "e1", true},
		{"FirstCandidateWins", "Flood", "e2", true},
		{"CaseDiffers", "mapo-gu", "", false},
		{"Missing", "Jongno-gu", "", false},
		{"Empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := store.Resolve(tt.in, candidates)
			if id != tt.wantID || ok != tt.wantOK {
				t.Fatalf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.in, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestStoreInGraph_TwoNodesOneEdge(t *testing.T) {
	rs := newRecordingStore()
	w := store.NewGraphWriter(rs)

	entities := []common.Entity{
		entity("entity_person_john", "John", common.EntityPerson),
		entity("entity_location_mapo-gu", "Mapo-gu", common.EntityLocation),
	}
	rels := []common.Relationship{rel("u_relationship_0", "John", "Mapo-gu", "LIVES_IN")}

	report, err := w.StoreInGraph(context.Background(), entities, rels)
	if err != nil {
		t.Fatalf("StoreInGraph: %v", err)
	}
	if len(rs.entityCalls) != 2 || len(rs.edgeCalls) != 1 {
		t.Fatalf("expected 2 node upserts and 1 edge upsert, got %d and %d", len(rs.entityCalls), len(rs.edgeCalls))
	}
	if report.Entities != 2 || report.Relationships != 1 || len(report.Dropped) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	edge := rs.edgeCalls[0]
	if edge.Source.Type != common.EntityPerson || edge.Target.Type != common.EntityLocation {
		t.Fatalf("endpoints resolved to wrong nodes: %+v", edge)
	}
}

func TestStoreInGraph_UnresolvedRelationshipNeverWritten(t *testing.T) {
	mem := logmem.NewMemoryLogger()
	logger.Init(mem)
	t.Cleanup(func() { logger.Init() })

	rs := newRecordingStore()
	w := store.NewGraphWriter(rs)

	entities := []common.Entity{entity("e1", "John", common.EntityPerson)}
	rels := []common.Relationship{
		rel("r1", "John", "Atlantis", "LIVES_IN"),
		rel("r2", "Nobody", "John", "KNOWS"),
	}

	report, err := w.StoreInGraph(context.Background(), entities, rels)
	if err != nil {
		t.Fatalf("StoreInGraph: %v", err)
	}
	if len(rs.edgeCalls) != 0 {
		t.Fatalf("unresolved relationships reached the store: %+v", rs.edgeCalls)
	}
	if len(report.Dropped) != 2 {
		t.Fatalf("expected 2 dropped relationships, got %+v", report.Dropped)
	}
	if got := report.Dropped[0].Missing; len(got) != 1 || got[0] != "Atlantis" {
		t.Fatalf("expected Atlantis to be reported missing, got %v", got)
	}
	if warns := mem.Find("warn", "unresolved endpoint"); len(warns) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(warns))
	}
}

func TestStoreInGraph_ReingestIsIdempotent(t *testing.T) {
	ms := memory.NewGraphStore()
	w := store.NewGraphWriter(ms)
	ctx := context.Background()

	john := entity("entity_person_john", "John", common.EntityPerson)
	mapo := entity("entity_location_mapo-gu", "Mapo-gu", common.EntityLocation)
	first := rel("a", "John", "Mapo-gu", "LIVES_IN")
	first.Description = "old"

	if _, err := w.StoreInGraph(ctx, []common.Entity{john, mapo}, []common.Relationship{first}); err != nil {
		t.Fatal(err)
	}

	mapo.Description = "district with flood risk"
	mapo.Properties = common.NewProperties(common.EntityLocation, map[string]any{"risk_zone": "flood"})
	second := rel("b", "John", "Mapo-gu", "LIVES_IN")
	second.Description = "new"
	second.Confidence = 0.5
	if _, err := w.StoreInGraph(ctx, []common.Entity{john, mapo}, []common.Relationship{second}); err != nil {
		t.Fatal(err)
	}

	stats := ms.Stats()
	if stats.Nodes != 2 || stats.Edges != 1 {
		t.Fatalf("re-ingest duplicated data: %+v", stats)
	}
	if stats.SchemaCalls != 1 {
		t.Fatalf("expected schema to be ensured once per writer, got %d", stats.SchemaCalls)
	}
	got, _ := ms.Entity("Mapo-gu", common.EntityLocation)
	if got.Description != "district with flood risk" {
		t.Fatalf("expected updated description, got %q", got.Description)
	}
	if v, _ := got.Properties.Get("risk_zone"); v != "flood" {
		t.Fatalf("expected updated properties, got %v", got.Properties.Flatten())
	}
	edges := ms.Relationships()
	if edges[0].Description != "new" || edges[0].Confidence != 0.5 {
		t.Fatalf("expected last write to win on edge, got %+v", edges[0])
	}
}

func TestStoreInGraph_PartialWriteOnFailure(t *testing.T) {
	rs := newRecordingStore()
	rs.failEntity = 2
	w := store.NewGraphWriter(rs)

	entities := []common.Entity{
		entity("e1", "John", common.EntityPerson),
		entity("e2", "Mapo-gu", common.EntityLocation),
		entity("e3", "Flood", common.EntityRisk),
	}
	report, err := w.StoreInGraph(context.Background(), entities, nil)

	var werr *store.GraphWriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected GraphWriteError, got %v", err)
	}
	if werr.Op != "upsert entity" {
		t.Fatalf("unexpected op %q", werr.Op)
	}
	if report.Entities != 1 {
		t.Fatalf("expected the first entity to stay written, report=%+v", report)
	}
	if _, ok := rs.Entity("John", common.EntityPerson); !ok {
		t.Fatal("partial write should not be rolled back")
	}
}

func TestStoreInGraph_SchemaFailureIsRetried(t *testing.T) {
	rs := newRecordingStore()
	rs.schemaErr = errors.New("unavailable")
	w := store.NewGraphWriter(rs)

	if _, err := w.StoreInGraph(context.Background(), nil, nil); err == nil {
		t.Fatal("expected schema error")
	}
	rs.schemaErr = nil
	if _, err := w.StoreInGraph(context.Background(), nil, nil); err != nil {
		t.Fatalf("expected schema to be retried, got %v", err)
	}
}
