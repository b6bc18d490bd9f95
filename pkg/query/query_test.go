package query

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store/memory"
)

func ent(name string, kind common.EntityType, conf float64, desc string, units ...string) common.Entity {
	return common.Entity{
		ID:          fmt.Sprintf("entity_%s_%s", kind, name),
		Name:        name,
		Type:        kind,
		Confidence:  conf,
		Description: desc,
		TextUnits:   units,
		Properties:  common.Properties{Kind: kind},
	}
}

func seedStore(t *testing.T) *memory.GraphStore {
	t.Helper()
	ms := memory.NewGraphStore()
	w := store.NewGraphWriter(ms)

	entities := []common.Entity{
		ent("John", common.EntityPerson, 0.9, "lives in Mapo-gu", "doc_chunk_0"),
		ent("Mapo-gu", common.EntityLocation, 0.95, "district with high flood risk", "doc_chunk_0"),
		ent("Flood", common.EntityRisk, 0.85, "river flooding", "doc_chunk_1"),
		ent("Seoul", common.EntityLocation, 0.7, "capital", "doc_chunk_1"),
	}
	for i := range 12 {
		entities = append(entities, ent(fmt.Sprintf("Flood plan %02d", i), common.EntityInsurance, 0.5, "", "doc_chunk_2"))
	}
	rels := []common.Relationship{
		{SourceName: "John", TargetName: "Mapo-gu", Type: "LIVES_IN"},
		{SourceName: "Mapo-gu", TargetName: "Seoul", Type: "PART_OF"},
		{SourceName: "Mapo-gu", TargetName: "Flood", Type: "HAS_RISK", Description: "flood zone"},
	}
	if _, err := w.StoreInGraph(context.Background(), entities, rels); err != nil {
		t.Fatal(err)
	}
	return ms
}

func TestGlobalSearch(t *testing.T) {
	trace := NewQueryTrace()
	svc := NewSearchService(seedStore(t), WithTracer(trace))

	res, err := svc.GlobalSearch(context.Background(), "FLOOD")
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeGlobal || res.Query != "FLOOD" {
		t.Fatalf("unexpected envelope %+v", res)
	}
	if len(res.Entities) != store.GlobalSearchLimit {
		t.Fatalf("expected %d entities, got %d", store.GlobalSearchLimit, len(res.Entities))
	}
	if res.Entities[0].Name != "Mapo-gu" || res.Entities[1].Name != "Flood" {
		t.Fatalf("expected most confident matches first, got %s, %s", res.Entities[0].Name, res.Entities[1].Name)
	}
	if res.Confidence != PlaceholderConfidence {
		t.Fatalf("confidence = %v", res.Confidence)
	}
	if res.Citations == nil || res.Communities == nil || len(res.Citations)+len(res.Communities) != 0 {
		t.Fatal("citations and communities must be empty, not nil")
	}

	snap := trace.Snapshot()
	if len(snap.Entities) != store.GlobalSearchLimit {
		t.Fatalf("trace recorded %d entities", len(snap.Entities))
	}
	if !reflect.DeepEqual(snap.TextUnits, []string{"doc_chunk_0", "doc_chunk_1", "doc_chunk_2"}) {
		t.Fatalf("unexpected traced text units %v", snap.TextUnits)
	}

	if _, err := svc.GlobalSearch(context.Background(), "  "); err == nil {
		t.Fatal("blank query should fail")
	}
}

func TestLocalSearch(t *testing.T) {
	svc := NewSearchService(seedStore(t))

	res, err := svc.LocalSearch(context.Background(), "flood", "mapo-gu")
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeLocal || len(res.Relationships) != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	var names []string
	for _, e := range res.Entities {
		names = append(names, e.Name)
	}
	want := []string{"Mapo-gu", "Flood", "John", "Seoul"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("entities = %v, want %v", names, want)
	}
	if res.Relationships[0].Type != "HAS_RISK" {
		t.Fatalf("matching relationship should rank first, got %s", res.Relationships[0].Type)
	}

	empty, err := svc.LocalSearch(context.Background(), "", "Atlantis")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Entities) != 0 || len(empty.Relationships) != 0 || empty.Relationships == nil {
		t.Fatalf("unknown entity should yield an empty envelope, got %+v", empty)
	}
}

type failingStore struct {
	*memory.GraphStore
}

func (failingStore) SearchEntities(context.Context, string, int) ([]common.Entity, error) {
	return nil, errors.New("store down")
}

func TestSearchPropagatesStoreErrors(t *testing.T) {
	svc := NewSearchService(failingStore{memory.NewGraphStore()})
	if _, err := svc.GlobalSearch(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := svc.LocalSearch(context.Background(), "", "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMultiTracer(t *testing.T) {
	a, b := NewQueryTrace(), NewQueryTrace()
	m := MultiTracer{a, nil, b}
	RecordQueriedEntities(m, "e1", "", "e2", "e1")
	for _, tr := range []*QueryTrace{a, b} {
		if got := tr.Snapshot().Entities; !reflect.DeepEqual(got, []string{"e1", "e2"}) {
			t.Fatalf("got %v", got)
		}
	}
}
