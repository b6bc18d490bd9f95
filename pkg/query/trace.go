package query

import (
	"slices"
	"sync"
)

type TraceEventKind string

const (
	TraceEventQueriedEntities      TraceEventKind = "queried_entities"
	TraceEventQueriedRelationships TraceEventKind = "queried_relationships"
	TraceEventConsideredTextUnits  TraceEventKind = "considered_text_units"
)

// TraceEvent is an extensible event envelope for query tracing.
type TraceEvent struct {
	Kind TraceEventKind
	IDs  []string
}

// Tracer is a sink for query tracing events.
//
// Implementers can forward events to logs or collect them for display.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fans trace events out to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func RecordQueriedEntities(t Tracer, ids ...string) {
	if t == nil || len(ids) == 0 {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventQueriedEntities, IDs: ids})
}

func RecordQueriedRelationships(t Tracer, keys ...string) {
	if t == nil || len(keys) == 0 {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventQueriedRelationships, IDs: keys})
}

func RecordConsideredTextUnits(t Tracer, ids ...string) {
	if t == nil || len(ids) == 0 {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventConsideredTextUnits, IDs: ids})
}

// QueryTrace collects the entities, relationships and text units searches
// touched. It is safe for concurrent use.
type QueryTrace struct {
	mu   sync.Mutex
	sets map[TraceEventKind]map[string]struct{}
}

// QueryTraceSnapshot is a sorted copy of a QueryTrace.
type QueryTraceSnapshot struct {
	Entities      []string
	Relationships []string
	TextUnits     []string
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{sets: make(map[TraceEventKind]map[string]struct{})}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.sets[event.Kind]
	if !ok {
		set = make(map[string]struct{})
		t.sets[event.Kind] = set
	}
	for _, id := range event.IDs {
		if id != "" {
			set[id] = struct{}{}
		}
	}
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	sorted := func(kind TraceEventKind) []string {
		out := make([]string, 0, len(t.sets[kind]))
		for id := range t.sets[kind] {
			out = append(out, id)
		}
		slices.Sort(out)
		return out
	}
	return QueryTraceSnapshot{
		Entities:      sorted(TraceEventQueriedEntities),
		Relationships: sorted(TraceEventQueriedRelationships),
		TextUnits:     sorted(TraceEventConsideredTextUnits),
	}
}
