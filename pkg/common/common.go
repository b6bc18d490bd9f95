package common

// Unit represents a contiguous segment of text cut from a document. Units
// are the unit of LLM extraction and serve as provenance for entities and
// relationships; they are not persisted beyond their ID.
//
// Start and End are character (rune) offsets into the source document.
// ChunkIndex is strictly increasing per document.
type Unit struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Start      int               `json:"start"`
	End        int               `json:"end"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Entity represents a named, typed node in the graph. Entities are created
// per unit by the extractor and collapsed into one canonical record per
// merge key before they are written.
type Entity struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	Description string     `json:"description"`
	Confidence  float64    `json:"confidence"`
	TextUnits   []string   `json:"text_units"`
	Properties  Properties `json:"properties"`
}

// Relationship represents a directed, typed edge between two entities.
//
// Endpoints are entity names as emitted by the model. They are resolved
// against the merged entity set only when the relationship is written.
type Relationship struct {
	ID          string   `json:"id"`
	SourceName  string   `json:"source"`
	TargetName  string   `json:"target"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	TextUnits   []string `json:"text_units"`
	Weight      *float64 `json:"weight,omitempty"`
}

// Community is a hierarchical cluster of entities with a summary.
//
// Nothing in this module computes or queries communities; the type exists
// so the search envelope and persisted model can name them.
type Community struct {
	ID        string   `json:"id"`
	Level     int      `json:"level"`
	EntityIDs []string `json:"entity_ids"`
	Summary   string   `json:"summary"`
	ParentID  string   `json:"parent_id,omitempty"`
	ChildIDs  []string `json:"child_ids,omitempty"`
}

// Neighbor is one incident edge of an entity together with the entity on
// the other end. Outgoing is true when the queried entity is the source.
type Neighbor struct {
	Relationship Relationship `json:"relationship"`
	Entity       Entity       `json:"entity"`
	Outgoing     bool         `json:"outgoing"`
}

// Recommendation is an insurance product linked to risks near a user.
type Recommendation struct {
	Insurance Entity   `json:"insurance"`
	Risks     []string `json:"risks"`
	Score     int      `json:"score"`
}

// ClampConfidence bounds a model supplied confidence to [0,1].
func ClampConfidence(c float64) float64 {
	if c != c || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
