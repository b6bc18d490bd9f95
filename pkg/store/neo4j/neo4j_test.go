package neo4j

import (
	"errors"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		in   common.EntityType
		want string
	}{
		{common.EntityPerson, "Person"},
		{common.EntityInsurance, "Insurance"},
		{"Risk`) DETACH DELETE n //", "RiskDETACHDELETEn"},
		{"9lives", "Unknown"},
		{"", "Unknown"},
	}
	for _, tt := range tests {
		if got := Label(tt.in); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRelType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"LIVES_IN", "LIVES_IN"},
		{"has risk", "HAS_RISK"},
		{"covers`]->() DELETE r //", "COVERS_DELETE_R"},
		{"2nd_home", "R_2ND_HOME"},
		{"  ", "RELATED_TO"},
	}
	for _, tt := range tests {
		if got := RelType(tt.in); got != tt.want {
			t.Errorf("RelType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUpsertCypherUsesSanitizedTokens(t *testing.T) {
	c := upsertEntityCypher(Label(common.EntityLocation))
	if !strings.Contains(c, "MERGE (e:Entity {name: $name, type: $type})") {
		t.Fatalf("entity upsert must merge on (name, type):\n%s", c)
	}
	if !strings.Contains(c, "SET e:`Location`") {
		t.Fatalf("entity upsert must set the type label:\n%s", c)
	}

	r := upsertRelationshipCypher(RelType("lives in"))
	if !strings.Contains(r, "MERGE (a)-[r:`LIVES_IN`]->(b)") {
		t.Fatalf("relationship upsert must merge on (source, type, target):\n%s", r)
	}
}

func TestEntityParamsDropsReservedKeys(t *testing.T) {
	e := common.Entity{
		ID:   "entity_person_john",
		Name: "John",
		Type: common.EntityPerson,
		Properties: common.NewProperties(common.EntityPerson, map[string]any{
			"user_id": "u-1",
			"name":    "Johnny",
			"hobby":   "sailing",
		}),
	}
	params := entityParams(e)
	props := params["props"].(map[string]any)
	if _, ok := props["name"]; ok {
		t.Fatal("reserved key name must not be written as property")
	}
	if props["user_id"] != "u-1" || props["hobby"] != "sailing" {
		t.Fatalf("unexpected props %v", props)
	}
	if params["name"] != "John" || params["type"] != "Person" {
		t.Fatalf("unexpected key params %v", params)
	}
}

func TestEntityFromProps(t *testing.T) {
	e := entityFromProps(map[string]any{
		"id":          "entity_location_mapo-gu",
		"name":        "Mapo-gu",
		"type":        "Location",
		"description": "district",
		"confidence":  0.9,
		"text_units":  []any{"doc_chunk_0", "doc_chunk_1"},
		"risk_zone":   "flood",
	})
	if e.Name != "Mapo-gu" || e.Type != common.EntityLocation || e.Confidence != 0.9 {
		t.Fatalf("unexpected entity %+v", e)
	}
	if len(e.TextUnits) != 2 {
		t.Fatalf("expected 2 text units, got %v", e.TextUnits)
	}
	if v, _ := e.Properties.Get("risk_zone"); v != "flood" {
		t.Fatalf("expected risk_zone property, got %v", e.Properties.Flatten())
	}
}

func TestIsAlreadyExists(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"EquivalentRule", errors.New("Neo4jError: Neo.ClientError.Schema.EquivalentSchemaRuleAlreadyExists (An equivalent constraint already exists)"), true},
		{"AlreadyExists", errors.New("Constraint already exists: Constraint( id=4, name='entity_name_type' )"), true},
		{"Unrelated", errors.New("Neo4jError: Neo.ClientError.Security.Unauthorized (The client is unauthorized)"), false},
		{"SyntaxError", errors.New("Neo4jError: Neo.ClientError.Statement.SyntaxError (Invalid input 'CONSTRANT')"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAlreadyExists(tt.err); got != tt.want {
				t.Fatalf("isAlreadyExists(%q) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
