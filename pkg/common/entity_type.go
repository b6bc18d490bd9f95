package common

import (
	"fmt"
	"strings"
)

// EntityType is the closed set of node types the graph accepts.
type EntityType string

const (
	EntityPerson       EntityType = "Person"
	EntityLocation     EntityType = "Location"
	EntityProduct      EntityType = "Product"
	EntityRisk         EntityType = "Risk"
	EntityInsurance    EntityType = "Insurance"
	EntityOrganization EntityType = "Organization"
	EntityEvent        EntityType = "Event"
)

// EntityTypes lists every accepted type in prompt order.
var EntityTypes = []EntityType{
	EntityPerson,
	EntityLocation,
	EntityProduct,
	EntityRisk,
	EntityInsurance,
	EntityOrganization,
	EntityEvent,
}

var entityTypeAliases = map[string]EntityType{
	"person":       EntityPerson,
	"claimant":     EntityPerson,
	"location":     EntityLocation,
	"place":        EntityLocation,
	"product":      EntityProduct,
	"risk":         EntityRisk,
	"insurance":    EntityInsurance,
	"coverage":     EntityInsurance,
	"organization": EntityOrganization,
	"organisation": EntityOrganization,
	"company":      EntityOrganization,
	"event":        EntityEvent,
}

// ParseEntityType maps a free-form type string, as returned by a model,
// onto the closed enum. Matching ignores case and surrounding whitespace.
func ParseEntityType(s string) (EntityType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if t, ok := entityTypeAliases[key]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Valid reports whether t is one of EntityTypes.
func (t EntityType) Valid() bool {
	for _, et := range EntityTypes {
		if et == t {
			return true
		}
	}
	return false
}

// EntityTypeNames returns the enum values as plain strings.
func EntityTypeNames() []string {
	names := make([]string, len(EntityTypes))
	for i, t := range EntityTypes {
		names[i] = string(t)
	}
	return names
}
