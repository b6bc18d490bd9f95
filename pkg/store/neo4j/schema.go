package neo4j

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var schemaStatements = []string{
	`CREATE CONSTRAINT entity_name_type IF NOT EXISTS FOR (e:Entity) REQUIRE (e.name, e.type) IS UNIQUE`,
	`CREATE INDEX entity_id IF NOT EXISTS FOR (e:Entity) ON (e.id)`,
	`CREATE INDEX entity_name IF NOT EXISTS FOR (e:Entity) ON (e.name)`,
}

// EnsureSchema creates the uniqueness constraint and lookup indexes. The
// statements use IF NOT EXISTS, so repeated calls are no-ops.
func (s *GraphStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.Run(ctx, neo4j.AccessModeWrite, stmt, nil); err != nil {
			if isAlreadyExists(err) {
				continue
			}
			return fmt.Errorf("neo4j schema: %w", err)
		}
	}
	return nil
}

// Older servers report an equivalent constraint under another name as an
// error even with IF NOT EXISTS.
func isAlreadyExists(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "EquivalentSchemaRuleAlreadyExists") ||
		strings.Contains(msg, "already exists")
}

var (
	nonLabel   = regexp.MustCompile(`[^A-Za-z0-9_]+`)
	nonRelType = regexp.MustCompile(`[^A-Z0-9_]+`)
)

// Label returns the node label for kind. Labels are interpolated into
// Cypher, so only [A-Za-z0-9_] survives.
func Label(kind common.EntityType) string {
	l := nonLabel.ReplaceAllString(string(kind), "")
	if l == "" || (l[0] >= '0' && l[0] <= '9') {
		return "Unknown"
	}
	return l
}

// RelType returns the relationship type token for t, restricted to
// [A-Z0-9_] and never starting with a digit.
func RelType(t string) string {
	r := nonRelType.ReplaceAllString(strings.ToUpper(strings.TrimSpace(t)), "_")
	r = strings.Trim(r, "_")
	if r == "" {
		return "RELATED_TO"
	}
	if r[0] >= '0' && r[0] <= '9' {
		r = "R_" + r
	}
	return r
}
