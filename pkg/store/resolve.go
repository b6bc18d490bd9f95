package store

import (
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
)

// Resolve returns the ID of the first candidate whose name equals name
// exactly, ignoring surrounding whitespace. Relationships carry names only,
// so the entity type is not consulted: when one batch holds the same name
// under two types, every edge binds to whichever comes first in candidates.
func Resolve(name string, candidates []common.Entity) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.Name) == name {
			return c.ID, true
		}
	}
	return "", false
}
