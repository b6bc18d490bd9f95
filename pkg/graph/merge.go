package graph

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/internal/util"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
)

type mergeKey struct {
	name string
	kind common.EntityType
}

func keyOf(e common.Entity) mergeKey {
	return mergeKey{name: util.NormalizeName(e.Name), kind: e.Type}
}

// CanonicalEntityID is the stable ID of the merged entity for name and kind.
func CanonicalEntityID(name string, kind common.EntityType) string {
	return fmt.Sprintf("entity_%s_%s", strings.ToLower(string(kind)), util.NormalizeName(name))
}

// MergeEntities collapses entities sharing (lowercase(name), type) into one
// record, in order of first occurrence. On collision confidence takes the
// maximum, text units are unioned in order, properties merge with later
// values winning and the first non-empty description is kept. The name of
// the first occurrence is kept. Merging is idempotent.
//
// Names differing by more than case and surrounding space are not merged.
func MergeEntities(entities []common.Entity) []common.Entity {
	out := make([]common.Entity, 0, len(entities))
	index := make(map[mergeKey]int, len(entities))

	for _, e := range entities {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		k := keyOf(e)
		i, ok := index[k]
		if !ok {
			merged := e
			merged.ID = CanonicalEntityID(e.Name, e.Type)
			merged.Name = strings.TrimSpace(e.Name)
			merged.Confidence = common.ClampConfidence(e.Confidence)
			merged.TextUnits = unionUnits(nil, e.TextUnits)
			merged.Properties = common.Properties{Kind: e.Type}.Merge(e.Properties)
			index[k] = len(out)
			out = append(out, merged)
			continue
		}

		cur := &out[i]
		cur.Confidence = max(cur.Confidence, common.ClampConfidence(e.Confidence))
		cur.TextUnits = unionUnits(cur.TextUnits, e.TextUnits)
		cur.Properties = cur.Properties.Merge(e.Properties)
		if cur.Description == "" {
			cur.Description = e.Description
		}
	}
	return out
}

func unionUnits(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst)+len(src))
	out := make([]string, 0, len(dst)+len(src))
	for _, ids := range [][]string{dst, src} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
