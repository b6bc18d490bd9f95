package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/ai"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
)

// DedupeStrings returns the non-empty values of in, first occurrence first.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// EntityEmbeddingText is the text embedded for an entity.
func EntityEmbeddingText(e common.Entity) []byte {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteString(" (")
	b.WriteString(string(e.Type))
	b.WriteString(")")
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	return []byte(b.String())
}

// GenerateEmbedding embeds e with client.
func GenerateEmbedding(ctx context.Context, client ai.GraphAIClient, e common.Entity) ([]float32, error) {
	if client == nil {
		return nil, fmt.Errorf("ai client is nil")
	}
	return client.GenerateEmbedding(ctx, EntityEmbeddingText(e))
}

// ReservedProperty reports whether key collides with a core node field and
// must not be written as a free property.
func ReservedProperty(key string) bool {
	switch key {
	case "id", "name", "type", "description", "confidence", "text_units", "embedding":
		return true
	}
	return false
}
