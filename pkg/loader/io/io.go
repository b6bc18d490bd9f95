package io

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/loader"
)

// FileLoader reads documents from the local filesystem. Results are cached
// for the lifetime of the loader.
type FileLoader struct {
	cache loader.Cache
}

// NewFileLoader creates a new filesystem-based loader.
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load reads the file at ref. A "file://" prefix is accepted.
func (l *FileLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(ref, "file://")
	return l.cache.Do(path, func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return data, nil
	})
}
