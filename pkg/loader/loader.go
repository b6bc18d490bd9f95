// Package loader fetches raw document text for ingestion from local files,
// web pages and other sources.
package loader

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DocumentLoader returns the text behind a reference such as a path or URL.
type DocumentLoader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// Func adapts a plain function to DocumentLoader.
type Func func(ctx context.Context, ref string) ([]byte, error)

func (f Func) Load(ctx context.Context, ref string) ([]byte, error) { return f(ctx, ref) }

// Cache memoizes successful loads per reference. Concurrent loads of the
// same reference share one call.
type Cache struct {
	mu    sync.RWMutex
	data  map[string][]byte
	group singleflight.Group
}

// Do returns the cached value for key or calls fetch once to fill it.
// Failed fetches are not cached.
func (c *Cache) Do(key string, fetch func() ([]byte, error)) ([]byte, error) {
	c.mu.RLock()
	if cached, ok := c.data[key]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		if cached, ok := c.data[key]; ok {
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()

		data, err := fetch()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.data == nil {
			c.data = make(map[string][]byte)
		}
		c.data[key] = data
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Mux routes references to loaders by scheme ("https", "s3", ...). References
// without a registered scheme go to the fallback loader.
type Mux struct {
	schemes  map[string]DocumentLoader
	fallback DocumentLoader
}

// NewMux returns a Mux that sends unmatched references to fallback.
func NewMux(fallback DocumentLoader) *Mux {
	return &Mux{schemes: make(map[string]DocumentLoader), fallback: fallback}
}

// Handle registers l for every scheme given.
func (m *Mux) Handle(l DocumentLoader, schemes ...string) {
	for _, s := range schemes {
		m.schemes[strings.ToLower(s)] = l
	}
}

func (m *Mux) Load(ctx context.Context, ref string) ([]byte, error) {
	if scheme, _, ok := strings.Cut(ref, "://"); ok {
		if l, ok := m.schemes[strings.ToLower(scheme)]; ok {
			return l.Load(ctx, ref)
		}
	}
	if m.fallback == nil {
		return nil, fmt.Errorf("no loader for %q", ref)
	}
	return m.fallback.Load(ctx, ref)
}
