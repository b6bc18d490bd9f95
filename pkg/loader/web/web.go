package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/loader"

	"codeberg.org/readeck/go-readability/v2"
)

// PageLoader fetches web pages such as insurance advertisements. HTML
// responses are reduced to their main readable text; other content types
// are returned as is.
type PageLoader struct {
	client *http.Client
	cache  loader.Cache
}

// NewPageLoader returns a PageLoader using client, or http.DefaultClient
// when client is nil.
func NewPageLoader(client *http.Client) *PageLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &PageLoader{client: client}
}

// Load fetches ref and extracts its readable text.
func (l *PageLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	return l.cache.Do(ref, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch url: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("failed to fetch url: status %d", resp.StatusCode)
		}

		if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
			u, err := url.Parse(ref)
			if err != nil {
				return nil, fmt.Errorf("failed to parse url: %w", err)
			}
			article, err := readability.FromReader(resp.Body, u)
			if err != nil {
				return nil, fmt.Errorf("failed to parse html: %w", err)
			}
			var builder strings.Builder
			if err := article.RenderText(&builder); err != nil {
				return nil, fmt.Errorf("failed to render article text: %w", err)
			}
			return []byte(builder.String()), nil
		}

		return io.ReadAll(resp.Body)
	})
}
