package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/openbrief/marketbrief/internal/fetch"
	"github.com/openbrief/marketbrief/internal/search"
)

// RegisterWebTools adds web_search and web_fetch. The search tool is
// skipped when no provider is configured; web_fetch is always present.
func RegisterWebTools(r *Registry, mgr *search.Manager, fetcher *fetch.Fetcher) {
	if mgr != nil && mgr.Configured() {
		r.Register(&Tool{
			Name:        "web_search",
			Description: "Search the web. Returns titles, URLs, and snippets. Use freshness 'pd' for news from the past day.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query",
					},
					"count": map[string]any{
						"type":        "integer",
						"description": "Maximum results to return (default 5)",
					},
					"freshness": map[string]any{
						"type":        "string",
						"description": "Limit result age: pd (day), pw (week), pm (month)",
					},
				},
				"required": []string{"query"},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				query := stringArg(args, "query")
				if query == "" {
					return "", fmt.Errorf("query is required")
				}
				results, err := mgr.Search(ctx, query, search.Options{
					Count:     intArg(args, "count", 0),
					Freshness: stringArg(args, "freshness"),
				})
				if err != nil {
					return "", err
				}
				if len(results) == 0 {
					return "No results found.", nil
				}
				var b strings.Builder
				for i, res := range results {
					fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, res.Title, res.URL)
					if res.Snippet != "" {
						fmt.Fprintf(&b, "   %s\n", res.Snippet)
					}
				}
				return b.String(), nil
			},
		})
	}

	if fetcher != nil {
		r.Register(&Tool{
			Name:        "web_fetch",
			Description: "Fetch a web page and return its readable text content with boilerplate stripped.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "The URL to fetch",
					},
					"max_chars": map[string]any{
						"type":        "integer",
						"description": "Maximum characters of extracted text (default 50000)",
					},
				},
				"required": []string{"url"},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				rawURL := stringArg(args, "url")
				if rawURL == "" {
					return "", fmt.Errorf("url is required")
				}
				result, err := fetcher.Fetch(ctx, rawURL, intArg(args, "max_chars", 0))
				if err != nil {
					return "", err
				}
				var b strings.Builder
				if result.Title != "" {
					fmt.Fprintf(&b, "Title: %s\n\n", result.Title)
				}
				b.WriteString(result.Content)
				if result.Truncated {
					b.WriteString("\n\n[... content truncated ...]")
				}
				return b.String(), nil
			},
		})
	}
}
