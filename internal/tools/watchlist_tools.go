package tools

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/openbrief/marketbrief/internal/tenant"
)

// RegisterWatchlistTools adds tools that let the agent maintain the
// tenant's watchlist and preferences through the config store, so
// every change lands in config.json with updated_at refreshed.
func RegisterWatchlistTools(r *Registry, store *tenant.Store, tenantID string) {
	r.Register(&Tool{
		Name:        "view_watchlist",
		Description: "Show the tenant's current watchlist: stocks, sectors, keywords, and influencers.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			cfg, err := store.Get(tenantID)
			if err != nil {
				return "", err
			}
			return formatWatchlist(cfg.Watchlist), nil
		},
	})

	r.Register(&Tool{
		Name:        "update_watchlist",
		Description: "Add or remove watchlist entries. Additions and removals apply to the named list (stocks, sectors, keywords, influencers).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"list": map[string]any{
					"type":        "string",
					"description": "Which list to modify: stocks, sectors, keywords, influencers",
				},
				"add": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Entries to add",
				},
				"remove": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Entries to remove",
				},
			},
			"required": []string{"list"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			list := stringArg(args, "list")
			if watchlistField(&tenant.Watchlist{}, list) == nil {
				return "", fmt.Errorf("unknown list %q (valid: stocks, sectors, keywords, influencers)", list)
			}
			add := stringSliceArg(args, "add")
			remove := stringSliceArg(args, "remove")
			if len(add) == 0 && len(remove) == 0 {
				return "", fmt.Errorf("nothing to add or remove")
			}

			cfg, err := store.Update(tenantID, func(c *tenant.Config) {
				target := watchlistField(&c.Watchlist, list)
				for _, entry := range add {
					if !slices.Contains(*target, entry) {
						*target = append(*target, entry)
					}
				}
				*target = slices.DeleteFunc(*target, func(s string) bool {
					return slices.Contains(remove, s)
				})
			})
			if err != nil {
				return "", err
			}
			return formatWatchlist(cfg.Watchlist), nil
		},
	})

	r.Register(&Tool{
		Name:        "remember",
		Description: "Store a free-form fact about the tenant for future runs (e.g., risk tolerance, broker, interests).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "Short identifier for the fact",
				},
				"value": map[string]any{
					"type":        "string",
					"description": "The fact to store",
				},
			},
			"required": []string{"key", "value"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			key := stringArg(args, "key")
			if key == "" {
				return "", fmt.Errorf("key is required")
			}
			if _, err := store.SetCustomData(tenantID, key, stringArg(args, "value")); err != nil {
				return "", err
			}
			return fmt.Sprintf("Remembered %s.", key), nil
		},
	})
}

func watchlistField(w *tenant.Watchlist, list string) *[]string {
	switch strings.ToLower(list) {
	case "stocks":
		return &w.Stocks
	case "sectors":
		return &w.Sectors
	case "keywords":
		return &w.Keywords
	case "influencers":
		return &w.Influencers
	default:
		return nil
	}
}

func formatWatchlist(w tenant.Watchlist) string {
	format := func(name string, entries []string) string {
		if len(entries) == 0 {
			return name + ": (none)"
		}
		return name + ": " + strings.Join(entries, ", ")
	}
	return strings.Join([]string{
		format("Stocks", w.Stocks),
		format("Sectors", w.Sectors),
		format("Keywords", w.Keywords),
		format("Influencers", w.Influencers),
	}, "\n")
}
