package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/openbrief/marketbrief/internal/market"
)

// RegisterMarketTools adds the quote tool when a market data endpoint
// is configured.
func RegisterMarketTools(r *Registry, client *market.Client) {
	if client == nil || !client.Configured() {
		return
	}

	r.Register(&Tool{
		Name:        "market_quote",
		Description: "Get latest price quotes for one or more stock symbols.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbols": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Stock symbols to quote (e.g., [\"AAPL\", \"NVDA\"])",
				},
			},
			"required": []string{"symbols"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			symbols := stringSliceArg(args, "symbols")
			if len(symbols) == 0 {
				return "", fmt.Errorf("symbols is required")
			}
			quotes, err := client.Quotes(ctx, symbols)
			if err != nil {
				return "", err
			}
			if len(quotes) == 0 {
				return "No quotes available.", nil
			}
			lines := make([]string, len(quotes))
			for i, q := range quotes {
				lines[i] = q.String()
			}
			return strings.Join(lines, "\n"), nil
		},
	})
}
