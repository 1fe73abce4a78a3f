// Package market provides a client for the quote API used to ground
// reports in live prices. When no endpoint is configured the client
// is inert and tools report quotes as unavailable.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openbrief/marketbrief/internal/httpkit"
)

// Quote is a point-in-time price for one symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change    float64   `json:"change"`
	ChangePct float64   `json:"change_pct"`
	Currency  string    `json:"currency,omitempty"`
	AsOf      time.Time `json:"as_of"`
}

// String formats a quote for tool output.
func (q Quote) String() string {
	sign := ""
	if q.Change > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s: %.2f (%s%.2f, %s%.2f%%)", q.Symbol, q.Price, sign, q.Change, sign, q.ChangePct)
}

// Client talks to the quote API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a market data client. An empty baseURL yields an
// unconfigured client; Configured reports false and calls fail fast.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(10 * time.Second)),
		logger:     logger.With("component", "market"),
	}
}

// Configured reports whether a quote endpoint is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Quote fetches the latest quote for one symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	quotes, err := c.Quotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("market: no quote for %s", symbol)
	}
	return &quotes[0], nil
}

// Quotes fetches the latest quotes for a batch of symbols.
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("market: quote API not configured")
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("market: no symbols given")
	}

	params := url.Values{"symbols": {strings.Join(symbols, ",")}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/quotes?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("market: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market: HTTP %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	var payload struct {
		Quotes []Quote `json:"quotes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("market: decode response: %w", err)
	}

	c.logger.Debug("quotes fetched", "requested", len(symbols), "returned", len(payload.Quotes))
	return payload.Quotes, nil
}
