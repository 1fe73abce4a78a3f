// Package report generates unattended market briefs.
//
// A report run loads the tenant's configuration, gathers live market
// data when available, drives the agent loop under a retry policy, and
// writes the resulting content plus a metadata sidecar into the
// tenant's reports/ directory.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openbrief/marketbrief/internal/agent"
	"github.com/openbrief/marketbrief/internal/market"
	"github.com/openbrief/marketbrief/internal/notify"
	"github.com/openbrief/marketbrief/internal/prompts"
	"github.com/openbrief/marketbrief/internal/retry"
	"github.com/openbrief/marketbrief/internal/tenant"
	"github.com/openbrief/marketbrief/internal/workspace"
)

// Generator produces reports for tenants.
type Generator struct {
	logger     *slog.Logger
	engine     *agent.Engine
	tenants    *tenant.Store
	workspaces *workspace.Manager
	market     *market.Client
	notifier   *notify.Dispatcher
	policy     retry.Policy
}

// Options wires the generator.
type Options struct {
	Logger     *slog.Logger
	Engine     *agent.Engine
	Tenants    *tenant.Store
	Workspaces *workspace.Manager
	Market     *market.Client
	Notifier   *notify.Dispatcher
	MaxRetries int
	RetryDelay time.Duration
}

// NewGenerator creates a report generator.
func NewGenerator(opts Options) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Generator{
		logger:     logger.With("component", "report"),
		engine:     opts.Engine,
		tenants:    opts.Tenants,
		workspaces: opts.Workspaces,
		market:     opts.Market,
		notifier:   opts.Notifier,
		policy:     retry.Policy{MaxAttempts: retries, Delay: delay},
	}
}

// Result describes one generated report.
type Result struct {
	ReportID    string    `json:"report_id"`
	ReportType  string    `json:"report_type"`
	Path        string    `json:"path"`
	Content     string    `json:"-"`
	GeneratedAt time.Time `json:"generated_at"`
	Degraded    bool      `json:"degraded,omitempty"`
}

// metadata is the JSON sidecar written next to each report.
type metadata struct {
	ReportID      string    `json:"report_id"`
	ReportType    string    `json:"report_type"`
	UserID        string    `json:"user_id"`
	GeneratedAt   time.Time `json:"generated_at"`
	PromptLength  int       `json:"prompt_length"`
	ContentLength int       `json:"content_length"`
	Degraded      bool      `json:"degraded,omitempty"`
}

// Generate produces one report for a tenant. An unknown tenant fails
// immediately without retries; model-call failures are retried per the
// policy. Without a model connection the report degrades to a
// clearly-labeled placeholder so scheduled pipelines keep moving.
func (g *Generator) Generate(ctx context.Context, tenantID, reportType string) (*Result, error) {
	if reportType == "" {
		reportType = "daily"
	}

	cfg, err := g.tenants.Get(tenantID)
	if err != nil {
		return nil, err
	}

	marketData := g.collectMarketData(ctx, cfg)
	prompt := prompts.Report(reportType, cfg, marketData)

	now := time.Now()
	reportID := fmt.Sprintf("%s_%s", reportType, now.Format("20060102_150405"))

	var content string
	degraded := false
	if g.engine.HasModel() {
		sessionKey := "report:" + reportType
		err := g.policy.Do(ctx, func(ctx context.Context, attempt int) error {
			if attempt > 1 {
				g.logger.Warn("retrying report generation",
					"tenant", tenantID, "type", reportType, "attempt", attempt)
			}
			out, err := g.engine.ProcessForUser(ctx, tenantID, prompt, sessionKey, "report", "")
			if err != nil {
				return err
			}
			content = out
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("generate %s report for %s: %w", reportType, tenantID, err)
		}
	} else {
		degraded = true
		content = placeholderContent(reportType, cfg, now)
	}

	path, err := g.writeArtifacts(tenantID, reportID, reportType, cfg, prompt, content, now, degraded)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ReportID:    reportID,
		ReportType:  reportType,
		Path:        path,
		Content:     content,
		GeneratedAt: now,
		Degraded:    degraded,
	}

	g.notifyTenant(ctx, tenantID, cfg, result)

	g.logger.Info("report generated",
		"tenant", tenantID, "type", reportType, "id", reportID,
		"chars", len(content), "degraded", degraded)
	return result, nil
}

// collectMarketData fetches quotes for the watchlist stocks. Failures
// degrade to an empty section rather than blocking the report.
func (g *Generator) collectMarketData(ctx context.Context, cfg *tenant.Config) string {
	if g.market == nil || !g.market.Configured() || len(cfg.Watchlist.Stocks) == 0 {
		return ""
	}
	quotes, err := g.market.Quotes(ctx, cfg.Watchlist.Stocks)
	if err != nil {
		g.logger.Warn("market data unavailable", "error", err)
		return ""
	}
	lines := make([]string, len(quotes))
	for i, q := range quotes {
		lines[i] = q.String()
	}
	return strings.Join(lines, "\n")
}

// writeArtifacts persists the report content, its metadata sidecar,
// and an HTML rendering when the tenant prefers html.
func (g *Generator) writeArtifacts(tenantID, reportID, reportType string, cfg *tenant.Config, prompt, content string, now time.Time, degraded bool) (string, error) {
	wsPath, err := g.workspaces.Path(tenantID)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(wsPath, "reports")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	mdPath := filepath.Join(dir, reportID+".md")
	if err := os.WriteFile(mdPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	meta := metadata{
		ReportID:      reportID,
		ReportType:    reportType,
		UserID:        cfg.UserID,
		GeneratedAt:   now,
		PromptLength:  len(prompt),
		ContentLength: len(content),
		Degraded:      degraded,
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, reportID+".json"), metaJSON, 0644); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}

	if strings.EqualFold(cfg.Preferences.ReportFormat, "html") {
		html, err := notify.MarkdownToHTML(content)
		if err != nil {
			g.logger.Warn("html rendering failed", "report", reportID, "error", err)
		} else if err := os.WriteFile(filepath.Join(dir, reportID+".html"), []byte(html), 0644); err != nil {
			g.logger.Warn("write html artifact failed", "report", reportID, "error", err)
		}
	}

	return mdPath, nil
}

// notifyTenant dispatches the finished report on the tenant's channels.
func (g *Generator) notifyTenant(ctx context.Context, tenantID string, cfg *tenant.Config, res *Result) {
	if g.notifier == nil || len(cfg.Preferences.NotificationChannels) == 0 {
		return
	}
	n := notify.Notification{
		TenantID: tenantID,
		Title:    fmt.Sprintf("Your %s market brief is ready", res.ReportType),
		Body:     res.Content,
		Email:    cfg.Preferences.Email,
		ReportID: res.ReportID,
	}
	if err := g.notifier.Send(ctx, cfg.Preferences.NotificationChannels, n); err != nil {
		g.logger.Warn("report notification failed", "tenant", tenantID, "error", err)
	}
}

func placeholderContent(reportType string, cfg *tenant.Config, now time.Time) string {
	var b strings.Builder
	title := reportType
	if title != "" {
		title = strings.ToUpper(title[:1]) + title[1:]
	}
	fmt.Fprintf(&b, "# %s report (placeholder)\n\n", title)
	fmt.Fprintf(&b, "Generated %s without a model connection.\n\n", now.Format("2006-01-02 15:04"))
	b.WriteString("No language model is configured, so this report contains only\nwatchlist data. Configure a model provider to enable full briefs.\n\n")
	if len(cfg.Watchlist.Stocks) > 0 {
		fmt.Fprintf(&b, "Watchlist stocks: %s\n", strings.Join(cfg.Watchlist.Stocks, ", "))
	}
	return b.String()
}
