// Package prompts renders the instruction templates for unattended
// report generation.
package prompts

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/openbrief/marketbrief/internal/tenant"
)

// reportTemplates maps a report type to its instruction template.
// Unknown types fall back to the daily template.
var reportTemplates = map[string]string{
	"daily":  dailyTemplate,
	"weekly": weeklyTemplate,
	"alert":  alertTemplate,
}

const dailyTemplate = `Generate today's market brief for this user.

{{.WatchlistSection}}
{{.MarketSection}}Cover, in order:
1. Overall market sentiment and notable index moves.
2. News and price action for each watchlist stock. Use web_search for anything you are unsure about.
3. Relevant commentary from followed influencers, if any.
4. Sector and keyword highlights.
5. A short "what to watch tomorrow" note.

Write in {{.Language}}. Keep the report under {{.MaxLength}} characters.
Format the report as clean markdown with section headings.`

const weeklyTemplate = `Generate a weekly market review for this user.

{{.WatchlistSection}}
{{.MarketSection}}Cover the past week:
1. Week-over-week performance for each watchlist stock.
2. The most significant market events of the week and their impact.
3. Sector rotation and keyword trends.
4. An outlook section for the coming week.

Write in {{.Language}}. Keep the report under {{.MaxLength}} characters.
Format the report as clean markdown with section headings.`

const alertTemplate = `Check for urgent developments affecting this user's watchlist.

{{.WatchlistSection}}
{{.MarketSection}}Search for breaking news on the watchlist stocks and keywords.
Only report genuinely significant developments (large price moves,
earnings surprises, regulatory actions, major announcements). If
nothing urgent is happening, say so in one sentence.

Write in {{.Language}}. Be brief.`

type reportData struct {
	WatchlistSection string
	MarketSection    string
	Language         string
	MaxLength        int
}

// Report renders the instruction prompt for one report run.
// marketData is a preformatted quote block, empty when live quotes are
// unavailable.
func Report(reportType string, cfg *tenant.Config, marketData string) string {
	tmpl, ok := reportTemplates[reportType]
	if !ok {
		tmpl = dailyTemplate
	}

	data := reportData{
		WatchlistSection: watchlistSection(cfg.Watchlist),
		Language:         cfg.Preferences.Language,
		MaxLength:        cfg.Preferences.MaxReportLength,
	}
	if data.Language == "" {
		data.Language = "en"
	}
	if data.MaxLength <= 0 {
		data.MaxLength = 5000
	}
	if marketData != "" {
		data.MarketSection = "Latest quotes:\n" + marketData + "\n\n"
	}

	t, err := template.New(reportType).Parse(tmpl)
	if err != nil {
		// Templates are compile-time constants; a parse failure is a bug
		panic(fmt.Sprintf("prompts: bad template %s: %v", reportType, err))
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		panic(fmt.Sprintf("prompts: render %s: %v", reportType, err))
	}
	return b.String()
}

func watchlistSection(w tenant.Watchlist) string {
	var b strings.Builder
	b.WriteString("Watchlist:\n")
	writeList(&b, "Stocks", w.Stocks)
	writeList(&b, "Sectors", w.Sectors)
	writeList(&b, "Keywords", w.Keywords)
	writeList(&b, "Influencers", w.Influencers)
	return b.String()
}

func writeList(b *strings.Builder, name string, entries []string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", name, strings.Join(entries, ", "))
}
