package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// contextDocs are the workspace documents folded into the system
// prompt, in order. Missing documents are skipped.
var contextDocs = []string{
	"AGENTS.md",
	"USER.md",
	"SOUL.md",
	filepath.Join("memory", "MEMORY.md"),
}

// maxDocBytes caps how much of each document enters the prompt.
const maxDocBytes = 16 * 1024

// buildSystemContext assembles the system prompt for one tenant from
// the workspace documents and the current watchlist.
func (e *Engine) buildSystemContext(rt *TenantRuntime) string {
	var b strings.Builder

	for _, doc := range contextDocs {
		data, err := os.ReadFile(filepath.Join(rt.WorkspacePath, doc))
		if err != nil {
			continue
		}
		if len(data) > maxDocBytes {
			data = data[:maxDocBytes]
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", doc, strings.TrimSpace(string(data)))
	}

	if cfg, err := e.tenants.Get(rt.TenantID); err == nil {
		b.WriteString("## Current watchlist\n\n")
		writeContextList(&b, "Stocks", cfg.Watchlist.Stocks)
		writeContextList(&b, "Sectors", cfg.Watchlist.Sectors)
		writeContextList(&b, "Keywords", cfg.Watchlist.Keywords)
		writeContextList(&b, "Influencers", cfg.Watchlist.Influencers)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Current time: %s\n", time.Now().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Workspace: %s\n", rt.WorkspacePath)

	return b.String()
}

func writeContextList(b *strings.Builder, name string, entries []string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", name, strings.Join(entries, ", "))
}
