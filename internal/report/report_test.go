package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openbrief/marketbrief/internal/agent"
	"github.com/openbrief/marketbrief/internal/llm"
	"github.com/openbrief/marketbrief/internal/tenant"
	"github.com/openbrief/marketbrief/internal/workspace"
)

type stubClient struct {
	mu       sync.Mutex
	reply    string
	failures int // fail this many calls before succeeding
	calls    int
}

func (s *stubClient) Chat(ctx context.Context, model string, messages []llm.Message, defs []map[string]any) (*llm.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("model unavailable")
	}
	return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: s.reply}, Done: true}, nil
}

func (s *stubClient) Ping(ctx context.Context) error { return nil }

func newTestGenerator(t *testing.T, client llm.Client) (*Generator, *workspace.Manager, *tenant.Store) {
	t.Helper()
	mgr, err := workspace.NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	store := tenant.NewStore(mgr, nil)

	engine := agent.NewEngine(agent.Options{
		LLM:        client,
		Model:      "test-model",
		Workspaces: mgr,
		Tenants:    store,
	})
	gen := NewGenerator(Options{
		Engine:     engine,
		Tenants:    store,
		Workspaces: mgr,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
	return gen, mgr, store
}

func provision(t *testing.T, mgr *workspace.Manager, store *tenant.Store, tenantID string) {
	t.Helper()
	if _, err := mgr.Create(tenantID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Init(tenantID); err != nil {
		t.Fatal(err)
	}
}

func TestGenerateWritesArtifacts(t *testing.T) {
	gen, mgr, store := newTestGenerator(t, &stubClient{reply: "# Daily Brief\n\nMarkets were calm."})
	provision(t, mgr, store, "t1")

	res, err := gen.Generate(context.Background(), "t1", "daily")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !strings.HasPrefix(res.ReportID, "daily_") {
		t.Errorf("ReportID = %q", res.ReportID)
	}
	if res.Content != "# Daily Brief\n\nMarkets were calm." {
		t.Errorf("Content = %q", res.Content)
	}

	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("report file: %v", err)
	}
	if string(data) != res.Content {
		t.Error("file content differs from result content")
	}

	metaPath := strings.TrimSuffix(res.Path, ".md") + ".json"
	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("metadata sidecar: %v", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(metaData, &meta); err != nil {
		t.Fatalf("metadata parse: %v", err)
	}
	if meta["report_type"] != "daily" {
		t.Errorf("metadata report_type = %v", meta["report_type"])
	}
	if meta["content_length"].(float64) != float64(len(res.Content)) {
		t.Errorf("metadata content_length = %v", meta["content_length"])
	}
}

func TestGenerateRetriesModelFailures(t *testing.T) {
	client := &stubClient{reply: "eventually fine", failures: 2}
	gen, mgr, store := newTestGenerator(t, client)
	provision(t, mgr, store, "t1")

	res, err := gen.Generate(context.Background(), "t1", "daily")
	if err != nil {
		t.Fatalf("Generate should recover: %v", err)
	}
	if res.Content != "eventually fine" {
		t.Errorf("Content = %q", res.Content)
	}
	if client.calls != 3 {
		t.Errorf("model calls = %d, want 3", client.calls)
	}
}

func TestGenerateExhaustsRetries(t *testing.T) {
	client := &stubClient{reply: "never", failures: 100}
	gen, mgr, store := newTestGenerator(t, client)
	provision(t, mgr, store, "t1")

	_, err := gen.Generate(context.Background(), "t1", "daily")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("error should carry the last cause: %v", err)
	}
	if client.calls != 3 {
		t.Errorf("model calls = %d, want 3", client.calls)
	}
}

func TestGenerateUnknownTenant(t *testing.T) {
	client := &stubClient{reply: "hi"}
	gen, _, _ := newTestGenerator(t, client)

	_, err := gen.Generate(context.Background(), "ghost", "daily")
	if !errors.Is(err, workspace.ErrNotFound) {
		t.Fatalf("err = %v, want workspace.ErrNotFound", err)
	}
	if client.calls != 0 {
		t.Error("unknown tenant must not reach the model")
	}
}

func TestGenerateDegradedMode(t *testing.T) {
	gen, mgr, store := newTestGenerator(t, nil)
	provision(t, mgr, store, "t1")
	if _, err := store.UpdateWatchlist("t1", tenant.Watchlist{Stocks: []string{"AAPL"}}); err != nil {
		t.Fatal(err)
	}

	res, err := gen.Generate(context.Background(), "t1", "daily")
	if err != nil {
		t.Fatalf("degraded mode should not error: %v", err)
	}
	if !res.Degraded {
		t.Error("result should be marked degraded")
	}
	if !strings.Contains(res.Content, "placeholder") {
		t.Errorf("placeholder content missing label: %q", res.Content)
	}
	if !strings.Contains(res.Content, "AAPL") {
		t.Error("placeholder should still include watchlist data")
	}

	// Artifacts are written even in degraded mode
	if _, err := os.Stat(res.Path); err != nil {
		t.Errorf("report file missing: %v", err)
	}
	if _, err := os.Stat(strings.TrimSuffix(res.Path, ".md") + ".json"); err != nil {
		t.Errorf("metadata sidecar missing: %v", err)
	}
}

func TestGenerateHTMLArtifact(t *testing.T) {
	gen, mgr, store := newTestGenerator(t, &stubClient{reply: "# Brief\n\n**bold** move"})
	provision(t, mgr, store, "t1")
	if _, err := store.UpdatePreferences("t1", func() tenant.Preferences {
		p := tenant.DefaultConfig("t1").Preferences
		p.ReportFormat = "html"
		return p
	}()); err != nil {
		t.Fatal(err)
	}

	res, err := gen.Generate(context.Background(), "t1", "daily")
	if err != nil {
		t.Fatal(err)
	}

	htmlPath := strings.TrimSuffix(res.Path, ".md") + ".html"
	data, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("html artifact: %v", err)
	}
	if !strings.Contains(string(data), "<strong>bold</strong>") {
		t.Errorf("html rendering wrong: %s", data)
	}
}

func TestReportSessionKeyIsScoped(t *testing.T) {
	gen, mgr, store := newTestGenerator(t, &stubClient{reply: "brief"})
	provision(t, mgr, store, "t1")

	if _, err := gen.Generate(context.Background(), "t1", "daily"); err != nil {
		t.Fatal(err)
	}

	// The report conversation lands in its own session file
	wsPath, _ := mgr.Path("t1")
	entries, err := os.ReadDir(filepath.Join(wsPath, "sessions"))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), "report_daily") {
			found = true
		}
	}
	if !found {
		t.Errorf("no report session file, entries: %v", entries)
	}
}
