package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openbrief/marketbrief/internal/tenant"
	"github.com/openbrief/marketbrief/internal/workspace"
)

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name:        "echo",
		Description: "Echo the input",
		Parameters:  map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return stringArg(args, "text"), nil
		},
	})

	out, err := r.Execute(context.Background(), "echo", map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "hello" {
		t.Errorf("got %q, want %q", out, "hello")
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "nope", nil)
	var unavail *ErrToolUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrToolUnavailable, got %v", err)
	}
	if unavail.ToolName != "nope" {
		t.Errorf("ToolName = %q, want %q", unavail.ToolName, "nope")
	}
}

func TestRegistryExecuteNilArgs(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name: "check",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if args == nil {
				t.Error("handler received nil args")
			}
			return "ok", nil
		},
	})
	if _, err := r.Execute(context.Background(), "check", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.Register(&Tool{Name: name, Handler: func(ctx context.Context, args map[string]any) (string, error) { return "", nil }})
	}
	names := r.Names()
	want := []string{"alpha", "mid", "zeta"}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
}

func TestRegistryDefinitions(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name:        "demo",
		Description: "A demo tool",
		Parameters:  map[string]any{"type": "object"},
	})

	defs := r.Definitions()
	if len(defs) != 1 {
		t.Fatalf("got %d definitions, want 1", len(defs))
	}
	if defs[0]["type"] != "function" {
		t.Errorf("type = %v, want function", defs[0]["type"])
	}
	fn, ok := defs[0]["function"].(map[string]any)
	if !ok {
		t.Fatal("function field missing")
	}
	if fn["name"] != "demo" {
		t.Errorf("name = %v, want demo", fn["name"])
	}
}

func TestFileToolsPathConfinement(t *testing.T) {
	dir := t.TempDir()
	ft := NewFileTools(dir)

	for _, path := range []string{
		"../escape.txt",
		"../../etc/passwd",
		"/etc/passwd",
		"a/../../escape.txt",
	} {
		if _, err := ft.resolvePath(path); err == nil {
			t.Errorf("resolvePath(%q) should have been rejected", path)
		}
	}

	// The workspace root itself and paths inside it are fine
	if _, err := ft.resolvePath("."); err != nil {
		t.Errorf("resolvePath(.): %v", err)
	}
	if _, err := ft.resolvePath("memory/MEMORY.md"); err != nil {
		t.Errorf("resolvePath(memory/MEMORY.md): %v", err)
	}
}

func TestFileToolsReadWriteEdit(t *testing.T) {
	dir := t.TempDir()
	ft := NewFileTools(dir)

	if err := ft.Write("notes/today.md", "line one\nline two\nline three\n"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	content, err := ft.Read("notes/today.md", 0, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(content, "line two") {
		t.Errorf("content missing line two: %q", content)
	}

	// Offset/limit windowing
	windowed, err := ft.Read("notes/today.md", 2, 1)
	if err != nil {
		t.Fatalf("Read with offset: %v", err)
	}
	if !strings.Contains(windowed, "line two") || strings.Contains(windowed, "line one") {
		t.Errorf("windowed read wrong: %q", windowed)
	}

	if err := ft.Edit("notes/today.md", "line two", "line 2"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	content, _ = ft.Read("notes/today.md", 0, 0)
	if !strings.Contains(content, "line 2") {
		t.Errorf("edit not applied: %q", content)
	}

	// Ambiguous edits are refused
	ft.Write("dup.txt", "same\nsame\n")
	if err := ft.Edit("dup.txt", "same", "other"); err == nil {
		t.Error("Edit with non-unique old text should fail")
	}
}

func TestFileToolsList(t *testing.T) {
	dir := t.TempDir()
	ft := NewFileTools(dir)
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644)

	entries, err := ft.List(".")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	joined := strings.Join(entries, ",")
	if !strings.Contains(joined, "a.txt") || !strings.Contains(joined, "sub/") {
		t.Errorf("List = %v", entries)
	}
}

func TestShellExecDisabled(t *testing.T) {
	sh := NewShellExec(ShellExecConfig{Enabled: false})
	if _, err := sh.Exec(context.Background(), "echo hi", 0); err == nil {
		t.Error("disabled executor should refuse commands")
	}

	r := NewRegistry()
	RegisterShellTool(r, sh)
	if r.Get("exec") != nil {
		t.Error("exec tool should not be registered when disabled")
	}
}

func TestShellExecDeniedPatterns(t *testing.T) {
	sh := NewShellExec(ShellExecConfig{Enabled: true})
	if _, err := sh.Exec(context.Background(), "rm -rf / --no-preserve-root", 0); err == nil {
		t.Error("denied pattern should be blocked")
	}
}

func TestShellExecAllowlist(t *testing.T) {
	sh := NewShellExec(ShellExecConfig{Enabled: true, AllowedCmds: []string{"echo"}})
	res, err := sh.Exec(context.Background(), "echo hello", 0)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if _, err := sh.Exec(context.Background(), "ls /", 0); err == nil {
		t.Error("command outside allowlist should be blocked")
	}
}

func TestWatchlistTools(t *testing.T) {
	mgr, err := workspace.NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Create("alice"); err != nil {
		t.Fatal(err)
	}
	store := tenant.NewStore(mgr, nil)
	if _, err := store.Init("alice"); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	RegisterWatchlistTools(r, store, "alice")

	ctx := context.Background()
	out, err := r.Execute(ctx, "update_watchlist", map[string]any{
		"list": "stocks",
		"add":  []any{"AAPL", "NVDA"},
	})
	if err != nil {
		t.Fatalf("update_watchlist: %v", err)
	}
	if !strings.Contains(out, "AAPL") || !strings.Contains(out, "NVDA") {
		t.Errorf("output missing added stocks: %q", out)
	}

	out, err = r.Execute(ctx, "update_watchlist", map[string]any{
		"list":   "stocks",
		"remove": []any{"AAPL"},
	})
	if err != nil {
		t.Fatalf("update_watchlist remove: %v", err)
	}
	if strings.Contains(out, "AAPL") {
		t.Errorf("AAPL should be removed: %q", out)
	}

	if _, err := r.Execute(ctx, "update_watchlist", map[string]any{
		"list": "bogus",
		"add":  []any{"X"},
	}); err == nil {
		t.Error("unknown list should be rejected")
	}

	if _, err := r.Execute(ctx, "remember", map[string]any{
		"key":   "risk_tolerance",
		"value": "conservative",
	}); err != nil {
		t.Fatalf("remember: %v", err)
	}
	cfg, _ := store.Get("alice")
	if cfg.CustomData["risk_tolerance"] != "conservative" {
		t.Errorf("custom data = %v", cfg.CustomData)
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"s":     "text",
		"n":     float64(7),
		"b":     true,
		"list":  []any{"a", "b", 3},
		"other": 42,
	}

	if got := stringArg(args, "s"); got != "text" {
		t.Errorf("stringArg = %q", got)
	}
	if got := stringArg(args, "missing"); got != "" {
		t.Errorf("stringArg missing = %q", got)
	}
	if got := intArg(args, "n", 0); got != 7 {
		t.Errorf("intArg = %d", got)
	}
	if got := intArg(args, "missing", 5); got != 5 {
		t.Errorf("intArg default = %d", got)
	}
	if got := boolArg(args, "b", false); !got {
		t.Error("boolArg = false")
	}
	if got := stringSliceArg(args, "list"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("stringSliceArg = %v", got)
	}
}

func TestParseWhen(t *testing.T) {
	sched, err := parseWhen("30m", false)
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if sched.Kind != "at" || sched.At == nil {
		t.Errorf("duration schedule = %+v", sched)
	}

	sched, err = parseWhen("2026-09-02T09:00:00Z", false)
	if err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if sched.Kind != "at" {
		t.Errorf("rfc3339 schedule kind = %q", sched.Kind)
	}

	sched, err = parseWhen("09:30", true)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if sched.Kind != "daily" || sched.TimeOfDay != "09:30" {
		t.Errorf("daily schedule = %+v", sched)
	}

	if _, err := parseWhen("whenever", false); err == nil {
		t.Error("garbage time should fail")
	}
}
