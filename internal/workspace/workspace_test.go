package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestCreate_Layout(t *testing.T) {
	m := newTestManager(t)

	dir, err := m.Create("alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, sub := range []string{"memory", "reports", "data", "skills", "sessions"} {
		if fi, err := os.Stat(filepath.Join(dir, sub)); err != nil || !fi.IsDir() {
			t.Errorf("missing subdir %s", sub)
		}
	}
	for _, doc := range []string{"AGENTS.md", "USER.md", "SOUL.md", "HEARTBEAT.md", "memory/MEMORY.md"} {
		data, err := os.ReadFile(filepath.Join(dir, doc))
		if err != nil {
			t.Errorf("missing doc %s: %v", doc, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("doc %s is empty", doc)
		}
	}

	// Templates should substitute the tenant ID
	user, _ := os.ReadFile(filepath.Join(dir, "USER.md"))
	if !strings.Contains(string(user), "alice") {
		t.Error("USER.md does not mention tenant ID")
	}
}

func TestCreate_IdempotentPreservesEdits(t *testing.T) {
	m := newTestManager(t)

	dir, err := m.Create("bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	edited := filepath.Join(dir, "USER.md")
	if err := os.WriteFile(edited, []byte("# Edited by agent\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dir2, err := m.Create("bob")
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if dir2 != dir {
		t.Errorf("second Create path = %q, want %q", dir2, dir)
	}

	data, _ := os.ReadFile(edited)
	if string(data) != "# Edited by agent\n" {
		t.Errorf("re-create overwrote USER.md: %q", data)
	}
}

func TestPath_NotFound(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Path("ghost"); err == nil {
		t.Fatal("Path for missing tenant should error")
	}
	if m.Exists("ghost") {
		t.Error("Exists(ghost) = true")
	}
}

func TestValidateTenantID(t *testing.T) {
	bad := []string{"", ".", "..", "a/b", `a\b`, "../etc"}
	for _, id := range bad {
		if err := ValidateTenantID(id); err == nil {
			t.Errorf("ValidateTenantID(%q) should fail", id)
		}
	}
	good := []string{"alice", "user-42", "fund_7"}
	for _, id := range good {
		if err := ValidateTenantID(id); err != nil {
			t.Errorf("ValidateTenantID(%q) = %v", id, err)
		}
	}
}

func TestListAndDelete(t *testing.T) {
	m := newTestManager(t)

	for _, id := range []string{"a", "b", "c"} {
		if _, err := m.Create(id); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}

	ids, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("List = %v, want 3 entries", ids)
	}

	if err := m.Delete("b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if m.Exists("b") {
		t.Error("deleted workspace still exists")
	}
	ids, _ = m.List()
	if len(ids) != 2 {
		t.Errorf("List after delete = %v", ids)
	}
}

func TestCloneTemplate(t *testing.T) {
	m := newTestManager(t)

	srcDir, err := m.Create("template")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create("clone"); err != nil {
		t.Fatal(err)
	}

	custom := []byte("# Custom persona\n")
	if err := os.WriteFile(filepath.Join(srcDir, "SOUL.md"), custom, 0644); err != nil {
		t.Fatal(err)
	}

	if err := m.CloneTemplate("template", "clone"); err != nil {
		t.Fatalf("CloneTemplate: %v", err)
	}

	dstDir, _ := m.Path("clone")
	got, _ := os.ReadFile(filepath.Join(dstDir, "SOUL.md"))
	if string(got) != string(custom) {
		t.Errorf("SOUL.md not cloned: %q", got)
	}

	// Memory stays per-tenant
	mem, _ := os.ReadFile(filepath.Join(dstDir, "memory", "MEMORY.md"))
	if strings.Contains(string(mem), "template") {
		t.Error("memory should not be cloned")
	}
}

func TestInfo(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Create("carol"); err != nil {
		t.Fatal(err)
	}

	info, err := m.Info("carol")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.TenantID != "carol" {
		t.Errorf("TenantID = %q", info.TenantID)
	}
	if info.Files < 5 {
		t.Errorf("Files = %d, want at least the seeded docs", info.Files)
	}
	if info.SizeBytes == 0 {
		t.Error("SizeBytes = 0")
	}
}
