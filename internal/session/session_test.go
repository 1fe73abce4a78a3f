package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openbrief/marketbrief/internal/llm"
	"github.com/openbrief/marketbrief/internal/workspace"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	wm, err := workspace.NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wm.Create("alice"); err != nil {
		t.Fatal(err)
	}
	s, err := NewStore(wm, "alice", nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestKey(t *testing.T) {
	if got := Key("alice", "research"); got != "user_alice:research" {
		t.Errorf("Key = %q", got)
	}
	if got := Key("alice", ""); got != "user_alice:default" {
		t.Errorf("Key with empty name = %q", got)
	}
}

func TestGetOrCreate_NewSessionNotPersisted(t *testing.T) {
	s := newTestStore(t)

	sess, err := s.GetOrCreate("")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if sess.Key != "user_alice:default" {
		t.Errorf("key = %q", sess.Key)
	}
	if len(sess.Messages) != 0 {
		t.Errorf("new session has %d messages", len(sess.Messages))
	}

	keys, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("unsaved session appeared on disk: %v", keys)
	}
}

func TestSaveAndReload(t *testing.T) {
	s := newTestStore(t)

	sess, _ := s.GetOrCreate("research")
	sess.Append(
		llm.Message{Role: "user", Content: "what moved today?"},
		llm.Message{Role: "assistant", Content: "NVDA rose 4% on earnings."},
	)
	if err := s.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.GetOrCreate("research")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(got.Messages))
	}
	if got.Messages[1].Content != "NVDA rose 4% on earnings." {
		t.Errorf("second message = %q", got.Messages[1].Content)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Error("updated_at before created_at")
	}
}

func TestSave_FullOverwrite(t *testing.T) {
	s := newTestStore(t)

	sess, _ := s.GetOrCreate("")
	sess.Append(llm.Message{Role: "user", Content: "one"})
	s.Save(sess)

	// Truncate history and save again; file must reflect the shorter state
	sess.Messages = sess.Messages[:0]
	sess.Append(llm.Message{Role: "user", Content: "two"})
	if err := s.Save(sess); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetOrCreate("")
	if len(got.Messages) != 1 || got.Messages[0].Content != "two" {
		t.Errorf("messages = %+v, want single 'two'", got.Messages)
	}
}

func TestSanitizeKey_FilenameSafe(t *testing.T) {
	s := newTestStore(t)

	sess, _ := s.GetOrCreate("notes/../../etc")
	if err := s.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The file must land inside the sessions dir, not escape it
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".json" {
		t.Errorf("unexpected file %s", entries[0].Name())
	}
}
