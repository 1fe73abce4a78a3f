// Package session persists per-tenant conversation history.
//
// Sessions live as JSON files under each tenant workspace's sessions/
// directory. A session is addressed by a key of the form
// "user_<tenant>:<name>"; the agent loop appends the user turn and the
// final assistant turn once per invocation.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/openbrief/marketbrief/internal/llm"
	"github.com/openbrief/marketbrief/internal/workspace"
)

// DefaultName is the session name used when a caller does not specify one.
const DefaultName = "default"

// Key builds the canonical session key for a tenant and session name.
func Key(tenantID, name string) string {
	if name == "" {
		name = DefaultName
	}
	return fmt.Sprintf("user_%s:%s", tenantID, name)
}

// Session is one conversation thread.
type Session struct {
	Key       string        `json:"key"`
	TenantID  string        `json:"tenant_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Messages  []llm.Message `json:"messages"`
}

// Append adds messages to the session.
func (s *Session) Append(msgs ...llm.Message) {
	s.Messages = append(s.Messages, msgs...)
}

// Store reads and writes session files for one tenant's workspace.
type Store struct {
	dir      string // <workspace>/sessions
	tenantID string
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-key write locks
}

// NewStore opens the session store inside the tenant's workspace.
func NewStore(workspaces *workspace.Manager, tenantID string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir, err := workspaces.Path(tenantID)
	if err != nil {
		return nil, err
	}
	sessDir := filepath.Join(dir, "sessions")
	if err := os.MkdirAll(sessDir, 0755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &Store{
		dir:      sessDir,
		tenantID: tenantID,
		logger:   logger.With("component", "session", "tenant", tenantID),
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) lock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// sanitizeKey maps a session key to a safe filename.
func sanitizeKey(key string) string {
	r := strings.NewReplacer(":", "_", "/", "_", "\\", "_", "..", "_")
	return r.Replace(key)
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".json")
}

// GetOrCreate loads the session for name, creating an empty one if absent.
// The new session is not written to disk until the first Save.
func (s *Store) GetOrCreate(name string) (*Session, error) {
	key := Key(s.tenantID, name)

	l := s.lock(key)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		now := time.Now().UTC()
		return &Session{
			Key:       key,
			TenantID:  s.tenantID,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", key, err)
	}
	return &sess, nil
}

// Save writes the whole session, replacing the file contents.
func (s *Store) Save(sess *Session) error {
	l := s.lock(sess.Key)
	l.Lock()
	defer l.Unlock()

	sess.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	path := s.path(sess.Key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace session: %w", err)
	}
	s.logger.Debug("session saved", "key", sess.Key, "messages", len(sess.Messages))
	return nil
}

// List returns the session keys present on disk.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}
