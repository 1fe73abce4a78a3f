// Package workspace manages per-tenant workspace directories on disk.
//
// Every tenant owns one directory under the configured root containing
// the agent's operating documents and working subdirectories. The
// layout is created once and then owned by the agent's file tools.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// ErrNotFound is returned when a tenant has no workspace.
var ErrNotFound = errors.New("workspace not found")

// Subdirectories created in every workspace.
var subdirs = []string{"memory", "reports", "data", "skills", "sessions"}

// docSpec pairs a workspace-relative path with its seed template.
type docSpec struct {
	path string
	tmpl string
}

var docs = []docSpec{
	{"AGENTS.md", agentsTemplate},
	{"USER.md", userTemplate},
	{"SOUL.md", soulTemplate},
	{"HEARTBEAT.md", heartbeatTemplate},
	{filepath.Join("memory", "MEMORY.md"), memoryTemplate},
}

// Manager creates and resolves tenant workspaces under a root directory.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager creates a workspace manager rooted at root.
// The root directory is created if it does not exist.
func NewManager(root string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		return nil, errors.New("workspace root not configured")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Manager{root: root, logger: logger.With("component", "workspace")}, nil
}

// Root returns the workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// ValidateTenantID rejects IDs that are empty or could escape the root.
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return errors.New("tenant ID is empty")
	}
	if strings.ContainsAny(tenantID, "/\\") || strings.Contains(tenantID, "..") {
		return fmt.Errorf("invalid tenant ID %q", tenantID)
	}
	if tenantID == "." {
		return fmt.Errorf("invalid tenant ID %q", tenantID)
	}
	return nil
}

// Create sets up a workspace for tenantID and returns its path.
// Creating an existing workspace is a no-op fast path; existing
// documents are never overwritten.
func (m *Manager) Create(tenantID string) (string, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return "", err
	}

	dir := filepath.Join(m.root, tenantID)
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}

	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return "", fmt.Errorf("create workspace dir: %w", err)
		}
	}

	data := struct {
		TenantID  string
		CreatedAt string
	}{
		TenantID:  tenantID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	for _, doc := range docs {
		path := filepath.Join(dir, doc.path)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := renderDoc(path, doc.tmpl, data); err != nil {
			return "", err
		}
	}

	m.logger.Info("workspace created", "tenant", tenantID, "path", dir)
	return dir, nil
}

func renderDoc(path, tmpl string, data any) error {
	t, err := template.New(filepath.Base(path)).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := t.Execute(f, data); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return nil
}

// Exists reports whether tenantID has a workspace.
func (m *Manager) Exists(tenantID string) bool {
	if ValidateTenantID(tenantID) != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(m.root, tenantID))
	return err == nil && info.IsDir()
}

// Path resolves the workspace directory for tenantID.
// Returns ErrNotFound if the workspace does not exist.
func (m *Manager) Path(tenantID string) (string, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	dir := filepath.Join(m.root, tenantID)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}
	return dir, nil
}

// List returns the tenant IDs that have workspaces, sorted by name.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("read workspace root: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Info describes one workspace.
type Info struct {
	TenantID  string    `json:"tenant_id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Files     int       `json:"files"`
	SizeBytes int64     `json:"size_bytes"`
}

// Info returns metadata for one workspace.
func (m *Manager) Info(tenantID string) (*Info, error) {
	dir, err := m.Path(tenantID)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}

	info := &Info{
		TenantID:  tenantID,
		Path:      dir,
		CreatedAt: stat.ModTime(),
	}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info.Files++
		if fi, err := d.Info(); err == nil {
			info.SizeBytes += fi.Size()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk workspace: %w", err)
	}
	return info, nil
}

// CloneTemplate copies the persona documents from one workspace to
// another. Tenant configuration and memory are never copied.
func (m *Manager) CloneTemplate(srcID, dstID string) error {
	srcDir, err := m.Path(srcID)
	if err != nil {
		return err
	}
	dstDir, err := m.Path(dstID)
	if err != nil {
		return err
	}

	for _, name := range []string{"AGENTS.md", "SOUL.md", "HEARTBEAT.md"} {
		data, err := os.ReadFile(filepath.Join(srcDir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dstDir, name), data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	m.logger.Info("workspace template cloned", "from", srcID, "to", dstID)
	return nil
}

// Delete removes a workspace and everything in it.
func (m *Manager) Delete(tenantID string) error {
	dir, err := m.Path(tenantID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	m.logger.Info("workspace deleted", "tenant", tenantID)
	return nil
}
