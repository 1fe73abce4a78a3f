// Package tenant manages per-tenant configuration stored inside each
// workspace as config.json. The file is the source of truth; the store
// serializes access per tenant so concurrent API and scheduler writes
// do not interleave.
package tenant

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openbrief/marketbrief/internal/workspace"
)

// ConfigVersion is stamped into every config file for forward migration.
const ConfigVersion = "1.0"

// Watchlist holds what the tenant wants tracked.
type Watchlist struct {
	Stocks      []string `json:"stocks"`
	Influencers []string `json:"influencers"`
	Keywords    []string `json:"keywords"`
	Sectors     []string `json:"sectors"`
}

// Preferences control report generation and delivery.
type Preferences struct {
	ReportFrequency      string   `json:"report_frequency"` // daily, weekly
	ReportTime           string   `json:"report_time"`      // HH:MM, tenant-local
	ReportFormat         string   `json:"report_format"`    // markdown, html
	Timezone             string   `json:"timezone"`         // IANA name for report_time
	Language             string   `json:"language"`
	MaxReportLength      int      `json:"max_report_length"`
	NotificationChannels []string `json:"notification_channels"` // push, email
	Email                string   `json:"email,omitempty"`
}

// Config is the full per-tenant configuration document.
type Config struct {
	UserID      string         `json:"user_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Version     string         `json:"version"`
	Watchlist   Watchlist      `json:"watchlist"`
	Preferences Preferences    `json:"preferences"`
	CustomData  map[string]any `json:"custom_data"`
}

// DefaultConfig returns a fresh config for a new tenant.
func DefaultConfig(tenantID string) *Config {
	now := time.Now().UTC()
	return &Config{
		UserID:    tenantID,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   ConfigVersion,
		Watchlist: Watchlist{
			Stocks:      []string{},
			Influencers: []string{},
			Keywords:    []string{},
			Sectors:     []string{},
		},
		Preferences: Preferences{
			ReportFrequency:      "daily",
			ReportTime:           "09:00",
			ReportFormat:         "markdown",
			Timezone:             "UTC",
			Language:             "en",
			MaxReportLength:      5000,
			NotificationChannels: []string{"push"},
		},
		CustomData: map[string]any{},
	}
}

// Store reads and writes tenant config files.
type Store struct {
	workspaces *workspace.Manager
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-tenant write locks
}

// NewStore creates a tenant config store over the workspace manager.
func NewStore(workspaces *workspace.Manager, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		workspaces: workspaces,
		logger:     logger.With("component", "tenant"),
		locks:      make(map[string]*sync.Mutex),
	}
}

func (s *Store) lock(tenantID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	return l
}

func (s *Store) configPath(tenantID string) (string, error) {
	dir, err := s.workspaces.Path(tenantID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Init writes a default config for a new tenant if none exists,
// and returns the active config either way.
func (s *Store) Init(tenantID string) (*Config, error) {
	l := s.lock(tenantID)
	l.Lock()
	defer l.Unlock()

	path, err := s.configPath(tenantID)
	if err != nil {
		return nil, err
	}
	if cfg, err := readConfig(path); err == nil {
		return cfg, nil
	}

	cfg := DefaultConfig(tenantID)
	if err := writeConfig(path, cfg); err != nil {
		return nil, err
	}
	s.logger.Info("tenant config initialized", "tenant", tenantID)
	return cfg, nil
}

// Get loads the tenant's config. A missing file yields defaults without
// writing them, so reads never mutate the workspace.
func (s *Store) Get(tenantID string) (*Config, error) {
	path, err := s.configPath(tenantID)
	if err != nil {
		return nil, err
	}
	cfg, err := readConfig(path)
	if os.IsNotExist(err) {
		return DefaultConfig(tenantID), nil
	}
	return cfg, err
}

// Save writes the full config, refreshing updated_at. Last write wins;
// callers needing read-modify-write should use the Update helpers.
func (s *Store) Save(tenantID string, cfg *Config) error {
	l := s.lock(tenantID)
	l.Lock()
	defer l.Unlock()

	path, err := s.configPath(tenantID)
	if err != nil {
		return err
	}
	cfg.UserID = tenantID
	if cfg.Version == "" {
		cfg.Version = ConfigVersion
	}
	cfg.UpdatedAt = time.Now().UTC()
	return writeConfig(path, cfg)
}

// Update applies fn to the current config under the tenant's lock and
// persists the result. fn sees defaults when no config file exists yet.
func (s *Store) Update(tenantID string, fn func(*Config)) (*Config, error) {
	l := s.lock(tenantID)
	l.Lock()
	defer l.Unlock()

	path, err := s.configPath(tenantID)
	if err != nil {
		return nil, err
	}
	cfg, err := readConfig(path)
	if os.IsNotExist(err) {
		cfg = DefaultConfig(tenantID)
	} else if err != nil {
		return nil, err
	}

	fn(cfg)
	cfg.UserID = tenantID
	cfg.UpdatedAt = time.Now().UTC()
	if err := writeConfig(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpdateWatchlist replaces the watchlist.
func (s *Store) UpdateWatchlist(tenantID string, w Watchlist) (*Config, error) {
	return s.Update(tenantID, func(c *Config) { c.Watchlist = w })
}

// UpdatePreferences replaces the preferences.
func (s *Store) UpdatePreferences(tenantID string, p Preferences) (*Config, error) {
	return s.Update(tenantID, func(c *Config) { c.Preferences = p })
}

// SetCustomData sets one key in the tenant's free-form data bag.
func (s *Store) SetCustomData(tenantID, key string, value any) (*Config, error) {
	return s.Update(tenantID, func(c *Config) {
		if c.CustomData == nil {
			c.CustomData = map[string]any{}
		}
		c.CustomData[key] = value
	})
}

func readConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func writeConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
