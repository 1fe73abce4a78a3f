// Package config handles marketbrief configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/marketbrief/config.yaml, /etc/marketbrief/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "marketbrief", "config.yaml"))
	}

	paths = append(paths, "/etc/marketbrief/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all marketbrief configuration.
type Config struct {
	Listen     ListenConfig    `yaml:"listen"`
	Workspaces WorkspacesConfig `yaml:"workspaces"`
	Models     ModelsConfig    `yaml:"models"`
	Anthropic  AnthropicConfig `yaml:"anthropic"`
	Search     SearchConfig    `yaml:"search"`
	Market     MarketConfig    `yaml:"market"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
	SMTP       SMTPConfig      `yaml:"smtp"`
	ShellExec  ShellExecConfig `yaml:"shell_exec"`
	Agent      AgentConfig     `yaml:"agent"`
	Report     ReportConfig    `yaml:"report"`
	DataDir    string          `yaml:"data_dir"`
	LogLevel   string          `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// WorkspacesConfig defines where tenant workspaces live on disk.
type WorkspacesConfig struct {
	// Root is the base directory holding one subdirectory per tenant.
	Root string `yaml:"root"`
}

// ModelsConfig defines model routing settings.
type ModelsConfig struct {
	Default   string `yaml:"default"`
	Provider  string `yaml:"provider"` // anthropic, ollama
	OllamaURL string `yaml:"ollama_url"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearchConfig defines web search provider settings.
type SearchConfig struct {
	Provider string `yaml:"provider"` // Primary provider name (default "brave")
	Brave    struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"brave"`
}

// MarketConfig defines the market data client settings.
type MarketConfig struct {
	// BaseURL is the quote API endpoint. Empty disables live quotes.
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// MQTTConfig defines the push notification broker settings.
type MQTTConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Broker             string `yaml:"broker"` // e.g. mqtt://broker:1883 or mqtts://...
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	TopicPrefix        string `yaml:"topic_prefix"` // default "marketbrief"
	PublishIntervalSec int    `yaml:"publish_interval_sec"`
}

// SMTPConfig defines the email notification channel settings.
type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	StartTLS bool   `yaml:"starttls"`
	From     string `yaml:"from"`
}

// ShellExecConfig defines shell execution capabilities for the exec tool.
type ShellExecConfig struct {
	// Enabled allows shell command execution. Disabled by default for safety.
	Enabled bool `yaml:"enabled"`
	// DeniedPatterns are command patterns to block (e.g., "rm -rf /").
	DeniedPatterns []string `yaml:"denied_patterns"`
	// AllowedPrefixes limits commands to those starting with these prefixes.
	// Empty means all commands are allowed (subject to denied patterns).
	AllowedPrefixes []string `yaml:"allowed_prefixes"`
	// DefaultTimeoutSec is the default timeout in seconds (default 30).
	DefaultTimeoutSec int `yaml:"default_timeout_sec"`
}

// AgentConfig bounds the agent execution loop.
type AgentConfig struct {
	// MaxIterations caps think/act rounds per invocation (default 20).
	MaxIterations int `yaml:"max_iterations"`
}

// ReportConfig tunes unattended report generation.
type ReportConfig struct {
	// MaxRetries is the attempt budget for one report run (default 3).
	MaxRetries int `yaml:"max_retries"`
	// RetryDelaySec is the base backoff delay; attempt n waits n times this.
	RetryDelaySec int `yaml:"retry_delay_sec"`
}

// RetryDelay returns the configured base backoff as a duration.
func (r ReportConfig) RetryDelay() time.Duration {
	if r.RetryDelaySec <= 0 {
		return time.Second
	}
	return time.Duration(r.RetryDelaySec) * time.Second
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Models: ModelsConfig{
			Default:   "claude-sonnet-4-20250514",
			Provider:  "anthropic",
			OllamaURL: "http://localhost:11434",
		},
		Search: SearchConfig{Provider: "brave"},
		MQTT: MQTTConfig{
			TopicPrefix:        "marketbrief",
			PublishIntervalSec: 60,
		},
		Agent:  AgentConfig{MaxIterations: 20},
		Report: ReportConfig{MaxRetries: 3, RetryDelaySec: 1},
	}
}
