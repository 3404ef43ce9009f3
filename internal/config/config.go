package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the persistent application configuration
type Config struct {
	// Backend
	API APIConfig `json:"api"`

	// "dev" mounts the diagnostic overlay, anything else is treated as prod
	Env string `json:"env"`

	// Data-access tuning
	Query QueryConfig `json:"query"`

	// Remote search select
	Search SearchConfig `json:"search"`

	// UI Preferences
	UI UIConfig `json:"ui"`
}

// APIConfig holds transport settings for the REST backend
type APIConfig struct {
	BaseURL           string  `json:"api_url"`
	RequestTimeoutSec int     `json:"request_timeout_sec"`
	RateLimit         float64 `json:"rate_limit"` // requests/sec, 0 = unlimited
	RateBurst         int     `json:"rate_burst"`
	Token             string  `json:"-"` // only ever sourced from env, never persisted
}

// QueryConfig holds cache settings for list queries
type QueryConfig struct {
	StaleTimeSec int `json:"stale_time_sec"`
	PageSize     int `json:"page_size"`
}

// SearchConfig holds debounced select settings
type SearchConfig struct {
	DebounceMs int `json:"debounce_ms"`
	MinLength  int `json:"min_length"`
}

// UIConfig holds UI preferences
type UIConfig struct {
	Theme          string `json:"theme"`
	DefaultCountry string `json:"default_country"`
	Resource       string `json:"resource"` // registry key browsed on startup
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "http://localhost:8089",
			RequestTimeoutSec: 900,
		},
		Env: "prod",
		Query: QueryConfig{
			StaleTimeSec: 300,
			PageSize:     10,
		},
		Search: SearchConfig{
			DebounceMs: 800,
			MinLength:  3,
		},
		UI: UIConfig{
			Theme:          "dark",
			DefaultCountry: "MX",
			Resource:       "CATALOGS.HOTEL",
		},
	}
}

// DataDir returns ~/.crmdesk
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".crmdesk")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// DBPath returns the path to the local SQLite file holding prefs
func DBPath() string {
	return filepath.Join(DataDir(), "crmdesk.db")
}

// EventLogPath returns the path to the JSONL diagnostic event log
func EventLogPath() string {
	return filepath.Join(DataDir(), "crmdesk.events.jsonl")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path. Missing fields keep their defaults and
// environment overrides are always applied last.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		cfg = DefaultConfig()
	}
	cfg.normalize()
	cfg.AutoPopulateFromEnv()

	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// AutoPopulateFromEnv applies CRMDESK_* overrides
func (c *Config) AutoPopulateFromEnv() {
	if v := os.Getenv("CRMDESK_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("CRMDESK_ENV"); v != "" {
		c.Env = strings.ToLower(v)
	}
	if v := os.Getenv("CRMDESK_TOKEN"); v != "" {
		c.API.Token = v
	}
}

// LoadKeysFromFile loads overrides from a shell script of export lines
func (c *Config) LoadKeysFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for _, line := range splitLines(string(data)) {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "export ")
		parts := splitFirst(line, '=')
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], strings.Trim(parts[1], `"'`)

		switch key {
		case "CRMDESK_API_URL":
			c.API.BaseURL = value
		case "CRMDESK_ENV":
			c.Env = strings.ToLower(value)
		case "CRMDESK_TOKEN":
			c.API.Token = value
		}
	}

	return nil
}

// IsDev reports whether diagnostic tooling should be mounted
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// RequestTimeout is the per-request ceiling for the API client
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeoutSec) * time.Second
}

// StaleTime is how long a cached list stays fresh
func (c *Config) StaleTime() time.Duration {
	return time.Duration(c.Query.StaleTimeSec) * time.Second
}

// Debounce is the idle window before a search fires
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Search.DebounceMs) * time.Millisecond
}

// normalize restores defaults for zeroed numeric fields
func (c *Config) normalize() {
	d := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.RequestTimeoutSec <= 0 {
		c.API.RequestTimeoutSec = d.API.RequestTimeoutSec
	}
	if c.Query.StaleTimeSec <= 0 {
		c.Query.StaleTimeSec = d.Query.StaleTimeSec
	}
	if c.Query.PageSize <= 0 {
		c.Query.PageSize = d.Query.PageSize
	}
	if c.Search.DebounceMs <= 0 {
		c.Search.DebounceMs = d.Search.DebounceMs
	}
	if c.Search.MinLength <= 0 {
		c.Search.MinLength = d.Search.MinLength
	}
	if c.UI.DefaultCountry == "" {
		c.UI.DefaultCountry = d.UI.DefaultCountry
	}
	if c.UI.Resource == "" {
		c.UI.Resource = d.UI.Resource
	}
	if c.Env == "" {
		c.Env = d.Env
	}
}

// Helpers

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func splitFirst(s string, sep byte) []string {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return []string{s[:i], s[i+1:]}
		}
	}
	return []string{s}
}
