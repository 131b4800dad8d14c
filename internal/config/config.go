// Package config loads the engine tuning and the application profile
// registry from a YAML file. There are no compiled-in applications; a
// configuration without profiles fails at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"appboard/internal/domain"
)

// Environment variables consulted when flags and file values are absent.
const (
	EnvConfigPath        = "APPBOARD_CONFIG"
	EnvDistributionToken = "APPBOARD_DISTRIBUTION_TOKEN"
)

// AWSConfig selects the credential profile and region for the AWS-backed
// connectors.
type AWSConfig struct {
	Profile string `yaml:"profile"`
	Region  string `yaml:"region"`
}

// DistributionConfig points at the storefront analytics API. Token may
// come from APPBOARD_DISTRIBUTION_TOKEN instead of the file.
type DistributionConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// EngineConfig tunes the aggregation pipeline. Zero values use defaults.
type EngineConfig struct {
	MaxInFlight           int            `yaml:"max_in_flight"`
	CallTimeoutSeconds    int            `yaml:"call_timeout_seconds"`
	OverallBudgetSeconds  int            `yaml:"overall_budget_seconds"`
	DisplayBudget         int            `yaml:"display_budget"`
	StaleAllowanceSeconds int            `yaml:"stale_allowance_seconds"`
	ViewTTLSeconds        map[string]int `yaml:"view_ttl_seconds"`
}

// CallTimeout bounds one connector call.
func (e EngineConfig) CallTimeout() time.Duration {
	if e.CallTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(e.CallTimeoutSeconds) * time.Second
}

// OverallBudget is the target wall time for a whole aggregation run.
func (e EngineConfig) OverallBudget() time.Duration {
	if e.OverallBudgetSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(e.OverallBudgetSeconds) * time.Second
}

// StaleAllowance is how long an expired cache entry may stand in for a
// failed recomputation.
func (e EngineConfig) StaleAllowance() time.Duration {
	if e.StaleAllowanceSeconds <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(e.StaleAllowanceSeconds) * time.Second
}

// ViewTTLs returns the configured per-view cache TTL overrides.
func (e EngineConfig) ViewTTLs() map[string]time.Duration {
	if len(e.ViewTTLSeconds) == 0 {
		return nil
	}
	ttls := make(map[string]time.Duration, len(e.ViewTTLSeconds))
	for view, secs := range e.ViewTTLSeconds {
		if secs > 0 {
			ttls[view] = time.Duration(secs) * time.Second
		}
	}
	return ttls
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// ListenAddr returns the configured listen address or the default.
func (s ServerConfig) ListenAddr() string {
	if s.Listen == "" {
		return ":8080"
	}
	return s.Listen
}

// HistoryConfig controls the snapshot archive.
type HistoryConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// Config is the full file configuration.
type Config struct {
	AWS          AWSConfig                   `yaml:"aws"`
	Distribution DistributionConfig          `yaml:"distribution"`
	Engine       EngineConfig                `yaml:"engine"`
	Server       ServerConfig                `yaml:"server"`
	History      HistoryConfig               `yaml:"history"`
	Applications []domain.ApplicationProfile `yaml:"applications"`
}

// DefaultPath returns ~/.config/appboard/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: unable to determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "appboard", "config.yaml"), nil
}

// ResolvePath picks the configuration file: the flag value wins, then
// APPBOARD_CONFIG, then the default path.
func ResolvePath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, nil
	}
	return DefaultPath()
}

// Load reads, fills in environment fallbacks, and validates the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if cfg.Distribution.Token == "" {
		cfg.Distribution.Token = os.Getenv(EnvDistributionToken)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration is usable at startup.
func (c *Config) Validate() error {
	if _, err := domain.NewRegistry(c.Applications); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Distribution.BaseURL != "" && c.Distribution.Token == "" {
		return fmt.Errorf("config: distribution.base_url set without a token (set distribution.token or %s)", EnvDistributionToken)
	}
	return nil
}

// Registry builds the application profile registry.
func (c *Config) Registry() (*domain.Registry, error) {
	return domain.NewRegistry(c.Applications)
}
