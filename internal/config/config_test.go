package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appboard/internal/domain"
)

const sampleConfig = `
aws:
  profile: metrics-ro
  region: eu-west-1
distribution:
  base_url: https://analytics.example.com
  token: secret-token
engine:
  max_in_flight: 4
  call_timeout_seconds: 3
  overall_budget_seconds: 8
  display_budget: 200
  stale_allowance_seconds: 600
  view_ttl_seconds:
    summary: 15
    projection: 120
server:
  listen: ":9090"
history:
  path: /tmp/appboard-history.db
applications:
  - id: demo
    name: Demo App
    compute:
      functions: [demo-api, demo-worker]
    traffic:
      gateways: [demo-gateway]
    cost:
      tag_key: app
      tag_value: demo
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "metrics-ro", cfg.AWS.Profile)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "https://analytics.example.com", cfg.Distribution.BaseURL)
	assert.Equal(t, "secret-token", cfg.Distribution.Token)

	assert.Equal(t, 4, cfg.Engine.MaxInFlight)
	assert.Equal(t, 3*time.Second, cfg.Engine.CallTimeout())
	assert.Equal(t, 8*time.Second, cfg.Engine.OverallBudget())
	assert.Equal(t, 10*time.Minute, cfg.Engine.StaleAllowance())
	assert.Equal(t, map[string]time.Duration{
		"summary":    15 * time.Second,
		"projection": 2 * time.Minute,
	}, cfg.Engine.ViewTTLs())

	assert.Equal(t, ":9090", cfg.Server.ListenAddr())
	assert.Equal(t, "/tmp/appboard-history.db", cfg.History.Path)

	require.Len(t, cfg.Applications, 1)
	app := cfg.Applications[0]
	assert.Equal(t, "demo", app.ID)
	assert.Equal(t, []string{"demo-api", "demo-worker"}, app.Compute.Functions)
	assert.Equal(t, "app", app.Cost.TagKey)

	registry, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, []string{"demo"}, registry.IDs())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsEmptyRegistry(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  listen: \":8080\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no application profiles")
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	_, err := Load(writeConfig(t, `
applications:
  - id: broken
    name: Broken
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configures no metric domain")
}

func TestLoadTokenFromEnvironment(t *testing.T) {
	t.Setenv(EnvDistributionToken, "env-token")
	cfg, err := Load(writeConfig(t, `
distribution:
  base_url: https://analytics.example.com
applications:
  - id: demo
    name: Demo
    compute:
      functions: [fn]
`))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Distribution.Token)
}

func TestValidateRejectsBaseURLWithoutToken(t *testing.T) {
	t.Setenv(EnvDistributionToken, "")
	_, err := Load(writeConfig(t, `
distribution:
  base_url: https://analytics.example.com
applications:
  - id: demo
    name: Demo
    compute:
      functions: [fn]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a token")
}

func TestEngineDefaults(t *testing.T) {
	var engine EngineConfig
	assert.Equal(t, 5*time.Second, engine.CallTimeout())
	assert.Equal(t, 10*time.Second, engine.OverallBudget())
	assert.Equal(t, 15*time.Minute, engine.StaleAllowance())
	assert.Nil(t, engine.ViewTTLs())

	var server ServerConfig
	assert.Equal(t, ":8080", server.ListenAddr())
}

func TestResolvePathPrecedence(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/appboard/env.yaml")

	path, err := ResolvePath("/tmp/flag.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/flag.yaml", path)

	path, err = ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "/etc/appboard/env.yaml", path)

	t.Setenv(EnvConfigPath, "")
	path, err = ResolvePath("")
	require.NoError(t, err)
	assert.Contains(t, path, filepath.Join(".config", "appboard", "config.yaml"))
}

func TestRegistryLookupUnknownApplication(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	registry, err := cfg.Registry()
	require.NoError(t, err)
	_, err = registry.Get("ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownApplication)
}
