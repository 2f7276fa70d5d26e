package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Database.User = "citescope"
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, "postgres", cfg.Engine.GraphBackend)
	assert.Equal(t, DefaultMaxScopeSize, cfg.Engine.MaxScopeSize)
	assert.Equal(t, DefaultScopeSizeCeiling, cfg.Engine.ScopeSizeCeiling)
	assert.Equal(t, 10*time.Minute, cfg.Engine.ResultCacheTTL)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestApplyDefaults_ExplicitValuesWin(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9090
	cfg.Engine.MaxScopeSize = 100
	ApplyDefaults(cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Engine.MaxScopeSize)
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"missing db user", func(c *Config) { c.Database.User = "" }, "database.user"},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis.addr"},
		{"no kafka brokers", func(c *Config) { c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"bad backend", func(c *Config) { c.Engine.GraphBackend = "dgraph" }, "engine.graph_backend"},
		{"neo4j without uri", func(c *Config) { c.Engine.GraphBackend = "neo4j" }, "neo4j.uri"},
		{"scope cap above ceiling", func(c *Config) { c.Engine.MaxScopeSize = 900 }, "ceiling"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9191
database:
  user: citescope
engine:
  graph_backend: postgres
  max_scope_size: 200
  max_edges: 1000
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 200, cfg.Engine.MaxScopeSize)
	assert.Equal(t, 1000, cfg.Engine.MaxEdges)
	// Defaults still fill the rest.
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
database:
  user: citescope
engine:
  graph_backend: sqlite
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph_backend")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CITESCOPE_DATABASE_USER", "citescope")
	t.Setenv("CITESCOPE_SERVER_PORT", "7070")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "citescope", cfg.Database.User)
}
