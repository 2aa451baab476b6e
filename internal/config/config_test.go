package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":5002", cfg.HTTP.Addr)
	assert.Equal(t, "lightgbm", cfg.Model.Format)
	assert.Equal(t, "csv", cfg.Features.Source)
	assert.Equal(t, "num__SK_ID_CURR", cfg.Features.IDColumn)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.False(t, cfg.Audit.Enabled)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "client_data.csv", cfg.Features.Path)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
model:
  path: /srv/model.json
  format: logistic
features:
  source: sql
  driver: sqlite3
  dsn: file:features.db
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/model.json", cfg.Model.Path)
	assert.Equal(t, "logistic", cfg.Model.Format)
	assert.Equal(t, "sql", cfg.Features.Source)
	assert.Equal(t, "client_features", cfg.Features.Table)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SCORING_MODEL_PATH", "/env/model.json")
	t.Setenv("SCORING_HTTP_ADDR", ":9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/model.json", cfg.Model.Path)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
}

func TestLoad_BrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown model format", func(c *Config) { c.Model.Format = "pickle" }},
		{"unknown features source", func(c *Config) { c.Features.Source = "parquet" }},
		{"csv without path", func(c *Config) { c.Features.Path = "" }},
		{"sql without dsn", func(c *Config) { c.Features.Source = "sql"; c.Features.Driver = "mysql" }},
		{"sql with unknown driver", func(c *Config) {
			c.Features.Source = "sql"
			c.Features.Driver = "postgres"
			c.Features.DSN = "x"
		}},
		{"audit without brokers", func(c *Config) { c.Audit.Enabled = true }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
		{"negative cache size", func(c *Config) { c.Cache.Size = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	assert.NoError(t, base.Validate())
}
