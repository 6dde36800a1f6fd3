package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, SourceFile, cfg.Model.Source)
	assert.Equal(t, 1.0, cfg.Training.Alpha)
}

func TestLoadConfigEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
model:
  path: /var/lib/spamscan/model.json
  watch: true
server:
  address: 127.0.0.1:9000
  allowed_origins: ["https://mail.google.com"]
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/spamscan/model.json", cfg.Model.Path)
	assert.True(t, cfg.Model.Watch)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.Equal(t, []string{"https://mail.google.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "suspicious-words.json", cfg.Model.WordsPath, "unset keys keep their defaults")
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("training:\n  alpha: 0\n"), 0644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "alpha")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Milter.RejectConfidence = 0.95

	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"Unknown source", func(c *Config) { c.Model.Source = "s3" }},
		{"Empty model path", func(c *Config) { c.Model.Path = "" }},
		{"Negative alpha", func(c *Config) { c.Training.Alpha = -1 }},
		{"Negative words limit", func(c *Config) { c.Training.WordsLimit = -1 }},
		{"Empty server address", func(c *Config) { c.Server.Address = "" }},
		{"Zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }},
		{"Bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"Bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"Redis without url", func(c *Config) { c.Model.Source = SourceRedis; c.Redis.URL = "" }},
		{"Milter bad network", func(c *Config) { c.Milter.Enabled = true; c.Milter.Network = "udp" }},
		{"Milter short timeout", func(c *Config) { c.Milter.Enabled = true; c.Milter.ReadTimeoutMs = 10 }},
		{"Reject above one", func(c *Config) { c.Milter.RejectConfidence = 1.5 }},
		{"Quarantine above reject", func(c *Config) {
			c.Milter.RejectConfidence = 0.8
			c.Milter.QuarantineConfidence = 0.9
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
