package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile_Defaults(t *testing.T) {
	cfg, err := loadConfigFile(t.TempDir(), "config")
	require.NoError(t, err)

	assert.Equal(t, 7860, cfg.Server.Port)
	assert.Equal(t, "docsifer", cfg.Analytics.Label)
	assert.Equal(t, 30*time.Minute, cfg.Analytics.SyncInterval)
	assert.Equal(t, 5, cfg.Analytics.MaxRetries)
	assert.Equal(t, BackendNative, cfg.Converter.Backend)
	assert.Equal(t, "gpt-4o", cfg.Converter.TokenModel)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.DefaultModel)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.DefaultBaseURL)
	assert.Equal(t, uint32(5), cfg.LLM.BreakerMaxFailures)
	assert.Equal(t, 30*time.Minute, cfg.LLM.ClientTTL)
	assert.Equal(t, 64, cfg.LLM.MaxConnsPerHost)
	assert.False(t, cfg.LLM.InsecureSkipVerify)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowOrigins)
}

func TestLoadConfigFile_FromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 8080
analytics:
  label: custom
  sync_interval: 1m
converter:
  local_root: /srv/files
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0600))

	cfg, err := loadConfigFile(dir, "config")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "custom", cfg.Analytics.Label)
	assert.Equal(t, time.Minute, cfg.Analytics.SyncInterval)
	assert.Equal(t, "/srv/files", cfg.Converter.LocalRoot)
	// untouched keys keep their defaults
	assert.Equal(t, 6379, cfg.Redis.Port)
}

func TestLoadConfigFile_EnvOverride(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("ANALYTICS_SYNC_INTERVAL", "45s")

	cfg, err := loadConfigFile(t.TempDir(), "config")
	require.NoError(t, err)

	assert.Equal(t, "redis.internal", cfg.Redis.Host)
	assert.Equal(t, 45*time.Second, cfg.Analytics.SyncInterval)
}

func TestLoadConfigFile_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0600))

	_, err := loadConfigFile(dir, "config")
	assert.Error(t, err)
}

func TestLoad_SetsGlobalConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9999\n"), 0600))

	require.NoError(t, Load(dir))
	assert.Equal(t, 9999, GetConfig().Server.Port)
}
