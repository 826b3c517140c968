package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, DefaultStageTimeout, cfg.Media.StageTimeout)
	assert.Equal(t, DefaultModel, cfg.Model.Model)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
database:
  host: db.internal
  port: 5433
media:
  stage_timeout: 5m
calendar:
  simulate: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 5*time.Minute, cfg.Media.StageTimeout)
	assert.True(t, cfg.Calendar.Simulate)
	// Untouched values keep defaults.
	assert.Equal(t, "genminute", cfg.Database.Name)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  host: from-file\n"), 0o600))

	t.Setenv("GENMINUTE_DB_HOST", "from-env")
	t.Setenv("GENMINUTE_STAGE_TIMEOUT", "90s")
	t.Setenv("GENMINUTE_LOG_JSON", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, 90*time.Second, cfg.Media.StageTimeout)
	assert.True(t, cfg.LogJSON)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Database.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Media.StageTimeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.Database.Host = "saved-host"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "saved-host", loaded.Database.Host)
}

func TestIsAllowedExtension(t *testing.T) {
	assert.True(t, IsAllowedExtension("mp4"))
	assert.True(t, IsAllowedExtension(".WAV"))
	assert.False(t, IsAllowedExtension("exe"))
	assert.False(t, IsAllowedExtension(""))
}
