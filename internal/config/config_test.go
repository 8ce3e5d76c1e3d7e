package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".gridloom", "profiles.db"), c.DBPath)
	assert.Equal(t, 5, c.TopN)
	assert.Equal(t, 15, c.KeyWidth)
	assert.Equal(t, 10, c.SampleRows)
	assert.Equal(t, 4, c.BatchWorkers)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "text", c.LogFormat)
	assert.Empty(t, c.TenantID)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tenant_id: acme\ntop_n: 3\nlog_format: json\n"), 0o644))
	t.Setenv("GRIDLOOM_TOP_N", "8")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", c.TenantID)
	assert.Equal(t, 8, c.TopN, "env overrides the file")
	assert.Equal(t, "json", c.LogFormat)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sample_rows: 50\nlog_level: loud\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample_rows")
	assert.Contains(t, err.Error(), "log_level")
}

func TestSetAndSave(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Set("tenant_id", " acme "))
	require.NoError(t, c.Set("batch_workers", "2"))
	require.NoError(t, c.Set("log_level", "DEBUG"))
	require.NoError(t, Save(c, path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", reloaded.TenantID)
	assert.Equal(t, 2, reloaded.BatchWorkers)
	assert.Equal(t, "debug", reloaded.LogLevel)

	got, err := reloaded.Get("batch_workers")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestSetRejectsBadInput(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)

	assert.ErrorIs(t, c.Set("api_key", "x"), ErrUnknownKey)
	assert.Error(t, c.Set("top_n", "many"))
	assert.Error(t, c.Set("top_n", "0"))
	assert.Error(t, c.Set("log_format", "xml"))
	assert.Equal(t, 5, c.TopN, "failed sets leave the config unchanged")
	assert.Equal(t, "text", c.LogFormat)

	_, err = c.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownKey)
}
