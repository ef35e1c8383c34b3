package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "silx.hcl")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":2049", cfg.Listen)
	assert.Equal(t, 1024, cfg.CacheSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "@A", cfg.MCAMarker)
	assert.False(t, cfg.Verbose)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen     = ":3049"
cache_size = 64
workers    = 8
verbose    = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":3049", cfg.Listen)
	assert.Equal(t, 64, cfg.CacheSize)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.Verbose)
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `listen = ":3049"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":3049", cfg.Listen)
	assert.Equal(t, 1024, cfg.CacheSize)
	assert.Equal(t, "@A", cfg.MCAMarker)
}

func TestLoadCustomMarker(t *testing.T) {
	path := writeConfig(t, `mca_marker = "@B"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "@B", cfg.MCAMarker)
}

func TestLoadInvalidSyntax(t *testing.T) {
	path := writeConfig(t, `listen = `)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := writeConfig(t, `workers = 0`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "workers")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.hcl"))
	assert.Error(t, err)
}
