package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialOverridesMergeWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.toml")
	require.NoError(t, writeFile(path, `
units = ["custom.timer"]
inhibitor_who = "Custom Scheduler"
`))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"custom.timer"}, cfg.Units)
	assert.Equal(t, "Custom Scheduler", cfg.InhibitorWho)
	assert.Equal(t, Default().InhibitorWhy, cfg.InhibitorWhy)
	assert.Equal(t, Default().RTCDevice, cfg.RTCDevice)
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.toml")
	require.NoError(t, writeFile(path, "units = [\"unterminated"))

	_, err := Load(path)
	assert.Error(t, err)
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
