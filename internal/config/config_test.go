package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wlorient/orientation"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, orientation.SensorLandscape, mode)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
orientation = "reverse_portrait"
backend = "sdl"
log_level = "debug"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "reverse_portrait", cfg.Orientation)
	assert.Equal(t, BackendSDL, cfg.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.GLES3)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`orientaton = "portrait"`), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "orientaton")
}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`orientation = "sideways"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, errors.Is(cfg.Validate(), orientation.ErrUnknownMode))

	cfg.Orientation = "portrait"
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Orientation = "sideways"
	assert.True(t, errors.Is(cfg.Validate(), orientation.ErrUnknownMode))

	cfg = Default()
	cfg.Backend = "x11"
	assert.True(t, errors.Is(cfg.Validate(), ErrInvalidBackend))

	cfg = Default()
	cfg.LogLevel = "loud"
	assert.True(t, errors.Is(cfg.Validate(), ErrInvalidLogLevel))
}

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	want := Default()
	want.Orientation = "sensor"
	want.WaylandDisplay = "wayland-1"

	require.NoError(t, Write(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
