// Package config loads the wlorient TOML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/bnema/wlorient/orientation"
)

// FileName is the name of the configuration file inside the config dir.
const FileName = "wlorient.toml"

// Backends.
const (
	BackendWayland = "wayland"
	BackendSDL     = "sdl"
)

var (
	ErrInvalidBackend  = errors.New("invalid backend")
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Config is the on-disk configuration.
type Config struct {
	Orientation    string `toml:"orientation"`
	Backend        string `toml:"backend"`
	WaylandDisplay string `toml:"wayland_display"`
	LogLevel       string `toml:"log_level"`
	LogConsole     bool   `toml:"log_console"`
	GLES3          bool   `toml:"gles3"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Orientation: orientation.SensorLandscape.String(),
		Backend:     BackendWayland,
		LogLevel:    "info",
		LogConsole:  true,
		GLES3:       true,
	}
}

// Mode parses the configured orientation policy.
func (c Config) Mode() (orientation.Mode, error) {
	return orientation.ParseMode(c.Orientation)
}

// Validate checks every field.
func (c Config) Validate() error {
	if _, err := c.Mode(); err != nil {
		return fmt.Errorf("orientation: %w", err)
	}
	switch c.Backend {
	case BackendWayland, BackendSDL:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Backend)
	}
	switch c.LogLevel {
	case "", "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return nil
}

// Dir returns the configuration directory.
func Dir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "wlorient")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "wlorient")
}

// Load reads path over the defaults. A missing file yields the defaults.
// The result is not validated; callers apply overrides and then Validate.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// Write stores cfg at path, creating the directory if needed.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
