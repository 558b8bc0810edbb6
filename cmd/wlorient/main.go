// Command wlorient hosts a fullscreen game surface and keeps its screen
// orientation negotiated with the compositor.
//
// Allowed orientation changes can be typed on stdin as "set <mode>", for
// example "set sensor_portrait".
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/bnema/wlorient/internal/config"
	"github.com/bnema/wlorient/internal/log"
	"github.com/bnema/wlorient/orientation"
)

type cliOpts struct {
	configPath  string
	orientation string
	backend     string
	display     string
	logLevel    string
	writeConfig bool
}

func parseCLIOpts() cliOpts {
	var opt cliOpts
	flag.StringVar(&opt.configPath, "c", filepath.Join(config.Dir(), config.FileName), "Path to the configuration file")
	flag.StringVar(&opt.orientation, "o", "", "Allowed orientation (landscape, reverse_landscape, portrait, reverse_portrait, sensor_landscape, sensor_portrait, sensor)")
	flag.StringVar(&opt.backend, "b", "", "Backend: wayland or sdl")
	flag.StringVar(&opt.display, "d", "", "Wayland display socket")
	flag.StringVar(&opt.logLevel, "log", "", "Log level")
	flag.BoolVar(&opt.writeConfig, "w", false, "Write the effective configuration and exit")
	flag.Parse()
	return opt
}

func main() {
	opt := parseCLIOpts()

	cfg, err := config.Load(opt.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Couldn't load config: %v\n", err)
		os.Exit(1)
	}
	override(&cfg, opt)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	if opt.writeConfig {
		if err := config.Write(opt.configPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Couldn't write config: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger := log.Configure(log.Config{Level: cfg.LogLevel, Console: cfg.LogConsole})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func override(cfg *config.Config, opt cliOpts) {
	if opt.orientation != "" {
		cfg.Orientation = opt.orientation
	}
	if opt.backend != "" {
		cfg.Backend = opt.backend
	}
	if opt.display != "" {
		cfg.WaylandDisplay = opt.display
	}
	if opt.logLevel != "" {
		cfg.LogLevel = opt.logLevel
	}
}

func run(ctx context.Context, cfg config.Config) error {
	mode, err := cfg.Mode()
	if err != nil {
		return err
	}
	switch cfg.Backend {
	case config.BackendSDL:
		return runSDL(ctx, cfg, mode)
	default:
		return runWayland(ctx, cfg, mode)
	}
}

// engineState logs the authoritative screen orientation.
type engineState struct {
	logger zerolog.Logger
}

func (e engineState) SetScreenOrientation(o orientation.Orientation) {
	e.logger.Info().Stringer("orientation", o).Msg("screen orientation")
}

// readCommands passes the mode of each "set <mode>" line in r to setMode
// until r is exhausted.
func readCommands(r io.Reader, setMode func(orientation.Mode), logger zerolog.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 || fields[0] != "set" {
			logger.Warn().Str("line", sc.Text()).Msg("expected: set <mode>")
			continue
		}
		mode, err := orientation.ParseMode(fields[1])
		if err != nil {
			logger.Warn().Err(err).Msg("ignoring command")
			continue
		}
		setMode(mode)
	}
}
