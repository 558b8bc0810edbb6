package main

import (
	"context"
	"os"
	"runtime"

	"github.com/bnema/wlorient/internal/config"
	"github.com/bnema/wlorient/internal/log"
	"github.com/bnema/wlorient/internal/sdlwin"
	"github.com/bnema/wlorient/orientation"
)

func init() {
	// SDL calls must stay on the thread that created the window.
	runtime.LockOSThread()
}

// runSDL probes the window system on every apply. SDL only hands out a
// libwayland wl_surface this client can't speak to, so no transform sink
// is supplied and the Qt-Wayland content-orientation hint carries the state.
func runSDL(ctx context.Context, cfg config.Config, mode orientation.Mode) error {
	logger := log.WithComponent("main")

	probe := sdlwin.NewProbe(nil, log.WithComponent("probe"))
	applier := orientation.NewApplier(probe, sdlwin.HintSink{}, log.WithComponent("applier"))
	controller := orientation.NewController(mode, applier, engineState{logger: logger},
		log.WithComponent("orientation"))

	// The hint is read when the window is created.
	controller.Attach()

	win, err := sdlwin.Open(sdlwin.Config{GLES3: cfg.GLES3}, log.WithComponent("sdl"))
	if err != nil {
		return err
	}
	defer func() {
		if err := win.Close(); err != nil {
			logger.Warn().Err(err).Msg("close window")
		}
	}()
	probe.Bind(win)
	defer probe.Bind(nil)

	w, h := win.Size()
	logger.Info().Stringer("mode", mode).Int32("width", w).Int32("height", h).Msg("window ready")

	modes := make(chan orientation.Mode)
	go readCommands(os.Stdin, sendMode(ctx, modes), logger)

	return win.Pump(ctx, controller, modes)
}

// sendMode forwards mode changes to the goroutine that owns the window.
// Changes are dropped once ctx is done.
func sendMode(ctx context.Context, modes chan<- orientation.Mode) func(orientation.Mode) {
	return func(m orientation.Mode) {
		select {
		case modes <- m:
		case <-ctx.Done():
		}
	}
}
