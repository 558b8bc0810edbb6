package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bnema/wlorient"
	"github.com/bnema/wlorient/internal/config"
	"github.com/bnema/wlorient/internal/log"
	"github.com/bnema/wlorient/orientation"
)

const (
	compositorVersion = 6 // preferred_buffer_transform
	maxOutputVersion  = 4 // name
)

// runWayland drives a wl_surface directly. There is no hint path here: the
// SDL hint only reaches Qt-Wayland through an SDL window.
func runWayland(ctx context.Context, cfg config.Config, mode orientation.Mode) error {
	logger := log.WithComponent("main")

	display, err := wlorient.Connect(cfg.WaylandDisplay)
	if err != nil {
		return err
	}
	defer display.Close()

	compositor := wlorient.NewCompositor(display.Context())
	output := wlorient.NewOutput(display.Context())
	var (
		bindErr       error
		outputVersion uint32
	)
	registry := display.Registry()
	registry.AddHandler("wl_compositor", func(r *wlorient.Registry, name, version uint32) {
		bindErr = errors.Join(bindErr, r.Bind(name, "wl_compositor", min(version, compositorVersion), compositor))
	})
	registry.AddHandler("wl_output", func(r *wlorient.Registry, name, version uint32) {
		if output.ID() != 0 {
			return
		}
		outputVersion = min(version, maxOutputVersion)
		bindErr = errors.Join(bindErr, r.Bind(name, "wl_output", outputVersion, output))
	})
	if err := display.Roundtrip(); err != nil {
		return fmt.Errorf("initial roundtrip: %w", err)
	}
	if bindErr != nil {
		return bindErr
	}
	if compositor.ID() == 0 {
		return errors.New("compositor does not advertise wl_compositor")
	}

	surface, err := compositor.CreateSurface()
	if err != nil {
		return fmt.Errorf("create surface: %w", err)
	}
	defer func() {
		if err := surface.Destroy(); err != nil && !errors.Is(err, wlorient.ErrClosed) {
			logger.Warn().Err(err).Msg("destroy surface")
		}
	}()
	if output.ID() != 0 && outputVersion >= 3 {
		defer func() {
			if err := output.Release(); err != nil && !errors.Is(err, wlorient.ErrClosed) {
				logger.Warn().Err(err).Msg("release output")
			}
		}()
	}

	applier := orientation.NewApplier(wlorient.NewSurfaceProbe(surface), nil,
		log.WithComponent("applier"))
	controller := orientation.NewController(mode, applier, engineState{logger: logger},
		log.WithComponent("orientation"))

	surface.OnPreferredBufferTransform(func(transform uint32) {
		controller.HandleSample(wlorient.SampleFromWire(int32(transform)))
	})
	if output.ID() != 0 {
		output.OnGeometry(func(g wlorient.OutputGeometry) {
			logger.Debug().Str("make", g.Make).Str("model", g.Model).Int32("transform", g.Transform).Msg("output geometry")
			controller.HandleSample(wlorient.SampleFromWire(g.Transform))
		})
	}

	controller.Attach()
	if err := display.Roundtrip(); err != nil {
		return fmt.Errorf("attach roundtrip: %w", err)
	}
	logger.Info().Stringer("mode", mode).Stringer("state", controller.State()).Msg("surface ready")

	go readCommands(os.Stdin, func(m orientation.Mode) { controller.SetMode(m) }, logger)

	return display.Run(ctx)
}
