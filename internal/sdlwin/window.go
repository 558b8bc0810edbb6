// Package sdlwin hosts the orientation controller on an SDL2 window with
// an OpenGL ES context, as used by the Qt-Wayland video driver on Sailfish.
package sdlwin

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/veandco/go-sdl2/sdl"
)

// Config selects the window and context parameters.
type Config struct {
	Title string
	GLES3 bool
}

// Window is a fullscreen SDL window with a current GL ES context.
type Window struct {
	win    *sdl.Window
	gl     sdl.GLContext
	width  int32
	height int32
	logger zerolog.Logger
}

// Open initialises SDL video and creates the window. The content
// orientation hint is honoured by Qt-Wayland only when set before the
// window is created, so callers apply the initial state first.
func Open(cfg Config, logger zerolog.Logger) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("sdl init: %w", err)
	}

	major := 2
	if cfg.GLES3 {
		major = 3
	}
	attrs := []struct {
		attr  sdl.GLattr
		value int
	}{
		{sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_ES},
		{sdl.GL_CONTEXT_MAJOR_VERSION, major},
		{sdl.GL_RED_SIZE, 8},
		{sdl.GL_GREEN_SIZE, 8},
		{sdl.GL_BLUE_SIZE, 8},
		{sdl.GL_DEPTH_SIZE, 8},
		{sdl.GL_DOUBLEBUFFER, 1},
	}
	for _, a := range attrs {
		if err := sdl.GLSetAttribute(a.attr, a.value); err != nil {
			logger.Warn().Err(err).Int("attr", int(a.attr)).Msg("gl attribute rejected")
		}
	}

	dm, err := sdl.GetCurrentDisplayMode(0)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("get display mode: %w", err)
	}
	logger.Info().Int32("width", dm.W).Int32("height", dm.H).Msg("display mode")

	title := cfg.Title
	if title == "" {
		title = "wlorient"
	}
	win, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, dm.W, dm.H,
		sdl.WINDOW_OPENGL|sdl.WINDOW_SHOWN|sdl.WINDOW_FULLSCREEN)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("create window: %w", err)
	}

	gl, err := win.GLCreateContext()
	if err != nil {
		_ = win.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("create gl es %d context: %w", major, err)
	}

	return &Window{
		win:    win,
		gl:     gl,
		width:  dm.W,
		height: dm.H,
		logger: logger,
	}, nil
}

// Size returns the window size in pixels.
func (w *Window) Size() (int32, int32) {
	return w.width, w.height
}

// Swap presents the back buffer.
func (w *Window) Swap() {
	w.win.GLSwap()
}

// Close destroys the context and window and shuts SDL down.
func (w *Window) Close() error {
	sdl.GLDeleteContext(w.gl)
	err := w.win.Destroy()
	sdl.Quit()
	return err
}
