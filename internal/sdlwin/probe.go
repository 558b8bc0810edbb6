package sdlwin

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/bnema/wlorient/orientation"
)

// Probe asks SDL which window system backs the window on every call. The
// transform sink is reported only on Wayland, and only when the caller
// supplied one that can reach the window's surface.
type Probe struct {
	sink   orientation.TransformSink
	logger zerolog.Logger

	mu     sync.Mutex
	wmInfo func() (uint32, error)
}

// NewProbe returns a probe that stays unavailable until a window is bound.
// sink may be nil.
func NewProbe(sink orientation.TransformSink, logger zerolog.Logger) *Probe {
	return &Probe{sink: sink, logger: logger}
}

// Bind points the probe at w.
func (p *Probe) Bind(w *Window) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w == nil {
		p.wmInfo = nil
		return
	}
	p.wmInfo = func() (uint32, error) {
		info, err := w.win.GetWMInfo()
		if err != nil {
			return uint32(sdl.SYSWM_UNKNOWN), err
		}
		return info.Subsystem, nil
	}
}

// TransformSink implements orientation.Probe.
func (p *Probe) TransformSink() (orientation.TransformSink, bool) {
	p.mu.Lock()
	query := p.wmInfo
	p.mu.Unlock()

	if query == nil {
		p.logger.Debug().Msg("no window to query")
		return nil, false
	}
	subsystem, err := query()
	if err != nil {
		p.logger.Debug().Err(err).Msg("can't get window manager info")
		return nil, false
	}
	p.logger.Debug().Str("subsystem", SubsystemName(subsystem)).Msg("window manager info")
	if subsystem != uint32(sdl.SYSWM_WAYLAND) || p.sink == nil {
		return nil, false
	}
	return p.sink, true
}

// SubsystemName names an SDL_SYSWM_TYPE value.
func SubsystemName(subsystem uint32) string {
	switch subsystem {
	case uint32(sdl.SYSWM_WAYLAND):
		return "wayland"
	case uint32(sdl.SYSWM_X11):
		return "x11"
	case uint32(sdl.SYSWM_ANDROID):
		return "android"
	case uint32(sdl.SYSWM_WINDOWS):
		return "windows"
	case uint32(sdl.SYSWM_COCOA):
		return "cocoa"
	}
	return "unknown"
}
