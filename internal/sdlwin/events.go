package sdlwin

import (
	"context"
	"time"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/bnema/wlorient/orientation"
)

// HintSink sets SDL hints with override priority.
type HintSink struct{}

// SetHint implements orientation.HintSink.
func (HintSink) SetHint(key string, value orientation.Hint) bool {
	return sdl.SetHintWithPriority(key, string(value), sdl.HINT_OVERRIDE)
}

// SampleFromDisplayOrientation converts an SDL_DisplayOrientation value.
func SampleFromDisplayOrientation(o int32) orientation.Sample {
	switch o {
	case int32(sdl.ORIENTATION_LANDSCAPE):
		return orientation.SampleLandscape
	case int32(sdl.ORIENTATION_LANDSCAPE_FLIPPED):
		return orientation.SampleLandscapeFlipped
	case int32(sdl.ORIENTATION_PORTRAIT):
		return orientation.SamplePortrait
	case int32(sdl.ORIENTATION_PORTRAIT_FLIPPED):
		return orientation.SamplePortraitFlipped
	}
	return orientation.Unknown
}

// SampleFromEvent extracts a live orientation sample from ev.
func SampleFromEvent(ev sdl.Event) (orientation.Sample, bool) {
	de, ok := ev.(*sdl.DisplayEvent)
	if !ok || de.Event != sdl.DISPLAYEVENT_ORIENTATION {
		return orientation.Unknown, false
	}
	return SampleFromDisplayOrientation(de.Data1), true
}

// Pump polls SDL events on the calling goroutine, which must be the one
// that opened the window, and feeds orientation changes to c. Mode changes
// arrive on modes so they are applied on the same goroutine. Pump returns
// when ctx is done or SDL reports a quit request.
func (w *Window) Pump(ctx context.Context, c *orientation.Controller, modes <-chan orientation.Mode) error {
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	for {
		for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
			if _, ok := ev.(*sdl.QuitEvent); ok {
				w.logger.Info().Msg("quit requested")
				return nil
			}
			if sample, ok := SampleFromEvent(ev); ok {
				c.HandleSample(sample)
			}
		}
		w.Swap()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case mode := <-modes:
			c.SetMode(mode)
		case <-ticker.C:
		}
	}
}
