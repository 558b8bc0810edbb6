package orientation

import (
	"sync"

	"github.com/rs/zerolog"
)

// ScreenOrientationSetter receives the authoritative screen orientation.
type ScreenOrientationSetter interface {
	SetScreenOrientation(o Orientation)
}

// SetterFunc adapts a function to ScreenOrientationSetter.
type SetterFunc func(o Orientation)

func (f SetterFunc) SetScreenOrientation(o Orientation) { f(o) }

// Controller owns the negotiation state of one window: the allowed mode,
// the latest live sample and the resolved state. Its methods may be called
// from any goroutine; they are serialised internally.
type Controller struct {
	applier  *Applier
	notifier ScreenOrientationSetter
	logger   zerolog.Logger

	mu     sync.Mutex
	mode   Mode
	sample Sample
	state  State
}

// NewController creates a controller for mode. notifier may be nil.
func NewController(mode Mode, applier *Applier, notifier ScreenOrientationSetter, logger zerolog.Logger) *Controller {
	return &Controller{
		applier:  applier,
		notifier: notifier,
		logger:   logger,
		mode:     mode,
	}
}

// Attach performs the initial apply once the window and its surface exist.
func (c *Controller) Attach() State {
	c.mu.Lock()
	next := c.reapplyLocked()
	c.mu.Unlock()

	c.notify(next)
	return next
}

// HandleSample processes a live orientation notification.
func (c *Controller) HandleSample(sample Sample) State {
	c.mu.Lock()
	c.sample = sample
	next := resolveState(c.mode, sample, c.state)
	c.logger.Debug().
		Stringer("mode", c.mode).
		Stringer("sample", sample).
		Stringer("previous", c.state).
		Stringer("resolved", next).
		Msg("orientation sample")
	c.commitLocked(next)
	c.mu.Unlock()

	c.notify(next)
	return next
}

// SetMode changes the allowed mode and re-applies immediately using the
// last live sample.
func (c *Controller) SetMode(mode Mode) State {
	c.mu.Lock()
	c.logger.Info().Stringer("from", c.mode).Stringer("to", mode).Msg("allowed orientation changed")
	c.mode = mode
	next := c.reapplyLocked()
	c.mu.Unlock()

	c.notify(next)
	return next
}

func (c *Controller) reapplyLocked() State {
	prev := c.state
	// A state resolved under a different sensor family must not survive.
	if prev.Resolved && c.mode.IsSensor() && !c.mode.accepts(familyOf(prev.Orientation)) {
		prev = State{}
	}
	next := resolveState(c.mode, c.sample, prev)
	if !next.Resolved {
		if o, ok := seed(c.mode); ok {
			next = Resolved(o)
		}
	}
	c.commitLocked(next)
	return next
}

// commitLocked stores and applies next. The applier sees states in the
// order they are stored.
func (c *Controller) commitLocked(next State) {
	c.state = next
	c.applier.Apply(next)
}

// notify runs without c.mu held so the notifier may call back into c.
func (c *Controller) notify(s State) {
	if s.Resolved && c.notifier != nil {
		c.notifier.SetScreenOrientation(s.Orientation)
	}
}

// Mode returns the allowed mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// State returns the current negotiated state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ScreenOrientation returns the resolved orientation, if any.
func (c *Controller) ScreenOrientation() (Orientation, bool) {
	s := c.State()
	return s.Orientation, s.Resolved
}

func familyOf(o Orientation) sampleFamily {
	switch o {
	case Landscape, ReverseLandscape:
		return familyLandscape
	case Portrait, ReversePortrait:
		return familyPortrait
	}
	return familyNone
}
