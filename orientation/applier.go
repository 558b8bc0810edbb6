package orientation

import (
	"sync"

	"github.com/rs/zerolog"
)

// TransformSink applies a buffer transform to the displayed surface.
type TransformSink interface {
	SetBufferTransform(t Transform) error
}

// HintSink sets a windowing-toolkit hint with override priority.
// It reports whether the hint was accepted.
type HintSink interface {
	SetHint(key string, value Hint) bool
}

// Probe reports whether a low-level transform sink is reachable right now.
type Probe interface {
	TransformSink() (TransformSink, bool)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func() (TransformSink, bool)

func (f ProbeFunc) TransformSink() (TransformSink, bool) { return f() }

// Path identifies the mechanism an Apply call used.
type Path uint8

const (
	PathNone Path = iota
	PathTransform
	PathTransformSuppressed
	PathHint
)

func (p Path) String() string {
	switch p {
	case PathTransform:
		return "transform"
	case PathTransformSuppressed:
		return "transform-suppressed"
	case PathHint:
		return "hint"
	}
	return "none"
}

// Applier pushes a negotiated state to the compositor. Exactly one of the
// two mechanisms is used per call, chosen by probing for a transform sink.
type Applier struct {
	probe  Probe
	hints  HintSink
	logger zerolog.Logger

	mu          sync.Mutex
	lastApplied Transform
	haveApplied bool
	hint        Hint
	transform   Transform
}

// NewApplier returns an applier in the uninitialized state. Either probe
// or hints may be nil.
func NewApplier(probe Probe, hints HintSink, logger zerolog.Logger) *Applier {
	return &Applier{
		probe:     probe,
		hints:     hints,
		logger:    logger,
		hint:      HintPrimary,
		transform: TransformNormal,
	}
}

// Apply encodes s and applies it through the available path.
func (a *Applier) Apply(s State) Path {
	hint, transform := Encode(s)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.hint, a.transform = hint, transform

	if a.probe != nil {
		if sink, ok := a.probe.TransformSink(); ok && sink != nil {
			if a.haveApplied && a.lastApplied == transform {
				a.logger.Debug().Stringer("transform", transform).Msg("buffer transform unchanged")
				return PathTransformSuppressed
			}
			if err := sink.SetBufferTransform(transform); err != nil {
				a.logger.Warn().Err(err).Stringer("transform", transform).Msg("set buffer transform failed")
				return PathTransform
			}
			a.lastApplied, a.haveApplied = transform, true
			a.logger.Debug().Stringer("state", s).Stringer("transform", transform).Msg("buffer transform applied")
			return PathTransform
		}
	}

	if a.hints == nil {
		a.logger.Warn().Str("hint", string(hint)).Msg("no compositor sink available")
		return PathNone
	}
	if !a.hints.SetHint(HintKeyContentOrientation, hint) {
		a.logger.Warn().Str("key", HintKeyContentOrientation).Str("hint", string(hint)).
			Msg("can't set content orientation hint")
		return PathHint
	}
	a.logger.Debug().Str("key", HintKeyContentOrientation).Str("hint", string(hint)).Msg("content orientation hint set")
	return PathHint
}

// Hint returns the most recently computed hint string.
func (a *Applier) Hint() Hint {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hint
}

// Transform returns the most recently computed buffer transform.
func (a *Applier) Transform() Transform {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transform
}

// LastApplied returns the transform last accepted by a transform sink.
func (a *Applier) LastApplied() (Transform, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastApplied, a.haveApplied
}
