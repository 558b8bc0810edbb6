// Package orientation negotiates the screen orientation presented by a
// fullscreen game surface.
//
// It reconciles the application's allowed orientation policy with live
// orientation samples from the windowing layer and applies the result to
// whichever compositor mechanism is available: a Wayland buffer transform
// or a Qt-Wayland content-orientation hint.
package orientation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned by ParseMode for names it does not recognise.
var ErrUnknownMode = errors.New("unknown orientation mode")

// Mode is the orientation policy declared by the application.
type Mode uint8

const (
	FixedLandscape Mode = iota
	FixedReverseLandscape
	FixedPortrait
	FixedReversePortrait
	SensorLandscape
	SensorPortrait
	SensorAny
)

var modeNames = [...]string{
	FixedLandscape:        "landscape",
	FixedReverseLandscape: "reverse_landscape",
	FixedPortrait:         "portrait",
	FixedReversePortrait:  "reverse_portrait",
	SensorLandscape:       "sensor_landscape",
	SensorPortrait:        "sensor_portrait",
	SensorAny:             "sensor",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// IsSensor reports whether the mode follows live orientation samples.
func (m Mode) IsSensor() bool {
	return m == SensorLandscape || m == SensorPortrait || m == SensorAny
}

// Fixed returns the orientation a fixed mode denotes.
func (m Mode) Fixed() (Orientation, bool) {
	switch m {
	case FixedLandscape:
		return Landscape, true
	case FixedReverseLandscape:
		return ReverseLandscape, true
	case FixedPortrait:
		return Portrait, true
	case FixedReversePortrait:
		return ReversePortrait, true
	}
	return 0, false
}

// ParseMode parses the project-setting name of a mode. Matching ignores
// case and treats '-' as '_'.
func ParseMode(s string) (Mode, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for m, n := range modeNames {
		if n == name {
			return Mode(m), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Sample is a live orientation reported by the windowing layer.
type Sample uint8

const (
	Unknown Sample = iota
	SampleLandscape
	SampleLandscapeFlipped
	SamplePortrait
	SamplePortraitFlipped
)

func (s Sample) String() string {
	switch s {
	case SampleLandscape:
		return "landscape"
	case SampleLandscapeFlipped:
		return "landscape-flipped"
	case SamplePortrait:
		return "portrait"
	case SamplePortraitFlipped:
		return "portrait-flipped"
	}
	return "unknown"
}

// Orientation is the orientation actually presented to the user.
type Orientation uint8

const (
	Landscape Orientation = iota
	ReverseLandscape
	Portrait
	ReversePortrait
)

func (o Orientation) String() string {
	switch o {
	case Landscape:
		return "landscape"
	case ReverseLandscape:
		return "reverse_landscape"
	case Portrait:
		return "portrait"
	case ReversePortrait:
		return "reverse_portrait"
	}
	return fmt.Sprintf("Orientation(%d)", uint8(o))
}

// State is the output of negotiation. The zero value is the uninitialized
// state, before any orientation has been resolved.
type State struct {
	Orientation Orientation
	Resolved    bool
}

// Resolved returns the state holding o.
func Resolved(o Orientation) State {
	return State{Orientation: o, Resolved: true}
}

func (s State) String() string {
	if !s.Resolved {
		return "uninitialized"
	}
	return s.Orientation.String()
}
