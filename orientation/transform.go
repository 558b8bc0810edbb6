package orientation

import "fmt"

// Transform is a wl_output.transform value used as a surface buffer
// transform.
type Transform int32

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

func (t Transform) String() string {
	switch t {
	case TransformNormal:
		return "normal"
	case Transform90:
		return "90"
	case Transform180:
		return "180"
	case Transform270:
		return "270"
	case TransformFlipped:
		return "flipped"
	case TransformFlipped90:
		return "flipped-90"
	case TransformFlipped180:
		return "flipped-180"
	case TransformFlipped270:
		return "flipped-270"
	}
	return fmt.Sprintf("Transform(%d)", int32(t))
}

// Hint is a Qt-Wayland content-orientation value.
type Hint string

const (
	HintPrimary           Hint = "primary"
	HintLandscape         Hint = "landscape"
	HintInvertedLandscape Hint = "inverted-landscape"
	HintPortrait          Hint = "portrait"
	HintInvertedPortrait  Hint = "inverted-portrait"
)

// HintKeyContentOrientation is the SDL hint consumed by the Qt-Wayland
// video driver.
const HintKeyContentOrientation = "SDL_QTWAYLAND_CONTENT_ORIENTATION"

// encodings holds both compositor encodings of every orientation. The
// transform column is the inverse of the naive landscape=90 reading.
var encodings = [...]struct {
	hint      Hint
	transform Transform
}{
	Landscape:        {HintLandscape, Transform270},
	ReverseLandscape: {HintInvertedLandscape, Transform90},
	Portrait:         {HintPortrait, TransformNormal},
	ReversePortrait:  {HintInvertedPortrait, Transform180},
}

// Encode returns the hint string and buffer transform for s.
// The uninitialized state encodes as "primary" with no rotation.
func Encode(s State) (Hint, Transform) {
	if !s.Resolved || int(s.Orientation) >= len(encodings) {
		return HintPrimary, TransformNormal
	}
	e := encodings[s.Orientation]
	return e.hint, e.transform
}

// SampleFromTransform converts a transform reported by the compositor
// (wl_output.geometry or wl_surface.preferred_buffer_transform) into a
// live sample such that a sensor-any policy presents the orientation whose
// buffer transform equals t. Mirrored transforms yield Unknown.
func SampleFromTransform(t Transform) Sample {
	switch t {
	case Transform270:
		return SampleLandscapeFlipped
	case Transform90:
		return SampleLandscape
	case TransformNormal:
		return SamplePortrait
	case Transform180:
		return SamplePortraitFlipped
	}
	return Unknown
}
