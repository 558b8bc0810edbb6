package wlorient

import (
	"fmt"

	"github.com/bnema/wlorient/orientation"
)

// TransformSink rotates a surface through wl_surface.set_buffer_transform.
// Buffer transform is double-buffered state, so every change is committed.
type TransformSink struct {
	surface *Surface
}

// NewTransformSink returns a sink for surface.
func NewTransformSink(surface *Surface) *TransformSink {
	return &TransformSink{surface: surface}
}

// SetBufferTransform implements orientation.TransformSink.
func (s *TransformSink) SetBufferTransform(t orientation.Transform) error {
	if err := s.surface.SetBufferTransform(int32(t)); err != nil {
		return fmt.Errorf("set_buffer_transform %s: %w", t, err)
	}
	if err := s.surface.Commit(); err != nil {
		return fmt.Errorf("commit surface: %w", err)
	}
	return nil
}

// SurfaceProbe reports the transform sink of a surface as long as its
// display connection is open.
type SurfaceProbe struct {
	display *Display
	sink    *TransformSink
}

// NewSurfaceProbe returns a probe for surface. A nil surface is never
// available.
func NewSurfaceProbe(surface *Surface) *SurfaceProbe {
	p := &SurfaceProbe{}
	if surface != nil && surface.context != nil {
		p.display = surface.context.display
		p.sink = NewTransformSink(surface)
	}
	return p
}

// TransformSink implements orientation.Probe.
func (p *SurfaceProbe) TransformSink() (orientation.TransformSink, bool) {
	if p.sink == nil || p.display.Closed() {
		return nil, false
	}
	return p.sink, true
}

// SampleFromWire converts a wl_output.transform value received on the
// wire into a live orientation sample.
func SampleFromWire(transform int32) orientation.Sample {
	return orientation.SampleFromTransform(orientation.Transform(transform))
}
