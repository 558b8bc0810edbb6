package wlorient

import (
	"encoding/binary"
	"sync"
)

// Context ties proxies to the display that routes their events
type Context struct {
	display *Display
}

// Proxy interface for Wayland protocol objects
type Proxy interface {
	Object
	SetID(uint32)
	Context() *Context
	Dispatch(*Event)
}

// BaseProxy provides base implementation for protocol objects
type BaseProxy struct {
	id      uint32
	context *Context
}

// Event represents a Wayland protocol event
type Event struct {
	ProxyID uint32
	Opcode  uint16
	data    []byte
	offset  int
}

// NewContext creates a new context from a display
func NewContext(display *Display) *Context {
	return &Context{
		display: display,
	}
}

// SendRequest sends a request on behalf of proxy
func (c *Context) SendRequest(proxy Proxy, opcode uint32, args ...interface{}) error {
	return c.display.SendRequest(proxy.ID(), uint16(opcode), args...)
}

// Register registers a proxy object so it receives its events
func (c *Context) Register(proxy Proxy) {
	if proxy != nil && proxy.ID() != 0 {
		c.display.objects.Store(proxy.ID(), proxy)
	}
}

// Unregister removes a proxy object
func (c *Context) Unregister(proxy Proxy) {
	if proxy != nil {
		c.display.objects.Delete(proxy.ID())
	}
}

// ID returns the proxy's object ID
func (p *BaseProxy) ID() uint32 {
	return p.id
}

// SetID sets the proxy's object ID
func (p *BaseProxy) SetID(id uint32) {
	p.id = id
}

// Context returns the proxy's context
func (p *BaseProxy) Context() *Context {
	return p.context
}

// SetContext sets the proxy's context
func (p *BaseProxy) SetContext(ctx *Context) {
	p.context = ctx
}

// Dispatch default implementation (does nothing)
func (p *BaseProxy) Dispatch(event *Event) {}

// Event methods for extracting data

// Uint32 reads a uint32 from the event
func (e *Event) Uint32() uint32 {
	if e.offset+4 > len(e.data) {
		return 0
	}
	val := binary.LittleEndian.Uint32(e.data[e.offset:])
	e.offset += 4
	return val
}

// Int32 reads an int32 from the event
func (e *Event) Int32() int32 {
	return int32(e.Uint32())
}

// String reads a string from the event
func (e *Event) String() string {
	strlen := e.Uint32()
	if strlen == 0 || e.offset+int(strlen) > len(e.data) {
		return ""
	}
	// Length includes the null terminator
	str := string(e.data[e.offset : e.offset+int(strlen)-1])
	e.offset += int(strlen + (4-strlen%4)%4)
	return str
}

// callbackObject represents a wl_callback object
type callbackObject struct {
	BaseProxy
	onDone func(data uint32)
}

// Dispatch handles callback events (opcode 0 = done)
func (c *callbackObject) Dispatch(event *Event) {
	if event.Opcode != 0 {
		return
	}
	c.context.Unregister(c)
	if c.onDone != nil {
		c.onDone(event.Uint32())
	}
}

// Compositor represents a wl_compositor
type Compositor struct {
	BaseProxy
}

// NewCompositor creates a new compositor proxy
func NewCompositor(ctx *Context) *Compositor {
	return &Compositor{
		BaseProxy: BaseProxy{
			context: ctx,
		},
	}
}

// CreateSurface creates a new surface
func (c *Compositor) CreateSurface() (*Surface, error) {
	surface := &Surface{
		BaseProxy: BaseProxy{
			context: c.context,
			id:      c.context.display.allocateID(),
		},
	}

	// Register surface before sending request
	c.context.Register(surface)

	// Send create_surface request (opcode 0)
	if err := c.context.SendRequest(c, 0, surface.id); err != nil {
		c.context.Unregister(surface)
		return nil, err
	}

	return surface, nil
}

// Surface represents a wl_surface
type Surface struct {
	BaseProxy

	mu                 sync.Mutex
	onPreferredXform   func(transform uint32)
	preferredTransform uint32
	havePreferred      bool
}

// Destroy destroys the surface
func (s *Surface) Destroy() error {
	err := s.context.SendRequest(s, 0) // opcode 0
	if err == nil {
		s.context.Unregister(s)
	}
	return err
}

// Commit commits pending surface state
func (s *Surface) Commit() error {
	return s.context.SendRequest(s, 6) // opcode 6
}

// SetBufferTransform sets the pending buffer transform
func (s *Surface) SetBufferTransform(transform int32) error {
	return s.context.SendRequest(s, 7, transform) // opcode 7
}

// OnPreferredBufferTransform registers fn for preferred_buffer_transform
// events (wl_surface version 6).
func (s *Surface) OnPreferredBufferTransform(fn func(transform uint32)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPreferredXform = fn
}

// PreferredBufferTransform returns the last transform the compositor
// suggested for this surface.
func (s *Surface) PreferredBufferTransform() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferredTransform, s.havePreferred
}

// Dispatch handles surface events
func (s *Surface) Dispatch(event *Event) {
	switch event.Opcode {
	case 0, 1: // enter, leave
	case 2: // preferred_buffer_scale
	case 3: // preferred_buffer_transform
		transform := event.Uint32()
		s.mu.Lock()
		s.preferredTransform, s.havePreferred = transform, true
		fn := s.onPreferredXform
		s.mu.Unlock()
		if fn != nil {
			fn(transform)
		}
	}
}

// OutputGeometry is the payload of wl_output.geometry
type OutputGeometry struct {
	X, Y                          int32
	PhysicalWidth, PhysicalHeight int32
	Subpixel                      int32
	Make, Model                   string
	Transform                     int32
}

// Output represents a wl_output
type Output struct {
	BaseProxy

	mu         sync.Mutex
	geometry   OutputGeometry
	name       string
	onGeometry func(OutputGeometry)
}

// NewOutput creates a new output proxy for Registry.Bind
func NewOutput(ctx *Context) *Output {
	return &Output{
		BaseProxy: BaseProxy{
			context: ctx,
		},
	}
}

// OnGeometry registers fn for geometry events. The compositor sends one
// after bind and again whenever the output transform changes.
func (o *Output) OnGeometry(fn func(OutputGeometry)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onGeometry = fn
}

// Geometry returns the last geometry received
func (o *Output) Geometry() OutputGeometry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.geometry
}

// Name returns the output name (wl_output version 4)
func (o *Output) Name() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.name
}

// Release releases the output (wl_output version 3)
func (o *Output) Release() error {
	err := o.context.SendRequest(o, 0) // opcode 0
	if err == nil {
		o.context.Unregister(o)
	}
	return err
}

// Dispatch handles output events
func (o *Output) Dispatch(event *Event) {
	switch event.Opcode {
	case 0: // geometry
		g := OutputGeometry{
			X:              event.Int32(),
			Y:              event.Int32(),
			PhysicalWidth:  event.Int32(),
			PhysicalHeight: event.Int32(),
			Subpixel:       event.Int32(),
			Make:           event.String(),
			Model:          event.String(),
			Transform:      event.Int32(),
		}
		o.mu.Lock()
		o.geometry = g
		fn := o.onGeometry
		o.mu.Unlock()
		if fn != nil {
			fn(g)
		}
	case 4: // name
		name := event.String()
		o.mu.Lock()
		o.name = name
		o.mu.Unlock()
	}
}
