// Package wlorient provides a small pure-Go Wayland client for fullscreen
// game surfaces, together with the compositor sinks used by the
// orientation negotiation in package orientation.
//
// The client speaks the wire protocol directly over the compositor socket.
// It implements the parts of wl_display, wl_registry, wl_compositor,
// wl_surface and wl_output needed to create a surface, rotate its buffer
// and learn the transform the compositor prefers.
package wlorient

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/wlorient/internal/log"
)

// ErrClosed is returned by requests sent after the display was closed.
var ErrClosed = errors.New("wayland: display closed")

// Pre-allocated buffer pool for outgoing messages
var bufferPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

// Object represents a Wayland object
type Object interface {
	ID() uint32
}

// Display represents a connection to the Wayland display
type Display struct {
	conn    *net.UnixConn
	objects sync.Map // map[uint32]Object
	nextID  uint32
	sendMu  sync.Mutex
	recvMu  sync.Mutex
	closed  atomic.Bool

	dispatcher *EventDispatcher

	// Core objects
	registry *Registry
	context  *Context

	// Error state
	errMu     sync.Mutex
	lastError error

	// Reusable read buffer for header
	headerBuf [8]byte

	// Pre-allocated buffer for event bodies
	eventBodyBuf [4096]byte

	logger zerolog.Logger
}

// Registry represents the global registry
type Registry struct {
	id       uint32
	display  *Display
	globals  map[uint32]Global
	mu       sync.RWMutex
	handlers map[string]GlobalHandler
}

// Global represents a global object
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// GlobalHandler is called when a global is announced
type GlobalHandler func(registry *Registry, name uint32, version uint32)

// Connect connects to the Wayland display. An empty socketPath uses
// $WAYLAND_DISPLAY, falling back to wayland-0; relative names are resolved
// against $XDG_RUNTIME_DIR.
func Connect(socketPath string) (*Display, error) {
	if socketPath == "" {
		socketPath = os.Getenv("WAYLAND_DISPLAY")
		if socketPath == "" {
			socketPath = "wayland-0"
		}
	}

	if !filepath.IsAbs(socketPath) {
		runDir := os.Getenv("XDG_RUNTIME_DIR")
		if runDir == "" {
			return nil, errors.New("XDG_RUNTIME_DIR not set")
		}
		socketPath = filepath.Join(runDir, socketPath)
	}

	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: socketPath, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Wayland: %w", err)
	}

	d := newDisplay(conn)
	d.logger.Debug().Str("socket", socketPath).Msg("connected")

	if err := d.getRegistry(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to get registry: %w", err)
	}

	// The caller does the initial roundtrip after adding registry handlers.
	return d, nil
}

func newDisplay(conn *net.UnixConn) *Display {
	d := &Display{
		conn:       conn,
		nextID:     2, // 1 is reserved for wl_display
		dispatcher: NewEventDispatcher(),
		logger:     log.WithComponent("wayland"),
	}
	d.context = NewContext(d)
	d.objects.Store(uint32(1), d)

	d.registry = &Registry{
		id:       d.allocateID(),
		display:  d,
		globals:  make(map[uint32]Global),
		handlers: make(map[string]GlobalHandler),
	}
	d.objects.Store(d.registry.id, d.registry)
	return d
}

// Close closes the display connection
func (d *Display) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.conn.Close()
}

// Closed reports whether Close was called.
func (d *Display) Closed() bool {
	return d.closed.Load()
}

// ID returns the display's object ID (always 1)
func (d *Display) ID() uint32 {
	return 1
}

// Context returns the proxy context of this display
func (d *Display) Context() *Context {
	return d.context
}

// Registry returns the global registry
func (d *Display) Registry() *Registry {
	return d.registry
}

// Err returns the last protocol error sent by the compositor.
func (d *Display) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.lastError
}

// RegisterEventHandler registers a handler for events on objects that are
// not proxies.
func (d *Display) RegisterEventHandler(objectID uint32, opcode uint16, handler EventHandler) {
	d.dispatcher.RegisterHandler(objectID, opcode, handler)
}

func (d *Display) allocateID() uint32 {
	return atomic.AddUint32(&d.nextID, 1) - 1
}

// AllocateID allocates a new object ID
func (d *Display) AllocateID() uint32 {
	return d.allocateID()
}

// SendRequest sends a request to the compositor
func (d *Display) SendRequest(objectID uint32, opcode uint16, args ...interface{}) error {
	return d.SendRequestWithFDs(objectID, opcode, nil, args...)
}

// SendRequestWithFDs sends a request with file descriptors
func (d *Display) SendRequestWithFDs(objectID uint32, opcode uint16, fds []int, args ...interface{}) error {
	if d.closed.Load() {
		return ErrClosed
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufferPool.Put(buf)
	}()

	if err := encodeMessage(buf, objectID, opcode, args...); err != nil {
		return err
	}
	d.logger.Trace().
		Uint32(log.FieldObjectID, objectID).
		Uint16(log.FieldOpcode, opcode).
		Int("size", buf.Len()).
		Msg("request")

	return d.sendmsgWithFDs(buf.Bytes(), fds)
}

// encodeMessage writes a complete wire message into buf.
func encodeMessage(buf *bytes.Buffer, objectID uint32, opcode uint16, args ...interface{}) error {
	// Header placeholder
	_, _ = buf.Write(make([]byte, 8))

	for _, arg := range args {
		if err := marshalArg(buf, arg); err != nil {
			return fmt.Errorf("failed to marshal argument: %w", err)
		}
	}

	bufLen := buf.Len()
	if bufLen > 0xFFFF {
		return fmt.Errorf("message too large: %d bytes", bufLen)
	}
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[0:4], objectID)
	// Upper 16 bits = size, lower 16 bits = opcode
	binary.LittleEndian.PutUint32(data[4:8], uint32(bufLen)<<16|uint32(opcode))
	return nil
}

// marshalArg marshals a single argument
func marshalArg(buf *bytes.Buffer, arg interface{}) error {
	switch v := arg.(type) {
	case uint32:
		return binary.Write(buf, binary.LittleEndian, v)
	case int32:
		return binary.Write(buf, binary.LittleEndian, v)
	case string:
		// length (including null) + string + null + padding
		strlen := len(v) + 1
		if err := binary.Write(buf, binary.LittleEndian, uint32(strlen)); err != nil {
			return err
		}
		_, _ = buf.WriteString(v)
		_ = buf.WriteByte(0)
		pad(buf, strlen)
	case []byte:
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(v))); err != nil {
			return err
		}
		_, _ = buf.Write(v)
		pad(buf, len(v))
	case Object:
		if v != nil {
			return binary.Write(buf, binary.LittleEndian, v.ID())
		}
		return binary.Write(buf, binary.LittleEndian, uint32(0))
	case nil:
		// Null object
		return binary.Write(buf, binary.LittleEndian, uint32(0))
	default:
		return fmt.Errorf("unsupported argument type: %T", arg)
	}
	return nil
}

// pad aligns buf to 32 bits after n bytes of payload.
func pad(buf *bytes.Buffer, n int) {
	for i := 0; i < (4-n%4)%4; i++ {
		_ = buf.WriteByte(0)
	}
}

// Dispatch reads and dispatches one event
func (d *Display) Dispatch() error {
	d.recvMu.Lock()
	defer d.recvMu.Unlock()

	n, err := d.recvmsg(d.headerBuf[:])
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if n < 8 {
		if _, err := io.ReadFull(d.conn, d.headerBuf[n:]); err != nil {
			return fmt.Errorf("incomplete header: %w", err)
		}
	}

	objectID := binary.LittleEndian.Uint32(d.headerBuf[0:4])
	sizeOpcode := binary.LittleEndian.Uint32(d.headerBuf[4:8])
	// Upper 16 bits = size (includes header), lower 16 bits = opcode
	size := sizeOpcode >> 16
	opcode := uint16(sizeOpcode & 0xffff)
	if size < 8 {
		return fmt.Errorf("invalid message size %d", size)
	}

	var body []byte
	if size > 8 {
		bodySize := int(size - 8)
		// Use pre-allocated buffer for small messages
		if bodySize <= len(d.eventBodyBuf) {
			body = d.eventBodyBuf[:bodySize]
		} else {
			body = make([]byte, bodySize)
		}

		n, err := d.recvmsg(body)
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		if n < bodySize {
			if _, err := io.ReadFull(d.conn, body[n:]); err != nil {
				return fmt.Errorf("failed to read remaining body: %w", err)
			}
		}
	}

	d.logger.Trace().
		Uint32(log.FieldObjectID, objectID).
		Uint16(log.FieldOpcode, opcode).
		Uint32("size", size).
		Msg("event")

	if objectID == 1 {
		return d.handleDisplayEvent(opcode, body)
	}

	if obj, ok := d.objects.Load(objectID); ok {
		if proxy, ok := obj.(Proxy); ok && proxy != nil {
			proxy.Dispatch(&Event{
				ProxyID: objectID,
				Opcode:  opcode,
				data:    body,
			})
			return nil
		}
	} else {
		d.logger.Debug().Uint32(log.FieldObjectID, objectID).Msg("event for unknown object")
	}

	d.dispatcher.Dispatch(objectID, opcode, body)
	return nil
}

// handleDisplayEvent handles events on the display object
func (d *Display) handleDisplayEvent(opcode uint16, data []byte) error {
	switch opcode {
	case 0: // error
		e := &Event{data: data}
		objectID := e.Uint32()
		code := e.Uint32()
		message := e.String()

		err := fmt.Errorf("protocol error: object %d, code %d: %s", objectID, code, message)
		d.errMu.Lock()
		d.lastError = err
		d.errMu.Unlock()
		return err

	case 1: // delete_id
		if len(data) < 4 {
			return errors.New("invalid delete_id event")
		}
		id := binary.LittleEndian.Uint32(data[0:4])
		d.objects.Delete(id)
	}

	return nil
}

// Roundtrip blocks until the compositor has processed every request sent
// so far.
func (d *Display) Roundtrip() error {
	done := false
	callback := &callbackObject{
		BaseProxy: BaseProxy{
			context: d.context,
			id:      d.allocateID(),
		},
		onDone: func(uint32) { done = true },
	}
	d.context.Register(callback)

	// Send sync request (opcode 0)
	if err := d.SendRequest(1, 0, callback.id); err != nil {
		d.context.Unregister(callback)
		return err
	}

	for !done {
		if err := d.Dispatch(); err != nil {
			return err
		}
	}
	return nil
}

// Run dispatches events until ctx is cancelled or the connection fails.
func (d *Display) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = d.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		if err := d.Dispatch(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// getRegistry gets the global registry
func (d *Display) getRegistry() error {
	d.RegisterEventHandler(d.registry.id, 0, d.registry.handleGlobal)
	d.RegisterEventHandler(d.registry.id, 1, d.registry.handleGlobalRemove)

	// Send get_registry request (opcode 1)
	return d.SendRequest(1, 1, d.registry.id)
}

// ID returns the registry's object ID
func (r *Registry) ID() uint32 {
	return r.id
}

// handleGlobal handles global announcements
func (r *Registry) handleGlobal(e *Event) {
	name := e.Uint32()
	iface := e.String()
	version := e.Uint32()
	if iface == "" {
		return
	}

	r.display.logger.Debug().
		Str(log.FieldIface, iface).
		Uint32("version", version).
		Uint32("name", name).
		Msg("global announced")

	r.mu.Lock()
	r.globals[name] = Global{
		Name:      name,
		Interface: iface,
		Version:   version,
	}
	handler := r.handlers[iface]
	wildcard := r.handlers["*"]
	r.mu.Unlock()

	if handler != nil {
		handler(r, name, version)
	}
	if wildcard != nil {
		wildcard(r, name, version)
	}
}

// handleGlobalRemove handles global removal
func (r *Registry) handleGlobalRemove(e *Event) {
	name := e.Uint32()

	r.mu.Lock()
	delete(r.globals, name)
	r.mu.Unlock()
}

// AddHandler adds a handler for a specific interface; "*" matches all.
func (r *Registry) AddHandler(iface string, handler GlobalHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[iface] = handler
}

// Bind binds proxy to the global name
func (r *Registry) Bind(name uint32, iface string, version uint32, proxy Proxy) error {
	if proxy.ID() == 0 {
		proxy.SetID(r.display.allocateID())
	}
	if proxy.Context() == nil {
		setter, ok := proxy.(interface{ SetContext(*Context) })
		if !ok {
			return fmt.Errorf("proxy doesn't have context and can't set it")
		}
		setter.SetContext(r.display.context)
	}

	proxy.Context().Register(proxy)

	// Send bind request (opcode 0): name, then new_id as interface, version, id
	if err := r.display.SendRequest(r.id, 0, name, iface, version, proxy.ID()); err != nil {
		proxy.Context().Unregister(proxy)
		return err
	}
	r.display.logger.Debug().
		Str(log.FieldIface, iface).
		Uint32("version", version).
		Uint32(log.FieldObjectID, proxy.ID()).
		Msg("bound global")
	return nil
}

// GetGlobals returns all announced globals
func (r *Registry) GetGlobals() map[uint32]Global {
	r.mu.RLock()
	defer r.mu.RUnlock()

	globals := make(map[uint32]Global, len(r.globals))
	for k, v := range r.globals {
		globals[k] = v
	}
	return globals
}

// FindGlobal finds a global by interface name
func (r *Registry) FindGlobal(iface string) (Global, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, global := range r.globals {
		if global.Interface == iface {
			return global, true
		}
	}
	return Global{}, false
}
