package wlorient

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sys/unix"

	"github.com/bnema/wlorient/orientation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Unit tests run against a socketpair standing in for the compositor.

func socketPair(t *testing.T) (client, server *net.UnixConn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)

	conn := func(fd int) *net.UnixConn {
		f := os.NewFile(uintptr(fd), "wayland-test")
		c, err := net.FileConn(f)
		require.NoError(t, err)
		require.NoError(t, f.Close())
		return c.(*net.UnixConn)
	}
	client, server = conn(fds[0]), conn(fds[1])
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

type message struct {
	objectID uint32
	opcode   uint16
	body     []byte
}

func (m message) event() *Event {
	return &Event{ProxyID: m.objectID, Opcode: m.opcode, data: m.body}
}

func readMessage(t *testing.T, c *net.UnixConn) message {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	hdr := make([]byte, 8)
	_, err := io.ReadFull(c, hdr)
	require.NoError(t, err)

	m := message{objectID: binary.LittleEndian.Uint32(hdr[0:4])}
	sizeOpcode := binary.LittleEndian.Uint32(hdr[4:8])
	m.opcode = uint16(sizeOpcode & 0xffff)
	m.body = make([]byte, sizeOpcode>>16-8)
	_, err = io.ReadFull(c, m.body)
	require.NoError(t, err)
	return m
}

func writeEvent(t *testing.T, c *net.UnixConn, objectID uint32, opcode uint16, args ...interface{}) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, encodeMessage(&buf, objectID, opcode, args...))
	_, err := c.Write(buf.Bytes())
	require.NoError(t, err)
}

func newTestDisplay(t *testing.T) (*Display, *net.UnixConn) {
	t.Helper()
	client, server := socketPair(t)
	return newDisplay(client), server
}

func bindCompositor(t *testing.T, d *Display) *Compositor {
	t.Helper()
	c := NewCompositor(d.Context())
	c.SetID(d.AllocateID())
	d.Context().Register(c)
	return c
}

func TestMarshalArg(t *testing.T) {
	tests := []struct {
		name string
		arg  interface{}
		want []byte
	}{
		{
			name: "uint32",
			arg:  uint32(0x12345678),
			want: []byte{0x78, 0x56, 0x34, 0x12}, // little endian
		},
		{
			name: "int32",
			arg:  int32(-1),
			want: []byte{0xFF, 0xFF, 0xFF, 0xFF},
		},
		{
			name: "string",
			arg:  "test",
			want: []byte{0x05, 0x00, 0x00, 0x00, 't', 'e', 's', 't', 0x00, 0x00, 0x00, 0x00}, // length + string + null + padding
		},
		{
			name: "array",
			arg:  []byte{1, 2, 3},
			want: []byte{0x03, 0x00, 0x00, 0x00, 1, 2, 3, 0x00},
		},
		{
			name: "nil object",
			arg:  nil,
			want: []byte{0x00, 0x00, 0x00, 0x00},
		},
		{
			name: "object",
			arg:  &BaseProxy{id: 9},
			want: []byte{0x09, 0x00, 0x00, 0x00},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, marshalArg(&buf, test.arg))
			assert.Equal(t, test.want, buf.Bytes())
		})
	}

	var buf bytes.Buffer
	assert.Error(t, marshalArg(&buf, 1.5))
}

func TestEncodeMessageHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encodeMessage(&buf, 5, 7, int32(3)))

	got := buf.Bytes()
	require.Len(t, got, 12)
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(got[0:4]))
	sizeOpcode := binary.LittleEndian.Uint32(got[4:8])
	assert.Equal(t, uint32(12), sizeOpcode>>16)
	assert.Equal(t, uint32(7), sizeOpcode&0xffff)
	assert.Equal(t, int32(3), int32(binary.LittleEndian.Uint32(got[8:12])))
}

func TestAllocateID(t *testing.T) {
	d := &Display{
		nextID: 2, // Start at 2 (1 is reserved for display)
	}

	assert.Equal(t, uint32(2), d.allocateID())
	assert.Equal(t, uint32(3), d.allocateID())
	assert.Equal(t, uint32(4), d.AllocateID())
}

func TestRegistryGlobalAndBind(t *testing.T) {
	d, server := newTestDisplay(t)
	require.NoError(t, d.getRegistry())

	m := readMessage(t, server)
	assert.Equal(t, uint32(1), m.objectID)
	assert.Equal(t, uint16(1), m.opcode)
	registryID := m.event().Uint32()
	assert.Equal(t, d.Registry().ID(), registryID)

	compositor := NewCompositor(d.Context())
	d.Registry().AddHandler("wl_compositor", func(r *Registry, name, version uint32) {
		require.NoError(t, r.Bind(name, "wl_compositor", version, compositor))
	})

	writeEvent(t, server, registryID, 0, uint32(1), "wl_compositor", uint32(6))
	writeEvent(t, server, registryID, 0, uint32(2), "wl_output", uint32(4))
	require.NoError(t, d.Dispatch())
	require.NoError(t, d.Dispatch())

	bind := readMessage(t, server)
	assert.Equal(t, registryID, bind.objectID)
	assert.Equal(t, uint16(0), bind.opcode)
	e := bind.event()
	assert.Equal(t, uint32(1), e.Uint32())
	assert.Equal(t, "wl_compositor", e.String())
	assert.Equal(t, uint32(6), e.Uint32())
	assert.Equal(t, compositor.ID(), e.Uint32())

	globals := d.Registry().GetGlobals()
	assert.Len(t, globals, 2)
	out, ok := d.Registry().FindGlobal("wl_output")
	require.True(t, ok)
	assert.Equal(t, uint32(4), out.Version)

	writeEvent(t, server, registryID, 1, uint32(2))
	require.NoError(t, d.Dispatch())
	_, ok = d.Registry().FindGlobal("wl_output")
	assert.False(t, ok)
}

func TestTransformSinkEncodesRequests(t *testing.T) {
	d, server := newTestDisplay(t)
	compositor := bindCompositor(t, d)

	surface, err := compositor.CreateSurface()
	require.NoError(t, err)
	create := readMessage(t, server)
	assert.Equal(t, compositor.ID(), create.objectID)
	assert.Equal(t, surface.ID(), create.event().Uint32())

	sink, ok := NewSurfaceProbe(surface).TransformSink()
	require.True(t, ok)
	require.NoError(t, sink.SetBufferTransform(orientation.Transform270))

	set := readMessage(t, server)
	assert.Equal(t, surface.ID(), set.objectID)
	assert.Equal(t, uint16(7), set.opcode)
	assert.Equal(t, int32(3), set.event().Int32())

	commit := readMessage(t, server)
	assert.Equal(t, surface.ID(), commit.objectID)
	assert.Equal(t, uint16(6), commit.opcode)
	assert.Empty(t, commit.body)
}

func TestApplierOverSurfaceSuppressesRepeats(t *testing.T) {
	d, server := newTestDisplay(t)
	surface, err := bindCompositor(t, d).CreateSurface()
	require.NoError(t, err)
	readMessage(t, server) // create_surface

	a := orientation.NewApplier(NewSurfaceProbe(surface), nil, zerolog.Nop())
	a.Apply(orientation.Resolved(orientation.Landscape))
	a.Apply(orientation.Resolved(orientation.Landscape))
	a.Apply(orientation.Resolved(orientation.Portrait))

	var got []int32
	for i := 0; i < 4; i++ {
		m := readMessage(t, server)
		if m.opcode == 7 {
			got = append(got, m.event().Int32())
		}
	}
	assert.Equal(t, []int32{3, 0}, got)
}

func TestSurfaceProbeUnavailable(t *testing.T) {
	_, ok := NewSurfaceProbe(nil).TransformSink()
	assert.False(t, ok)

	d, _ := newTestDisplay(t)
	surface, err := bindCompositor(t, d).CreateSurface()
	require.NoError(t, err)

	probe := NewSurfaceProbe(surface)
	_, ok = probe.TransformSink()
	assert.True(t, ok)

	require.NoError(t, d.Close())
	_, ok = probe.TransformSink()
	assert.False(t, ok)
	assert.True(t, errors.Is(surface.Commit(), ErrClosed))
}

func TestApplierWithoutHintsAfterClose(t *testing.T) {
	d, server := newTestDisplay(t)
	surface, err := bindCompositor(t, d).CreateSurface()
	require.NoError(t, err)
	readMessage(t, server) // create_surface

	a := orientation.NewApplier(NewSurfaceProbe(surface), nil, zerolog.Nop())
	assert.Equal(t, orientation.PathTransform, a.Apply(orientation.Resolved(orientation.Portrait)))

	require.NoError(t, d.Close())
	assert.Equal(t, orientation.PathNone, a.Apply(orientation.Resolved(orientation.Landscape)))
	last, ok := a.LastApplied()
	assert.True(t, ok)
	assert.Equal(t, orientation.TransformNormal, last)
	assert.True(t, errors.Is(surface.Destroy(), ErrClosed))
}

func TestPreferredBufferTransformEvent(t *testing.T) {
	d, server := newTestDisplay(t)
	surface, err := bindCompositor(t, d).CreateSurface()
	require.NoError(t, err)

	var got []orientation.Sample
	surface.OnPreferredBufferTransform(func(transform uint32) {
		got = append(got, SampleFromWire(int32(transform)))
	})

	writeEvent(t, server, surface.ID(), 3, uint32(orientation.Transform90))
	require.NoError(t, d.Dispatch())

	assert.Equal(t, []orientation.Sample{orientation.SampleLandscape}, got)
	transform, ok := surface.PreferredBufferTransform()
	assert.True(t, ok)
	assert.Equal(t, uint32(1), transform)
}

func TestOutputGeometryEvent(t *testing.T) {
	d, server := newTestDisplay(t)
	output := NewOutput(d.Context())
	output.SetID(d.AllocateID())
	d.Context().Register(output)

	var seen []OutputGeometry
	output.OnGeometry(func(g OutputGeometry) { seen = append(seen, g) })

	writeEvent(t, server, output.ID(), 0,
		int32(0), int32(0), int32(62), int32(124), int32(0), "Jolla", "C2", int32(orientation.Transform270))
	writeEvent(t, server, output.ID(), 4, "DSI-1")
	require.NoError(t, d.Dispatch())
	require.NoError(t, d.Dispatch())

	require.Len(t, seen, 1)
	assert.Equal(t, "Jolla", seen[0].Make)
	assert.Equal(t, "C2", seen[0].Model)
	assert.Equal(t, int32(124), seen[0].PhysicalHeight)
	assert.Equal(t, int32(3), seen[0].Transform)
	assert.Equal(t, orientation.SampleLandscapeFlipped, SampleFromWire(seen[0].Transform))
	assert.Equal(t, seen[0], output.Geometry())
	assert.Equal(t, "DSI-1", output.Name())
}

func TestRoundtrip(t *testing.T) {
	d, server := newTestDisplay(t)

	done := make(chan error, 1)
	go func() {
		hdr := make([]byte, 12)
		if _, err := io.ReadFull(server, hdr); err != nil {
			done <- err
			return
		}
		callbackID := binary.LittleEndian.Uint32(hdr[8:12])
		var buf bytes.Buffer
		if err := encodeMessage(&buf, callbackID, 0, uint32(42)); err != nil {
			done <- err
			return
		}
		_, err := server.Write(buf.Bytes())
		done <- err
	}()

	require.NoError(t, d.Roundtrip())
	require.NoError(t, <-done)
}

func TestProtocolErrorEvent(t *testing.T) {
	d, server := newTestDisplay(t)

	writeEvent(t, server, 1, 0, uint32(3), uint32(1), "invalid transform")
	err := d.Dispatch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transform")
	assert.Equal(t, err, d.Err())
}

func TestDeleteIDEvent(t *testing.T) {
	d, server := newTestDisplay(t)
	surface, err := bindCompositor(t, d).CreateSurface()
	require.NoError(t, err)

	writeEvent(t, server, 1, 1, surface.ID())
	require.NoError(t, d.Dispatch())
	_, ok := d.objects.Load(surface.ID())
	assert.False(t, ok)
}

func TestRunStopsOnCancel(t *testing.T) {
	d, _ := newTestDisplay(t)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReturnsConnectionError(t *testing.T) {
	d, server := newTestDisplay(t)
	require.NoError(t, server.Close())

	err := d.Run(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, context.Canceled)
}

func TestEventDispatcher(t *testing.T) {
	dispatcher := NewEventDispatcher()

	called := false
	dispatcher.RegisterHandler(123, 1, func(event *Event) {
		called = true
		assert.Equal(t, uint32(123), event.ProxyID)
		assert.Equal(t, uint16(1), event.Opcode)
		assert.Equal(t, uint32(7), event.Uint32())
	})

	assert.True(t, dispatcher.Dispatch(123, 1, []byte{7, 0, 0, 0}))
	assert.True(t, called)
	assert.False(t, dispatcher.Dispatch(123, 2, nil))
	assert.False(t, dispatcher.Dispatch(124, 1, nil))
}

func TestEventDispatcherExtendedRanges(t *testing.T) {
	dispatcher := NewEventDispatcher()

	var got []uint16
	handler := func(event *Event) { got = append(got, event.Opcode) }
	dispatcher.RegisterHandler(5000, 1, handler)
	dispatcher.RegisterHandler(7, 40, handler)

	assert.True(t, dispatcher.Dispatch(5000, 1, nil))
	assert.True(t, dispatcher.Dispatch(7, 40, nil))
	assert.False(t, dispatcher.Dispatch(5000, 40, nil))
	assert.Equal(t, []uint16{1, 40}, got)
}

func BenchmarkEventDispatch(b *testing.B) {
	dispatcher := NewEventDispatcher()
	dispatcher.RegisterHandler(123, 1, func(event *Event) {})

	data := []byte{0x01, 0x02, 0x03, 0x04}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dispatcher.Dispatch(123, 1, data)
	}
}
