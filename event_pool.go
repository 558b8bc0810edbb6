package wlorient

import (
	"sync"
	"sync/atomic"
)

// Event pool for events dispatched to plain handlers
var eventPool = sync.Pool{
	New: func() interface{} {
		return &Event{
			data: make([]byte, 0, 4096),
		}
	},
}

// EventHandler handles one event. The event is only valid for the
// duration of the call.
type EventHandler func(event *Event)

// EventDispatcher routes events for objects that are not proxies, such as
// the registry, to registered handlers.
type EventDispatcher struct {
	// Lock-free lookup for object IDs 0-1023
	handlers [1024]atomic.Pointer[handlerEntry]

	// Object IDs >= 1024
	extHandlers sync.Map // map[uint32]*handlerEntry
}

// handlerEntry stores handlers for a specific object
type handlerEntry struct {
	mu       sync.RWMutex
	handlers [32]EventHandler
	ext      map[uint16]EventHandler // opcodes >= 32
}

func (h *handlerEntry) set(opcode uint16, handler EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if opcode < 32 {
		h.handlers[opcode] = handler
		return
	}
	if h.ext == nil {
		h.ext = make(map[uint16]EventHandler)
	}
	h.ext[opcode] = handler
}

func (h *handlerEntry) get(opcode uint16) EventHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if opcode < 32 {
		return h.handlers[opcode]
	}
	return h.ext[opcode]
}

// NewEventDispatcher creates an event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{}
}

func (d *EventDispatcher) entry(objectID uint32, create bool) *handlerEntry {
	if objectID >= uint32(len(d.handlers)) {
		if !create {
			if e, ok := d.extHandlers.Load(objectID); ok {
				return e.(*handlerEntry)
			}
			return nil
		}
		e, _ := d.extHandlers.LoadOrStore(objectID, &handlerEntry{})
		return e.(*handlerEntry)
	}

	slot := &d.handlers[objectID]
	if e := slot.Load(); e != nil || !create {
		return e
	}
	slot.CompareAndSwap(nil, &handlerEntry{})
	return slot.Load()
}

// RegisterHandler registers handler for opcode on objectID, replacing any
// previous one.
func (d *EventDispatcher) RegisterHandler(objectID uint32, opcode uint16, handler EventHandler) {
	d.entry(objectID, true).set(opcode, handler)
}

// Dispatch invokes the handler registered for objectID and opcode, if any.
func (d *EventDispatcher) Dispatch(objectID uint32, opcode uint16, data []byte) bool {
	e := d.entry(objectID, false)
	if e == nil {
		return false
	}
	handler := e.get(opcode)
	if handler == nil {
		return false
	}

	event := eventPool.Get().(*Event)
	event.ProxyID = objectID
	event.Opcode = opcode
	event.data = append(event.data[:0], data...) // Reuse backing array
	event.offset = 0

	handler(event)

	eventPool.Put(event)
	return true
}
