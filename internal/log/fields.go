package log

// Canonical field names for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"

	// Wayland wire
	FieldObjectID = "object_id"
	FieldOpcode   = "opcode"
	FieldIface    = "interface"
)
