package domain

// Event is a single producer-submitted unit of bytes.
// Data is owned by the event once constructed; callers must not retain it.
type Event struct {
	// Data is the raw payload appended to a batch as-is.
	Data []byte

	// Opaque is an optional caller value reported back with the flush
	// that carried this event. It never reaches the wire.
	Opaque any
}

// NewEvent copies data into a new Event.
func NewEvent(data []byte, opaque any) Event {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Event{Data: cp, Opaque: opaque}
}

// Len returns the payload length in bytes.
func (e Event) Len() int {
	return len(e.Data)
}
