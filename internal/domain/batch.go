package domain

// Batch accumulates event bytes into a single contiguous payload up to a
// capacity. It maintains the invariant that Len() <= Capacity() unless
// a single event larger than the capacity was appended to an empty batch.
type Batch struct {
	buf      []byte
	capacity int
	count    int
	opaques  []any
}

// NewBatch creates a new empty batch with the given byte capacity.
func NewBatch(capacity int) *Batch {
	initial := capacity
	if initial > 64<<10 {
		initial = 64 << 10
	}
	return &Batch{
		buf:      make([]byte, 0, initial),
		capacity: capacity,
	}
}

// Fits returns true if n more bytes can be appended without exceeding capacity.
func (b *Batch) Fits(n int) bool {
	return len(b.buf)+n <= b.capacity
}

// Append adds data to the batch if it fits and reports whether it did.
// The caller decides whether to flush first when it does not.
func (b *Batch) Append(data []byte) bool {
	if !b.Fits(len(data)) {
		return false
	}
	b.buf = append(b.buf, data...)
	b.count++
	return true
}

// AppendEvent appends an event, keeping its opaque value for reporting.
func (b *Batch) AppendEvent(e Event) bool {
	if !b.Append(e.Data) {
		return false
	}
	b.opaques = append(b.opaques, e.Opaque)
	return true
}

// ForceAppend appends an event whatever its size. Used for events larger
// than the capacity, which are always shipped alone.
func (b *Batch) ForceAppend(e Event) {
	b.buf = append(b.buf, e.Data...)
	b.count++
	b.opaques = append(b.opaques, e.Opaque)
}

// Drain returns the accumulated payload and the opaque values of its events,
// and clears the batch. The returned slice is not reused by the batch.
func (b *Batch) Drain() ([]byte, []any) {
	payload := b.buf
	opaques := b.opaques

	b.buf = make([]byte, 0, cap(payload))
	b.opaques = nil
	b.count = 0

	return payload, opaques
}

// Empty returns true if the batch holds no bytes and no events.
func (b *Batch) Empty() bool {
	return b.count == 0
}

// Len returns the number of accumulated bytes.
func (b *Batch) Len() int {
	return len(b.buf)
}

// Count returns the number of events in the batch.
func (b *Batch) Count() int {
	return b.count
}

// Capacity returns the declared byte capacity.
func (b *Batch) Capacity() int {
	return b.capacity
}
