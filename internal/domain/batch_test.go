package domain

import (
	"bytes"
	"testing"
)

func TestBatch_AppendWithinCapacity(t *testing.T) {
	b := NewBatch(10)

	for _, s := range []string{"12345", "6789", "X"} {
		if !b.Append([]byte(s)) {
			t.Fatalf("Append(%q) = false, want true", s)
		}
	}

	if b.Len() != 10 {
		t.Errorf("Len() = %d, want 10", b.Len())
	}
	if b.Count() != 3 {
		t.Errorf("Count() = %d, want 3", b.Count())
	}
	if b.Append([]byte("Y")) {
		t.Error("Append(\"Y\") = true on full batch, want false")
	}
	if b.Len() != 10 {
		t.Errorf("Len() after rejected append = %d, want 10", b.Len())
	}
}

func TestBatch_Drain(t *testing.T) {
	b := NewBatch(1024)
	b.AppendEvent(NewEvent([]byte("hello "), 1))
	b.AppendEvent(NewEvent([]byte("world"), 2))

	payload, opaques := b.Drain()

	if !bytes.Equal(payload, []byte("hello world")) {
		t.Errorf("payload = %q, want %q", payload, "hello world")
	}
	if len(opaques) != 2 || opaques[0] != 1 || opaques[1] != 2 {
		t.Errorf("opaques = %v, want [1 2]", opaques)
	}
	if !b.Empty() {
		t.Error("batch not empty after Drain")
	}
	if b.Len() != 0 || b.Count() != 0 {
		t.Errorf("Len/Count = %d/%d after Drain, want 0/0", b.Len(), b.Count())
	}

	// The drained payload must not alias the new buffer.
	b.Append([]byte("XXXXX"))
	if !bytes.Equal(payload, []byte("hello world")) {
		t.Errorf("drained payload mutated to %q", payload)
	}
}

func TestBatch_ForceAppendOversized(t *testing.T) {
	b := NewBatch(4)
	e := NewEvent([]byte("too large"), nil)

	if b.AppendEvent(e) {
		t.Fatal("AppendEvent of oversized event = true, want false")
	}
	b.ForceAppend(e)

	if b.Empty() {
		t.Fatal("batch empty after ForceAppend")
	}
	if b.Len() != len("too large") {
		t.Errorf("Len() = %d, want %d", b.Len(), len("too large"))
	}
}

func TestBatch_Capacity(t *testing.T) {
	b := NewBatch(1 << 20)
	if b.Capacity() != 1<<20 {
		t.Errorf("Capacity() = %d, want %d", b.Capacity(), 1<<20)
	}
	if !b.Empty() {
		t.Error("new batch not empty")
	}
}

func TestNewEvent_Copies(t *testing.T) {
	src := []byte("abc")
	e := NewEvent(src, nil)
	src[0] = 'z'

	if string(e.Data) != "abc" {
		t.Errorf("event data = %q, want %q", e.Data, "abc")
	}
	if e.Len() != 3 {
		t.Errorf("Len() = %d, want 3", e.Len())
	}
}
