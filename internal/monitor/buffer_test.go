package monitor

import (
	"fmt"
	"testing"

	"github.com/nvoss/logvigil/internal/entry"
)

func testEntry(msg string) entry.Entry {
	return entry.New(entry.LevelInfo, msg, "test", false)
}

func TestBufferFIFO(t *testing.T) {
	b := NewBuffer(10)
	for i := 0; i < 3; i++ {
		b.Add(testEntry(fmt.Sprintf("m%d", i)))
	}

	got := b.Drain(0)
	if len(got) != 3 {
		t.Fatalf("drained %d entries, want 3", len(got))
	}
	for i, e := range got {
		if want := fmt.Sprintf("m%d", i); e.Message != want {
			t.Errorf("got[%d].Message = %q, want %q", i, e.Message, want)
		}
	}
	if b.Len() != 0 {
		t.Errorf("Len() after drain = %d, want 0", b.Len())
	}
}

func TestBufferEvictsOldestWhenFull(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 5; i++ {
		b.Add(testEntry(fmt.Sprintf("m%d", i)))
	}

	if got := b.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
	if got := b.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}

	got := b.Drain(0)
	want := []string{"m2", "m3", "m4"}
	for i, e := range got {
		if e.Message != want[i] {
			t.Errorf("got[%d].Message = %q, want %q", i, e.Message, want[i])
		}
	}
}

func TestBufferDrainLimit(t *testing.T) {
	b := NewBuffer(10)
	for i := 0; i < 7; i++ {
		b.Add(testEntry(fmt.Sprintf("m%d", i)))
	}

	first := b.Drain(5)
	if len(first) != 5 || first[0].Message != "m0" || first[4].Message != "m4" {
		t.Fatalf("first drain = %d entries starting %q, want 5 starting m0", len(first), first[0].Message)
	}
	if b.Len() != 2 {
		t.Errorf("Len() after partial drain = %d, want 2", b.Len())
	}

	rest := b.Drain(5)
	if len(rest) != 2 || rest[0].Message != "m5" {
		t.Errorf("second drain = %v, want [m5 m6]", rest)
	}
}

func TestBufferDrainEmpty(t *testing.T) {
	b := NewBuffer(4)
	if got := b.Drain(10); got != nil {
		t.Errorf("Drain() on empty buffer = %v, want nil", got)
	}
}

func TestBufferWrapAround(t *testing.T) {
	b := NewBuffer(3)
	// Fill, drain part, refill across the ring seam.
	b.Add(testEntry("a"))
	b.Add(testEntry("b"))
	b.Add(testEntry("c"))
	if got := b.Drain(2); len(got) != 2 || got[0].Message != "a" {
		t.Fatalf("drain = %v", got)
	}
	b.Add(testEntry("d"))
	b.Add(testEntry("e"))

	got := b.Drain(0)
	want := []string{"c", "d", "e"}
	if len(got) != 3 {
		t.Fatalf("drained %d entries, want 3", len(got))
	}
	for i, e := range got {
		if e.Message != want[i] {
			t.Errorf("got[%d].Message = %q, want %q", i, e.Message, want[i])
		}
	}
}

func TestBufferDefaultCapacity(t *testing.T) {
	b := NewBuffer(0)
	if got := b.Cap(); got != DefaultBufferSize {
		t.Errorf("Cap() = %d, want %d", got, DefaultBufferSize)
	}
}
