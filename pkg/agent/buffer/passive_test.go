package buffer_test

import (
	"testing"

	"github.com/icsnexus/otcollector/pkg/agent/buffer"
)

func TestPassive_NeverExceedsCapacity(t *testing.T) {
	b := buffer.New[int](3)
	for i := 0; i < 10; i++ {
		b.Push(i)
		if b.Len() > 3 {
			t.Fatalf("buffer length %d exceeds capacity 3", b.Len())
		}
	}
}

func TestPassive_DropsOldestFirst(t *testing.T) {
	b := buffer.New[int](3)
	for i := 0; i < 5; i++ {
		b.Push(i)
	}
	got := b.Drain()
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if b.Dropped() != 2 {
		t.Fatalf("dropped = %d, want 2", b.Dropped())
	}
}

func TestPassive_DrainIsAtomicSwap(t *testing.T) {
	b := buffer.New[string](10)
	b.Push("a")
	b.Push("b")

	got := b.Drain()
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if b.Len() != 0 {
		t.Fatalf("buffer should be empty after drain, got len %d", b.Len())
	}

	// Pushing after drain should not affect the already-returned snapshot.
	b.Push("c")
	if len(got) != 2 {
		t.Fatalf("snapshot mutated after drain: %v", got)
	}
}

func TestPassive_DrainEmptyReturnsNil(t *testing.T) {
	b := buffer.New[int](5)
	if got := b.Drain(); got != nil {
		t.Fatalf("Drain() on empty buffer = %v, want nil", got)
	}
}
