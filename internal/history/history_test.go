package history

import (
	"net"
	"testing"
)

func addr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: port}
}

func TestContainsAfterAdd(t *testing.T) {
	h := New()
	for i := 0; i < Capacity; i++ {
		h.Add(addr(i), [2]byte{byte(i), 0})
	}
	for i := 0; i < Capacity; i++ {
		if !h.Contains(addr(i), [2]byte{byte(i), 0}) {
			t.Fatalf("entry %d missing after insertion", i)
		}
	}
}

func TestEvictsFIFO(t *testing.T) {
	h := New()
	for i := 0; i < Capacity+5; i++ {
		h.Add(addr(i), [2]byte{byte(i), 0})
	}
	if h.Len() != Capacity {
		t.Fatalf("Len() = %d, want %d", h.Len(), Capacity)
	}
	for i := 0; i < 5; i++ {
		if h.Contains(addr(i), [2]byte{byte(i), 0}) {
			t.Fatalf("entry %d should have been evicted", i)
		}
	}
	for i := 5; i < Capacity+5; i++ {
		if !h.Contains(addr(i), [2]byte{byte(i), 0}) {
			t.Fatalf("entry %d should still be present", i)
		}
	}
}

func BenchmarkAddAtCapacity(b *testing.B) {
	h := New()
	a := addr(1)
	for i := 0; i < Capacity; i++ {
		h.Add(a, [2]byte{byte(i), 0})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Add(a, [2]byte{byte(i), byte(i >> 8)})
	}
}

func TestDuplicateAddDoesNotGrow(t *testing.T) {
	h := New()
	a := addr(1)
	h.Add(a, [2]byte{1, 2})
	h.Add(a, [2]byte{1, 2})
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}
}
