package device

import (
	"net"
	"testing"
)

func testAddr(port int) net.UDPAddr {
	return net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: port}
}

func TestObservePongNew(t *testing.T) {
	r := New()
	tr := r.ObservePong(testAddr(1), "front-door", TypeSonar, StateNormal, 1000)
	if tr != TransitionNew {
		t.Fatalf("Transition = %v, want TransitionNew", tr)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestObservePongRefreshed(t *testing.T) {
	r := New()
	a := testAddr(1)
	r.ObservePong(a, "front-door", TypeSonar, StateNormal, 1000)
	tr := r.ObservePong(a, "front-door", TypeSonar, StateNormal, 2000)
	if tr != TransitionRefreshed {
		t.Fatalf("Transition = %v, want TransitionRefreshed", tr)
	}
	d, ok := r.Get(a)
	if !ok || d.LastSeenMonotonic != 2000 {
		t.Fatalf("LastSeenMonotonic not refreshed: %+v", d)
	}
}

func TestRecoveryDetection(t *testing.T) {
	r := New()
	a := testAddr(1)
	r.ObservePong(a, "front-door", TypeSonar, StateNormal, 0)

	stale := r.MarkStale(120_000_000_000, 60_000_000_000)
	if len(stale) != 1 {
		t.Fatalf("MarkStale returned %d entries, want 1", len(stale))
	}
	d, _ := r.Get(a)
	if !d.ReportedUnresponsive {
		t.Fatalf("expected ReportedUnresponsive = true after MarkStale")
	}

	tr := r.ObservePong(a, "front-door", TypeSonar, StateNormal, 121_000_000_000)
	if tr != TransitionRecovered {
		t.Fatalf("Transition = %v, want TransitionRecovered", tr)
	}
	d, _ = r.Get(a)
	if d.ReportedUnresponsive {
		t.Fatalf("expected ReportedUnresponsive = false after recovery")
	}
}

func TestMarkStaleDoesNotRefire(t *testing.T) {
	r := New()
	a := testAddr(1)
	r.ObservePong(a, "front-door", TypeSonar, StateNormal, 0)

	first := r.MarkStale(120_000_000_000, 60_000_000_000)
	second := r.MarkStale(200_000_000_000, 60_000_000_000)
	if len(first) != 1 {
		t.Fatalf("first MarkStale returned %d, want 1", len(first))
	}
	if len(second) != 0 {
		t.Fatalf("second MarkStale returned %d, want 0 (already flagged)", len(second))
	}
}

func TestPortChangeIsNewDevice(t *testing.T) {
	r := New()
	r.ObservePong(testAddr(1), "d", TypeSonar, StateNormal, 0)
	tr := r.ObservePong(testAddr(2), "d", TypeSonar, StateNormal, 0)
	if tr != TransitionNew {
		t.Fatalf("Transition = %v, want TransitionNew for changed port", tr)
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
}

func BenchmarkObservePong(b *testing.B) {
	r := New()
	a := testAddr(1)
	for i := 0; i < b.N; i++ {
		r.ObservePong(a, "front-door", TypeSonar, StateNormal, int64(i))
	}
}

func TestFlush(t *testing.T) {
	r := New()
	r.ObservePong(testAddr(1), "d", TypeSonar, StateNormal, 0)
	r.Flush()
	if r.Len() != 0 {
		t.Fatalf("Len() = %d after Flush, want 0", r.Len())
	}
}
