package grid

import (
	"net"
	"testing"
	"time"

	"github.com/jordonsc/dosa-go/internal/config"
	"github.com/jordonsc/dosa-go/internal/frame"
	"github.com/jordonsc/dosa-go/internal/transport"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	tr, err := transport.New()
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}
	t.Cleanup(func() { tr.Close() })

	mains := NewMainsMachine(config.MainsAlwaysOff, SensitivityParams{})
	fan := NewFanController(fanTestConfig())
	return New("grid-1", tr, mains, fan, false)
}

func TestControllerReplyPongUsesFixedTypeByte(t *testing.T) {
	c := newTestController(t)

	f := frame.Frame{
		MsgID:      [2]byte{1, 1},
		Opcode:     frame.OpPing,
		DeviceName: "secbot-1",
		Source:     &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 6901},
	}
	// HandleFrame sends a reply over the real unicast socket; this only
	// exercises that it does not panic or error synchronously.
	c.HandleFrame(f)
}

func TestControllerMirrorModeAbsorbsStatusFrame(t *testing.T) {
	tr, err := transport.New()
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}
	defer tr.Close()

	mains := NewMainsMachine(config.MainsAlwaysOff, SensitivityParams{})
	fan := NewFanController(fanTestConfig())
	c := New("grid-1", tr, mains, fan, false, WithMirrorMode(true))

	other := State{Battery: Battery{SOC: 77, Voltage: 12.8}}
	payload := EncodeStatus(other)

	f := frame.Frame{
		MsgID:      [2]byte{2, 2},
		Opcode:     frame.OpStatus,
		DeviceName: "grid-2",
		Payload:    payload,
		Source:     &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 6901},
	}
	c.HandleFrame(f)

	mirrored, ok := c.Mirror()
	if !ok {
		t.Fatal("expected MirrorMode to absorb the status frame")
	}
	if mirrored.Battery.SOC != 77 {
		t.Fatalf("got mirrored SOC %v, want 77", mirrored.Battery.SOC)
	}
}

func TestControllerIgnoresOwnStatusFrameInMirrorMode(t *testing.T) {
	tr, err := transport.New()
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}
	defer tr.Close()

	mains := NewMainsMachine(config.MainsAlwaysOff, SensitivityParams{})
	fan := NewFanController(fanTestConfig())
	c := New("grid-1", tr, mains, fan, false, WithMirrorMode(true))

	f := frame.Frame{
		Opcode:     frame.OpStatus,
		DeviceName: "grid-1",
		Payload:    EncodeStatus(State{}),
		Source:     &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 6901},
	}
	c.HandleFrame(f)

	if _, ok := c.Mirror(); ok {
		t.Fatal("expected self-originated status frames to be ignored")
	}
}

func TestControllerRecomputeWritesFanSpeedOnce(t *testing.T) {
	c := newTestController(t)
	c.mu.Lock()
	c.state.Controller.Temperature = 70 // above HighTemp: clamps to PWMMax
	c.mu.Unlock()

	if !c.Recompute(time.Now()) {
		t.Fatal("expected the first recompute to report a change (fan speed write)")
	}
	if c.Recompute(time.Now()) {
		t.Fatal("expected the second recompute with unchanged inputs to report no change")
	}
}
