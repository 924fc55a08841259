package monitor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jordonsc/dosa-go/internal/device"
	"github.com/jordonsc/dosa-go/internal/history"
	"github.com/jordonsc/dosa-go/internal/transport"
)

func TestSchedulerRunStopsOnContextCancel(t *testing.T) {
	tr, err := transport.New()
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}
	defer tr.Close()

	p := New(device.New(), history.New(), tr, "secbot-1")
	sched := NewScheduler(p, 50*time.Millisecond, 200*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err = sched.Run(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Run returned %v, want context.DeadlineExceeded", err)
	}
}

func TestSchedulerSweepStaleRaisesAlert(t *testing.T) {
	tr, err := transport.New()
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}
	defer tr.Close()

	alerts := &fakeAlertSink{}
	voice := &fakeVoiceSink{}
	p := New(device.New(), history.New(), tr, "secbot-1", WithAlertSink(alerts), WithVoiceSink(voice))
	sched := NewScheduler(p, time.Second, 10*time.Millisecond)

	addr := net.UDPAddr{IP: net.ParseIP("10.0.0.20"), Port: 6901}
	p.Registry.ObservePong(addr, "sonar-9", device.TypeSonar, device.StateNormal, time.Now().UnixNano())
	sched.sweepStale()
	if len(alerts.records) != 0 {
		t.Fatalf("expected no alert before the timeout elapses, got %d", len(alerts.records))
	}

	time.Sleep(20 * time.Millisecond)
	sched.sweepStale()
	if len(alerts.records) != 1 {
		t.Fatalf("expected one stale-device alert, got %d", len(alerts.records))
	}
	if alerts.records[0].Category != CategoryNetwork || alerts.records[0].Level != LevelError {
		t.Fatalf("got alert %+v, want category network at error level", alerts.records[0])
	}
	if len(voice.lines) != 1 || voice.lines[0] != "Alert, sonar-9 is not responding" {
		t.Fatalf("got voice lines %v, want the not-responding announcement", voice.lines)
	}
}
