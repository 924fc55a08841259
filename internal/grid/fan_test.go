package grid

import (
	"testing"
	"time"
)

func fanTestConfig() FanConfig {
	return FanConfig{
		LowTemp: 20, HighTemp: 60,
		PWMMin: 40, PWMMax: 255,
		WarnThreshold: 50, ErrorThreshold: 65,
	}
}

func TestFanComputeClampsAndScalesLinearly(t *testing.T) {
	f := NewFanController(fanTestConfig())

	if got := f.Compute(10); got != 40 {
		t.Fatalf("below low: got %d, want PWMMin", got)
	}
	if got := f.Compute(70); got != 255 {
		t.Fatalf("above high: got %d, want PWMMax", got)
	}
	mid := f.Compute(40) // halfway between 20 and 60
	if mid < 140 || mid > 150 {
		t.Fatalf("midpoint: got %d, want roughly halfway between 40 and 255", mid)
	}
}

func TestFanShouldWriteIdempotence(t *testing.T) {
	f := NewFanController(fanTestConfig())

	if !f.ShouldWrite(100) {
		t.Fatal("expected first write to be required")
	}
	f.MarkWritten(100)
	if f.ShouldWrite(100) {
		t.Fatal("expected no write when speed is unchanged")
	}
	if !f.ShouldWrite(101) {
		t.Fatal("expected a write when speed changes")
	}
}

func TestFanCheckAlertRateLimited(t *testing.T) {
	f := NewFanController(fanTestConfig())
	now := time.Now()

	a := f.CheckAlert(70, now)
	if a == nil || a.Level != AlertCritical {
		t.Fatalf("expected a critical alert above the error threshold, got %v", a)
	}

	a = f.CheckAlert(70, now.Add(time.Second))
	if a != nil {
		t.Fatalf("expected rate-limiting to suppress a second alert within 15s, got %v", a)
	}

	a = f.CheckAlert(70, now.Add(20*time.Second))
	if a == nil || a.Level != AlertCritical {
		t.Fatalf("expected a new alert after the rate-limit window elapses, got %v", a)
	}
}

func TestFanCheckAlertWarnVsError(t *testing.T) {
	f := NewFanController(fanTestConfig())
	a := f.CheckAlert(55, time.Now())
	if a == nil || a.Level != AlertError {
		t.Fatalf("expected an ERROR alert above the warn threshold only, got %v", a)
	}
}
