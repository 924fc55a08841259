package grid

import (
	"testing"
	"time"
)

func TestFusionShuntOverridesBLEVoltage(t *testing.T) {
	f := NewFusion(true)
	var state State

	f.ApplyBLEReading(&state, 80, 12.0, 25, 100, 18, 50, true, 10)
	if state.Battery.Voltage != 0 {
		t.Fatalf("BLE voltage should not apply once a shunt is configured, got %v", state.Battery.Voltage)
	}

	f.QueueShuntLine("V", 13000)
	applied := f.MaybeFlush(&state, time.Now())
	if !applied {
		t.Fatal("expected the first shunt batch to flush immediately")
	}
	if state.Battery.Voltage != 13.0 {
		t.Fatalf("got battery voltage %v, want 13.0", state.Battery.Voltage)
	}
}

func TestFusionWithoutShuntUsesBLEForBatteryAndLoad(t *testing.T) {
	f := NewFusion(false)
	var state State

	f.ApplyBLEReading(&state, 80, 12.0, 25, 100, 18, 50, true, 10)
	if state.Battery.Voltage != 12.0 {
		t.Fatalf("got battery voltage %v, want 12.0 from BLE", state.Battery.Voltage)
	}
	if state.Load.Power != 50 {
		t.Fatalf("got load power %v, want 50 from BLE", state.Load.Power)
	}
}

func TestFusionBatchesShuntUpdates(t *testing.T) {
	f := NewFusion(true)
	var state State
	now := time.Now()

	f.QueueShuntLine("SOC", 42)
	if !f.MaybeFlush(&state, now) {
		t.Fatal("expected the first flush to apply immediately")
	}
	if state.Battery.SOC != 42 {
		t.Fatalf("got SOC %v, want 42", state.Battery.SOC)
	}

	f.QueueShuntLine("SOC", 43)
	if f.MaybeFlush(&state, now.Add(500*time.Millisecond)) {
		t.Fatal("expected the second flush to be held back by the batch interval")
	}
	if state.Battery.SOC != 42 {
		t.Fatalf("got SOC %v, want unchanged 42 until batch interval elapses", state.Battery.SOC)
	}

	if !f.MaybeFlush(&state, now.Add(2100*time.Millisecond)) {
		t.Fatal("expected the flush to apply once 2s has elapsed")
	}
	if state.Battery.SOC != 43 {
		t.Fatalf("got SOC %v, want 43 after the batch interval elapses", state.Battery.SOC)
	}
}
