package grid

import (
	"testing"
	"time"

	"github.com/jordonsc/dosa-go/internal/config"
)

func TestMainsDwellScenario(t *testing.T) {
	m := NewMainsMachine(config.MainsAuto, SensitivityParams{
		ActivateSOC:    45,
		ActivateTime:   5 * time.Second,
		DeactivateSOC:  50,
		DeactivateTime: 5 * time.Second,
	})

	sec := func(n int64) int64 { return n * int64(time.Second) }

	if got := m.Evaluate(50, sec(0)); got != MainsOff {
		t.Fatalf("t=0: got %v, want off (first-run bypass)", got)
	}
	if got := m.Evaluate(40, sec(1)); got != MainsOff {
		t.Fatalf("t=1: got %v, want off (dwell not elapsed)", got)
	}
	if got := m.Evaluate(40, sec(4)); got != MainsOff {
		t.Fatalf("t=4: got %v, want off (proposal on since t=1, dwell 5s not yet elapsed)", got)
	}
	if got := m.Evaluate(40, sec(7)); got != MainsOn {
		t.Fatalf("t=7: got %v, want on (dwell elapsed at t=6)", got)
	}
}

func TestMainsAlwaysOnOverride(t *testing.T) {
	m := NewMainsMachine(config.MainsAlwaysOn, SensitivityParams{})
	if got := m.Evaluate(90, 0); got != MainsOn {
		t.Fatalf("got %v, want on regardless of SOC", got)
	}
}

func TestMainsAlwaysOffOverride(t *testing.T) {
	m := NewMainsMachine(config.MainsAlwaysOff, SensitivityParams{})
	if got := m.Evaluate(5, 0); got != MainsOff {
		t.Fatalf("got %v, want off regardless of SOC", got)
	}
}

func TestMainsNoProposalHoldsCurrentState(t *testing.T) {
	m := NewMainsMachine(config.MainsAuto, SensitivityParams{
		ActivateSOC: 20, DeactivateSOC: 80,
		ActivateTime: time.Second, DeactivateTime: time.Second,
	})
	m.Evaluate(50, 0) // first run with no proposal: stays undecided

	if got := m.Current(); got != MainsUndecided {
		t.Fatalf("got %v, want undecided when no proposal ever fires", got)
	}
}
