package grid

import (
	"time"

	"github.com/jordonsc/dosa-go/internal/config"
)

// SensitivityParams are the automatic-mode thresholds: activate below
// ActivateSOC, deactivate at or above DeactivateSOC, each gated by its
// own dwell time.
type SensitivityParams struct {
	ActivateSOC    float64
	ActivateTime   time.Duration
	DeactivateSOC  float64
	DeactivateTime time.Duration
}

// MainsMachine decides the AC backup relay state: override modes
// force the relay unconditionally; automatic mode
// proposes a state from SOC and commits it only after the proposal has
// held for its dwell time, except on the very first evaluation.
type MainsMachine struct {
	mode   config.MainsMode
	params SensitivityParams

	current     MainsState
	hasProposal bool
	proposal    MainsState
	proposalAt  int64
	firstRun    bool
}

// NewMainsMachine creates a machine starting in MainsUndecided.
func NewMainsMachine(mode config.MainsMode, params SensitivityParams) *MainsMachine {
	return &MainsMachine{mode: mode, params: params, current: MainsUndecided, firstRun: true}
}

// SetMode changes the override/automatic mode (e.g. after a config
// file reload). It does not reset proposal/dwell state.
func (m *MainsMachine) SetMode(mode config.MainsMode) {
	m.mode = mode
}

// Current returns the committed mains state.
func (m *MainsMachine) Current() MainsState { return m.current }

// Proposal returns the pending proposal and the monotonic time it was
// set, for status reporting.
func (m *MainsMachine) Proposal() (MainsState, int64) {
	return m.proposal, m.proposalAt
}

// Evaluate runs one cycle of the state machine against the latest SOC
// reading and returns the (possibly unchanged) committed state.
func (m *MainsMachine) Evaluate(soc float64, nowMonotonic int64) MainsState {
	switch m.mode {
	case config.MainsAlwaysOn:
		m.current = MainsOn
		return m.current
	case config.MainsAlwaysOff:
		m.current = MainsOff
		return m.current
	}

	var proposed MainsState
	proposedSet := false
	switch {
	case soc < m.params.ActivateSOC:
		proposed, proposedSet = MainsOn, true
	case soc >= m.params.DeactivateSOC:
		proposed, proposedSet = MainsOff, true
	}

	if !proposedSet {
		return m.current
	}

	if !m.hasProposal || m.proposal != proposed {
		m.hasProposal = true
		m.proposal = proposed
		m.proposalAt = nowMonotonic
	}

	if m.firstRun {
		m.firstRun = false
		m.current = proposed
		return m.current
	}

	if m.proposal == m.current {
		return m.current
	}

	dwell := m.params.DeactivateTime
	if m.proposal == MainsOn {
		dwell = m.params.ActivateTime
	}
	if nowMonotonic-m.proposalAt >= dwell.Nanoseconds() {
		m.current = m.proposal
	}
	return m.current
}
