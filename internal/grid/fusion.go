package grid

import "time"

// shuntBatchInterval bounds how often accumulated shunt lines are
// applied to State; batching stops a chatty line from turning into an
// update storm downstream.
const shuntBatchInterval = 2 * time.Second

// Fusion merges BLE controller readings and shunt lines into a single
// State. When a shunt is configured it is authoritative for the battery
// and load groups, and BLE updates to those fields are discarded.
//
// The shunt's five keys map onto the grid-state field groups as
// V->battery.voltage (millivolts), SOC->battery.soc,
// P->load.power, I->load.current, TTG->load.time_remaining. The shunt
// has no analogue for battery.ah_remaining, pv.*, or
// controller.*, so those always come from the BLE reading.
type Fusion struct {
	shuntEnabled bool

	pending        map[string]float64
	lastShuntApply time.Time
	hasAppliedOnce bool
}

// NewFusion creates a Fusion. shuntEnabled mirrors whether a shunt
// device path was configured for this grid.
func NewFusion(shuntEnabled bool) *Fusion {
	return &Fusion{shuntEnabled: shuntEnabled, pending: make(map[string]float64, 5)}
}

// ApplyBLEReading updates state from a decoded BLE reading. Battery SOC,
// battery voltage and load power are skipped when a shunt is
// configured; battery.ah_remaining is always taken from BLE.
func (f *Fusion) ApplyBLEReading(state *State, batteryPercentage, batteryVoltage, controllerTemperature, pvPower, pvVoltage, loadPower float64, loadState bool, dischargingAhToday float64) {
	state.Controller.Temperature = controllerTemperature
	state.Controller.LoadState = loadState
	state.PV.Power = pvPower
	state.PV.Voltage = pvVoltage
	state.Battery.AhRemaining = dischargingAhToday

	if f.shuntEnabled {
		return
	}
	state.Battery.SOC = batteryPercentage
	state.Battery.Voltage = batteryVoltage
	state.Load.Power = loadPower
}

// QueueShuntLine records a decoded shunt line for the next batch flush.
func (f *Fusion) QueueShuntLine(key string, value float64) {
	f.pending[key] = value
}

// MaybeFlush applies any queued shunt lines to state if shuntBatchInterval
// has elapsed since the last flush (or this is the first flush), and
// reports whether it applied anything.
func (f *Fusion) MaybeFlush(state *State, now time.Time) bool {
	if len(f.pending) == 0 {
		return false
	}
	if f.hasAppliedOnce && now.Sub(f.lastShuntApply) < shuntBatchInterval {
		return false
	}

	for key, value := range f.pending {
		switch key {
		case "V":
			state.Battery.Voltage = value / 1000
		case "SOC":
			state.Battery.SOC = value
		case "P":
			state.Load.Power = value
		case "I":
			state.Load.Current = value
		case "TTG":
			state.Load.TimeRemaining = value
		}
	}
	f.pending = make(map[string]float64, 5)
	f.lastShuntApply = now
	f.hasAppliedOnce = true
	return true
}
