package grid

import (
	"encoding/binary"
	"math"
)

// StatusFormatTag versions the binary encoding EncodeStatus produces,
// carried as the first two bytes of a `status` frame's payload.
const StatusFormatTag uint16 = 1

// EncodeStatus serialises state group by group (battery, pv, load,
// controller, mains), little-endian throughout, with voltage and
// current fields scaled by 10 to preserve one decimal place in an
// integer encoding.
func EncodeStatus(state State) []byte {
	buf := make([]byte, 2+28)
	binary.LittleEndian.PutUint16(buf[0:2], StatusFormatTag)

	b := buf[2:]
	binary.LittleEndian.PutUint16(b[0:2], u16(state.Battery.SOC))
	binary.LittleEndian.PutUint16(b[2:4], u16(state.Battery.Voltage*10))
	binary.LittleEndian.PutUint16(b[4:6], u16(state.Battery.AhRemaining))

	binary.LittleEndian.PutUint16(b[6:8], u16(state.PV.Power))
	binary.LittleEndian.PutUint16(b[8:10], u16(state.PV.Voltage*10))
	binary.LittleEndian.PutUint16(b[10:12], u16(state.PV.Capacity))

	binary.LittleEndian.PutUint16(b[12:14], u16(state.Load.Power))
	binary.LittleEndian.PutUint16(b[14:16], u16(state.Load.Current*10))
	binary.LittleEndian.PutUint16(b[16:18], u16(state.Load.TimeRemaining))

	binary.LittleEndian.PutUint16(b[18:20], uint16(int16(math.Round(state.Controller.Temperature*10))))
	b[20] = boolByte(state.Controller.LoadState)
	b[21] = state.Controller.FanSpeed

	b[22] = boolByte(state.Mains.Active)
	b[23] = byte(state.Mains.ProposedState)
	binary.LittleEndian.PutUint32(b[24:28], uint32(state.Mains.ProposalTime))

	return buf
}

func u16(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(math.Round(v))
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// DecodeStatus parses a payload produced by EncodeStatus. Used by
// MirrorMode to consume an unsolicited `sta` frame from a peer grid.
func DecodeStatus(payload []byte) (State, bool) {
	if len(payload) < 2+28 {
		return State{}, false
	}
	if binary.LittleEndian.Uint16(payload[0:2]) != StatusFormatTag {
		return State{}, false
	}
	b := payload[2:]

	var s State
	s.Battery.SOC = float64(binary.LittleEndian.Uint16(b[0:2]))
	s.Battery.Voltage = float64(binary.LittleEndian.Uint16(b[2:4])) / 10
	s.Battery.AhRemaining = float64(binary.LittleEndian.Uint16(b[4:6]))

	s.PV.Power = float64(binary.LittleEndian.Uint16(b[6:8]))
	s.PV.Voltage = float64(binary.LittleEndian.Uint16(b[8:10])) / 10
	s.PV.Capacity = float64(binary.LittleEndian.Uint16(b[10:12]))

	s.Load.Power = float64(binary.LittleEndian.Uint16(b[12:14]))
	s.Load.Current = float64(binary.LittleEndian.Uint16(b[14:16])) / 10
	s.Load.TimeRemaining = float64(binary.LittleEndian.Uint16(b[16:18]))

	s.Controller.Temperature = float64(int16(binary.LittleEndian.Uint16(b[18:20]))) / 10
	s.Controller.LoadState = b[20] != 0
	s.Controller.FanSpeed = b[21]

	s.Mains.Active = b[22] != 0
	s.Mains.ProposedState = MainsState(b[23])
	s.Mains.ProposalTime = int64(binary.LittleEndian.Uint32(b[24:28]))

	return s, true
}
