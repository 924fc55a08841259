package monitor

import (
	"encoding/binary"
	"strings"
)

// TriggerSubtype is the first payload byte of a `trg` frame.
type TriggerSubtype byte

const (
	TriggerUnknown TriggerSubtype = 0
	TriggerButton  TriggerSubtype = 1
	TriggerSensor  TriggerSubtype = 2
	TriggerRange   TriggerSubtype = 3
	TriggerMap     TriggerSubtype = 4
	TriggerAuto    TriggerSubtype = 100
)

func (t TriggerSubtype) String() string {
	switch t {
	case TriggerButton:
		return "button"
	case TriggerSensor:
		return "sensor"
	case TriggerRange:
		return "range"
	case TriggerMap:
		return "map"
	case TriggerAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// RangeReading holds the previous/current distance pair carried by a
// TriggerRange payload.
type RangeReading struct {
	PreviousMM uint16
	CurrentMM  uint16
}

// ParseRange decodes the two little-endian uint16 values following the
// subtype byte in a TriggerRange payload.
func ParseRange(payload []byte) (RangeReading, bool) {
	if len(payload) < 5 {
		return RangeReading{}, false
	}
	return RangeReading{
		PreviousMM: binary.LittleEndian.Uint16(payload[1:3]),
		CurrentMM:  binary.LittleEndian.Uint16(payload[3:5]),
	}, true
}

// mapSize is the fixed 8x8 grayscale IR grid carried by a TriggerMap
// payload, following the subtype byte.
const mapSize = 64

// RenderMap renders a TriggerMap payload's 64 grayscale bytes as an 8x8
// ASCII grid: >30 '#', >15 '+', >0 '.', ==0 ' '.
func RenderMap(payload []byte) (string, bool) {
	if len(payload) < 1+mapSize {
		return "", false
	}
	pixels := payload[1 : 1+mapSize]

	var b strings.Builder
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			p := pixels[row*8+col]
			switch {
			case p > 30:
				b.WriteByte('#')
			case p > 15:
				b.WriteByte('+')
			case p > 0:
				b.WriteByte('.')
			default:
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), true
}

// ParseTriggerSubtype reads the subtype discriminant from a `trg`
// payload.
func ParseTriggerSubtype(payload []byte) TriggerSubtype {
	if len(payload) < 1 {
		return TriggerUnknown
	}
	return TriggerSubtype(payload[0])
}
