// Package frame implements the DOSA wire codec: a fixed 27-byte prefix
// followed by a variable payload. The codec is pure: no I/O, no clock,
// no knowledge of transport or sockets.
package frame

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/jordonsc/dosa-go/internal/doerr"
)

// PrefixSize is the fixed size of every frame's header.
const PrefixSize = 27

// MaxNameSize is the maximum length of a zero-padded device_name field.
const MaxNameSize = 20

// Opcode is the 3-byte ASCII message type identifier.
type Opcode string

const (
	OpAck      Opcode = "ack"
	OpLog      Opcode = "log"
	OpOnline   Opcode = "onl"
	OpTrigger  Opcode = "trg"
	OpOTA      Opcode = "ota"
	OpDebug    Opcode = "dbg"
	OpFlush    Opcode = "fls"
	OpBegin    Opcode = "bgn"
	OpEnd      Opcode = "end"
	OpBattery  Opcode = "btc"
	OpPing     Opcode = "pin"
	OpPong     Opcode = "pon"
	OpConfig   Opcode = "cfg"
	OpSecurity Opcode = "sec"
	OpPlay     Opcode = "ply"
	OpStatus   Opcode = "sta"
	OpReqStat  Opcode = "rqs"
	OpAlert    Opcode = "alt"
)

// Frame is a decoded DOSA packet: the 27-byte prefix plus its payload.
type Frame struct {
	MsgID      [2]byte
	Opcode     Opcode
	TotalSize  uint16
	DeviceName string
	Payload    []byte

	// Source is the address the frame was received from. Zero value for
	// frames constructed locally by Encode.
	Source *net.UDPAddr
}

// MsgIDUint returns the message ID as a little-endian uint16, the form
// used to correlate ack payloads.
func (f Frame) MsgIDUint() uint16 {
	return binary.LittleEndian.Uint16(f.MsgID[:])
}

// Encode builds a complete frame (prefix + payload) ready to send.
//
// msg_id is filled with 2 random bytes per send so retransmits and
// acks can be correlated. Returns doerr.KindInvalidName if deviceName
// exceeds MaxNameSize bytes.
func Encode(deviceName string, opcode Opcode, payload []byte) ([]byte, error) {
	if len(deviceName) > MaxNameSize {
		return nil, doerr.New(doerr.KindInvalidName, fmt.Sprintf("device name %q exceeds %d bytes", deviceName, MaxNameSize))
	}
	if len(opcode) != 3 {
		return nil, doerr.New(doerr.KindInvalidFrame, fmt.Sprintf("opcode %q must be 3 bytes", opcode))
	}

	totalSize := PrefixSize + len(payload)
	out := make([]byte, totalSize)

	if _, err := rand.Read(out[0:2]); err != nil {
		return nil, doerr.Wrap(doerr.KindTransport, "generating msg_id", err)
	}
	copy(out[2:5], opcode)
	binary.LittleEndian.PutUint16(out[5:7], uint16(totalSize))
	copy(out[7:27], []byte(deviceName)) // remaining bytes are already zero

	copy(out[PrefixSize:], payload)
	return out, nil
}

// Decode parses a raw datagram into a Frame. Inputs shorter than
// PrefixSize are rejected with doerr.KindInvalidFrame ("not a DOSA
// packet"). The receiver is lenient: total_size is parsed and exposed
// but not validated against len(data), so callers that care can compare
// it themselves.
func Decode(data []byte, source *net.UDPAddr) (Frame, error) {
	if len(data) < PrefixSize {
		return Frame{}, doerr.New(doerr.KindInvalidFrame, fmt.Sprintf("short packet: %d bytes", len(data)))
	}

	var f Frame
	copy(f.MsgID[:], data[0:2])
	f.Opcode = Opcode(data[2:5])
	f.TotalSize = binary.LittleEndian.Uint16(data[5:7])
	f.DeviceName = trimZero(data[7:27])
	f.Payload = data[PrefixSize:]
	f.Source = source
	return f, nil
}

func trimZero(b []byte) string {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return string(b[:i])
}
