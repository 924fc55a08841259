// Package cfgproto implements the request/response configuration
// protocol layered on top of internal/transport: scanning for devices,
// pushing a setting to a device, and pulling a debug log dump.
package cfgproto

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/jordonsc/dosa-go/internal/device"
	"github.com/jordonsc/dosa-go/internal/doerr"
	"github.com/jordonsc/dosa-go/internal/frame"
	"github.com/jordonsc/dosa-go/internal/transport"
)

// Kind is the setting-kind discriminant byte for a `cfg` frame payload.
type Kind byte

const (
	KindPassword         Kind = 0
	KindDeviceName       Kind = 1
	KindWifi             Kind = 2
	KindIRCalibration    Kind = 3
	KindDoorCalibration  Kind = 4
	KindSonarCalibration Kind = 5
)

// ScanResult is one device discovered by Scan.
type ScanResult struct {
	Addr  net.UDPAddr
	Name  string
	Type  device.Type
	State device.State
}

// Scanner performs the device-discovery and settings-push protocol.
type Scanner struct {
	transport  *transport.Transport
	deviceName string
}

// New creates a Scanner that identifies itself as deviceName (the
// name this CLI tool puts in the frames it emits).
func New(t *transport.Transport, deviceName string) *Scanner {
	return &Scanner{transport: t, deviceName: deviceName}
}

// Scan broadcasts PING and collects PONGs for timeout, retrying up to
// retries times. Results are de-duplicated by source IP, so a device
// answering more than one retry round appears once.
func (s *Scanner) Scan(retries int, timeout time.Duration) ([]ScanResult, error) {
	seen := make(map[string]ScanResult)

	attempts := retries + 1
	for i := 0; i < attempts; i++ {
		raw, err := frame.Encode(s.deviceName, frame.OpPing, nil)
		if err != nil {
			return nil, err
		}
		if err := s.transport.Send(raw, nil); err != nil {
			return nil, err
		}

		deadline := time.Now().Add(timeout)
		for time.Now().Before(deadline) {
			f, ok := s.transport.Receive(time.Until(deadline))
			if !ok {
				break
			}
			if f.Opcode != frame.OpPong || f.Source == nil {
				continue
			}
			result := decodePong(f)
			key := f.Source.IP.String()
			seen[key] = result
		}
	}

	out := make([]ScanResult, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	return out, nil
}

func decodePong(f frame.Frame) ScanResult {
	r := ScanResult{Addr: *f.Source, Name: f.DeviceName}
	if len(f.Payload) >= 1 {
		r.Type = device.TypeFromByte(f.Payload[0])
	}
	if len(f.Payload) >= 2 {
		r.State = device.StateFromByte(f.Payload[1])
	}
	return r
}

// ValidateValue checks the length constraints on the string-valued
// setting kinds before anything goes on the wire: passwords are 4-50
// characters, device names 2-20. A kind outside 0-5 is rejected with
// ErrNoSuchKind.
func ValidateValue(kind Kind, value []byte) error {
	if kind > KindSonarCalibration {
		return ErrNoSuchKind
	}
	switch kind {
	case KindPassword:
		if len(value) < 4 || len(value) > 50 {
			return doerr.New(doerr.KindInvalidFrame, fmt.Sprintf("password must be 4-50 chars, got %d", len(value)))
		}
	case KindDeviceName:
		if len(value) < 2 || len(value) > 20 {
			return doerr.New(doerr.KindInvalidName, fmt.Sprintf("device name must be 2-20 chars, got %d", len(value)))
		}
	}
	return nil
}

// ApplySetting pushes a `cfg` frame of the given kind and value to
// target and waits for acknowledgement.
func (s *Scanner) ApplySetting(target net.UDPAddr, kind Kind, value []byte) (acked bool, err error) {
	if err := ValidateValue(kind, value); err != nil {
		return false, err
	}
	payload := make([]byte, 1+len(value))
	payload[0] = byte(kind)
	copy(payload[1:], value)

	raw, err := frame.Encode(s.deviceName, frame.OpConfig, payload)
	if err != nil {
		return false, err
	}
	var msgID [2]byte
	copy(msgID[:], raw[0:2])

	return s.transport.SendWithAck(raw, msgID, &target, time.Second)
}

// EncodeWifiValue builds the value bytes for KindWifi: "ssid\npassword",
// empty to clear the saved network.
func EncodeWifiValue(ssid, password string) []byte {
	if ssid == "" && password == "" {
		return nil
	}
	return []byte(ssid + "\n" + password)
}

// EncodeIRCalibrationValue builds the value bytes for KindIRCalibration:
// u8 min_pixels, f32 single-delta, f32 total-delta.
func EncodeIRCalibrationValue(minPixels uint8, singleDelta, totalDelta float32) []byte {
	out := make([]byte, 9)
	out[0] = minPixels
	binary.LittleEndian.PutUint32(out[1:5], math.Float32bits(singleDelta))
	binary.LittleEndian.PutUint32(out[5:9], math.Float32bits(totalDelta))
	return out
}

// EncodeDoorCalibrationValue builds the value bytes for
// KindDoorCalibration: u16 open-dist-mm, u32 open-wait-ms, u32
// cooldown-ms, u32 close-ticks.
func EncodeDoorCalibrationValue(openDistMM uint16, openWaitMS, cooldownMS, closeTicks uint32) []byte {
	out := make([]byte, 14)
	binary.LittleEndian.PutUint16(out[0:2], openDistMM)
	binary.LittleEndian.PutUint32(out[2:6], openWaitMS)
	binary.LittleEndian.PutUint32(out[6:10], cooldownMS)
	binary.LittleEndian.PutUint32(out[10:14], closeTicks)
	return out
}

// EncodeSonarCalibrationValue builds the value bytes for
// KindSonarCalibration: u16 threshold, u16 fixed-cal, f32 coefficient.
func EncodeSonarCalibrationValue(threshold, fixedCal uint16, coefficient float32) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint16(out[0:2], threshold)
	binary.LittleEndian.PutUint16(out[2:4], fixedCal)
	binary.LittleEndian.PutUint32(out[4:8], math.Float32bits(coefficient))
	return out
}

// RequestDebugDump emits `dbg` to target, then collects `log` frames
// for up to 2 seconds and renders them as plain text lines.
func (s *Scanner) RequestDebugDump(target net.UDPAddr) (string, error) {
	raw, err := frame.Encode(s.deviceName, frame.OpDebug, nil)
	if err != nil {
		return "", err
	}
	if err := s.transport.Send(raw, &target); err != nil {
		return "", err
	}

	var lines []string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f, ok := s.transport.Receive(time.Until(deadline))
		if !ok {
			break
		}
		if f.Opcode != frame.OpLog || f.Source == nil || f.Source.IP.String() != target.IP.String() {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", f.DeviceName, string(f.Payload)))
	}
	return strings.Join(lines, "\n"), nil
}

// ErrNoSuchKind is returned by validation helpers that reject an
// unrecognised setting kind.
var ErrNoSuchKind = doerr.New(doerr.KindInvalidFrame, "unrecognised setting kind")
