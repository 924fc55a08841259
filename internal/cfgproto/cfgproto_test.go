package cfgproto

import (
	"encoding/binary"
	"math"
	"net"
	"testing"

	"github.com/jordonsc/dosa-go/internal/device"
	"github.com/jordonsc/dosa-go/internal/frame"
)

func TestEncodeWifiValue(t *testing.T) {
	v := EncodeWifiValue("home", "hunter2")
	if string(v) != "home\nhunter2" {
		t.Fatalf("EncodeWifiValue = %q", v)
	}
	if EncodeWifiValue("", "") != nil {
		t.Fatalf("expected nil for empty clear value")
	}
}

func TestEncodeSonarCalibrationValue(t *testing.T) {
	v := EncodeSonarCalibrationValue(500, 12, 1.5)
	if len(v) != 8 {
		t.Fatalf("len = %d, want 8", len(v))
	}
	if binary.LittleEndian.Uint16(v[0:2]) != 500 {
		t.Fatalf("threshold mismatch")
	}
	if binary.LittleEndian.Uint16(v[2:4]) != 12 {
		t.Fatalf("fixedCal mismatch")
	}
	bits := binary.LittleEndian.Uint32(v[4:8])
	if math.Float32frombits(bits) != 1.5 {
		t.Fatalf("coefficient mismatch")
	}
}

func TestValidateValue(t *testing.T) {
	cases := []struct {
		kind  Kind
		value string
		ok    bool
	}{
		{KindPassword, "abc", false},
		{KindPassword, "hunter2", true},
		{KindDeviceName, "x", false},
		{KindDeviceName, "front-door", true},
		{KindDeviceName, "this-device-name-is-too-long", false},
		{KindWifi, "", true}, // empty wifi value clears the saved network
	}
	for _, c := range cases {
		err := ValidateValue(c.kind, []byte(c.value))
		if (err == nil) != c.ok {
			t.Fatalf("ValidateValue(%d, %q) = %v, want ok=%v", c.kind, c.value, err, c.ok)
		}
	}
}

func TestDecodePong(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("10.0.0.9"), Port: 6901}
	f := frame.Frame{DeviceName: "sonar-1", Payload: []byte{2, 1}, Source: addr}
	r := decodePong(f)
	if r.Name != "sonar-1" {
		t.Fatalf("Name = %q", r.Name)
	}
	if r.Type != device.TypeSonar {
		t.Fatalf("Type = %v, want TypeSonar", r.Type)
	}
	if r.State != device.StateTriggered {
		t.Fatalf("State = %v, want StateTriggered", r.State)
	}
}
