// Package renogy adapts a Renogy-family BLE solar charge controller to
// the fixed reading schema the grid controller consumes.
//
// The third-party GATT client (github.com/go-ble/ble) delivers
// notifications on its own goroutine. Per the "callbacks crossing
// threads" design note, this package never calls back into grid
// directly: it decodes each notification and pushes a Reading onto a
// channel that the grid's main loop drains under its own state lock.
package renogy

import (
	"context"
	"encoding/binary"

	"github.com/go-ble/ble"

	"github.com/jordonsc/dosa-go/internal/doerr"
)

// notifyCharUUID is the vendor characteristic the controller streams
// its Modbus-over-BLE register block on.
var notifyCharUUID = ble.MustParse("0000ffd1-0000-1000-8000-00805f9b34fb")
var writeCharUUID = ble.MustParse("0000ffd0-0000-1000-8000-00805f9b34fb")

// Reading is one decoded telemetry snapshot from the controller.
type Reading struct {
	BatteryPercentage        float64
	BatteryVoltage           float64
	ControllerTemperature    float64
	PVPower                  float64
	PVVoltage                float64
	LoadPower                float64
	LoadState                bool
	DischargingAmpHoursToday float64
	PowerGenerationToday     float64
}

// Logger defines the logging interface used by Client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client wraps the go-ble GATT client with DOSA's narrow interface:
// Connect, Disconnect, and a channel of decoded Readings.
type Client struct {
	logger   Logger
	client   ble.Client
	readings chan Reading
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a disconnected Client.
func New(opts ...Option) *Client {
	c := &Client{
		logger:   noopLogger{},
		readings: make(chan Reading, 8),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Readings returns the channel of decoded controller readings. The
// grid's main loop drains this channel and applies updates under its
// state lock; this package never touches grid state directly.
func (c *Client) Readings() <-chan Reading {
	return c.readings
}

// Connect dials the controller at mac and subscribes to its data
// characteristic. Returns doerr.KindBLEDeviceNotFound or
// doerr.KindBLEConnectionFailed on failure.
func (c *Client) Connect(ctx context.Context, mac string) error {
	client, err := ble.Dial(ctx, ble.NewAddr(mac))
	if err != nil {
		return doerr.Wrap(doerr.KindBLEConnectionFailed, "dialing "+mac, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return doerr.Wrap(doerr.KindBLEDeviceNotFound, "discovering GATT profile", err)
	}

	var notifyChar *ble.Characteristic
	for _, svc := range profile.Services {
		for _, ch := range svc.Characteristics {
			if ch.UUID.Equal(notifyCharUUID) {
				notifyChar = ch
			}
		}
	}
	if notifyChar == nil {
		client.CancelConnection()
		return doerr.New(doerr.KindBLEDeviceNotFound, "controller data characteristic not found")
	}

	if err := client.Subscribe(notifyChar, false, c.onNotify); err != nil {
		client.CancelConnection()
		return doerr.Wrap(doerr.KindBLEConnectionFailed, "subscribing to notifications", err)
	}

	c.client = client
	return nil
}

// Disconnect tears down the BLE connection. Best-effort: errors are
// returned but the client is considered disconnected regardless.
func (c *Client) Disconnect() error {
	if c.client == nil {
		return nil
	}
	client := c.client
	c.client = nil
	if err := client.CancelConnection(); err != nil {
		return doerr.Wrap(doerr.KindBLEDisconnected, "disconnecting", err)
	}
	return nil
}

// onNotify runs on the go-ble library's own goroutine. It decodes the
// register block and pushes the result without blocking; a full
// channel drops the reading rather than stalling the BLE stack.
func (c *Client) onNotify(data []byte) {
	reading, err := decode(data)
	if err != nil {
		c.logger.Warn("dropping undecodable controller frame", "error", err)
		return
	}
	select {
	case c.readings <- reading:
	default:
		c.logger.Warn("reading dropped, channel full")
	}
}

// Register offsets within the controller's Modbus-over-BLE block. The
// controller reports battery/PV/load telemetry as big-endian uint16
// registers scaled per the vendor datasheet (temperature/voltage in
// tenths; SOC percent, power and amp-hours as whole units).
const (
	regBatterySOC           = 0
	regBatteryVoltage       = 2
	regControllerTemp       = 4
	regPVVoltage            = 6
	regPVPower              = 8
	regLoadPower            = 10
	regLoadState            = 12
	regDischargeAhToday     = 14
	regPowerGenerationToday = 16
	minFrameLen             = regPowerGenerationToday + 2
)

func decode(data []byte) (Reading, error) {
	if len(data) < minFrameLen {
		return Reading{}, doerr.New(doerr.KindBLEDisconnected, "short controller frame")
	}

	u16 := func(off int) float64 {
		return float64(binary.BigEndian.Uint16(data[off : off+2]))
	}

	return Reading{
		BatteryPercentage:        u16(regBatterySOC),
		BatteryVoltage:           u16(regBatteryVoltage) / 10,
		ControllerTemperature:    u16(regControllerTemp) / 10,
		PVVoltage:                u16(regPVVoltage) / 10,
		PVPower:                  u16(regPVPower),
		LoadPower:                u16(regLoadPower),
		LoadState:                data[regLoadState] != 0,
		DischargingAmpHoursToday: u16(regDischargeAhToday),
		PowerGenerationToday:     u16(regPowerGenerationToday),
	}, nil
}
