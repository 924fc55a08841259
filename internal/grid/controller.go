package grid

import (
	"context"
	"sync"
	"time"

	"github.com/jordonsc/dosa-go/internal/config"
	"github.com/jordonsc/dosa-go/internal/frame"
	"github.com/jordonsc/dosa-go/internal/pwm"
	"github.com/jordonsc/dosa-go/internal/renogy"
	"github.com/jordonsc/dosa-go/internal/shunt"
	"github.com/jordonsc/dosa-go/internal/transport"
)

// gridPongTypeByte is the fixed first byte of a grid's `pon` reply to a
// `pin`.
const gridPongTypeByte = 0x78

// receiveQuantum is the transport poll budget used as this loop's
// pacing tick, matching the monitor scheduler's cadence.
const receiveQuantum = 100 * time.Millisecond

// Logger defines the logging interface used by Controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Controller is the grid's main-loop state owner: one State protected
// by a mutex (written from the main loop or the BLE reading channel's
// drain step), the mains state machine, the fan controller, sensor
// fusion, and the narrow external collaborators.
type Controller struct {
	mu    sync.Mutex
	state State

	mains  *MainsMachine
	fan    *FanController
	fusion *Fusion

	SelfName  string
	Transport *transport.Transport
	BLE       *renogy.Client
	Shunt     *shunt.Reader
	PWM       *pwm.Writer

	// ConfigEvents delivers changed-file paths from the external watcher;
	// OnConfigChange is invoked from inside Run for each one, so reload
	// side effects (e.g. MainsMachine.SetMode) happen on the main loop,
	// never a second goroutine.
	ConfigEvents   <-chan string
	OnConfigChange func(path string)

	DataFilePath string

	LogSink   LogSink
	AlertSink AlertSink
	Voice     VoiceSink

	logger Logger

	// Mirror holds the last state decoded from another grid's
	// unsolicited `sta` frame, when MirrorMode is enabled.
	MirrorMode bool
	mirrorMu   sync.RWMutex
	mirror     *State
}

// Option configures a Controller at construction time.
type Option func(*Controller)

func WithLogger(l Logger) Option         { return func(c *Controller) { c.logger = l } }
func WithLogSink(s LogSink) Option       { return func(c *Controller) { c.LogSink = s } }
func WithAlertSink(s AlertSink) Option   { return func(c *Controller) { c.AlertSink = s } }
func WithVoiceSink(s VoiceSink) Option   { return func(c *Controller) { c.Voice = s } }
func WithMirrorMode(enabled bool) Option { return func(c *Controller) { c.MirrorMode = enabled } }

// New creates a Controller. shuntEnabled mirrors whether shunt is
// non-nil; it is passed separately so tests can exercise fusion
// precedence without a real serial device.
func New(selfName string, t *transport.Transport, mains *MainsMachine, fan *FanController, shuntEnabled bool, opts ...Option) *Controller {
	c := &Controller{
		SelfName:  selfName,
		Transport: t,
		mains:     mains,
		fan:       fan,
		fusion:    NewFusion(shuntEnabled),
		LogSink:   noopLogSink{},
		AlertSink: noopAlertSink{},
		Voice:     noopVoiceSink{},
		logger:    noopLogger{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns a copy of the current grid state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mirror returns the last state mirrored from another grid's `sta`
// broadcast, if MirrorMode is enabled and one has been seen.
func (c *Controller) Mirror() (State, bool) {
	c.mirrorMu.RLock()
	defer c.mirrorMu.RUnlock()
	if c.mirror == nil {
		return State{}, false
	}
	return *c.mirror, true
}

// ApplyBLEReading folds a decoded BLE reading into state under the
// fusion precedence rule. Called from the main loop after draining
// BLE.Readings(), never from the BLE library's own goroutine.
func (c *Controller) ApplyBLEReading(r renogy.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fusion.ApplyBLEReading(&c.state,
		r.BatteryPercentage, r.BatteryVoltage, r.ControllerTemperature,
		r.PVPower, r.PVVoltage, r.LoadPower, r.LoadState, r.DischargingAmpHoursToday)
}

// ApplyShuntLine queues a decoded shunt line for the next batch flush.
func (c *Controller) ApplyShuntLine(l shunt.Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fusion.QueueShuntLine(l.Key, l.Value)
}

// Recompute flushes any pending shunt batch, re-evaluates the mains
// machine and fan controller, republishes the data file, and returns
// whether a downstream update actually happened (used to decide
// whether to multicast a fresh status announcement).
func (c *Controller) Recompute(now time.Time) bool {
	c.mu.Lock()
	flushed := c.fusion.MaybeFlush(&c.state, now)

	nowMono := now.UnixNano()
	wasActive := c.state.Mains.Active
	mainsState := c.mains.Evaluate(c.state.Battery.SOC, nowMono)
	c.state.Mains.Active = mainsState == MainsOn
	mainsChanged := c.state.Mains.Active != wasActive
	proposal, since := c.mains.Proposal()
	c.state.Mains.ProposedState = proposal
	c.state.Mains.ProposalTime = since / int64(time.Second)

	speed := c.fan.Compute(c.state.Controller.Temperature)
	writeSpeed := c.fan.ShouldWrite(speed)
	if writeSpeed {
		c.state.Controller.FanSpeed = speed
	}
	alert := c.fan.CheckAlert(c.state.Controller.Temperature, now)
	snapshot := c.state
	c.mu.Unlock()

	if writeSpeed {
		if c.PWM != nil {
			if err := c.PWM.Write(speed); err != nil {
				c.logger.Warn("failed to write fan duty cycle", "error", err)
				writeSpeed = false
			}
		}
		if writeSpeed {
			c.fan.MarkWritten(speed)
		}
	}
	if alert != nil {
		c.raiseAlert(*alert)
	}
	if mainsChanged {
		c.LogSink.Forward("mains relay switched " + mainsState.String())
	}

	updated := flushed || writeSpeed || mainsChanged
	if updated && c.DataFilePath != "" {
		if err := config.WriteDataFile(c.DataFilePath, toDataFile(snapshot)); err != nil {
			c.logger.Warn("failed to write data file", "error", err)
		}
	}

	return updated
}

// announceStatus multicasts an unsolicited `sta` frame so passive
// displays (and MirrorMode peers) pick up state changes without having
// to poll with `rqs`.
func (c *Controller) announceStatus() {
	payload := EncodeStatus(c.State())
	raw, err := frame.Encode(c.SelfName, frame.OpStatus, payload)
	if err != nil {
		c.logger.Warn("failed to encode status announce", "error", err)
		return
	}
	if err := c.Transport.Send(raw, nil); err != nil {
		c.logger.Warn("failed to send status announce", "error", err)
	}
}

func (c *Controller) raiseAlert(a Alert) {
	if err := c.AlertSink.Publish(a); err != nil {
		c.logger.Warn("alert sink failed", "error", err, "category", a.Category)
	}
}

// HandleFrame answers the grid's two solicited UDP opcodes and, in
// MirrorMode, absorbs an unsolicited `sta` frame from a peer grid.
func (c *Controller) HandleFrame(f frame.Frame) {
	switch f.Opcode {
	case frame.OpPing:
		c.replyPong(f)
	case frame.OpReqStat:
		c.replyStatus(f)
	case frame.OpStatus:
		if c.MirrorMode && f.DeviceName != c.SelfName {
			if s, ok := DecodeStatus(f.Payload); ok {
				c.mirrorMu.Lock()
				c.mirror = &s
				c.mirrorMu.Unlock()
			}
		}
	}
}

func (c *Controller) replyPong(f frame.Frame) {
	loadState := byte(0)
	if c.State().Controller.LoadState {
		loadState = 1
	}
	raw, err := frame.Encode(c.SelfName, frame.OpPong, []byte{gridPongTypeByte, loadState})
	if err != nil {
		c.logger.Warn("failed to encode pong", "error", err)
		return
	}
	if err := c.Transport.Send(raw, f.Source); err != nil {
		c.logger.Warn("failed to send pong", "error", err)
	}
}

func (c *Controller) replyStatus(f frame.Frame) {
	payload := EncodeStatus(c.State())
	raw, err := frame.Encode(c.SelfName, frame.OpStatus, payload)
	if err != nil {
		c.logger.Warn("failed to encode status", "error", err)
		return
	}
	if err := c.Transport.Send(raw, f.Source); err != nil {
		c.logger.Warn("failed to send status", "error", err)
	}
}

// Run is the grid's cooperative main loop. Each iteration polls the
// sources in a fixed order (BLE readings, shunt lines, config-watch
// events, UDP traffic), then recomputes and republishes. Returns when
// ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if c.BLE != nil {
			c.drainBLE()
		}
		if c.Shunt != nil {
			c.pollShunt()
		}
		c.drainConfigEvents()
		if f, ok := c.Transport.Receive(receiveQuantum); ok {
			c.HandleFrame(f)
		}
		if c.Recompute(time.Now()) {
			c.announceStatus()
		}
	}
}

func (c *Controller) drainConfigEvents() {
	if c.ConfigEvents == nil {
		return
	}
	for {
		select {
		case path := <-c.ConfigEvents:
			if c.OnConfigChange != nil {
				c.OnConfigChange(path)
			}
		default:
			return
		}
	}
}

func (c *Controller) drainBLE() {
	for {
		select {
		case r, ok := <-c.BLE.Readings():
			if !ok {
				return
			}
			c.ApplyBLEReading(r)
		default:
			return
		}
	}
}

func (c *Controller) pollShunt() {
	lines, err := c.Shunt.Poll()
	if err != nil {
		c.logger.Warn("shunt poll failed", "error", err)
		return
	}
	for _, l := range lines {
		c.ApplyShuntLine(l)
	}
}

func toDataFile(s State) config.DataFile {
	var df config.DataFile
	df.Battery.Capacity = s.Battery.Capacity
	df.Battery.SOC = s.Battery.SOC
	df.Battery.Voltage = s.Battery.Voltage
	df.Battery.AhRemaining = s.Battery.AhRemaining
	df.Mains.Active = s.Mains.Active
	df.PV.Capacity = s.PV.Capacity
	df.PV.Power = s.PV.Power
	df.PV.Voltage = s.PV.Voltage
	df.Load.Power = s.Load.Power
	df.Load.Current = s.Load.Current
	df.Load.TTG = s.Load.TimeRemaining
	df.Ctrl.Temp = s.Controller.Temperature
	df.Ctrl.FanSpeed = int(s.Controller.FanSpeed)
	return df
}
