// Package monitor implements the security/monitoring bot's event
// pipeline: ingest decoded frames, classify by opcode, and dispatch to
// the log, alert, and voice sinks plus the device registry.
package monitor

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/jordonsc/dosa-go/internal/config"
	"github.com/jordonsc/dosa-go/internal/device"
	"github.com/jordonsc/dosa-go/internal/frame"
	"github.com/jordonsc/dosa-go/internal/history"
	"github.com/jordonsc/dosa-go/internal/transport"
)

// Logger defines the logging interface used by Pipeline itself (not to
// be confused with LogSink, which receives classified wire events).
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Handler processes one classified frame.
type Handler func(p *Pipeline, f frame.Frame)

// Pipeline wires the registry, message history, and external sinks
// together behind an opcode-keyed dispatch table.
type Pipeline struct {
	Registry  *device.Registry
	History   *history.History
	Transport *transport.Transport

	LogSink   LogSink
	AlertSink AlertSink
	Voice     VoiceSink
	Flags     FeatureFlagSink

	SelfName string
	Plays    map[string]config.Play

	// ReportRecovery mirrors the protocol config's monitor.report-recovery
	// key: whether a device-recovered transition also raises an alert and
	// vocalises, or is logged only.
	ReportRecovery bool

	logger    Logger
	handlers  map[frame.Opcode]Handler
	forcePing bool
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

func WithLogger(l Logger) Option       { return func(p *Pipeline) { p.logger = l } }
func WithAlertSink(s AlertSink) Option { return func(p *Pipeline) { p.AlertSink = s } }
func WithLogSink(s LogSink) Option     { return func(p *Pipeline) { p.LogSink = s } }
func WithVoiceSink(s VoiceSink) Option { return func(p *Pipeline) { p.Voice = s } }
func WithFeatureFlags(s FeatureFlagSink) Option {
	return func(p *Pipeline) { p.Flags = s }
}
func WithPlays(plays map[string]config.Play) Option {
	return func(p *Pipeline) { p.Plays = plays }
}
func WithReportRecovery(enabled bool) Option {
	return func(p *Pipeline) { p.ReportRecovery = enabled }
}

// New creates a Pipeline. selfName is this agent's own device name,
// used for self-log suppression.
func New(reg *device.Registry, hist *history.History, t *transport.Transport, selfName string, opts ...Option) *Pipeline {
	p := &Pipeline{
		Registry:       reg,
		History:        hist,
		Transport:      t,
		SelfName:       selfName,
		LogSink:        noopLogSink{},
		AlertSink:      noopAlertSink{},
		Voice:          noopVoiceSink{},
		Flags:          alwaysEnabled{},
		logger:         noopLogger{},
		Plays:          map[string]config.Play{},
		ReportRecovery: true,
	}
	for _, o := range opts {
		o(p)
	}
	p.handlers = map[frame.Opcode]Handler{
		frame.OpPing:     handlePing,
		frame.OpAck:      handleAck,
		frame.OpPong:     handlePong,
		frame.OpLog:      handleLog,
		frame.OpSecurity: handleSecurity,
		frame.OpTrigger:  handleTrigger,
		frame.OpAlert:    handleAltTrigger,
		frame.OpFlush:    handleFlush,
		frame.OpPlay:     handlePlay,
		frame.OpBegin:    handleBeginEnd,
		frame.OpEnd:      handleBeginEnd,
	}
	return p
}

// Dispatch de-duplicates f against History and routes it to its
// handler, falling back to raw logging for unrecognised opcodes.
func (p *Pipeline) Dispatch(f frame.Frame) {
	if f.Source != nil {
		if p.History.Contains(f.Source, f.MsgID) {
			p.logger.Debug("dropping duplicate frame", "opcode", f.Opcode, "source", f.Source)
			return
		}
		p.History.Add(f.Source, f.MsgID)
	}

	h, ok := p.handlers[f.Opcode]
	if !ok {
		p.LogSink.Forward(LogRecord{
			Device:  f.DeviceName,
			Opcode:  string(f.Opcode),
			Level:   LevelInfo,
			Message: fmt.Sprintf("unclassified frame, payload=% x", f.Payload),
		})
		return
	}
	h(p, f)
}

// ConsumePingRequest reports and clears the forced-immediate-ping flag
// a FLUSH frame sets, for the scheduler to act on.
func (p *Pipeline) ConsumePingRequest() bool {
	v := p.forcePing
	p.forcePing = false
	return v
}

func (p *Pipeline) ack(f frame.Frame) {
	if f.Source == nil {
		return
	}
	if err := p.Transport.SendAck(p.SelfName, f.MsgID, f.Source); err != nil {
		p.logger.Warn("failed to send ack", "error", err)
	}
}

// raiseAlert publishes to AlertSink, downgrading a sink failure to a
// WARNING log rather than letting it propagate and trigger a recursive
// alert.
func (p *Pipeline) raiseAlert(rec AlertRecord) {
	if err := p.AlertSink.Publish(rec); err != nil {
		p.logger.Warn("alert sink failed", "error", err, "category", rec.Category)
	}
}

func (p *Pipeline) vocalise(text string) {
	if err := p.Voice.Play(text, false); err != nil {
		p.logger.Warn("voice sink failed", "error", err)
	}
}

func handlePing(p *Pipeline, f frame.Frame) {
	// Pings are answered by devices, not the monitor; nothing to log.
}

func handleAck(p *Pipeline, f frame.Frame) {
	// Silently ignored here; a pending SendWithAck intercepts the ack
	// before it reaches Dispatch. An ack seen here arrived after its
	// deadline or unsolicited; still nothing to log.
}

func handlePong(p *Pipeline, f frame.Frame) {
	var typ device.Type
	var st device.State
	if len(f.Payload) >= 1 {
		typ = device.TypeFromByte(f.Payload[0])
	}
	if len(f.Payload) >= 2 {
		st = device.StateFromByte(f.Payload[1])
	}

	addr := net.UDPAddr{}
	if f.Source != nil {
		addr = *f.Source
	}

	transition := p.Registry.ObservePong(addr, f.DeviceName, typ, st, time.Now().UnixNano())
	if transition != device.TransitionRecovered {
		return
	}

	p.LogSink.Forward(LogRecord{Device: f.DeviceName, Opcode: string(frame.OpPong), Level: LevelInfo, Message: "device recovered"})
	if p.ReportRecovery {
		p.raiseAlert(AlertRecord{
			Device:   f.DeviceName,
			Message:  "device recovered",
			Category: CategoryRecovery,
			Level:    LevelInfo,
		})
		p.vocalise(f.DeviceName + " is back online")
	}
}

func handleLog(p *Pipeline, f frame.Frame) {
	level := LevelInfo
	if len(f.Payload) >= 1 {
		level = LevelFromByte(f.Payload[0])
	}
	message := ""
	if len(f.Payload) > 1 {
		message = string(f.Payload[1:])
	}

	p.LogSink.Forward(LogRecord{Device: f.DeviceName, Opcode: string(frame.OpLog), Level: level, Message: message})
	p.ack(f)

	selfOriginated := f.DeviceName == p.SelfName
	if level >= LevelCritical && !selfOriginated {
		p.raiseAlert(AlertRecord{
			Device:      f.DeviceName,
			Message:     message,
			Description: "critical log event",
			Category:    CategoryCriticalLog,
			Level:       level,
		})
		p.vocalise(fmt.Sprintf("%s reports a critical error", f.DeviceName))
	}
}

func handleSecurity(p *Pipeline, f frame.Frame) {
	level := LevelWarning
	if len(f.Payload) >= 1 {
		level = LevelFromByte(f.Payload[0])
	}
	message := ""
	if len(f.Payload) > 1 {
		message = string(f.Payload[1:])
	}

	p.LogSink.Forward(LogRecord{Device: f.DeviceName, Opcode: string(frame.OpSecurity), Level: level, Message: message})
	p.ack(f)

	p.raiseAlert(AlertRecord{
		Device:   f.DeviceName,
		Message:  message,
		Category: CategorySecurity,
		Level:    level,
	})
}

func handleTrigger(p *Pipeline, f frame.Frame) {
	subtype := ParseTriggerSubtype(f.Payload)
	message := subtype.String()

	switch subtype {
	case TriggerRange:
		if r, ok := ParseRange(f.Payload); ok {
			message = fmt.Sprintf("range: %d -> %d mm", r.PreviousMM, r.CurrentMM)
		}
	case TriggerMap:
		if rendered, ok := RenderMap(f.Payload); ok {
			message = "map:\n" + rendered
		}
	}

	p.LogSink.Forward(LogRecord{Device: f.DeviceName, Opcode: string(frame.OpTrigger), Level: LevelInfo, Message: message})
}

// handleAltTrigger classifies the `alt` opcode as a trigger variant
// with its own alert category, keeping it distinct from `sec` events
// in alert routing.
func handleAltTrigger(p *Pipeline, f frame.Frame) {
	message := "alt-trigger"
	if len(f.Payload) > 0 {
		message = fmt.Sprintf("alt-trigger: code %d", f.Payload[0])
	}
	p.LogSink.Forward(LogRecord{Device: f.DeviceName, Opcode: string(frame.OpAlert), Level: LevelWarning, Message: message})
	p.ack(f)
	p.raiseAlert(AlertRecord{
		Device:   f.DeviceName,
		Message:  message,
		Category: CategoryAltTrigger,
		Level:    LevelWarning,
	})
}

func handleFlush(p *Pipeline, f frame.Frame) {
	p.LogSink.Forward(LogRecord{Device: f.DeviceName, Opcode: string(frame.OpFlush), Level: LevelWarning, Message: "registry flushed"})
	p.Registry.Flush()
	p.forcePing = true
}

func handlePlay(p *Pipeline, f frame.Frame) {
	p.ack(f)

	name := string(f.Payload)
	play, ok := p.Plays[name]
	if !ok {
		p.logger.Warn("unknown play requested", "name", name)
		return
	}
	for _, action := range play.Actions {
		p.runPlayAction(action)
	}
}

func (p *Pipeline) runPlayAction(action config.PlayAction) {
	switch action.Action {
	case "voice", "announce":
		var args struct {
			Text string `json:"text"`
		}
		if len(action.Args) > 0 {
			if err := json.Unmarshal(action.Args, &args); err != nil {
				p.logger.Warn("malformed play action args", "action", action.Action, "error", err)
				return
			}
		}
		p.vocalise(args.Text)
	default:
		p.logger.Warn("unhandled play action", "action", action.Action)
	}
}

func handleBeginEnd(p *Pipeline, f frame.Frame) {
	p.ack(f)
	p.LogSink.Forward(LogRecord{Device: f.DeviceName, Opcode: string(f.Opcode), Level: LevelInfo, Message: "session boundary"})
}
