// Package notify provides the default, stderr/log-backed sink
// implementations for the monitor and grid packages' narrow
// AlertSink/LogSink/VoiceSink interfaces. Cloud notification and TTS
// playback backends live outside this repository; this package is the
// "stderr" endpoint kind those interfaces leave room for, not a
// stand-in for the others.
package notify

import (
	"github.com/jordonsc/dosa-go/internal/grid"
	"github.com/jordonsc/dosa-go/internal/monitor"
)

// Logger is the subset of logging.Logger this package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LogWriter forwards monitor.LogRecord values to a Logger at a level
// matching the record's own severity.
type LogWriter struct {
	Logger Logger
}

func (w LogWriter) Forward(rec monitor.LogRecord) {
	args := []any{"device", rec.Device, "opcode", rec.Opcode}
	switch rec.Level {
	case monitor.LevelDebug:
		w.Logger.Debug(rec.Message, args...)
	case monitor.LevelWarning:
		w.Logger.Warn(rec.Message, args...)
	case monitor.LevelError, monitor.LevelCritical:
		w.Logger.Error(rec.Message, args...)
	default:
		w.Logger.Info(rec.Message, args...)
	}
}

// AlertWriter logs monitor.AlertRecord values as structured warnings.
// It never returns an error: a logger write cannot meaningfully fail
// the way a webhook POST can, so Pipeline's "never re-alert on sink
// failure" rule is moot here.
type AlertWriter struct {
	Logger Logger
}

func (w AlertWriter) Publish(rec monitor.AlertRecord) error {
	w.Logger.Warn(rec.Message,
		"device", rec.Device,
		"category", rec.Category,
		"description", rec.Description,
		"tags", rec.Tags,
	)
	return nil
}

// VoiceWriter logs what would have been spoken, in place of a real TTS
// backend.
type VoiceWriter struct {
	Logger Logger
}

func (w VoiceWriter) Play(text string, wait bool) error {
	w.Logger.Info("voice", "text", text, "wait", wait)
	return nil
}

// GridLogWriter forwards grid.LogSink free-text lines to a Logger.
type GridLogWriter struct {
	Logger Logger
}

func (w GridLogWriter) Forward(message string) {
	w.Logger.Info(message)
}

// GridAlertWriter logs grid.Alert values as structured warnings or
// errors depending on severity.
type GridAlertWriter struct {
	Logger Logger
}

func (w GridAlertWriter) Publish(a grid.Alert) error {
	args := []any{"category", a.Category}
	switch a.Level {
	case grid.AlertCritical, grid.AlertError:
		w.Logger.Error(a.Message, args...)
	default:
		w.Logger.Warn(a.Message, args...)
	}
	return nil
}

// GridVoiceWriter logs what would have been spoken, in place of a real
// TTS backend.
type GridVoiceWriter struct {
	Logger Logger
}

func (w GridVoiceWriter) Play(text string, wait bool) error {
	w.Logger.Info("voice", "text", text, "wait", wait)
	return nil
}
