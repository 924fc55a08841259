// Package pwm drives a dedicated fan PWM controller over its own
// serial line: a single duty-cycle byte per write, reopening the port
// with a back-off after an error. It is wholly independent of the
// battery shunt's serial line.
package pwm

import (
	"time"

	"github.com/tarm/serial"

	"github.com/jordonsc/dosa-go/internal/doerr"
)

// ReconnectBackoff is the delay before a reopen attempt after a write
// or open error.
const ReconnectBackoff = 5 * time.Second

const baudRate = 9600

// Logger defines the logging interface used by Writer.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Writer sends fan duty-cycle bytes to the PWM controller. Not safe for
// concurrent use; intended for single-goroutine writes from the grid's
// main loop.
type Writer struct {
	devicePath string
	logger     Logger

	port      *serial.Port
	nextRetry time.Time
}

// Option configures a Writer at construction time.
type Option func(*Writer)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// New creates a Writer for devicePath (e.g. "/dev/ttyUSB0"). The port
// is not opened until the first Write call.
func New(devicePath string, opts ...Option) *Writer {
	w := &Writer{devicePath: devicePath, logger: noopLogger{}}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Close releases the underlying serial port, if open.
func (w *Writer) Close() error {
	if w.port == nil {
		return nil
	}
	port := w.port
	w.port = nil
	return port.Close()
}

// Write sends a single duty-cycle byte, opening the port first if
// needed. On any error the port is closed and the next attempt is
// deferred by ReconnectBackoff.
func (w *Writer) Write(b byte) error {
	if w.port == nil {
		if time.Now().Before(w.nextRetry) {
			return doerr.New(doerr.KindSerial, "pwm port waiting out reconnect back-off")
		}
		if err := w.open(); err != nil {
			w.nextRetry = time.Now().Add(ReconnectBackoff)
			return doerr.Wrap(doerr.KindSerial, "opening pwm port", err)
		}
	}
	if _, err := w.port.Write([]byte{b}); err != nil {
		w.Close()
		w.nextRetry = time.Now().Add(ReconnectBackoff)
		return doerr.Wrap(doerr.KindSerial, "writing fan duty cycle", err)
	}
	w.logger.Debug("fan duty cycle written", "value", b)
	return nil
}

func (w *Writer) open() error {
	port, err := serial.OpenPort(&serial.Config{Name: w.devicePath, Baud: baudRate, ReadTimeout: time.Second})
	if err != nil {
		return err
	}
	w.port = port
	return nil
}
