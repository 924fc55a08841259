// Package shunt reads a precision battery-bus current/voltage shunt
// over a serial line, parsing the "KEY\tVALUE\n" line protocol the
// device emits and reconnecting on error with a back-off.
//
// Reads are non-blocking: each Poll call consumes only whatever is
// already buffered, so the grid's main loop is never stalled by an
// idle line.
package shunt

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/jordonsc/dosa-go/internal/doerr"
)

// ReconnectBackoff is the delay before a reopen attempt after a read
// or open error.
const ReconnectBackoff = 5 * time.Second

const baudRate = 19200

// Logger defines the logging interface used by Reader.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Line is one decoded shunt reading: one key and its numeric value, per
// the "KEY\tVALUE\n" wire format (V, SOC, P, I, TTG).
type Line struct {
	Key   string
	Value float64
}

// Reader polls a serial port for shunt lines, reconnecting on error.
// Not safe for concurrent use; intended for single-goroutine polling
// from the grid's main loop.
type Reader struct {
	devicePath string
	logger     Logger

	port      *serial.Port
	buf       bytes.Buffer
	readBuf   [256]byte
	nextRetry time.Time
}

// Option configures a Reader at construction time.
type Option func(*Reader)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// New creates a Reader for devicePath (e.g. "/dev/ttyUSB1"). The port
// is not opened until the first Poll call.
func New(devicePath string, opts ...Option) *Reader {
	r := &Reader{devicePath: devicePath, logger: noopLogger{}}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Close releases the underlying serial port, if open.
func (r *Reader) Close() error {
	if r.port == nil {
		return nil
	}
	port := r.port
	r.port = nil
	return port.Close()
}

// Poll reads and returns any complete lines currently available.
// ReadTimeout on the port is set to a handful of milliseconds, so a
// single Read call never blocks the scheduler for long even when the
// line is idle. Returns no error on a normal "nothing to read yet"
// or "waiting out the reconnect back-off" outcome; errors are only
// returned, and the port closed, when a read actually fails.
func (r *Reader) Poll() ([]Line, error) {
	if r.port == nil {
		if time.Now().Before(r.nextRetry) {
			return nil, nil
		}
		if err := r.open(); err != nil {
			r.nextRetry = time.Now().Add(ReconnectBackoff)
			return nil, doerr.Wrap(doerr.KindSerial, "opening shunt port", err)
		}
	}

	n, err := r.port.Read(r.readBuf[:])
	if err != nil {
		r.Close()
		r.nextRetry = time.Now().Add(ReconnectBackoff)
		return nil, doerr.Wrap(doerr.KindSerial, "reading shunt port", err)
	}
	if n > 0 {
		r.buf.Write(r.readBuf[:n])
	}

	var lines []Line
	for {
		raw, err := r.buf.ReadString('\n')
		if err != nil {
			// Incomplete line: put it back for the next Poll to complete.
			r.buf.Reset()
			r.buf.WriteString(raw)
			break
		}
		if line, ok := parseLine(raw); ok {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (r *Reader) open() error {
	port, err := serial.OpenPort(&serial.Config{Name: r.devicePath, Baud: baudRate, ReadTimeout: 5 * time.Millisecond})
	if err != nil {
		return err
	}
	r.port = port
	r.buf.Reset()
	return nil
}

func parseLine(raw string) (Line, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Line{}, false
	}
	key, val, ok := strings.Cut(raw, "\t")
	if !ok {
		return Line{}, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return Line{}, false
	}
	return Line{Key: key, Value: v}, true
}
