package device

import (
	"net"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Transition is the result of ObservePong, classifying how a PONG
// changed (or didn't) a device's registry entry.
type Transition int

const (
	TransitionNew Transition = iota
	TransitionRefreshed
	TransitionRecovered
)

// Registry tracks known peers by address. Intended for
// single-goroutine use from a main loop; the mutex exists only so a
// snapshot read (e.g. for a status report) can happen safely from
// another goroutine, not for concurrent mutation.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
	logger  Logger
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		devices: make(map[string]*Device),
		logger:  noopLogger{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// ObservePong records a PONG from addr, inserting a new record if none
// exists, or updating last-seen and clearing any unresponsive flag
// otherwise. The returned Transition tells the caller whether this is a
// brand-new device, a routine refresh, or a recovery from a previously
// reported timeout.
func (r *Registry) ObservePong(addr net.UDPAddr, name string, typ Type, state State, nowMonotonic int64) Transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := addrKey(addr)
	d, ok := r.devices[key]
	if !ok {
		r.devices[key] = &Device{
			Addr:              addr,
			Name:              name,
			Type:              typ,
			State:             state,
			LastSeenMonotonic: nowMonotonic,
		}
		r.logger.Info("new device observed", "addr", key, "name", name)
		return TransitionNew
	}

	d.Name = name
	d.Type = typ
	d.State = state
	d.LastSeenMonotonic = nowMonotonic

	if d.ReportedUnresponsive {
		d.ReportedUnresponsive = false
		r.logger.Info("device recovered", "addr", key, "name", name)
		return TransitionRecovered
	}
	return TransitionRefreshed
}

// MarkStale scans for devices whose last-seen is older than threshold
// (relative to nowMonotonic) and not already flagged, flags them
// reported_unresponsive, and returns the newly-flagged devices. Devices
// are never removed by this call; only FLUSH removes entries.
func (r *Registry) MarkStale(nowMonotonic int64, threshold int64) []Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []Device
	for _, d := range r.devices {
		if d.ReportedUnresponsive {
			continue
		}
		if nowMonotonic-d.LastSeenMonotonic > threshold {
			d.ReportedUnresponsive = true
			stale = append(stale, *d)
		}
	}
	return stale
}

// Flush drops all tracked records (triggered by an inbound FLUSH frame).
func (r *Registry) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = make(map[string]*Device)
}

// Get returns a copy of the record for addr, if any.
func (r *Registry) Get(addr net.UDPAddr) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[addrKey(addr)]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// List returns a snapshot of all tracked devices.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	return out
}

// Len reports the number of tracked devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
