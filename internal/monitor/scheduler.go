package monitor

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jordonsc/dosa-go/internal/config"
	"github.com/jordonsc/dosa-go/internal/frame"
)

// receiveQuantum is the pacing tick Scheduler.Run uses to poll the
// transport between ticker checks.
const receiveQuantum = 100 * time.Millisecond

// heartbeatPayload is the fixed statsd counter line other fleet
// tooling keys its liveness dashboards on; the name must not change.
const heartbeatPayload = "dosa.secbot.heartbeat:1|c"

// Scheduler drives Pipeline with independent cadences: a PING
// broadcast, a stale-device sweep, and an optional statsd heartbeat.
type Scheduler struct {
	Pipeline      *Pipeline
	PingInterval  time.Duration
	DeviceTimeout time.Duration

	// HeartbeatInterval and HeartbeatAddr drive the independent
	// statsd heartbeat cadence. Heartbeat sending is
	// disabled when either is zero-valued.
	HeartbeatInterval time.Duration
	HeartbeatAddr     string

	logger        Logger
	heartbeatConn net.Conn
}

// SchedulerOption configures a Scheduler at construction time.
type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(l Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithHeartbeat configures the periodic statsd heartbeat datagram from
// the protocol config's logging.statsd endpoint. A zero interval or an
// endpoint with no configured server leaves the heartbeat disabled.
func WithHeartbeat(interval time.Duration, endpoint config.NetEndpoint) SchedulerOption {
	return func(s *Scheduler) {
		s.HeartbeatInterval = interval
		if endpoint.Server != "" {
			s.HeartbeatAddr = fmt.Sprintf("%s:%d", endpoint.Server, endpoint.Port)
		}
	}
}

// NewScheduler creates a Scheduler. pingInterval and deviceTimeout
// mirror the protocol config's monitor.ping / monitor.device-timeout
// fields.
func NewScheduler(p *Pipeline, pingInterval, deviceTimeout time.Duration, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		Pipeline:      p,
		PingInterval:  pingInterval,
		DeviceTimeout: deviceTimeout,
		logger:        noopLogger{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run is the cooperative main loop: it polls the
// transport at receiveQuantum resolution, fires the ping ticker and the
// stale-device sweep on their own cadences, and honours a FLUSH-forced
// immediate re-ping. It returns when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	pingTicker := time.NewTicker(s.PingInterval)
	defer pingTicker.Stop()

	sweepInterval := s.DeviceTimeout / 3
	if sweepInterval <= 0 {
		sweepInterval = time.Second
	}
	staleTicker := time.NewTicker(sweepInterval)
	defer staleTicker.Stop()

	// The heartbeat cadence is independent of the ping cadence and not
	// synchronised with it. A disabled heartbeat gets
	// a ticker that never fires rather than a nil channel special case.
	hbInterval := s.HeartbeatInterval
	if hbInterval <= 0 || s.HeartbeatAddr == "" {
		hbInterval = time.Duration(1<<62 - 1)
	}
	hbTicker := time.NewTicker(hbInterval)
	defer hbTicker.Stop()
	defer func() {
		if s.heartbeatConn != nil {
			s.heartbeatConn.Close()
		}
	}()

	s.sendPing()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pingTicker.C:
			s.sendPing()
		case <-staleTicker.C:
			s.sweepStale()
		case <-hbTicker.C:
			s.sendHeartbeat()
		default:
		}

		if f, ok := s.Pipeline.Transport.Receive(receiveQuantum); ok {
			s.Pipeline.Dispatch(f)
		}

		if s.Pipeline.ConsumePingRequest() {
			s.sendPing()
		}
	}
}

func (s *Scheduler) sendPing() {
	raw, err := frame.Encode(s.Pipeline.SelfName, frame.OpPing, nil)
	if err != nil {
		s.logger.Warn("failed to encode ping", "error", err)
		return
	}
	if err := s.Pipeline.Transport.Send(raw, nil); err != nil {
		s.logger.Warn("failed to send ping", "error", err)
	}
}

// sendHeartbeat emits the statsd counter datagram to the configured
// metrics endpoint. The UDP "connection" is dialled lazily on first use
// and kept for the lifetime of the loop; statsd is fire-and-forget, so
// a failed write just drops this beat and retries the dial next time.
func (s *Scheduler) sendHeartbeat() {
	if s.heartbeatConn == nil {
		conn, err := net.Dial("udp", s.HeartbeatAddr)
		if err != nil {
			s.logger.Warn("failed to dial statsd endpoint", "addr", s.HeartbeatAddr, "error", err)
			return
		}
		s.heartbeatConn = conn
	}
	if _, err := s.heartbeatConn.Write([]byte(heartbeatPayload)); err != nil {
		s.logger.Warn("failed to send heartbeat", "error", err)
		s.heartbeatConn.Close()
		s.heartbeatConn = nil
	}
}

func (s *Scheduler) sweepStale() {
	stale := s.Pipeline.Registry.MarkStale(time.Now().UnixNano(), s.DeviceTimeout.Nanoseconds())
	for _, d := range stale {
		s.Pipeline.LogSink.Forward(LogRecord{
			Device:  d.Name,
			Opcode:  string(frame.OpPong),
			Level:   LevelError,
			Message: fmt.Sprintf("%s has not responded within %s", d.Name, s.DeviceTimeout),
		})
		s.Pipeline.raiseAlert(AlertRecord{
			Device:   d.Name,
			Message:  "device not responding",
			Category: CategoryNetwork,
			Level:    LevelError,
		})
		s.Pipeline.vocalise(fmt.Sprintf("Alert, %s is not responding", d.Name))
	}
}
