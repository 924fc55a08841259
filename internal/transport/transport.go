// Package transport implements the DOSA dual-socket multicast UDP
// transport: a multicast socket for receiving group traffic and a
// unicast socket for sending and for receiving directed replies (acks,
// config responses).
package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/jordonsc/dosa-go/internal/doerr"
	"github.com/jordonsc/dosa-go/internal/frame"
)

// MulticastGroup and Port are the DOSA wire defaults.
const (
	MulticastGroup = "239.1.1.69"
	Port           = 6901
	ttl            = 32

	// pollTimeout is the short per-socket read deadline used while
	// polling both sockets in Receive; the scheduler's pacing quantum
	// is the overall timeout its callers pass to Receive.
	pollTimeout = 10 * time.Millisecond
)

// Logger defines the logging interface used for swallowed decode errors.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Transport owns the two UDP sockets and the buffered re-dispatch queue
// fed by frames received while SendWithAck is waiting for an ack.
type Transport struct {
	mcastConn *net.UDPConn
	ucastConn *net.UDPConn
	groupAddr *net.UDPAddr
	logger    Logger

	// pending holds frames received but not yet claimed by a caller of
	// Receive or SendWithAck, preserving arrival order.
	pending []frame.Frame
}

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// New binds the multicast and unicast sockets on Port and joins
// MulticastGroup. Callers must call Close when done.
func New(opts ...Option) (*Transport, error) {
	t := &Transport{logger: noopLogger{}}
	for _, o := range opts {
		o(t)
	}

	groupAddr := &net.UDPAddr{IP: net.ParseIP(MulticastGroup), Port: Port}
	t.groupAddr = groupAddr

	mcastConn, err := net.ListenMulticastUDP("udp4", nil, groupAddr)
	if err != nil {
		return nil, doerr.Wrap(doerr.KindTransport, "joining multicast group", err)
	}
	t.mcastConn = mcastConn

	// The multicast socket already holds Port, so the unicast socket
	// needs SO_REUSEADDR to bind the same port alongside it.
	lc := net.ListenConfig{Control: func(network, address string, c syscall.RawConn) error {
		var serr error
		if err := c.Control(func(fd uintptr) {
			serr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		}); err != nil {
			return err
		}
		return serr
	}}
	pconn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", Port))
	if err != nil {
		mcastConn.Close()
		return nil, doerr.Wrap(doerr.KindTransport, "binding unicast socket", err)
	}
	ucastConn := pconn.(*net.UDPConn)
	if pc := ipv4.NewPacketConn(ucastConn); pc != nil {
		// The TTL of 32 governs multicast-destined egress, not unicast
		// replies, so it is IP_MULTICAST_TTL we set here, not the plain
		// unicast IP_TTL the OS default already covers.
		_ = pc.SetMulticastTTL(ttl)
	}
	t.ucastConn = ucastConn

	return t, nil
}

// Close releases both sockets.
func (t *Transport) Close() error {
	var err error
	if e := t.mcastConn.Close(); e != nil {
		err = e
	}
	if e := t.ucastConn.Close(); e != nil {
		err = e
	}
	return err
}

// Send emits raw frame bytes to target, or to the multicast group when
// target is nil.
func (t *Transport) Send(raw []byte, target *net.UDPAddr) error {
	dest := target
	if dest == nil {
		dest = t.groupAddr
	}
	if _, err := t.ucastConn.WriteToUDP(raw, dest); err != nil {
		return doerr.Wrap(doerr.KindTransport, "send", err)
	}
	return nil
}

// SendAck is a convenience wrapper emitting an `ack` frame whose payload
// is the acknowledged msg_id bytes.
func (t *Transport) SendAck(deviceName string, msgID [2]byte, target *net.UDPAddr) error {
	raw, err := frame.Encode(deviceName, frame.OpAck, msgID[:])
	if err != nil {
		return err
	}
	return t.Send(raw, target)
}

// SendWithAck emits raw (which must already encode msgID in its
// prefix) to target, then waits up to deadline for an `ack` frame, from
// any source, whose payload's first two bytes equal msgID. Frames arriving
// during the wait that are not the awaited ack are buffered for a
// subsequent Receive/SendWithAck call rather than dropped.
func (t *Transport) SendWithAck(raw []byte, msgID [2]byte, target *net.UDPAddr, deadline time.Duration) (acked bool, err error) {
	if err := t.Send(raw, target); err != nil {
		return false, err
	}

	deadlineAt := time.Now().Add(deadline)
	for time.Now().Before(deadlineAt) {
		remaining := time.Until(deadlineAt)
		f, ok := t.receiveOne(remaining)
		if !ok {
			continue
		}
		if f.Opcode == frame.OpAck && len(f.Payload) >= 2 && f.Payload[0] == msgID[0] && f.Payload[1] == msgID[1] {
			return true, nil
		}
		t.pending = append(t.pending, f)
	}
	return false, nil
}

// Receive returns the next available frame, draining buffered pending
// frames first, then polling both sockets in a loop until timeout
// elapses. Decode errors are swallowed (logged at Debug) and polling
// continues; a true timeout returns (Frame{}, false).
func (t *Transport) Receive(timeout time.Duration) (frame.Frame, bool) {
	if len(t.pending) > 0 {
		f := t.pending[0]
		t.pending = t.pending[1:]
		return f, true
	}

	deadlineAt := time.Now().Add(timeout)
	for time.Now().Before(deadlineAt) {
		remaining := time.Until(deadlineAt)
		if f, ok := t.receiveOne(remaining); ok {
			return f, true
		}
	}
	return frame.Frame{}, false
}

// receiveOne polls both sockets once each with a short per-socket
// deadline, returning the first successfully decoded frame. Ordering
// between the two sockets is unspecified.
func (t *Transport) receiveOne(budget time.Duration) (frame.Frame, bool) {
	quantum := pollTimeout
	if budget < quantum {
		quantum = budget
	}
	if quantum <= 0 {
		return frame.Frame{}, false
	}

	for _, conn := range []*net.UDPConn{t.mcastConn, t.ucastConn} {
		_ = conn.SetReadDeadline(time.Now().Add(quantum))
		buf := make([]byte, 2048)
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue // timeout is normal; other errors are treated as timeouts too
		}
		f, err := frame.Decode(buf[:n], src)
		if err != nil {
			t.logger.Debug("dropping undecodable packet", "source", src, "error", err)
			continue
		}
		return f, true
	}
	return frame.Frame{}, false
}
