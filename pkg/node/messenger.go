package node

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lsouza/peershare/internal/telemetry"
	"github.com/lsouza/peershare/pkg/wire"
)

// ErrPeerUnreachable is returned when every attempt to reach a peer failed.
// Callers reflect it into the registry as an OFFLINE transition; it never
// propagates further than that.
var ErrPeerUnreachable = errors.New("node: peer unreachable")

// Send performs one request/reply exchange with a peer: dial with the send
// timeout, stamp the message with a fresh Tick, write it, and if expectReply
// read at most one reply frame. The raw reply bytes are returned; decoding is
// the caller's business.
//
// Failure policy: connection refused is definitive (the peer is conclusively
// not listening, no retry); a timeout is transient and retried within the
// attempt budget; any other I/O error is logged and also counts as a failed
// attempt. Each attempt uses a fresh connection, closed before the next.
func (n *Node) Send(peer string, typ wire.MsgType, args []string, expectReply bool) ([]byte, error) {
	start := time.Now()
	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		reply, err := n.attempt(peer, typ, args, expectReply)
		if err == nil {
			telemetry.MessagesSent.WithLabelValues(string(typ), "ok").Inc()
			telemetry.SendDuration.WithLabelValues(string(typ)).Observe(time.Since(start).Seconds())
			return reply, nil
		}

		if errors.Is(err, syscall.ECONNREFUSED) {
			n.log.Info("connection refused", zap.String("peer", peer), zap.String("type", string(typ)))
			telemetry.MessagesSent.WithLabelValues(string(typ), "refused").Inc()
			return nil, ErrPeerUnreachable
		}
		if isTimeout(err) {
			n.log.Info("timeout talking to peer",
				zap.String("peer", peer),
				zap.String("type", string(typ)),
				zap.Int("attempt", attempt),
				zap.Int("max", n.maxRetries))
		} else {
			n.log.Warn("send failed",
				zap.String("peer", peer),
				zap.String("type", string(typ)),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		if attempt < n.maxRetries {
			telemetry.SendRetries.Inc()
		}
	}

	telemetry.MessagesSent.WithLabelValues(string(typ), "failed").Inc()
	return nil, ErrPeerUnreachable
}

// attempt runs a single exchange over a fresh connection.
func (n *Node) attempt(peer string, typ wire.MsgType, args []string, expectReply bool) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", peer, n.sendTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", peer, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(n.sendTimeout))

	msg := wire.Message{
		Origin: n.id,
		Clock:  n.clk.Tick(),
		Type:   typ,
		Args:   args,
	}
	n.log.Info("sending message",
		zap.String("peer", peer),
		zap.String("type", string(typ)),
		zap.Uint64("clock", msg.Clock))

	if _, err := conn.Write(msg.Encode()); err != nil {
		return nil, fmt.Errorf("write to %s: %w", peer, err)
	}
	if !expectReply {
		return nil, nil
	}

	buf := make([]byte, readBufSize)
	nr, err := conn.Read(buf)
	if nr == 0 {
		return nil, fmt.Errorf("read reply from %s: %w", peer, err)
	}
	return buf[:nr], nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
