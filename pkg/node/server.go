package node

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lsouza/peershare/internal/telemetry"
	"github.com/lsouza/peershare/pkg/clock"
	"github.com/lsouza/peershare/pkg/registry"
	"github.com/lsouza/peershare/pkg/share"
	"github.com/lsouza/peershare/pkg/wire"
)

const (
	// readBufSize is the fixed single-read frame limit. A request larger
	// than this is truncated and fails decode; inherited protocol
	// limitation, kept for wire compatibility.
	readBufSize = 4096

	// acceptPoll bounds each Accept so the shutdown flag is checked
	// between iterations instead of blocking indefinitely.
	acceptPoll = 1 * time.Second
)

type Node struct {
	id    string
	reg   *registry.Registry
	clk   *clock.Clock
	share *share.Dir
	log   *zap.Logger

	sendTimeout    time.Duration
	maxRetries     int
	departureGrace time.Duration

	ln       *net.TCPListener
	shutdown atomic.Bool
	handlers sync.WaitGroup
	accept   sync.WaitGroup
}

// Start binds the listener and launches the accept loop. Handlers run one
// goroutine per accepted connection; nothing caps their fan-in.
func (n *Node) Start() error {
	laddr, err := net.ResolveTCPAddr("tcp", n.id)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}
	ln, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	n.ln = ln
	if laddr.Port == 0 {
		n.id = ln.Addr().String()
	}
	n.log.Info("server listening", zap.String("addr", n.id))

	n.accept.Add(1)
	go n.acceptLoop()
	return nil
}

// Stop flips the shutdown flag, closes the listener and waits for the accept
// loop and every in-flight handler to finish. Handlers are never cancelled,
// only drained.
func (n *Node) Stop() {
	if !n.shutdown.CompareAndSwap(false, true) {
		return
	}
	if n.ln != nil {
		n.ln.Close()
	}
	n.accept.Wait()
	n.handlers.Wait()
	n.log.Info("server stopped")
}

func (n *Node) acceptLoop() {
	defer n.accept.Done()
	for !n.shutdown.Load() {
		n.ln.SetDeadline(time.Now().Add(acceptPoll))
		conn, err := n.ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) || n.shutdown.Load() {
				return
			}
			n.log.Warn("accept failed", zap.Error(err))
			continue
		}
		n.handlers.Add(1)
		go func() {
			defer n.handlers.Done()
			n.handleConn(conn)
		}()
	}
}

// handleConn serves one request/reply exchange. A failure here affects only
// this connection; the protocol has no error reply, so the peer just sees
// silence.
func (n *Node) handleConn(conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("handler panic", zap.Any("panic", r), zap.String("remote", conn.RemoteAddr().String()))
		}
	}()

	buf := make([]byte, readBufSize)
	nr, err := conn.Read(buf)
	if nr == 0 {
		if err != nil {
			n.log.Debug("read failed", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
		}
		return
	}

	msg, err := wire.Parse(buf[:nr])
	if err != nil {
		telemetry.MessagesDropped.Inc()
		n.log.Debug("dropping undecodable message", zap.Error(err), zap.String("remote", conn.RemoteAddr().String()))
		return
	}

	// Lamport merge before any handler logic, so replies stamped below are
	// causally after the request.
	n.clk.Observe(msg.Clock)
	telemetry.MessagesReceived.WithLabelValues(string(msg.Type)).Inc()
	n.log.Info("message received",
		zap.String("from", msg.Origin),
		zap.String("type", string(msg.Type)),
		zap.Uint64("clock", msg.Clock))

	n.dispatch(conn, msg)
}
