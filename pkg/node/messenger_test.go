package node

import (
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lsouza/peershare/pkg/clock"
	"github.com/lsouza/peershare/pkg/registry"
	"github.com/lsouza/peershare/pkg/share"
	"github.com/lsouza/peershare/pkg/wire"
)

// newClientNode builds a node that only sends; its server is never started.
func newClientNode(t *testing.T, timeout time.Duration, retries int) *Node {
	t.Helper()
	d, err := share.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(Config{
		ID:             "127.0.0.1:1",
		Registry:       registry.New(),
		Clock:          clock.New(),
		Share:          d,
		SendTimeout:    timeout,
		MaxRetries:     retries,
		DepartureGrace: time.Millisecond,
	})
}

// refusedAddr returns a loopback address that nothing is listening on.
func refusedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestSendConnectionRefusedIsDefinitive(t *testing.T) {
	n := newClientNode(t, 2*time.Second, 5)
	addr := refusedAddr(t)

	start := time.Now()
	_, err := n.Send(addr, wire.MsgHello, nil, false)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrPeerUnreachable) {
		t.Fatalf("err = %v, want ErrPeerUnreachable", err)
	}
	// Refused is not retried: with a 2s timeout and 5-attempt budget, a
	// retried path would take far longer than a single refused dial.
	if elapsed > time.Second {
		t.Fatalf("refused dial took %s, looks retried", elapsed)
	}
}

func TestSendTimeoutUsesFullRetryBudget(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// Accepts and reads but never replies, so the client's reply read
	// times out on every attempt.
	var accepted atomic.Int32
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			go io.Copy(io.Discard, c)
		}
	}()

	n := newClientNode(t, 200*time.Millisecond, 2)
	_, err = n.Send(ln.Addr().String(), wire.MsgLS, nil, true)
	if !errors.Is(err, ErrPeerUnreachable) {
		t.Fatalf("err = %v, want ErrPeerUnreachable", err)
	}

	waitFor(t, "both attempts to land", func() bool { return accepted.Load() >= 2 })
	time.Sleep(100 * time.Millisecond)
	if got := accepted.Load(); got != 2 {
		t.Fatalf("connection attempts = %d, want exactly 2", got)
	}
}

func TestSendStampsAndFormatsRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	got := make(chan []byte, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 4096)
		nr, _ := c.Read(buf)
		got <- buf[:nr]
	}()

	n := newClientNode(t, 2*time.Second, 2)
	if _, err := n.Send(ln.Addr().String(), wire.MsgHello, nil, false); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case raw := <-got:
		msg, err := wire.Parse(raw)
		if err != nil {
			t.Fatalf("server could not parse request %q: %v", raw, err)
		}
		if msg.Origin != n.ID() || msg.Type != wire.MsgHello {
			t.Fatalf("request = %+v, want HELLO from %s", msg, n.ID())
		}
		if msg.Clock != 1 {
			t.Fatalf("first outbound clock = %d, want 1", msg.Clock)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("request never arrived")
	}
}

func TestSendReturnsRawReply(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	canned := "10.0.0.2:9000 9 PEER_LIST 0\n"
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 4096)
		c.Read(buf)
		c.Write([]byte(canned))
	}()

	n := newClientNode(t, 2*time.Second, 2)
	raw, err := n.Send(ln.Addr().String(), wire.MsgGetPeers, nil, true)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(raw) != canned {
		t.Fatalf("reply = %q, want %q", raw, canned)
	}
}
