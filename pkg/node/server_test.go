package node

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lsouza/peershare/pkg/clock"
	"github.com/lsouza/peershare/pkg/registry"
	"github.com/lsouza/peershare/pkg/share"
	"github.com/lsouza/peershare/pkg/wire"
)

// newTestNode starts a real node on an ephemeral loopback port with the given
// shared files and short network budgets.
func newTestNode(t *testing.T, files map[string][]byte) *Node {
	t.Helper()

	dir := t.TempDir()
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	d, err := share.Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	n := New(Config{
		ID:             "127.0.0.1:0",
		Registry:       registry.New(),
		Clock:          clock.New(),
		Share:          d,
		SendTimeout:    2 * time.Second,
		MaxRetries:     2,
		DepartureGrace: 50 * time.Millisecond,
	})
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(n.Stop)
	return n
}

// rawExchange writes one request line to a node and returns the reply bytes,
// or nil if the server closed the connection without answering.
func rawExchange(t *testing.T, addr, line string) []byte {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := conn.Write([]byte(line)); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 4096)
	nr, _ := conn.Read(buf)
	if nr == 0 {
		return nil
	}
	return buf[:nr]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHelloMarksOriginOnline(t *testing.T) {
	n := newTestNode(t, nil)

	rawExchange(t, n.ID(), "10.0.0.7:9000 41 HELLO\n")

	waitFor(t, "HELLO origin to be registered", func() bool {
		rec, ok := n.reg.Get("10.0.0.7:9000")
		return ok && rec.Status == registry.Online && rec.Clock == 41
	})
}

func TestByeMarksOriginOffline(t *testing.T) {
	n := newTestNode(t, nil)
	n.reg.UpsertOnline("10.0.0.7:9000", 5)

	rawExchange(t, n.ID(), "10.0.0.7:9000 50 BYE\n")

	waitFor(t, "BYE origin to go offline", func() bool {
		rec, _ := n.reg.Get("10.0.0.7:9000")
		return rec.Status == registry.Offline && rec.Clock == 5
	})
}

func TestGetPeersExcludesOrigin(t *testing.T) {
	n := newTestNode(t, nil)
	n.reg.UpsertOnline("10.0.0.7:9000", 3) // the asker
	n.reg.UpsertOnline("10.0.0.8:9000", 4)
	n.reg.SeedOffline("10.0.0.9:9000", n.ID())

	raw := rawExchange(t, n.ID(), "10.0.0.7:9000 10 GET_PEERS\n")
	if raw == nil {
		t.Fatalf("no PEER_LIST reply")
	}
	msg, err := wire.Parse(raw)
	if err != nil {
		t.Fatalf("Parse reply: %v", err)
	}
	if msg.Type != wire.MsgPeerList || msg.Origin != n.ID() {
		t.Fatalf("reply = %+v, want PEER_LIST from %s", msg, n.ID())
	}

	entries, err := wire.ParsePeerList(msg.Args)
	if err != nil {
		t.Fatalf("ParsePeerList: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want 2 (origin excluded)", entries)
	}
	for _, e := range entries {
		if e.ID == "10.0.0.7:9000" {
			t.Fatalf("origin leaked into its own peer list: %+v", entries)
		}
	}
}

func TestObserveAdvancesClockBeforeReply(t *testing.T) {
	n := newTestNode(t, nil)

	raw := rawExchange(t, n.ID(), "10.0.0.7:9000 100 GET_PEERS\n")
	msg, err := wire.Parse(raw)
	if err != nil {
		t.Fatalf("Parse reply: %v", err)
	}
	// Observe lifts the clock past 100, Tick stamps the reply above that.
	if msg.Clock <= 101 {
		t.Fatalf("reply clock = %d, want > 101 after observing 100", msg.Clock)
	}
}

func TestLSListsSharedDirectory(t *testing.T) {
	n := newTestNode(t, map[string][]byte{
		"a.txt": []byte("aaaa"),
		"b.bin": {1, 2},
	})

	raw := rawExchange(t, n.ID(), "10.0.0.7:9000 1 LS\n")
	msg, err := wire.Parse(raw)
	if err != nil || msg.Type != wire.MsgLSList {
		t.Fatalf("reply = %+v, %v; want LS_LIST", msg, err)
	}
	files, err := wire.ParseFileList(msg.Args)
	if err != nil {
		t.Fatalf("ParseFileList: %v", err)
	}
	if len(files) != 2 || files[0].Name != "a.txt" || files[0].Size != 4 || files[1].Name != "b.bin" || files[1].Size != 2 {
		t.Fatalf("files = %+v", files)
	}
}

func TestDLReturnsWholeFile(t *testing.T) {
	content := []byte("the quick brown fox")
	n := newTestNode(t, map[string][]byte{"fox.txt": content})

	raw := rawExchange(t, n.ID(), "10.0.0.7:9000 1 DL fox.txt 0 0\n")
	msg, err := wire.Parse(raw)
	if err != nil || msg.Type != wire.MsgFile {
		t.Fatalf("reply = %+v, %v; want FILE", msg, err)
	}
	name, data, err := wire.ParseFilePayload(msg.Args)
	if err != nil {
		t.Fatalf("ParseFilePayload: %v", err)
	}
	if name != "fox.txt" || string(data) != string(content) {
		t.Fatalf("got %q = %q, want fox.txt = %q", name, data, content)
	}
}

func TestDLMissingFileGetsNoReply(t *testing.T) {
	n := newTestNode(t, nil)

	if raw := rawExchange(t, n.ID(), "10.0.0.7:9000 1 DL nope.txt 0 0\n"); raw != nil {
		t.Fatalf("unexpected reply for missing file: %q", raw)
	}
}

func TestMalformedRequestDroppedServerSurvives(t *testing.T) {
	n := newTestNode(t, nil)

	for _, bad := range []string{
		"\n",
		"only two\n",
		"10.0.0.7:9000 notanint HELLO\n",
		"10.0.0.7:9000 5 NONSENSE\n",
	} {
		if raw := rawExchange(t, n.ID(), bad); raw != nil {
			t.Fatalf("malformed request %q got a reply: %q", bad, raw)
		}
	}

	// Server must still be available after the garbage.
	rawExchange(t, n.ID(), "10.0.0.7:9000 7 HELLO\n")
	waitFor(t, "server to keep serving after malformed input", func() bool {
		rec, ok := n.reg.Get("10.0.0.7:9000")
		return ok && rec.Status == registry.Online
	})
}

func TestStopClosesListener(t *testing.T) {
	n := newTestNode(t, nil)
	addr := n.ID()
	n.Stop()

	if _, err := net.DialTimeout("tcp", addr, 500*time.Millisecond); err == nil {
		t.Fatalf("listener still accepting after Stop")
	}
	// Double Stop is a no-op.
	n.Stop()
}
