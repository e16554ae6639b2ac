package node

import (
	"net"

	"go.uber.org/zap"

	"github.com/lsouza/peershare/pkg/wire"
)

func (n *Node) dispatch(conn net.Conn, msg wire.Message) {
	switch msg.Type {
	case wire.MsgHello:
		n.handleHello(msg)
	case wire.MsgBye:
		n.handleBye(msg)
	case wire.MsgGetPeers:
		n.handleGetPeers(conn, msg)
	case wire.MsgLS:
		n.handleLS(conn, msg)
	case wire.MsgDL:
		n.handleDL(conn, msg)
	default:
		// PEER_LIST, LS_LIST and FILE are replies; one arriving as a
		// request has nowhere to go.
		n.log.Debug("ignoring reply-type request", zap.String("type", string(msg.Type)), zap.String("from", msg.Origin))
	}
}

// HELLO: fire-and-forget liveness probe. No reply.
func (n *Node) handleHello(msg wire.Message) {
	if n.reg.UpsertOnline(msg.Origin, msg.Clock) {
		n.log.Info("peer online", zap.String("peer", msg.Origin), zap.Uint64("clock", msg.Clock))
	}
}

// BYE: departure notice. No reply.
func (n *Node) handleBye(msg wire.Message) {
	if n.reg.MarkOffline(msg.Origin) {
		n.log.Info("peer offline", zap.String("peer", msg.Origin))
	}
}

// GET_PEERS: answer with every known peer except the asker. The asker's own
// registry entry is left alone here; it refreshes through its own gossip
// exchange, not ours.
func (n *Node) handleGetPeers(conn net.Conn, msg wire.Message) {
	all := n.reg.SnapshotAll()
	entries := make([]wire.PeerEntry, 0, len(all))
	for _, e := range all {
		if e.ID == msg.Origin {
			continue
		}
		entries = append(entries, wire.PeerEntry{
			ID:     e.ID,
			Status: e.Record.Status.String(),
			Clock:  e.Record.Clock,
		})
	}
	n.reply(conn, msg.Origin, wire.Message{
		Origin: n.id,
		Clock:  n.clk.Tick(),
		Type:   wire.MsgPeerList,
		Args:   wire.EncodePeerList(entries),
	})
}

// LS: report the shared directory, read fresh. A listing failure is logged
// and the request gets no reply.
func (n *Node) handleLS(conn net.Conn, msg wire.Message) {
	files, err := n.share.List()
	if err != nil {
		n.log.Error("shared directory listing failed", zap.Error(err))
		return
	}
	entries := make([]wire.FileEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, wire.FileEntry{Name: f.Name, Size: f.Size})
	}
	n.reply(conn, msg.Origin, wire.Message{
		Origin: n.id,
		Clock:  n.clk.Tick(),
		Type:   wire.MsgLSList,
		Args:   wire.EncodeFileList(entries),
	})
}

// DL: send the whole file base64-encoded in one FILE reply. The offset and
// length arguments are accepted but unused. A missing file gets no reply.
func (n *Node) handleDL(conn net.Conn, msg wire.Message) {
	if len(msg.Args) < 1 {
		n.log.Debug("DL without filename", zap.String("from", msg.Origin))
		return
	}
	name := msg.Args[0]
	if !n.share.Exists(name) {
		n.log.Info("requested file not found", zap.String("file", name), zap.String("from", msg.Origin))
		return
	}
	data, err := n.share.Read(name)
	if err != nil {
		n.log.Error("shared file read failed", zap.String("file", name), zap.Error(err))
		return
	}
	n.reply(conn, msg.Origin, wire.Message{
		Origin: n.id,
		Clock:  n.clk.Tick(),
		Type:   wire.MsgFile,
		Args:   wire.EncodeFilePayload(name, data),
	})
}

func (n *Node) reply(conn net.Conn, to string, msg wire.Message) {
	if _, err := conn.Write(msg.Encode()); err != nil {
		n.log.Error("reply failed", zap.String("to", to), zap.String("type", string(msg.Type)), zap.Error(err))
	}
}

// markOnlinePreservingClock flips a peer Online without changing its stored
// clock, for interactions that carry no timestamp back (a fire-and-forget
// HELLO that succeeded).
func (n *Node) markOnlinePreservingClock(peer string) {
	rec, _ := n.reg.Get(peer)
	if n.reg.UpsertOnline(peer, rec.Clock) {
		n.log.Info("peer online", zap.String("peer", peer))
	}
}

func (n *Node) markOffline(peer string) {
	if n.reg.MarkOffline(peer) {
		n.log.Info("peer offline", zap.String("peer", peer))
	}
}
