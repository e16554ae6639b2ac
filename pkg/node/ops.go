package node

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lsouza/peershare/pkg/registry"
	"github.com/lsouza/peershare/pkg/wire"
)

// RemoteFile is one aggregated search result. The same filename reported by
// two peers yields two entries; results are never deduplicated, because the
// operator picks which peer to download from.
type RemoteFile struct {
	Name string
	Size int64
	Peer string
}

// RefreshPeers runs a GET_PEERS exchange against every known peer and merges
// the returned lists into the registry. Each responder ends up Online, each
// unreachable peer Offline. Peers are contacted sequentially, one connection
// each.
func (n *Node) RefreshPeers() {
	for _, peer := range n.reg.SnapshotIDs() {
		raw, err := n.Send(peer, wire.MsgGetPeers, nil, true)
		if err != nil {
			n.markOffline(peer)
			continue
		}

		msg, err := wire.Parse(raw)
		if err != nil || msg.Type != wire.MsgPeerList {
			n.log.Warn("invalid GET_PEERS reply", zap.String("peer", peer), zap.Error(err))
			continue
		}
		entries, err := wire.ParsePeerList(msg.Args)
		if err != nil {
			n.log.Warn("invalid PEER_LIST payload", zap.String("peer", peer), zap.Error(err))
			continue
		}

		for _, e := range entries {
			status, ok := registry.ParseStatus(e.Status)
			if !ok {
				continue
			}
			if n.reg.Merge(e.ID, n.id, status, e.Clock) {
				n.log.Info("peer record merged",
					zap.String("peer", e.ID),
					zap.String("status", status.String()),
					zap.Uint64("clock", e.Clock))
			}
		}
		if n.reg.UpsertOnline(peer, msg.Clock) {
			n.log.Info("peer online", zap.String("peer", peer))
		}
	}
}

// Probe sends a single HELLO to one peer and reports whether it answered the
// connection. The registry reflects the outcome either way.
func (n *Node) Probe(peer string) bool {
	if _, err := n.Send(peer, wire.MsgHello, nil, false); err != nil {
		n.markOffline(peer)
		return false
	}
	n.markOnlinePreservingClock(peer)
	return true
}

// AnnounceDeparture fires BYE at every Online peer, then lingers briefly so
// the notices drain before the caller tears the process down.
func (n *Node) AnnounceDeparture() {
	for _, peer := range n.reg.SnapshotOnline() {
		if _, err := n.Send(peer, wire.MsgBye, nil, false); err != nil {
			n.log.Debug("departure notice undelivered", zap.String("peer", peer))
		}
	}
	time.Sleep(n.departureGrace)
}

// SearchFiles asks every Online peer for its shared listing and aggregates
// the results with their source peers.
func (n *Node) SearchFiles() []RemoteFile {
	var found []RemoteFile
	for _, peer := range n.reg.SnapshotOnline() {
		raw, err := n.Send(peer, wire.MsgLS, nil, true)
		if err != nil {
			n.markOffline(peer)
			continue
		}

		msg, err := wire.Parse(raw)
		if err != nil || msg.Type != wire.MsgLSList {
			n.log.Warn("invalid LS reply", zap.String("peer", peer), zap.Error(err))
			continue
		}
		files, err := wire.ParseFileList(msg.Args)
		if err != nil {
			n.log.Warn("invalid LS_LIST payload", zap.String("peer", peer), zap.Error(err))
			continue
		}

		for _, f := range files {
			found = append(found, RemoteFile{Name: f.Name, Size: f.Size, Peer: peer})
		}
		if n.reg.UpsertOnline(peer, msg.Clock) {
			n.log.Info("peer online", zap.String("peer", peer))
		}
	}
	return found
}

// Download fetches one search result from its source peer and writes it into
// the shared directory under the reported name, overwriting any existing
// file.
func (n *Node) Download(f RemoteFile) error {
	raw, err := n.Send(f.Peer, wire.MsgDL, []string{f.Name, "0", "0"}, true)
	if err != nil {
		n.markOffline(f.Peer)
		return fmt.Errorf("download %s from %s: %w", f.Name, f.Peer, err)
	}

	msg, err := wire.Parse(raw)
	if err != nil {
		return fmt.Errorf("download %s from %s: %w", f.Name, f.Peer, err)
	}
	if msg.Type != wire.MsgFile {
		return fmt.Errorf("download %s from %s: unexpected reply %s", f.Name, f.Peer, msg.Type)
	}
	name, data, err := wire.ParseFilePayload(msg.Args)
	if err != nil {
		return fmt.Errorf("download %s from %s: %w", f.Name, f.Peer, err)
	}
	if err := n.share.Write(name, data); err != nil {
		return fmt.Errorf("download %s from %s: %w", f.Name, f.Peer, err)
	}

	n.log.Info("download finished",
		zap.String("file", name),
		zap.Int("bytes", len(data)),
		zap.String("peer", f.Peer))
	return nil
}
