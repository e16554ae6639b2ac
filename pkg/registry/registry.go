package registry

import (
	"sync"
)

// Status is the last-known liveness of a peer as observed by this node. It is
// best-effort: a peer is Online because an interaction succeeded recently, not
// because it is guaranteed reachable right now.
type Status uint8

const (
	Offline Status = iota
	Online
)

func (s Status) String() string {
	if s == Online {
		return "ONLINE"
	}
	return "OFFLINE"
}

// ParseStatus maps a wire status token back to a Status.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "ONLINE":
		return Online, true
	case "OFFLINE":
		return Offline, true
	}
	return Offline, false
}

// Record is the tracked state for one peer.
type Record struct {
	Status Status
	Clock  uint64
}

// Entry pairs a peer identity with its record for snapshot iteration.
type Entry struct {
	ID     string
	Record Record
}

// Registry is the node's view of its peers, keyed by "ip:port" identity.
// Peers are never deleted; a vanished peer goes Offline instead. Writes are
// last-writer-wins with no clock gating, so stale gossip can overwrite newer
// state; that asymmetry is accepted.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]Record
	order []string // insertion order, keeps SnapshotAll stable
}

func New() *Registry {
	return &Registry{peers: make(map[string]Record)}
}

// UpsertOnline records a successful interaction with a peer. A peer not yet
// known (or not Online) is inserted/flipped Online with the observed clock; an
// already-Online peer only gets its clock refreshed. Returns true when the
// record changed.
func (r *Registry) UpsertOnline(id string, observedClock uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.peers[id]
	if !ok {
		r.insertLocked(id, Record{Status: Online, Clock: observedClock})
		return true
	}
	if rec.Status == Online && rec.Clock == observedClock {
		return false
	}
	r.peers[id] = Record{Status: Online, Clock: observedClock}
	return true
}

// MarkOffline flips a known peer to Offline, leaving its clock untouched.
// Unknown or already-Offline peers are left alone. Returns true on a
// transition.
func (r *Registry) MarkOffline(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.peers[id]
	if !ok || rec.Status == Offline {
		return false
	}
	rec.Status = Offline
	r.peers[id] = rec
	return true
}

// Merge ingests gossip about a third-party peer. The node's own identity is
// never recorded. Returns true when the record was inserted or changed.
func (r *Registry) Merge(id, self string, status Status, clock uint64) bool {
	if id == self {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.peers[id]
	if !ok {
		r.insertLocked(id, Record{Status: status, Clock: clock})
		return true
	}
	if rec.Status == status && rec.Clock == clock {
		return false
	}
	r.peers[id] = Record{Status: status, Clock: clock}
	return true
}

// SeedOffline inserts a peer as {Offline, 0} if it is not already known.
// Used by the neighbor-file loader and etcd bootstrap.
func (r *Registry) SeedOffline(id, self string) bool {
	if id == self || id == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[id]; ok {
		return false
	}
	r.insertLocked(id, Record{Status: Offline, Clock: 0})
	return true
}

// Get returns the record for a peer, if known.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.peers[id]
	return rec, ok
}

// SnapshotOnline returns the identities currently Online. The copy is taken
// under the lock and then used lock-free, so callers can do network I/O while
// iterating.
func (r *Registry) SnapshotOnline() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, id := range r.order {
		if r.peers[id].Status == Online {
			out = append(out, id)
		}
	}
	return out
}

// SnapshotIDs returns every known identity in insertion order.
func (r *Registry) SnapshotIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SnapshotAll returns every (id, record) pair in insertion order. Repeated
// calls without intervening mutation return identical sequences; the menu's
// positional peer selection relies on that.
func (r *Registry) SnapshotAll() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, Entry{ID: id, Record: r.peers[id]})
	}
	return out
}

// Len returns the number of known peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// CountOnline returns how many peers are currently Online.
func (r *Registry) CountOnline() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rec := range r.peers {
		if rec.Status == Online {
			n++
		}
	}
	return n
}

func (r *Registry) insertLocked(id string, rec Record) {
	r.peers[id] = rec
	r.order = append(r.order, id)
}
