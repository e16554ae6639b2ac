// Package node is the protocol engine: the inbound TCP server, the outbound
// messenger with its retry policy, and the discovery/transfer operations built
// on both. A Node owns nothing but wiring; the Lamport clock, peer registry
// and shared directory are injected so the interactive layer and tests can
// reach them directly.
package node

import (
	"time"

	"go.uber.org/zap"

	"github.com/lsouza/peershare/pkg/clock"
	"github.com/lsouza/peershare/pkg/registry"
	"github.com/lsouza/peershare/pkg/share"
)

const (
	// DefaultSendTimeout bounds each outbound connect/read attempt.
	DefaultSendTimeout = 5 * time.Second
	// DefaultMaxRetries is the total attempt budget for transient failures.
	DefaultMaxRetries = 2
	// DefaultDepartureGrace is how long AnnounceDeparture lingers so BYE
	// messages drain before the process exits.
	DefaultDepartureGrace = 1 * time.Second
)

type Config struct {
	// ID is this node's "ip:port" identity and listen address. A port of 0
	// binds an ephemeral port and the resolved address becomes the identity.
	ID       string
	Registry *registry.Registry
	Clock    *clock.Clock
	Share    *share.Dir
	Logger   *zap.Logger

	// Zero values take the defaults above. Exposed for tests; the protocol
	// fixes them at 5s/2 in production.
	SendTimeout    time.Duration
	MaxRetries     int
	DepartureGrace time.Duration
}

func New(cfg Config) *Node {
	n := &Node{
		id:             cfg.ID,
		reg:            cfg.Registry,
		clk:            cfg.Clock,
		share:          cfg.Share,
		log:            cfg.Logger,
		sendTimeout:    cfg.SendTimeout,
		maxRetries:     cfg.MaxRetries,
		departureGrace: cfg.DepartureGrace,
	}
	if n.log == nil {
		n.log = zap.NewNop()
	}
	if n.sendTimeout <= 0 {
		n.sendTimeout = DefaultSendTimeout
	}
	if n.maxRetries <= 0 {
		n.maxRetries = DefaultMaxRetries
	}
	if n.departureGrace <= 0 {
		n.departureGrace = DefaultDepartureGrace
	}
	return n
}

// ID returns the node's identity. Stable once Start has resolved the listen
// address.
func (n *Node) ID() string {
	return n.id
}
