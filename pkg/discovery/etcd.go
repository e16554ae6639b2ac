// Package discovery provides optional etcd-backed peer bootstrap: a node
// registers its own identity under a lease and seeds its registry from the
// identities already present, as an alternative to a static neighbor file.
// Peers found here start OFFLINE like neighbor-file entries; liveness is
// still established by the protocol itself, not by etcd.
package discovery

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const nodePrefix = "/peershare/nodes/"

func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
}

// RegisterNode puts this node's identity under a TTL lease and keeps the
// lease alive in the background. The returned cancel stops the keepalive;
// callers should also revoke the lease on shutdown so the entry disappears
// promptly.
func RegisterNode(cli *clientv3.Client, id string, ttl int64) (clientv3.LeaseID, context.CancelFunc, error) {
	lease, err := cli.Grant(context.TODO(), ttl)
	if err != nil {
		return 0, nil, fmt.Errorf("grant lease: %w", err)
	}
	key := nodePrefix + id
	if _, err := cli.Put(context.TODO(), key, id, clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, fmt.Errorf("register %s: %w", key, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := cli.KeepAlive(ctx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, fmt.Errorf("keepalive: %w", err)
	}
	go func() {
		for range ch {
			// drain keepalive acks until cancel
		}
	}()

	return lease.ID, cancel, nil
}

// FetchPeers returns every identity currently registered.
func FetchPeers(ctx context.Context, cli *clientv3.Client) ([]string, error) {
	resp, err := cli.Get(ctx, nodePrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("fetch peers: %w", err)
	}
	peers := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		peers = append(peers, string(kv.Value))
	}
	return peers, nil
}

// WatchPeers streams newly registered identities to fn until ctx is done.
// Deletions are ignored: the registry never removes peers, it only observes
// them going offline through the protocol.
func WatchPeers(ctx context.Context, cli *clientv3.Client, fn func(id string)) {
	go func() {
		for resp := range cli.Watch(ctx, nodePrefix, clientv3.WithPrefix()) {
			for _, ev := range resp.Events {
				if ev.Type == mvccpb.PUT {
					fn(string(ev.Kv.Value))
				}
			}
		}
	}()
}
