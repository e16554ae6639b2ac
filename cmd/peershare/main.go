package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lsouza/peershare/internal/telemetry"
	"github.com/lsouza/peershare/pkg/clock"
	"github.com/lsouza/peershare/pkg/discovery"
	"github.com/lsouza/peershare/pkg/node"
	"github.com/lsouza/peershare/pkg/registry"
	"github.com/lsouza/peershare/pkg/share"
)

func main() {
	etcdEndpoints := flag.String("etcd", "", "comma-separated etcd endpoints for peer discovery (optional)")
	metricsAddr := flag.String("metrics", "", "address for the prometheus /metrics endpoint (optional)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <ip:port> <neighbors-file> <shared-dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 3 {
		flag.Usage()
		os.Exit(1)
	}

	logger := zap.Must(zap.NewDevelopment())
	defer logger.Sync()

	// 1. Validate the whole configuration surface before any network
	// component starts; these are the only unrecoverable failures.
	id := flag.Arg(0)
	if _, portStr, err := net.SplitHostPort(id); err != nil {
		logger.Fatal("identity must be ip:port", zap.String("arg", id), zap.Error(err))
	} else if _, err := strconv.Atoi(portStr); err != nil {
		logger.Fatal("invalid port", zap.String("arg", id))
	}

	dir, err := share.Open(flag.Arg(2))
	if err != nil {
		logger.Fatal("shared directory unusable", zap.Error(err))
	}

	reg := registry.New()
	clk := clock.New()

	added, err := registry.LoadNeighbors(flag.Arg(1), id, reg)
	if err != nil {
		logger.Fatal("neighbor file unusable", zap.Error(err))
	}
	logger.Info("neighbors loaded", zap.Int("peers", added))

	// 2. Wire the node and expose its state to telemetry.
	n := node.New(node.Config{
		ID:       id,
		Registry: reg,
		Clock:    clk,
		Share:    dir,
		Logger:   logger,
	})
	telemetry.RegisterNodeGauges(clk.Now, reg.CountOnline)

	// 3. Optional etcd bootstrap: register this node and seed the registry
	// with whoever is already there.
	if *etcdEndpoints != "" {
		cli, err := discovery.NewClient(strings.Split(*etcdEndpoints, ","))
		if err != nil {
			logger.Fatal("etcd client", zap.Error(err))
		}
		defer cli.Close()

		peers, err := discovery.FetchPeers(context.Background(), cli)
		if err != nil {
			logger.Fatal("etcd bootstrap", zap.Error(err))
		}
		for _, p := range peers {
			if reg.SeedOffline(p, id) {
				logger.Info("peer discovered", zap.String("peer", p))
			}
		}

		leaseID, cancelKeepalive, err := discovery.RegisterNode(cli, id, 10)
		if err != nil {
			logger.Fatal("etcd registration", zap.Error(err))
		}
		defer func() {
			cancelKeepalive()
			_, _ = cli.Revoke(context.TODO(), leaseID)
		}()

		discovery.WatchPeers(context.Background(), cli, func(p string) {
			if reg.SeedOffline(p, id) {
				logger.Info("peer discovered", zap.String("peer", p))
			}
		})
	}

	// 4. Optional metrics endpoint.
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.MetricsHandler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	// 5. Start serving and hand control to the operator menu.
	if err := n.Start(); err != nil {
		logger.Fatal("server start failed", zap.Error(err))
	}
	runMenu(n, reg, dir)
}
