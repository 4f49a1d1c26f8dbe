package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/hashicorp/raft"
	"github.com/spf13/cobra"

	"github.com/sekas/sekas/internal/engine"
	"github.com/sekas/sekas/internal/group"
	"github.com/sekas/sekas/internal/node"
	"github.com/sekas/sekas/internal/replica"
	"github.com/sekas/sekas/internal/root"
	"github.com/sekas/sekas/internal/schema"
	"github.com/sekas/sekas/internal/transport"
	"github.com/sekas/sekas/pkg/config"
	"github.com/sekas/sekas/pkg/log"
	"github.com/sekas/sekas/pkg/metrics"
)

// rootGroupID is the reserved group id for the cluster-metadata control
// plane (spec §4.5: "the root group is itself just another raft group").
const rootGroupID uint64 = 0

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a Sekas node",
	Long: `Start a Sekas node, either bootstrapping a new cluster (--init) or
joining one through an existing member's address (--join).`,
	RunE: runStart,
}

func init() {
	config.BindFlags(startCmd)
}

// raftAddr derives the raft transport's own listen address by incrementing
// the advertised API port by one, so a single --addr flag is enough to
// stand up both the gRPC transport.Server and the raft.NewTCPTransport
// underneath it without a second address flag spec §6 doesn't define.
func raftAddr(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid --addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("invalid --addr %q: %w", addr, err)
	}
	return net.JoinHostPort(host, strconv.Itoa(port+1)), nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadNodeConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Addr == "" {
		return fmt.Errorf("--addr is required")
	}
	if !cfg.Init && len(cfg.JoinList) == 0 {
		return fmt.Errorf("either --init or --join must be given")
	}

	logger := log.WithComponent("cmd")
	dataDir := filepath.Join(cfg.DB.DataDir, "root")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	rAddr, err := raftAddr(cfg.Addr)
	if err != nil {
		return err
	}
	tcpTransport, err := raft.NewTCPTransport(rAddr, nil, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return fmt.Errorf("start raft transport: %w", err)
	}

	eng, err := engine.Open(filepath.Join(dataDir, "engine.db"))
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	metrics.RegisterComponent("engine", true, "open")

	r, err := replica.Open(replica.Config{
		GroupID:   rootGroupID,
		LocalID:   raft.ServerID(cfg.Addr),
		DataDir:   dataDir,
		Transport: tcpTransport,
		Bootstrap: cfg.Init,
		Peers: []raft.Server{
			{ID: raft.ServerID(cfg.Addr), Address: raft.ServerAddress(rAddr)},
		},
	}, eng)
	if err != nil {
		return fmt.Errorf("open root replica: %w", err)
	}

	registry := newLocalRegistry()
	host := group.NewHost(rootGroupID, eng, r, 30*time.Second)
	registry.put(host)

	store := schema.NewStore(eng, r)

	var nodeID uint64
	if cfg.Init {
		nodeID = 1
	} else {
		// --join: retry the Root service's Join RPC with exponential
		// backoff until one of the join addresses admits us. The
		// raft-level voter-add for the root group itself is a known gap
		// (see DESIGN.md's Open Questions) — this node starts serving
		// Node-service RPCs for groups it is assigned, but does not yet
		// become a root-group voter automatically.
		joinResp, joinErr := node.TryJoinCluster(context.Background(), cfg.Addr, cfg.JoinList, cfg.CPUNums)
		if joinErr != nil {
			return fmt.Errorf("join cluster through %v: %w", cfg.JoinList, joinErr)
		}
		nodeID = joinResp.Node.ID
		logger.Info().Uint64("node_id", nodeID).Msg("joined cluster")
	}

	driver := &localNodeDriver{registry: registry, rootGID: rootGroupID}
	rt := root.NewRoot(root.Config{
		LocalAddr: cfg.Addr,
		CPUNums:   cfg.CPUNums,
	}, nodeID, r, store, store)

	nodeSvc := transport.NewNodeService(registry, driver)
	rootSvc := transport.NewRootService(rt)
	server := transport.NewServer(nodeSvc, rootSvc)

	metrics.RegisterComponent("raft", true, "started")
	metrics.RegisterComponent("transport", false, "starting")

	rootStop := make(chan struct{})
	go rt.Run(rootStop)

	serveErrCh := make(chan error, 1)
	go func() {
		if err := server.Serve(cfg.Addr); err != nil {
			serveErrCh <- err
		}
	}()
	metrics.RegisterComponent("transport", true, "ready")
	logger.Info().Str("addr", cfg.Addr).Bool("init", cfg.Init).Msg("sekas node started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serveErrCh:
		logger.Error().Err(err).Msg("transport server stopped")
	}

	close(rootStop)
	server.Stop()
	return eng.Close()
}
