package transport

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/sekas/sekas/internal/root"
	"github.com/sekas/sekas/pkg/log"
)

// Server hosts the Node and Root gRPC services on one listen address, the
// way cuemby-warren/pkg/api/server.go's Server wraps a single grpc.Server
// for the whole WarrenAPI surface. TLS is left to the caller via
// grpc.ServerOption (mTLS cert management is not part of Sekas's scope —
// the raft/client transport's wire security lives one layer below this
// package, same boundary cuemby-warren draws between api.Server and
// pkg/security).
type Server struct {
	grpc   *grpc.Server
	logger zerolog.Logger
}

// NewServer registers NodeService and RootService on a fresh grpc.Server
// using the hand-written JSON codec (see codec.go), plus any additional
// grpc.ServerOption the caller supplies (e.g. grpc.Creds for mTLS).
func NewServer(node *NodeService, root *RootService, opts ...grpc.ServerOption) *Server {
	opts = append(opts, grpc.ForceServerCodec(jsonCodec{}))
	s := grpc.NewServer(opts...)
	s.RegisterService(&nodeServiceDesc, node)
	s.RegisterService(&rootServiceDesc, root)
	return &Server{grpc: s, logger: log.WithComponent("transport")}
}

// Serve listens on addr and blocks serving RPCs until Stop is called.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	s.logger.Info().Str("addr", addr).Msg("grpc server listening")
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

// rootGroupDriver adapts one Node-service client connection into the
// internal/root.GroupDriver interface the background job state machines
// use to create/remove shard replicas and group replicas — the client-side
// half of the Node service's "shard moves" RPCs. A deployment with more
// than one node per group target needs a connection keyed by node address
// instead of the single client used here; that pool is cmd/sekas wiring,
// not a concern of this package.
type rootGroupDriver struct {
	client       *Client
	schemaDriver root.GroupDriver
}

// NewRootGroupDriver builds a root.GroupDriver that dispatches
// CreateShardReplica/TombstoneShard/CreateGroupReplica/RemoveGroupReplica
// over the Node service client, and delegates allocation/schema-deletion
// calls (which don't involve another node's Node service) to schemaDriver.
func NewRootGroupDriver(client *Client, schemaDriver root.GroupDriver) root.GroupDriver {
	return &rootGroupDriver{client: client, schemaDriver: schemaDriver}
}

func (d *rootGroupDriver) CreateShardReplica(groupID, shardID uint64) error {
	return d.client.CreateShardReplica(groupID, shardID)
}

func (d *rootGroupDriver) TombstoneShard(shardID uint64) error {
	return d.client.TombstoneShard(shardID)
}

func (d *rootGroupDriver) AllocateReplicaNode(groupID uint64) (uint64, error) {
	return d.schemaDriver.AllocateReplicaNode(groupID)
}

func (d *rootGroupDriver) CreateGroupReplica(groupID, nodeID uint64) error {
	return d.client.CreateGroupReplica(groupID, nodeID)
}

func (d *rootGroupDriver) RemoveGroupReplica(groupID, nodeID uint64) error {
	return d.client.RemoveGroupReplica(groupID, nodeID)
}

func (d *rootGroupDriver) DeleteCollectionSchema(collectionID uint64) error {
	return d.schemaDriver.DeleteCollectionSchema(collectionID)
}

func (d *rootGroupDriver) DeleteDatabaseSchema(databaseID uint64) error {
	return d.schemaDriver.DeleteDatabaseSchema(databaseID)
}
