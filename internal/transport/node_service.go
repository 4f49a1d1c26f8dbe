package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/sekas/sekas/internal/group"
	"github.com/sekas/sekas/internal/replica"
	"github.com/sekas/sekas/pkg/sekaserr"
)

// GroupRegistry locates the Host serving a group on this node, the way the
// teacher's manager.Manager looks up in-memory state by id
// (cuemby-warren/pkg/manager/manager.go's node/task maps) generalized to
// groups instead of a single cluster-wide FSM.
type GroupRegistry interface {
	Group(groupID uint64) (*group.Host, bool)
}

// nodeDriver is the shard/group mutation surface a node applies locally
// when the root.GroupDriver built by NewRootGroupDriver sends it a shard
// move over the Node service.
type nodeDriver interface {
	CreateShardReplica(groupID, shardID uint64) error
	TombstoneShard(shardID uint64) error
	CreateGroupReplica(groupID, nodeID uint64) error
	RemoveGroupReplica(groupID, nodeID uint64) error
}

// NodeServer is the Node service's method set, used only as the interface
// grpc.Server.RegisterService checks the concrete *NodeService against
// (the role protoc-gen-go-grpc's generated XServer interface plays).
type NodeServer interface {
	Execute(context.Context, *ExecuteRequest) (*ExecuteResponse, error)
	Batch(context.Context, *BatchRequest) (*BatchResponse, error)
	Get(context.Context, *ExecuteGetRequest) (*GetResponse, error)
	CreateShardReplica(context.Context, *CreateShardReplicaRequest) (*Empty, error)
	TombstoneShard(context.Context, *TombstoneShardRequest) (*Empty, error)
	CreateGroupReplica(context.Context, *CreateGroupReplicaRequest) (*Empty, error)
	RemoveGroupReplica(context.Context, *RemoveGroupReplicaRequest) (*Empty, error)
}

// NodeService implements the Node gRPC service (spec §6: "execute, batch,
// shard moves"), dispatching each RPC to the Host for the named group.
type NodeService struct {
	registry GroupRegistry
	driver   nodeDriver
}

// NewNodeService constructs a NodeService over a group registry and the
// local shard/group mutation driver.
func NewNodeService(registry GroupRegistry, driver nodeDriver) *NodeService {
	return &NodeService{registry: registry, driver: driver}
}

func (s *NodeService) host(groupID uint64) (*group.Host, error) {
	h, ok := s.registry.Group(groupID)
	if !ok {
		return nil, sekaserr.GroupNotFound(groupID)
	}
	return h, nil
}

func (s *NodeService) leaseToken(h *group.Host, epoch uint64) (replica.LeaseToken, error) {
	token, ok := h.Replica().OnLeader()
	if !ok {
		return replica.LeaseToken{}, sekaserr.NotLeader(h.GroupID, epoch, "")
	}
	if epoch != 0 && token.Epoch != epoch {
		return replica.LeaseToken{}, sekaserr.NotLeader(h.GroupID, token.Epoch, "")
	}
	return token, nil
}

// Execute runs a single WriteOp against its group's current leader.
func (s *NodeService) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	h, err := s.host(req.GroupID)
	if err != nil {
		return nil, toStatus(err)
	}
	token, err := s.leaseToken(h, req.Epoch)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.applyOp(ctx, h, token, req.Op); err != nil {
		return nil, toStatus(err)
	}
	return &ExecuteResponse{}, nil
}

// Batch pipelines several WriteOps against the same group under one lease
// token check.
func (s *NodeService) Batch(ctx context.Context, req *BatchRequest) (*BatchResponse, error) {
	h, err := s.host(req.GroupID)
	if err != nil {
		return nil, toStatus(err)
	}
	token, err := s.leaseToken(h, req.Epoch)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &BatchResponse{ApplyIndexes: make([]uint64, 0, len(req.Ops))}
	for _, op := range req.Ops {
		if err := s.applyOp(ctx, h, token, op); err != nil {
			return nil, toStatus(err)
		}
		resp.ApplyIndexes = append(resp.ApplyIndexes, 0)
	}
	return resp, nil
}

func (s *NodeService) applyOp(ctx context.Context, h *group.Host, token replica.LeaseToken, op WriteOp) error {
	switch {
	case op.WriteIntent != nil:
		_, err := h.Execute(ctx, token, *op.WriteIntent)
		return err
	case op.CommitIntent != nil:
		return h.Commit(token, *op.CommitIntent)
	case op.ClearIntent != nil:
		return h.Clear(token, *op.ClearIntent)
	default:
		return sekaserr.InvalidArgument("empty WriteOp")
	}
}

// Get reads the most recent committed version of a key on the group that
// owns GroupID/ShardID.
func (s *NodeService) Get(ctx context.Context, req *ExecuteGetRequest) (*GetResponse, error) {
	h, err := s.host(req.GroupID)
	if err != nil {
		return nil, toStatus(err)
	}
	value, version, found, err := h.Get(req.Get.ShardID, req.Get.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetResponse{Value: value, Version: version, Found: found}, nil
}

// CreateShardReplica/TombstoneShard/CreateGroupReplica/RemoveGroupReplica
// implement the "shard moves" half of the Node service; the root.GroupDriver
// returned by NewRootGroupDriver (server.go) is the client side that sends
// them.
func (s *NodeService) CreateShardReplica(ctx context.Context, req *CreateShardReplicaRequest) (*Empty, error) {
	if err := s.driver.CreateShardReplica(req.GroupID, req.ShardID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *NodeService) TombstoneShard(ctx context.Context, req *TombstoneShardRequest) (*Empty, error) {
	if err := s.driver.TombstoneShard(req.ShardID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *NodeService) CreateGroupReplica(ctx context.Context, req *CreateGroupReplicaRequest) (*Empty, error) {
	if err := s.driver.CreateGroupReplica(req.GroupID, req.NodeID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *NodeService) RemoveGroupReplica(ctx context.Context, req *RemoveGroupReplicaRequest) (*Empty, error) {
	if err := s.driver.RemoveGroupReplica(req.GroupID, req.NodeID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

// nodeServiceDesc registers NodeService's unary RPCs with a grpc.Server,
// hand-written in place of a protoc-generated ServiceDesc (no .proto
// sources ship in the retrieval pack; see codec.go).
var nodeServiceDesc = grpc.ServiceDesc{
	ServiceName: "sekas.Node",
	HandlerType: (*NodeServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Execute", func() interface{} { return new(ExecuteRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*NodeService).Execute(ctx, req.(*ExecuteRequest))
			}),
		unaryMethod("Batch", func() interface{} { return new(BatchRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*NodeService).Batch(ctx, req.(*BatchRequest))
			}),
		unaryMethod("Get", func() interface{} { return new(ExecuteGetRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*NodeService).Get(ctx, req.(*ExecuteGetRequest))
			}),
		unaryMethod("CreateShardReplica", func() interface{} { return new(CreateShardReplicaRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*NodeService).CreateShardReplica(ctx, req.(*CreateShardReplicaRequest))
			}),
		unaryMethod("TombstoneShard", func() interface{} { return new(TombstoneShardRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*NodeService).TombstoneShard(ctx, req.(*TombstoneShardRequest))
			}),
		unaryMethod("CreateGroupReplica", func() interface{} { return new(CreateGroupReplicaRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*NodeService).CreateGroupReplica(ctx, req.(*CreateGroupReplicaRequest))
			}),
		unaryMethod("RemoveGroupReplica", func() interface{} { return new(RemoveGroupReplicaRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*NodeService).RemoveGroupReplica(ctx, req.(*RemoveGroupReplicaRequest))
			}),
	},
	Metadata: "sekas/node.proto",
}
