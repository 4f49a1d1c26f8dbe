package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/sekas/sekas/internal/root"
)

// RootServer is the Root service's method set, used only as the interface
// grpc.Server.RegisterService checks the concrete *RootService against.
type RootServer interface {
	Join(context.Context, *JoinNodeRequest) (*JoinNodeResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	Report(context.Context, *ReportRequest) (*Empty, error)
	AllocTxnID(context.Context, *AllocTxnIDRequest) (*AllocTxnIDResponse, error)
	CordonNode(context.Context, *CordonNodeRequest) (*Empty, error)
	UncordonNode(context.Context, *UncordonNodeRequest) (*Empty, error)
	BeginDrain(context.Context, *BeginDrainRequest) (*Empty, error)
	Info(context.Context, *InfoRequest) (*InfoResponse, error)
	Jobs(context.Context, *JobsRequest) (*JobsResponse, error)
}

// RootService implements the Root gRPC service (spec §6: "join,
// alloc_replica, alloc_txn_id, report, watch, admin"), dispatching each RPC
// to the local Root control plane. A node that does not currently hold the
// root lease still registers this service (the teacher always registers
// the full WarrenAPIServer regardless of raft role) and answers
// NotRootLeader for leader-only calls.
type RootService struct {
	root *root.Root
}

// NewRootService wraps a Root control plane as a gRPC service target.
func NewRootService(r *root.Root) *RootService {
	return &RootService{root: r}
}

// Join assigns the calling node an id and joins it to the cluster.
func (s *RootService) Join(ctx context.Context, req *JoinNodeRequest) (*JoinNodeResponse, error) {
	n, err := s.root.Lifecycle().Join(req.Addr, req.Capacity)
	if err != nil {
		return nil, toStatus(err)
	}
	return &JoinNodeResponse{Node: n}, nil
}

// Heartbeat records the calling node's liveness and returns whichever
// piggyback payloads were requested.
func (s *RootService) Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error) {
	if err := s.root.Heartbeat(req.NodeID); err != nil {
		return nil, toStatus(err)
	}

	resp := &HeartbeatResponse{}
	for _, pb := range req.Piggybacks {
		switch pb {
		case CollectStats:
			deltas := map[uint64]int64{}
			nodes, err := s.root.Schema().ListNodes()
			if err == nil {
				for _, n := range nodes {
					if d := s.root.Stats().GetNodeDelta(n.ID); d != 0 {
						deltas[n.ID] = d
					}
				}
			}
			resp.Stats = &OngoingStats{NodeDeltas: deltas}
		case CollectScheduleState:
			tasks, err := s.root.SchedulerHandle().Plan()
			if err == nil {
				resp.ScheduleState = toWireTasks(tasks)
			}
		case SyncRoot, CollectGroupDetail, CollectMovingShardState:
			// No dedicated projection yet; SyncRoot is implicit (every
			// response comes from whichever node currently answers as
			// root), and per-group/per-shard-move detail is served by the
			// Node service directly once a caller needs it.
		}
	}
	return resp, nil
}

func toWireTasks(tasks []root.Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = Task{
			Kind:    t.Kind.String(),
			GroupID: t.GroupID,
			NodeID:  t.NodeID,
			SrcNode: t.SrcNode,
			ShardID: t.ShardID,
		}
	}
	return out
}

// Report merges a batch of GroupUpdates into OngoingStats.
func (s *RootService) Report(ctx context.Context, req *ReportRequest) (*Empty, error) {
	updates := make([]root.GroupReport, len(req.GroupUpdates))
	for i, u := range req.GroupUpdates {
		updates[i] = root.GroupReport{
			GroupID:  u.GroupID,
			Epoch:    u.Epoch,
			Incoming: u.Incoming,
			Outgoing: u.Outgoing,
		}
	}
	if err := s.root.Report(updates); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

// AllocTxnID reserves a contiguous range of transaction ids.
func (s *RootService) AllocTxnID(ctx context.Context, req *AllocTxnIDRequest) (*AllocTxnIDResponse, error) {
	start, err := s.root.AllocTxnID(req.Count)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AllocTxnIDResponse{StartVersion: start}, nil
}

// CordonNode/UncordonNode/BeginDrain are the node lifecycle admin RPCs.
func (s *RootService) CordonNode(ctx context.Context, req *CordonNodeRequest) (*Empty, error) {
	if err := s.root.Lifecycle().CordonNode(req.NodeID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *RootService) UncordonNode(ctx context.Context, req *UncordonNodeRequest) (*Empty, error) {
	if err := s.root.Lifecycle().UncordonNode(req.NodeID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *RootService) BeginDrain(ctx context.Context, req *BeginDrainRequest) (*Empty, error) {
	if err := s.root.Lifecycle().BeginDrain(req.NodeID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

// Info backs the `sekas info` admin command.
func (s *RootService) Info(ctx context.Context, req *InfoRequest) (*InfoResponse, error) {
	nodes, err := s.root.Schema().ListNodes()
	if err != nil {
		return nil, toStatus(err)
	}
	return &InfoResponse{Nodes: nodes, RootLeader: s.root.NodeID()}, nil
}

// Jobs backs the `sekas jobs` admin command.
func (s *RootService) Jobs(ctx context.Context, req *JobsRequest) (*JobsResponse, error) {
	jobs, err := s.root.Schema().ListOngoing()
	if err != nil {
		return nil, toStatus(err)
	}
	return &JobsResponse{OngoingCount: len(jobs)}, nil
}

// rootServiceDesc registers RootService's unary RPCs with a grpc.Server.
// Watch is not among this ServiceDesc's Methods: it is a
// server-streaming RPC (see watch_stream.go) and grpc.ServiceDesc lists
// those separately under Streams.
var rootServiceDesc = grpc.ServiceDesc{
	ServiceName: "sekas.Root",
	HandlerType: (*RootServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Join", func() interface{} { return new(JoinNodeRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*RootService).Join(ctx, req.(*JoinNodeRequest))
			}),
		unaryMethod("Heartbeat", func() interface{} { return new(HeartbeatRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*RootService).Heartbeat(ctx, req.(*HeartbeatRequest))
			}),
		unaryMethod("Report", func() interface{} { return new(ReportRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*RootService).Report(ctx, req.(*ReportRequest))
			}),
		unaryMethod("AllocTxnID", func() interface{} { return new(AllocTxnIDRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*RootService).AllocTxnID(ctx, req.(*AllocTxnIDRequest))
			}),
		unaryMethod("CordonNode", func() interface{} { return new(CordonNodeRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*RootService).CordonNode(ctx, req.(*CordonNodeRequest))
			}),
		unaryMethod("UncordonNode", func() interface{} { return new(UncordonNodeRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*RootService).UncordonNode(ctx, req.(*UncordonNodeRequest))
			}),
		unaryMethod("BeginDrain", func() interface{} { return new(BeginDrainRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*RootService).BeginDrain(ctx, req.(*BeginDrainRequest))
			}),
		unaryMethod("Info", func() interface{} { return new(InfoRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*RootService).Info(ctx, req.(*InfoRequest))
			}),
		unaryMethod("Jobs", func() interface{} { return new(JobsRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(*RootService).Jobs(ctx, req.(*JobsRequest))
			}),
	},
	Streams:  []grpc.StreamDesc{watchStreamDesc},
	Metadata: "sekas/root.proto",
}
