package transport

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultRPCTimeout = 10 * time.Second

// Client wraps one gRPC connection with typed per-RPC wrapper methods, the
// same shape as cuemby-warren/pkg/client/client.go's Client — a thin
// context.WithTimeout-per-call layer over a generated stub, except the
// "stub" here is a hand-written Invoke against the JSON codec (see
// codec.go) since no .proto-generated client exists.
type Client struct {
	conn *grpc.ClientConn
}

// Dial opens an insecure connection to addr (mTLS wiring is left to the
// caller via DialOption the way NewServer accepts extra grpc.ServerOptions;
// Sekas's core scope does not include certificate management).
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) invoke(method string, req, resp interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRPCTimeout)
	defer cancel()
	return c.conn.Invoke(ctx, method, req, resp)
}

// Node service wrapper methods.

func (c *Client) Execute(groupID, epoch uint64, op WriteOp) (ExecuteResponse, error) {
	var resp ExecuteResponse
	err := c.invoke("/sekas.Node/Execute", &ExecuteRequest{GroupID: groupID, Epoch: epoch, Op: op}, &resp)
	return resp, err
}

func (c *Client) Batch(groupID, epoch uint64, ops []WriteOp) (BatchResponse, error) {
	var resp BatchResponse
	err := c.invoke("/sekas.Node/Batch", &BatchRequest{GroupID: groupID, Epoch: epoch, Ops: ops}, &resp)
	return resp, err
}

func (c *Client) Get(groupID uint64, req GetRequest) (GetResponse, error) {
	var resp GetResponse
	err := c.invoke("/sekas.Node/Get", &ExecuteGetRequest{GroupID: groupID, Get: req}, &resp)
	return resp, err
}

func (c *Client) CreateShardReplica(groupID, shardID uint64) error {
	return c.invoke("/sekas.Node/CreateShardReplica", &CreateShardReplicaRequest{GroupID: groupID, ShardID: shardID}, &Empty{})
}

func (c *Client) TombstoneShard(shardID uint64) error {
	return c.invoke("/sekas.Node/TombstoneShard", &TombstoneShardRequest{ShardID: shardID}, &Empty{})
}

func (c *Client) CreateGroupReplica(groupID, nodeID uint64) error {
	return c.invoke("/sekas.Node/CreateGroupReplica", &CreateGroupReplicaRequest{GroupID: groupID, NodeID: nodeID}, &Empty{})
}

func (c *Client) RemoveGroupReplica(groupID, nodeID uint64) error {
	return c.invoke("/sekas.Node/RemoveGroupReplica", &RemoveGroupReplicaRequest{GroupID: groupID, NodeID: nodeID}, &Empty{})
}

// Root service wrapper methods.

func (c *Client) Join(addr string, capacity uint32) (JoinNodeResponse, error) {
	var resp JoinNodeResponse
	err := c.invoke("/sekas.Root/Join", &JoinNodeRequest{Addr: addr, Capacity: capacity}, &resp)
	return resp, err
}

func (c *Client) Heartbeat(nodeID uint64, piggybacks ...PiggybackKind) (HeartbeatResponse, error) {
	var resp HeartbeatResponse
	err := c.invoke("/sekas.Root/Heartbeat", &HeartbeatRequest{NodeID: nodeID, Piggybacks: piggybacks}, &resp)
	return resp, err
}

func (c *Client) Report(updates []GroupUpdate) error {
	return c.invoke("/sekas.Root/Report", &ReportRequest{GroupUpdates: updates}, &Empty{})
}

func (c *Client) AllocTxnID(count uint64) (uint64, error) {
	var resp AllocTxnIDResponse
	err := c.invoke("/sekas.Root/AllocTxnID", &AllocTxnIDRequest{Count: count}, &resp)
	return resp.StartVersion, err
}

func (c *Client) CordonNode(nodeID uint64) error {
	return c.invoke("/sekas.Root/CordonNode", &CordonNodeRequest{NodeID: nodeID}, &Empty{})
}

func (c *Client) UncordonNode(nodeID uint64) error {
	return c.invoke("/sekas.Root/UncordonNode", &UncordonNodeRequest{NodeID: nodeID}, &Empty{})
}

func (c *Client) BeginDrain(nodeID uint64) error {
	return c.invoke("/sekas.Root/BeginDrain", &BeginDrainRequest{NodeID: nodeID}, &Empty{})
}

func (c *Client) Info() (InfoResponse, error) {
	var resp InfoResponse
	err := c.invoke("/sekas.Root/Info", &InfoRequest{}, &resp)
	return resp, err
}

func (c *Client) Jobs() (JobsResponse, error) {
	var resp JobsResponse
	err := c.invoke("/sekas.Root/Jobs", &JobsRequest{}, &resp)
	return resp, err
}

// Watch opens the Watch server-streaming RPC and returns a channel of
// WatchEvents that closes when ctx is cancelled or the stream ends.
func (c *Client) Watch(ctx context.Context) (<-chan WatchEvent, error) {
	desc := &grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, "/sekas.Root/Watch")
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&WatchRequest{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	out := make(chan WatchEvent)
	go func() {
		defer close(out)
		for {
			var ev WatchEvent
			if err := stream.RecvMsg(&ev); err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
