// Package transport wires the Node and Root gRPC services (spec §6) on top
// of internal/replica and internal/root. The raft log transport itself is
// not part of this package: it is provided directly to internal/replica by
// raft.NewTCPTransport, the same "external collaborator" boundary spec.md
// draws around the consensus implementation.
//
// No .proto sources ship in the retrieval pack, so requests and responses
// are plain Go structs carried over a hand-written JSON codec registered
// with grpc's encoding registry, rather than protoc-generated stubs.
package transport

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

// jsonCodec implements encoding.Codec, letting grpc.Server/grpc.ClientConn
// frame plain Go structs instead of proto.Message values.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("transport: unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
