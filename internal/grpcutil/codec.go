package grpcutil

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype both upstream services speak:
// application/grpc+json.
const CodecName = "json"

// jsonCodec carries plain Go structs over gRPC without generated stubs.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// JSON selects the JSON codec for a call or stream.
func JSON() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
