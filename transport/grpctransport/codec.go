package grpctransport

import (
	"github.com/dogmatiq/courier/internal/x/cborx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Codec is the gRPC codec used by the courier services. Messages are encoded
// as CBOR, in the same form used by the persistent data-stores.
var Codec encoding.Codec = codec{}

// ServerOption returns the option that must be passed to grpc.NewServer() for
// a server that hosts the courier services.
func ServerOption() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec)
}

type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	return cborx.Marshal(v)
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	return cborx.Unmarshal(data, v)
}

func (codec) Name() string {
	return "cbor"
}
