package dispatch

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is the encoding.Codec name used on every call in this
// package, forced explicitly via grpc.ForceCodec rather than negotiated
// through content-subtype, so no .proto-generated codec is required.
const jsonCodecName = "json"

// jsonCodec is a minimal encoding.Codec backed by encoding/json. grpc-go
// is explicit that Codec is meant to be swappable for non-protobuf
// payloads; this is that swap.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
