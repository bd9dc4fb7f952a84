package serialize

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// ProtoSerializer marshals application payloads that implement
// proto.Message via google.golang.org/protobuf, pitaya's other stock
// serializer backend.
type ProtoSerializer struct{}

// NewProtoSerializer builds a ProtoSerializer.
func NewProtoSerializer() *ProtoSerializer {
	return &ProtoSerializer{}
}

func (s *ProtoSerializer) Marshal(v interface{}) ([]byte, error) {
	pm, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("serialize: %T does not implement proto.Message", v)
	}
	return proto.Marshal(pm)
}

func (s *ProtoSerializer) Unmarshal(data []byte, v interface{}) error {
	pm, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("serialize: %T does not implement proto.Message", v)
	}
	return proto.Unmarshal(data, pm)
}

func (s *ProtoSerializer) GetName() string {
	return "protobuf"
}
