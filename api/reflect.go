package api

import (
	"fmt"
	"reflect"

	"github.com/golang/protobuf/proto"
	"github.com/jhump/protoreflect/desc"
)

// MessageNameFor returns the fully qualified protobuf message name for a
// proto.Message. Register does not call it, so a handler's declared msgId
// is not checked against its payload type at registration time.
func MessageNameFor(msg proto.Message) (string, error) {
	md, err := desc.LoadMessageDescriptorForMessage(msg)
	if err != nil {
		return "", fmt.Errorf("api: resolve message descriptor for %s: %w", reflect.TypeOf(msg), err)
	}
	return md.GetFullyQualifiedName(), nil
}
