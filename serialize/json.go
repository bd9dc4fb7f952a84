package serialize

import jsoniter "github.com/json-iterator/go"

// JSONSerializer wraps json-iterator/go, one of pitaya's two stock
// serializer backends (the other being protobuf, see proto.go).
type JSONSerializer struct {
	api jsoniter.API
}

// NewJSONSerializer builds a JSONSerializer using the library's
// "compatible with encoding/json" config.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{api: jsoniter.ConfigCompatibleWithStandardLibrary}
}

func (s *JSONSerializer) Marshal(v interface{}) ([]byte, error) {
	return s.api.Marshal(v)
}

func (s *JSONSerializer) Unmarshal(data []byte, v interface{}) error {
	return s.api.Unmarshal(data, v)
}

func (s *JSONSerializer) GetName() string {
	return "json"
}
