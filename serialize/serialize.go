// Package serialize defines pluggable application-payload serialization,
// mirroring pitaya's serialize.Serializer interface (constructed via
// serializer.GetName() in agent.go's newAgent, and invoked generically by
// util.SerializeOrRaw in agent.go's getMessageFromPendingMessage).
package serialize

// Serializer marshals/unmarshals application payloads carried inside a
// RoutePacket or client wire frame.
type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
	GetName() string
}
