package registry

import (
	"sync/atomic"
	"time"

	"github.com/ulala-x/playhouse/nid"
)

// ServerInfoState mirrors the wire-level state enum of a ServerInfo
// heartbeat packet (spec 6).
type ServerInfoState int

const (
	ServerInfoRunning ServerInfoState = iota
	ServerInfoDisabled
)

// ServerInfo is the heartbeat/registry payload of spec 6: "A ServerInfo
// record {nid, endpoint, serverType, serviceId, state, weight, timestamp},
// exchanged as the payload of a well-known system message."
type ServerInfo struct {
	Nid         nid.NID
	Endpoint    string
	ServiceType string
	ServiceId   uint16
	State       ServerInfoState
	Weight      int
	Timestamp   time.Time
}

func atomicAddMod(counter *uint64, mod uint64) uint64 {
	next := atomic.AddUint64(counter, 1)
	return (next - 1) % mod
}
