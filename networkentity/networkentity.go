// Package networkentity declares the live-connection contract agent.Agent
// implements: the thing that actually owns a net.Conn, as distinct from
// session.Session which survives reconnection.
package networkentity

import (
	"context"
	"net"

	"github.com/ulala-x/playhouse/route"
)

// NetworkEntity is the low-level network instance behind a Session.
type NetworkEntity interface {
	// Push writes an unsolicited server frame to the client (msgSeq 0).
	Push(ctx context.Context, msgId string, payload []byte) error
	// Respond writes a reply frame for the request identified by msgSeq.
	Respond(ctx context.Context, msgSeq uint16, errorCode uint32, payload []byte) error
	Close() error
	Kick(ctx context.Context) error
	RemoteAddr() net.Addr
	// RequestToStage forwards a client packet into the mesh and blocks for
	// the stage's reply, used by the agent when a client message arrives
	// for a stage the connection's Session is not yet bound to.
	RequestToStage(ctx context.Context, stageId int64, packet *route.Packet) (*route.Packet, error)
}
