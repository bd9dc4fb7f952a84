package node

import (
	"context"
	"time"

	"github.com/ulala-x/playhouse/agent"
	"github.com/ulala-x/playhouse/codec"
	"github.com/ulala-x/playhouse/correlator"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/session"
)

// SessionBridge turns a decoded client frame into a RoutePacket addressed
// with the owning session's sid/accountId binding, then hands it to the
// locally hosted stage or forwards it through sender.Sender to whichever
// Play node hosts the target stage (spec 2: "Session node... bridging to
// the mesh").
type SessionBridge struct {
	self    nid.NID
	sdr     *sender.Sender
	stages  *StageHost
	timeout time.Duration
}

// NewSessionBridge builds a SessionBridge.
func NewSessionBridge(self nid.NID, sdr *sender.Sender, stages *StageHost, timeout time.Duration) *SessionBridge {
	return &SessionBridge{self: self, sdr: sdr, stages: stages, timeout: timeout}
}

// OnFrame returns the callback agent.ReadLoop drives for the connection
// backing sess/ag.
func (b *SessionBridge) OnFrame(sess *session.Session, ag *agent.Agent) func(*codec.ClientFrame) {
	return func(frame *codec.ClientFrame) {
		header := &route.Header{
			MsgId:     frame.MsgId,
			MsgSeq:    frame.MsgSeq,
			StageId:   int64(frame.StageId),
			Sid:       sess.Sid,
			AccountId: sess.AccountId(),
			From:      b.self,
		}

		if b.stages.HostsLocally(header.StageId) {
			b.stages.Dispatch(header.StageId, route.New(header, frame.Payload))
			return
		}

		ctx := context.Background()
		if header.MsgSeq == 0 {
			if err := b.sdr.SendToStage(ctx, header, frame.Payload, nil); err != nil {
				logger.Log.Warnf("node: bridge SendToStage sid=%d stageId=%d failed: %s", sess.Sid, header.StageId, err.Error())
			}
			return
		}

		onReply := correlator.OnReply(func(errorCode uint32, reply *route.Packet) {
			var payload []byte
			if reply != nil {
				payload = reply.MovePayload()
			}
			if err := ag.Respond(ctx, header.MsgSeq, errorCode, payload); err != nil {
				logger.Log.Warnf("node: bridge respond sid=%d msgSeq=%d failed: %s", sess.Sid, header.MsgSeq, err.Error())
			}
		})
		if err := b.sdr.RequestToStage(ctx, header, frame.Payload, b.timeout, onReply, nil); err != nil {
			ag.AnswerWithError(ctx, header.MsgSeq, errors.CodeOf(err), err)
		}
	}
}
