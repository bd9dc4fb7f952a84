package node

import (
	"context"

	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/registry"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/stage"
	"github.com/ulala-x/playhouse/transport"
)

// CreateStageMsgId is the well-known system msgId sender.Sender.CreateStage
// sends to the Play member it selected.
const CreateStageMsgId = "CreateStage"

// StageFactory builds a new stage's Handler/ActorHandler pair for
// stageType, the application's plug-in point for "what kind of stage is
// this" (spec 3's Stage.stageType).
type StageFactory func(stageType string) (stage.Handler, stage.ActorHandler)

// PlaySystemHandler builds the isSystem handler a Play node's Router uses
// to process CreateStage requests (spec 4.8: sender.CreateStage sends an
// isSystem packet carrying the new stageId and an OnCreate payload).
type PlaySystemHandler struct {
	self             nid.NID
	pool             *stage.Pool
	host             *StageHost
	dir              *registry.StageDirectory
	transport        transport.Transport
	factory          StageFactory
	defaultStageType string
}

// NewPlaySystemHandler builds a PlaySystemHandler.
func NewPlaySystemHandler(self nid.NID, pool *stage.Pool, host *StageHost, dir *registry.StageDirectory, t transport.Transport, factory StageFactory, defaultStageType string) *PlaySystemHandler {
	return &PlaySystemHandler{self: self, pool: pool, host: host, dir: dir, transport: t, factory: factory, defaultStageType: defaultStageType}
}

// Handle implements SystemHandler, dispatching on msgId.
func (h *PlaySystemHandler) Handle(p *route.Packet) {
	switch p.Header.MsgId {
	case CreateStageMsgId:
		h.handleCreateStage(p)
	default:
		logger.Log.Warnf("node: unknown system message %s", p.Header.MsgId)
		p.Dispose()
	}
}

func (h *PlaySystemHandler) handleCreateStage(p *route.Packet) {
	stageType := h.defaultStageType
	handler, actorHandler := h.factory(stageType)

	s := stage.New(p.Header.StageId, stageType, h.self, handler, actorHandler, h.pool, h.replySend)
	payload := p.MovePayload()
	if err := s.Create(context.Background(), payload); err != nil {
		h.replyError(p, errors.Internal(err))
		return
	}

	h.host.Add(s)
	h.dir.Announce(s.StageId, h.self)

	h.replyOK(p)
}

// replySend is the stage.New sendFn for every stage this handler creates,
// mirroring sender.Sender.ReplySend's logic: reply.Header.From already
// carries the original requester's NID (route.Header.ReplyHeader preserves
// it), so this always routes back through the transport to that node.
func (h *PlaySystemHandler) replySend(reply *route.Packet) error {
	target := reply.Header.From
	return h.transport.Send(target, reply.Header, reply.MovePayload())
}

func (h *PlaySystemHandler) replyOK(p *route.Packet) {
	if p.Header.MsgSeq == 0 {
		p.Dispose()
		return
	}
	reply := p.Header.ReplyHeader(0)
	if err := h.transport.Send(p.Header.From, reply, nil); err != nil {
		logger.Log.Warnf("node: CreateStage reply failed: %s", err.Error())
	}
	p.Dispose()
}

func (h *PlaySystemHandler) replyError(p *route.Packet, e *errors.Error) {
	if p.Header.MsgSeq == 0 {
		p.Dispose()
		return
	}
	reply := p.Header.ReplyHeader(e.Code)
	if err := h.transport.Send(p.Header.From, reply, nil); err != nil {
		logger.Log.Warnf("node: CreateStage error-reply failed: %s", err.Error())
	}
	p.Dispose()
}
