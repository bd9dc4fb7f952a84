// Package node implements the per-node RoutePacket router of spec 4.4: the
// single dispatch loop that reads from the transport and applies the six
// routing rules, in order, to every inbound packet.
package node

import (
	"context"

	"github.com/ulala-x/playhouse/api"
	"github.com/ulala-x/playhouse/correlator"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/registry"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/stage"
	"github.com/ulala-x/playhouse/transport"
)

// SystemHandler processes isSystem packets (e.g. CreateStage requests
// targeting this Play node, heartbeat broadcasts).
type SystemHandler func(*route.Packet)

// Router is the node-level dispatcher described by spec 4.4's rule table.
type Router struct {
	transport transport.Transport
	corr      *correlator.Correlator
	sessions  *session.Pool
	stages    *StageHost
	stageDir  *registry.StageDirectory
	dispatcher *api.Dispatcher
	system    SystemHandler
	isSession bool
}

// Config bundles every collaborator the router dispatches to.
type Config struct {
	Transport      transport.Transport
	Correlator     *correlator.Correlator
	Sessions       *session.Pool
	Stages         *StageHost
	StageDirectory *registry.StageDirectory
	ApiDispatcher  *api.Dispatcher
	SystemHandler  SystemHandler
	IsSessionNode  bool
}

// New builds a Router.
func New(cfg Config) *Router {
	return &Router{
		transport:  cfg.Transport,
		corr:       cfg.Correlator,
		sessions:   cfg.Sessions,
		stages:     cfg.Stages,
		stageDir:   cfg.StageDirectory,
		dispatcher: cfg.ApiDispatcher,
		system:     cfg.SystemHandler,
		isSession:  cfg.IsSessionNode,
	}
}

// Run drains the transport's receive loop until it reports ShuttingDown.
func (r *Router) Run() {
	for {
		env, err := r.transport.Receive()
		if err != nil {
			logger.Log.Infof("node: router stopping: %s", err.Error())
			return
		}
		r.route(route.New(env.Header, env.Payload))
	}
}

// route applies spec 4.4's rule table, first match wins.
func (r *Router) route(p *route.Packet) {
	h := p.Header
	logger.RouteDebugf(h.MsgId, "node: routing msgId=%s stageId=%d sid=%d isReply=%t", h.MsgId, h.StageId, h.Sid, h.IsReply)

	switch {
	case h.IsReply:
		r.corr.Complete(p)

	case h.IsSystem:
		if r.system != nil {
			r.system(p)
		} else {
			p.Dispose()
		}

	case h.IsToClient && r.isSession:
		r.forwardToClient(p)

	case h.StageId != 0 && r.stages.HostsLocally(h.StageId):
		r.stages.Dispatch(h.StageId, p)

	case h.StageId != 0:
		r.forwardToStageHost(p)

	default:
		r.dispatcher.Dispatch(p)
	}
}

func (r *Router) forwardToClient(p *route.Packet) {
	sess, ok := r.sessions.BySid(p.Header.Sid)
	if !ok {
		r.reject(p, errors.NotRouted(nil))
		return
	}
	payload := p.MovePayload()
	if err := sess.Entity().Push(context.Background(), p.Header.MsgId, payload); err != nil {
		logger.Log.Warnf("node: forward to client sid=%d failed: %s", p.Header.Sid, err.Error())
	}
	p.Dispose()
}

func (r *Router) forwardToStageHost(p *route.Packet) {
	host, ok := r.stageDir.LocateStage(p.Header.StageId)
	if !ok {
		r.reject(p, errors.NotRouted(nil))
		return
	}
	if err := r.transport.Send(host, p.Header, p.MovePayload()); err != nil {
		r.reject(p, err)
		return
	}
	p.Dispose()
}

// reject answers an unroutable packet with err (spec 4.4: "Unknown/duplicate
// routings are reported with NotRouted (error code surfaced back to sender
// if the packet was a request)"). A request gets an actual reply sent back
// to its origin NID; a one-way send is just logged and dropped.
func (r *Router) reject(p *route.Packet, err error) {
	if p.Header.MsgSeq > 0 && !p.Header.IsReply {
		reply := p.Header.ReplyHeader(errors.CodeOf(err))
		if sendErr := r.transport.Send(p.Header.From, reply, nil); sendErr != nil {
			logger.Log.Warnf("node: reject reply to %s failed: %s", p.Header.From.String(), sendErr.Error())
		}
	} else {
		logger.Log.Warnf("node: dropping unrouted packet msgId=%s stageId=%d: %s", p.Header.MsgId, p.Header.StageId, err.Error())
	}
	p.Dispose()
}

// StageHost is the subset of a Play node's stage table the router needs:
// whether stageId is hosted locally, and how to hand it a dispatch entry.
type StageHost struct {
	stages map[int64]*stage.Stage
}

// NewStageHost builds an empty local stage table.
func NewStageHost() *StageHost {
	return &StageHost{stages: make(map[int64]*stage.Stage)}
}

// Add registers a locally hosted stage.
func (h *StageHost) Add(s *stage.Stage) {
	h.stages[s.StageId] = s
}

// Remove unregisters a stage (called on CloseStage).
func (h *StageHost) Remove(stageId int64) {
	delete(h.stages, stageId)
}

// HostsLocally reports whether stageId is hosted on this node.
func (h *StageHost) HostsLocally(stageId int64) bool {
	_, ok := h.stages[stageId]
	return ok
}

// Dispatch hands packet to the locally hosted stage identified by stageId,
// binding it to the actor addressed by header.AccountId if any.
func (h *StageHost) Dispatch(stageId int64, p *route.Packet) {
	s, ok := h.stages[stageId]
	if !ok {
		p.Dispose()
		return
	}
	if p.Header.AccountId != "" || p.Header.Sid != 0 {
		s.DispatchClientPacket(p.Header.Sid, p.Header.AccountId, p)
		return
	}
	s.DispatchSystemPacket(p)
}
