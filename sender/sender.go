// Package sender implements the inter-service send/request operations of
// spec 4.8: SendToClient, SendToStage, RequestToStage, SendToApi/
// RequestToApi, and CreateStage/GetOrCreateStage. It is the one place stage
// dispatch code reaches out through the transport, keeping the stage
// package itself transport-free (stage.Reply's sendFn parameter is
// supplied from here).
package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ulala-x/playhouse/correlator"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/registry"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/transport"
)

// StageLocator resolves which node currently hosts a stageId, so a Play
// node can address another Play node hosting the target stage (spec 4.4's
// routing rule keyed on stageId).
type StageLocator interface {
	LocateStage(stageId int64) (nid.NID, bool)
}

// Sender bundles the collaborators every spec 4.8 operation needs: this
// node's own identity, the transport to publish through, the correlator to
// register RequestTo* calls against, the registry to pick Api members, and
// the session pool to resolve client pushes.
type Sender struct {
	Self        nid.NID
	Transport   transport.Transport
	Correlator  *correlator.Correlator
	Registry    *registry.Registry
	Sessions    *session.Pool
	StageLocate StageLocator
}

// New builds a Sender.
func New(self nid.NID, t transport.Transport, c *correlator.Correlator, r *registry.Registry, sessions *session.Pool, locator StageLocator) *Sender {
	return &Sender{Self: self, Transport: t, Correlator: c, Registry: r, Sessions: sessions, StageLocate: locator}
}

// SendToClient pushes an unsolicited message (msgSeq 0) to the client
// identified by sid by writing to its entity directly. Only sessions
// connected to this node are reached; for any other sid it returns an error
// and nothing is sent through the transport.
func (s *Sender) SendToClient(ctx context.Context, sid int64, msgId string, payload []byte) error {
	if sess, ok := s.Sessions.BySid(sid); ok {
		return sess.Entity().Push(ctx, msgId, payload)
	}
	return fmt.Errorf("sender: SendToClient: sid %d not connected to this node", sid)
}

// SendToStage delivers a one-way (msgSeq 0) packet to the stage identified
// by header.StageId, resolving the hosting Play node via StageLocate and
// short-circuiting through direct dispatch when it is this node.
func (s *Sender) SendToStage(ctx context.Context, header *route.Header, payload []byte, localDispatch func(*route.Packet)) error {
	header.MsgSeq = 0
	target, ok := s.StageLocate.LocateStage(header.StageId)
	if !ok {
		return errors.NotRouted(fmt.Errorf("stage %d has no known host", header.StageId))
	}
	packet := route.New(header, payload)
	if target == s.Self {
		localDispatch(packet)
		return nil
	}
	return s.Transport.Send(target, header, packet.MovePayload())
}

// RequestToStage delivers a request (msgSeq allocated here) to the stage
// identified by header.StageId. It registers onReply with the correlator and
// returns once the packet is sent or dispatched locally, without waiting;
// onReply runs later with the reply, or with an error code on timeout.
func (s *Sender) RequestToStage(ctx context.Context, header *route.Header, payload []byte, timeout time.Duration, onReply correlator.OnReply, localDispatch func(*route.Packet)) error {
	header.MsgSeq = s.Correlator.NextSeq()
	s.Correlator.Register(header.MsgSeq, s.Self, timeout, onReply)

	target, ok := s.StageLocate.LocateStage(header.StageId)
	if !ok {
		s.Correlator.Cancel(header.MsgSeq, errors.CodeOf(errors.NotRouted(nil)))
		return errors.NotRouted(fmt.Errorf("stage %d has no known host", header.StageId))
	}

	packet := route.New(header, payload)
	if target == s.Self {
		localDispatch(packet)
		return nil
	}
	if err := s.Transport.Send(target, header, packet.MovePayload()); err != nil {
		return err
	}
	return nil
}

// ReplySend is the sendFn stage.Reply expects (spec 4.8's comment: "sendFn
// is supplied by the sender package"). reply.Header.From already carries
// the original request's origin (route.Header.ReplyHeader preserves it),
// so this always routes back through the transport to that node — even
// when it is this node's own nid, which resolves correctly since every
// node subscribes to its own transport subject.
func (s *Sender) ReplySend(reply *route.Packet) error {
	target := reply.Header.From
	return s.Transport.Send(target, reply.Header, reply.MovePayload())
}

// SendToApi picks an Api member (round-robin, spec 4.3) and sends a
// one-way packet to it.
func (s *Sender) SendToApi(ctx context.Context, serviceId uint16, msgId string, payload []byte) error {
	target, ok := s.Registry.RoundRobin(serviceId)
	if !ok {
		return errors.PeerUnreachable(fmt.Errorf("no running Api member for service %d", serviceId))
	}
	header := &route.Header{MsgId: msgId, ServiceId: serviceId, IsBase: true}
	return s.Transport.Send(target, header, payload)
}

// RequestToApi picks an Api member and issues a request without waiting;
// onReply runs later with the reply or on timeout (spec 4.8).
func (s *Sender) RequestToApi(ctx context.Context, serviceId uint16, msgId string, payload []byte, timeout time.Duration, onReply correlator.OnReply) error {
	target, ok := s.Registry.RoundRobin(serviceId)
	if !ok {
		return errors.PeerUnreachable(fmt.Errorf("no running Api member for service %d", serviceId))
	}
	header := &route.Header{MsgId: msgId, ServiceId: serviceId, IsBase: true, From: s.Self}
	header.MsgSeq = s.Correlator.NextSeq()
	s.Correlator.Register(header.MsgSeq, s.Self, timeout, onReply)
	return s.Transport.Send(target, header, payload)
}

// CreateStage picks a Play member by weighted selection (spec 4.3's
// weighted(serviceId), used for placement so load balances by declared
// capacity rather than plain rotation) and asks it to create a new stage
// identified by stageId (spec 4.8's signature: "CreateStage(nid, type, id,
// payload)" takes an explicit id). stageId == 0 auto-assigns a fresh one,
// for callers that don't care which id they get.
func (s *Sender) CreateStage(ctx context.Context, playServiceId uint16, stageType string, stageId int64, payload []byte, timeout time.Duration, onReply correlator.OnReply) (int64, error) {
	target, ok := s.Registry.Weighted(playServiceId)
	if !ok {
		return 0, errors.PeerUnreachable(fmt.Errorf("no running Play member for service %d", playServiceId))
	}
	if stageId == 0 {
		stageId = newStageId()
	}
	header := &route.Header{
		MsgId:     "CreateStage",
		StageId:   stageId,
		IsSystem:  true,
		IsBase:    true,
		ServiceId: playServiceId,
		From:      s.Self,
	}
	header.MsgSeq = s.Correlator.NextSeq()
	s.Correlator.Register(header.MsgSeq, s.Self, timeout, onReply)
	if err := s.Transport.Send(target, header, payload); err != nil {
		return 0, err
	}
	return stageId, nil
}

// GetOrCreateStage resolves an existing stage by id, or falls back to
// CreateStage when locator has no record of it yet (spec 4.8: "an API
// handler may need to create a stage that does not exist yet before
// forwarding a request to it"). created reports which path was taken so a
// caller can distinguish spec 8 scenario 5's IsCreated=true/false without
// needing a round trip when the stage already existed.
func (s *Sender) GetOrCreateStage(ctx context.Context, stageId int64, playServiceId uint16, stageType string, payload []byte, timeout time.Duration, onReply correlator.OnReply) (resultStageId int64, created bool, err error) {
	if _, ok := s.StageLocate.LocateStage(stageId); ok {
		return stageId, false, nil
	}
	resultStageId, err = s.CreateStage(ctx, playServiceId, stageType, stageId, payload, timeout, onReply)
	return resultStageId, true, err
}

func newStageId() int64 {
	id := uuid.New()
	// Fold the 128-bit uuid down to a positive int64 stageId; collisions
	// are astronomically unlikely at game-server scale and the id space
	// only needs to be unique, not ordered.
	var v int64
	for i := 0; i < 8; i++ {
		v = v<<8 | int64(id[i])
	}
	if v < 0 {
		v = -v
	}
	return v
}
