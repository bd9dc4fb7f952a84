package stage

import (
	"context"
	"fmt"

	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/route"
)

// AuthenticateMessageId is set by the node from config (spec 6:
// AuthenticateMessageId) before the stage ever dispatches a packet.
var defaultAuthMsgId = "Authenticate"

// SetAuthenticateMessageId overrides the one msgId accepted before
// authentication (spec 4.7).
func (s *Stage) SetAuthenticateMessageId(msgId string) {
	s.authMsgId = msgId
}

// DispatchClientPacket is the entry point the session bridge/router calls
// for a client-originated packet bound to accountId (spec 4.4's stageId!=0
// rule). It enforces the pre-authentication gate (spec 4.7/8, scenario 2)
// before enqueueing a normal dispatch, and drives the actor lifecycle state
// machine for authenticate/join packets.
func (s *Stage) DispatchClientPacket(sid int64, accountId string, packet *route.Packet) {
	authMsgId := s.authMsgId
	if authMsgId == "" {
		authMsgId = defaultAuthMsgId
	}

	actor := s.actors[accountId]
	if actor == nil {
		actor = newActor(sid, s.StageId)
		if accountId != "" {
			actor.AccountId = accountId
		}
	}

	if !actor.Authenticated() && packet.Header.MsgId != authMsgId {
		s.rejectUnauthenticated(packet)
		return
	}

	s.Post(dispatchEntry{actor: actor, packet: packet})
}

func (s *Stage) rejectUnauthenticated(p *route.Packet) {
	if p.Header.MsgSeq > 0 {
		p.Header.ErrorCode = errors.CodeOf(errors.Unauthenticated())
	}
	p.Dispose()
}

// DispatchSystemPacket is the entry point for packets not bound to any
// actor (inter-stage messages, API replies that aren't correlator matches,
// spec 4.6's "OnDispatch(packet) for non-actor").
func (s *Stage) DispatchSystemPacket(packet *route.Packet) {
	s.Post(dispatchEntry{actor: nil, packet: packet})
}

// RunAuthenticate is invoked by application OnDispatch code (via the
// handler, which calls back into the stage) once it determines the packet
// is the configured authenticate message. It is exposed so the handler
// drives exactly the transitions spec 4.7 names, in order.
func (s *Stage) RunAuthenticate(ctx context.Context, a *Actor, packet *route.Packet) error {
	if err := s.actorHandler.OnAuthenticate(ctx, s, a, packet); err != nil {
		return err
	}
	if a.AccountId == "" {
		return fmt.Errorf("stage: OnAuthenticate did not set AccountId")
	}
	a.setState(ActorAuthenticated)
	s.actors[a.AccountId] = a
	s.bySid[a.Sid] = a

	if err := s.actorHandler.OnPostAuthenticate(ctx, s, a); err != nil {
		return err
	}
	a.setState(ActorReady)
	return nil
}

// RunJoin drives Ready -> Joined -> Active, calling the application's
// OnJoinStage (spec 4.7 marks this transition app-implemented) followed by
// the framework's OnPostJoinStage.
func (s *Stage) RunJoin(ctx context.Context, a *Actor) error {
	if err := s.actorHandler.OnJoinStage(ctx, s, a); err != nil {
		return err
	}
	a.setState(ActorJoined)

	if err := s.actorHandler.OnPostJoinStage(ctx, s, a); err != nil {
		return err
	}
	a.setState(ActorActive)
	return nil
}

// OnConnectionChanged reports a client (dis)connection event for the actor
// bound to sid, without destroying it — the app decides whether to wait
// for reconnection or destroy (spec 4.7).
func (s *Stage) OnConnectionChanged(ctx context.Context, sid int64, connected bool) {
	a, ok := s.bySid[sid]
	if !ok {
		return
	}
	if !connected {
		a.setState(ActorDisconnected)
	} else {
		a.setState(ActorActive)
	}
	s.actorHandler.OnConnectionChanged(ctx, s, a, connected)
}

// DestroyActor removes the actor from the stage and runs its destroy hook.
// Moving an actor between stages is modeled as a destroy on the old stage
// followed by a create on a different one (spec 3, Actor invariant).
func (s *Stage) DestroyActor(ctx context.Context, accountId string) {
	a, ok := s.actors[accountId]
	if !ok {
		return
	}
	delete(s.actors, accountId)
	delete(s.bySid, a.Sid)
	s.actorHandler.OnActorDestroy(ctx, s, a)
}

// LookupActor returns the actor bound to accountId, if any.
func (s *Stage) LookupActor(accountId string) (*Actor, bool) {
	a, ok := s.actors[accountId]
	return a, ok
}

// ActorCount returns the number of actors currently bound to the stage.
func (s *Stage) ActorCount() int {
	return len(s.actors)
}
