package stage

import (
	"context"

	"github.com/ulala-x/playhouse/route"
)

// Handler is application code's stage implementation (spec 4.6's hooks).
// OnDispatch is called with a nil actor for non-actor-bound packets (e.g.
// inter-stage messages, API replies), per spec 4.6: "OnDispatch(packet) for
// non-actor".
type Handler interface {
	OnCreate(ctx context.Context, s *Stage, payload []byte) error
	OnDestroy(ctx context.Context, s *Stage)
	OnDispatch(ctx context.Context, s *Stage, actor *Actor, packet *route.Packet) error
}

// ActorHandler is application code's per-actor lifecycle implementation
// (spec 4.7).
type ActorHandler interface {
	// OnAuthenticate must set actor.AccountId on success (spec 4.7:
	// "AccountId must be set during OnAuthenticate").
	OnAuthenticate(ctx context.Context, s *Stage, a *Actor, packet *route.Packet) error
	OnPostAuthenticate(ctx context.Context, s *Stage, a *Actor) error
	// OnJoinStage is application-implemented (spec 4.7 marks this
	// transition "(impl)"): the app decides what joining means for its
	// stage type. Stage.RunJoin calls this, advances the actor to Joined
	// on success, then calls OnPostJoinStage.
	OnJoinStage(ctx context.Context, s *Stage, a *Actor) error
	OnPostJoinStage(ctx context.Context, s *Stage, a *Actor) error
	OnConnectionChanged(ctx context.Context, s *Stage, a *Actor, connected bool)
	OnActorDestroy(ctx context.Context, s *Stage, a *Actor)
}
