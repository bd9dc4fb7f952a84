package stage

import "sync/atomic"

// ActorState is the per-actor lifecycle state machine of spec 4.7.
type ActorState int32

const (
	ActorCreated ActorState = iota
	ActorAuthenticated
	ActorReady
	ActorJoined
	ActorActive
	ActorDisconnected
)

// Actor is the per-account session state inside a stage (spec 3/glossary).
// All fields other than the atomic state are mutated only on the owning
// stage's own execution cycle (spec 3's Stage invariant extends to its
// actors).
type Actor struct {
	AccountId string
	Sid       int64
	StageId   int64

	state int32
}

func newActor(sid int64, stageId int64) *Actor {
	return &Actor{Sid: sid, StageId: stageId, state: int32(ActorCreated)}
}

// State returns the actor's current lifecycle state.
func (a *Actor) State() ActorState {
	return ActorState(atomic.LoadInt32(&a.state))
}

func (a *Actor) setState(s ActorState) {
	atomic.StoreInt32(&a.state, int32(s))
}

// Authenticated reports whether OnAuthenticate has completed successfully.
func (a *Actor) Authenticated() bool {
	return a.State() >= ActorAuthenticated
}
