package node

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/registry"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/stage"
	"github.com/ulala-x/playhouse/transport"
)

type createStageFakeTransport struct {
	mu   sync.Mutex
	sent []sent
}

func (f *createStageFakeTransport) Connect(string) error    { return nil }
func (f *createStageFakeTransport) Disconnect(string) error { return nil }
func (f *createStageFakeTransport) Shutdown() error         { return nil }
func (f *createStageFakeTransport) Receive() (transport.Envelope, error) {
	return transport.Envelope{}, nil
}
func (f *createStageFakeTransport) Send(target nid.NID, header *route.Header, payload []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, sent{target: target, header: header})
	f.mu.Unlock()
	return nil
}
func (f *createStageFakeTransport) calls() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sent, len(f.sent))
	copy(out, f.sent)
	return out
}

func alwaysOkFactory(stageType string) (stage.Handler, stage.ActorHandler) {
	return &recordingStageHandler{}, noopActorHandler{}
}

func TestPlaySystemHandler_CreateStage_RegistersAndRepliesOK(t *testing.T) {
	self := nid.New(2, "play-1")
	pool := stage.NewPool(1)
	defer pool.Close()
	host := NewStageHost()
	dir := registry.NewStageDirectory()
	ft := &createStageFakeTransport{}

	h := NewPlaySystemHandler(self, pool, host, dir, ft, alwaysOkFactory, "match")

	origin := nid.New(1, "api-1")
	p := route.New(&route.Header{MsgId: CreateStageMsgId, StageId: 55, MsgSeq: 3, From: origin, IsSystem: true}, []byte("payload"))
	h.Handle(p)

	assert.True(t, host.HostsLocally(55))
	got, ok := dir.LocateStage(55)
	require.True(t, ok)
	assert.Equal(t, self, got)

	calls := ft.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, origin, calls[0].target)
	assert.Zero(t, calls[0].header.ErrorCode)
	assert.True(t, calls[0].header.IsReply)
}

type alwaysFailHandler struct{}

func (alwaysFailHandler) OnCreate(ctx context.Context, s *stage.Stage, payload []byte) error {
	return errors.Internal(assertErr())
}
func (alwaysFailHandler) OnDestroy(ctx context.Context, s *stage.Stage) {}
func (alwaysFailHandler) OnDispatch(ctx context.Context, s *stage.Stage, a *stage.Actor, p *route.Packet) error {
	return nil
}

func assertErr() error { return errors.ErrInternal }

func TestPlaySystemHandler_CreateStage_FailureRepliesWithError(t *testing.T) {
	self := nid.New(2, "play-1")
	pool := stage.NewPool(1)
	defer pool.Close()
	host := NewStageHost()
	dir := registry.NewStageDirectory()
	ft := &createStageFakeTransport{}

	factory := func(stageType string) (stage.Handler, stage.ActorHandler) {
		return alwaysFailHandler{}, noopActorHandler{}
	}
	h := NewPlaySystemHandler(self, pool, host, dir, ft, factory, "match")

	origin := nid.New(1, "api-1")
	p := route.New(&route.Header{MsgId: CreateStageMsgId, StageId: 56, MsgSeq: 4, From: origin}, nil)
	h.Handle(p)

	assert.False(t, host.HostsLocally(56))
	calls := ft.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, uint32(constants.CodeInternalError), calls[0].header.ErrorCode)
}

func TestPlaySystemHandler_UnknownMsgId_Disposes(t *testing.T) {
	self := nid.New(2, "play-1")
	pool := stage.NewPool(1)
	defer pool.Close()
	h := NewPlaySystemHandler(self, pool, NewStageHost(), registry.NewStageDirectory(), &createStageFakeTransport{}, alwaysOkFactory, "match")

	p := route.New(&route.Header{MsgId: "Nope"}, nil)
	assert.NotPanics(t, func() { h.Handle(p) })
	assert.True(t, p.Disposed())
}
