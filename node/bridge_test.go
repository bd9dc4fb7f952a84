package node

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/agent"
	"github.com/ulala-x/playhouse/clock"
	"github.com/ulala-x/playhouse/codec"
	"github.com/ulala-x/playhouse/correlator"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/registry"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/stage"
)

func newTestAgent(t *testing.T, sdr *sender.Sender) (*agent.Agent, net.Conn) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	pool := session.NewPool()
	a := agent.New(serverConn, 1, pool, sdr, nid.New(3, "session-1"), agent.Options{MessagesBufferSize: 8})
	go a.Handle()
	t.Cleanup(func() { a.Close(); clientConn.Close() })
	return a, clientConn
}

func drainFrame(t *testing.T, conn net.Conn) *codec.ServerFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	frame, _, err := codec.DecodeServerFrame(buf[:n], 1<<20)
	require.NoError(t, err)
	require.NotNil(t, frame)
	return frame
}

func TestSessionBridge_OnFrame_LocallyHostedStage_DispatchesDirectly(t *testing.T) {
	pool := stage.NewPool(1)
	defer pool.Close()
	h := &recordingStageHandler{}
	s := stage.New(10, "match", nid.New(2, "play-1"), h, noopActorHandler{}, pool, nil)
	require.NoError(t, s.Create(context.Background(), nil))

	host := NewStageHost()
	host.Add(s)

	sdr := sender.New(nid.New(3, "session-1"), nil, correlator.New(clock.Default, time.Second), registry.New(5*time.Second, time.Minute, clock.Default), session.NewPool(), registry.NewStageDirectory())
	bridge := NewSessionBridge(nid.New(3, "session-1"), sdr, host, time.Second)

	sess := session.New(1, nil)
	onFrame := bridge.OnFrame(sess, nil)
	onFrame(&codec.ClientFrame{MsgId: "Authenticate", StageId: 10, Payload: []byte("x")})

	assert.Eventually(t, func() bool { return len(h.got) == 1 }, time.Second, time.Millisecond)
}

func TestSessionBridge_OnFrame_RemoteOneWay_SendsThroughSender(t *testing.T) {
	locator := registry.NewStageDirectory()
	target := nid.New(2, "play-2")
	locator.Announce(20, target)

	ft := &routerFakeTransport{}
	sdr := sender.New(nid.New(3, "session-1"), ft, correlator.New(clock.Default, time.Second), registry.New(5*time.Second, time.Minute, clock.Default), session.NewPool(), locator)
	bridge := NewSessionBridge(nid.New(3, "session-1"), sdr, NewStageHost(), time.Second)

	sess := session.New(2, nil)
	onFrame := bridge.OnFrame(sess, nil)
	onFrame(&codec.ClientFrame{MsgId: "Move", StageId: 20, MsgSeq: 0, Payload: []byte("x")})

	calls := ft.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, target, calls[0].target)
	assert.Equal(t, uint16(0), calls[0].header.MsgSeq)
}

func TestSessionBridge_OnFrame_RemoteRequest_RespondsThroughAgent(t *testing.T) {
	locator := registry.NewStageDirectory()
	self := nid.New(3, "session-1")
	locator.Announce(30, nid.New(2, "play-2"))

	corr := correlator.New(clock.Default, time.Second)
	ft := &routerFakeTransport{}
	sdr := sender.New(self, ft, corr, registry.New(5*time.Second, time.Minute, clock.Default), session.NewPool(), locator)
	host := NewStageHost()
	bridge := NewSessionBridge(self, sdr, host, time.Second)

	ag, clientConn := newTestAgent(t, sdr)
	sess := ag.Session()
	onFrame := bridge.OnFrame(sess, ag)
	onFrame(&codec.ClientFrame{MsgId: "Attack", StageId: 30, MsgSeq: 1, Payload: []byte("x")})

	// Stage 30 is hosted on another node, so RequestToStage sends the request
	// through the transport and leaves a correlator entry; complete it
	// directly, as the remote Play node's reply would.
	assert.Eventually(t, func() bool { return corr.Pending() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 1, corr.Pending())

	// This is a fresh Correlator and the bridge's RequestToStage call above
	// is its first NextSeq allocation, which always returns 1.
	reply := route.New(&route.Header{MsgSeq: 1, IsReply: true}, []byte("ok"))
	corr.Complete(reply)

	frame := drainFrame(t, clientConn)
	assert.Equal(t, uint16(1), frame.MsgSeq)
}
