package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/clock"
	"github.com/ulala-x/playhouse/correlator"
	pcontext "github.com/ulala-x/playhouse/context"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/registry"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/transport"
)

type replyFakeTransport struct {
	mu     sync.Mutex
	target nid.NID
	header *route.Header
}

func (f *replyFakeTransport) Connect(string) error    { return nil }
func (f *replyFakeTransport) Disconnect(string) error { return nil }
func (f *replyFakeTransport) Shutdown() error         { return nil }
func (f *replyFakeTransport) Receive() (transport.Envelope, error) {
	return transport.Envelope{}, nil
}
func (f *replyFakeTransport) Send(target nid.NID, header *route.Header, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target = target
	f.header = header
	return nil
}

func newReplySender(ft *replyFakeTransport) *sender.Sender {
	self := nid.New(1, "api-1")
	return sender.New(self, ft, correlator.New(clock.Default, time.Second), registry.New(5*time.Second, time.Minute, clock.Default), session.NewPool(), noopLocator{})
}

type noopLocator struct{}

func (noopLocator) LocateStage(int64) (nid.NID, bool) { return nid.NID{}, false }

func TestReply_SendsBackToRequestOrigin(t *testing.T) {
	ft := &replyFakeTransport{}
	s := newReplySender(ft)

	origin := nid.New(2, "play-1")
	header := &route.Header{MsgId: "EchoRequest", MsgSeq: 7, From: origin}
	ctx := pcontext.WithHeader(context.Background(), header)

	err := Reply(ctx, s, 0, []byte("pong"))
	require.NoError(t, err)
	assert.Equal(t, origin, ft.target)
	assert.True(t, ft.header.IsReply)
	assert.Equal(t, uint16(7), ft.header.MsgSeq)
}

func TestReply_WithoutCurrentHeader_Errors(t *testing.T) {
	ft := &replyFakeTransport{}
	s := newReplySender(ft)
	err := Reply(context.Background(), s, 0, nil)
	assert.Error(t, err)
}

func TestReply_OneWayMessage_Errors(t *testing.T) {
	ft := &replyFakeTransport{}
	s := newReplySender(ft)
	header := &route.Header{MsgId: "Push", MsgSeq: 0}
	ctx := pcontext.WithHeader(context.Background(), header)
	err := Reply(ctx, s, 0, nil)
	assert.Error(t, err)
}
