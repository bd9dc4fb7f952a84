// Package transport implements the router-to-router inter-node transport
// of spec 4.2: each node owns one bi-directional router socket addressed by
// NID, sending mandatory-routed three-frame messages (target NID, route
// header, payload).
//
// Grounded on pitaya's nats-io/nats.go + nats-io/nats-server/v2 dependency:
// pitaya's own (unretrieved) cluster package builds its inter-server RPC on
// NATS request/reply and pub/sub subjects keyed by server identity, which is
// the closest in-pack analogue to a ROUTER-socket's identity-addressed
// delivery. Each node subscribes to a subject derived from its own NID and
// publishes to a peer's subject to send; PeerUnreachable is surfaced
// synchronously by checking the local peer table (populated by the
// registry's heartbeat, spec 4.3) before publishing, since NATS pub/sub
// itself does not fail on an unresolved subject the way a real ROUTER
// socket's mandatory routing does.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ulala-x/playhouse/clock"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
)

const subjectPrefix = "playhouse.node."

// broadcastSubject is the shared subject every node subscribes to in
// addition to its own, backing heartbeat.Broadcaster (spec 4.3: every peer
// must observe every other peer's self-announce).
const broadcastSubject = "playhouse.broadcast"

func subjectFor(n nid.NID) string {
	return subjectPrefix + n.String()
}

// Envelope is the decoded unit Receive() hands back: spec 4.2's three
// frames collapsed into (sender NID, header, payload).
type Envelope struct {
	From    nid.NID
	Header  *route.Header
	Payload []byte
}

// PeerResolver answers "is this NID currently reachable", backing the
// mandatory-routing failure spec 4.2 requires. The registry package
// implements this.
type PeerResolver interface {
	IsReachable(n nid.NID) bool
}

// Options configures a Transport's HWM/linger behavior (spec 6).
type Options struct {
	SendHWM    int
	ReceiveHWM int
	Linger     time.Duration
	Clock      clock.Clock
}

func (o *Options) setDefaults() {
	if o.SendHWM <= 0 {
		o.SendHWM = 1000
	}
	if o.ReceiveHWM <= 0 {
		o.ReceiveHWM = 1000
	}
	if o.Linger <= 0 {
		o.Linger = time.Second
	}
	if o.Clock == nil {
		o.Clock = clock.Default
	}
}

// Transport is the collaborator contract spec 6 names: Connect/Disconnect/
// Send/Receive/Shutdown.
type Transport interface {
	Connect(endpoint string) error
	Disconnect(endpoint string) error
	Send(target nid.NID, header *route.Header, payload []byte) error
	Receive() (Envelope, error)
	Shutdown() error
}

// NatsTransport is the Transport implementation described above.
type NatsTransport struct {
	self     nid.NID
	conn     *nats.Conn
	sub      *nats.Subscription
	resolver PeerResolver
	opts     Options

	bsub *nats.Subscription

	recvCh chan Envelope
	sendCh chan sendJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

type sendJob struct {
	target  nid.NID
	header  *route.Header
	payload []byte
	result  chan error
}

// New builds a NatsTransport bound to self's NID, reachability decisions
// delegated to resolver (the registry).
func New(self nid.NID, resolver PeerResolver, opts Options) *NatsTransport {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &NatsTransport{
		self:     self,
		resolver: resolver,
		opts:     opts,
		recvCh:   make(chan Envelope, opts.ReceiveHWM),
		sendCh:   make(chan sendJob, opts.SendHWM),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect dials the NATS endpoint and subscribes to this node's own subject.
func (t *NatsTransport) Connect(endpoint string) error {
	conn, err := nats.Connect(endpoint, nats.Name(t.self.String()))
	if err != nil {
		return fmt.Errorf("transport: connect %s: %w", endpoint, err)
	}
	t.conn = conn

	sub, err := conn.Subscribe(subjectFor(t.self), t.onMessage)
	if err != nil {
		conn.Close()
		return fmt.Errorf("transport: subscribe: %w", err)
	}
	if err := sub.SetPendingLimits(t.opts.ReceiveHWM, -1); err != nil {
		logger.Log.Warnf("transport: could not set receive HWM: %s", err.Error())
	}
	t.sub = sub

	bsub, err := conn.Subscribe(broadcastSubject, t.onMessage)
	if err != nil {
		conn.Close()
		return fmt.Errorf("transport: subscribe broadcast: %w", err)
	}
	if err := bsub.SetPendingLimits(t.opts.ReceiveHWM, -1); err != nil {
		logger.Log.Warnf("transport: could not set broadcast receive HWM: %s", err.Error())
	}
	t.bsub = bsub

	t.wg.Add(1)
	go t.sendLoop()

	return nil
}

// BroadcastSystem implements heartbeat.Broadcaster: it publishes an
// isSystem-flagged packet to every node currently subscribed to the shared
// broadcast subject, sidestepping per-peer mandatory routing since a
// self-announce has no single target.
func (t *NatsTransport) BroadcastSystem(msgId string, payload []byte) error {
	header := &route.Header{MsgId: msgId, IsSystem: true, From: t.self}
	headerBytes := route.EncodeHeader(header)
	msg := encodeThreeFrames(t.self.String(), headerBytes, payload)
	if err := t.conn.Publish(broadcastSubject, msg); err != nil {
		return errors.PeerUnreachable(err)
	}
	return nil
}

// Disconnect tears down the subscription for the given endpoint. Since a
// node owns a single router socket (spec 9's chosen design), this is
// equivalent to Shutdown for the NATS transport; endpoint is accepted for
// interface parity with a multi-endpoint transport.
func (t *NatsTransport) Disconnect(endpoint string) error {
	return t.Shutdown()
}

// Send enqueues a send job, returning Backpressure synchronously if the
// internal send queue (the "upstream action queue" of spec 4.2/5) is full,
// and PeerUnreachable synchronously if target is not currently Running per
// the registry.
func (t *NatsTransport) Send(target nid.NID, header *route.Header, payload []byte) error {
	if t.resolver != nil && !t.resolver.IsReachable(target) {
		return errors.PeerUnreachable(fmt.Errorf("nid %s not running", target))
	}

	header.From = t.self
	result := make(chan error, 1)
	job := sendJob{target: target, header: header, payload: payload, result: result}

	select {
	case t.sendCh <- job:
	default:
		return errors.Backpressure(fmt.Errorf("send queue full (hwm=%d)", t.opts.SendHWM))
	}

	select {
	case err := <-result:
		return err
	case <-t.ctx.Done():
		return errors.ShuttingDown()
	}
}

func (t *NatsTransport) sendLoop() {
	defer t.wg.Done()
	for {
		select {
		case job := <-t.sendCh:
			job.result <- t.publish(job)
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *NatsTransport) publish(job sendJob) error {
	headerBytes := route.EncodeHeader(job.header)
	msg := encodeThreeFrames(t.self.String(), headerBytes, job.payload)
	if err := t.conn.Publish(subjectFor(job.target), msg); err != nil {
		return errors.PeerUnreachable(err)
	}
	return nil
}

func (t *NatsTransport) onMessage(m *nats.Msg) {
	fromStr, headerBytes, payload, err := decodeThreeFrames(m.Data)
	if err != nil {
		logger.Log.Warnf("transport: malformed frame: %s", err.Error())
		return
	}
	from, err := nid.Parse(fromStr)
	if err != nil {
		logger.Log.Warnf("transport: malformed sender identity: %s", err.Error())
		return
	}
	header, err := route.DecodeHeader(headerBytes)
	if err != nil {
		logger.Log.Warnf("transport: malformed header: %s", err.Error())
		return
	}

	select {
	case t.recvCh <- Envelope{From: from, Header: header, Payload: payload}:
	default:
		logger.Log.Warnf("transport: receive queue full, dropping message from %s", from)
	}
}

// Receive blocks for the next inbound envelope, or returns ShuttingDown once
// the transport's context has been cancelled (spec 4.2: "closed by
// terminating its context, which unblocks a pending receive").
func (t *NatsTransport) Receive() (Envelope, error) {
	select {
	case env := <-t.recvCh:
		return env, nil
	case <-t.ctx.Done():
		return Envelope{}, errors.ShuttingDown()
	}
}

// Shutdown cancels the transport's context (unblocking Receive/Send) and
// drains the NATS connection with the configured linger.
func (t *NatsTransport) Shutdown() error {
	var err error
	t.closeOnce.Do(func() {
		t.cancel()
		t.wg.Wait()
		if t.conn != nil {
			timer := time.AfterFunc(t.opts.Linger, func() { t.conn.Close() })
			defer timer.Stop()
			err = t.conn.Drain()
		}
	})
	return err
}
