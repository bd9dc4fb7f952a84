// Copyright (c) nano Author and TFG Co. All Rights Reserved.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package agent adapts byte4fun-pitaya's agent.go to PlayHouse: the live
// connection (networkentity.NetworkEntity) behind a session.Session. Where
// pitaya's agent serializes application values and forwards RPCs through
// SendRequest, this one works directly on route.Packet/codec frames and
// forwards through sender.Sender, since the session bridge's job here is
// wire <-> RoutePacket translation, not RPC stubbing.
package agent

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	opentracing "github.com/opentracing/opentracing-go"

	"github.com/ulala-x/playhouse/codec"
	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/metrics"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/tracing"
)

const handlerType = "handler"

type pendingWrite struct {
	ctx  context.Context
	data []byte
	err  error
}

// Agent is the live connection behind a session.Session: it owns the
// net.Conn, runs the read loop translating client frames into RoutePackets
// forwarded through sender.Sender, and the write loop translating replies/
// pushes back into server frames.
type Agent struct {
	sess     *session.Session
	sessPool *session.Pool
	sdr      *sender.Sender
	self     nid.NID

	conn             net.Conn
	chSend           chan pendingWrite
	chDie            chan struct{}
	chStopWrite      chan struct{}
	chStopHeartbeat  chan struct{}
	closeMutex       sync.Mutex
	heartbeatTimeout time.Duration
	messagesBufSize  int
	maxBodySize      int
	compressionMin   int
	lastAt           int64
	state            int32
	metricsReporters []metrics.Reporter
}

// Options configures a new Agent, pulled from config (spec 6).
type Options struct {
	HeartbeatTimeout     time.Duration
	MessagesBufferSize   int
	MaxBodySize          int
	CompressionThreshold int
	MetricsReporters     []metrics.Reporter
}

// New wires conn into a fresh Agent/Session pair, registers the session
// into pool, and reports the updated connection count (mirrors pitaya's
// newAgent + sessionPool.NewSession + metrics.ReportNumberOfConnectedClients).
func New(conn net.Conn, sid int64, pool *session.Pool, sdr *sender.Sender, self nid.NID, opts Options) *Agent {
	a := &Agent{
		sessPool:         pool,
		sdr:              sdr,
		self:             self,
		conn:             conn,
		chSend:           make(chan pendingWrite, opts.MessagesBufferSize),
		chDie:            make(chan struct{}),
		chStopWrite:      make(chan struct{}),
		chStopHeartbeat:  make(chan struct{}),
		heartbeatTimeout: opts.HeartbeatTimeout,
		messagesBufSize:  opts.MessagesBufferSize,
		maxBodySize:      opts.MaxBodySize,
		compressionMin:   opts.CompressionThreshold,
		lastAt:           time.Now().Unix(),
		state:            constants.StatusStart,
		metricsReporters: opts.MetricsReporters,
	}
	a.sess = session.New(sid, a)
	pool.Add(a.sess)
	metrics.ReportNumberOfConnectedClients(a.metricsReporters, pool.Count())
	return a
}

// Session returns the bound session.
func (a *Agent) Session() *session.Session { return a.sess }

// Push implementation for networkentity.NetworkEntity.
func (a *Agent) Push(ctx context.Context, msgId string, payload []byte) error {
	if a.status() == constants.StatusClosed {
		return errors.New(constants.CodeInternalError, fmt.Errorf("agent: push on closed connection"))
	}
	frame := &codec.ServerFrame{MsgId: msgId, MsgSeq: 0, StageId: uint64(a.sess.StageId())}
	frame.Payload = payload
	return a.enqueue(ctx, frame)
}

// Respond implementation for networkentity.NetworkEntity.
func (a *Agent) Respond(ctx context.Context, msgSeq uint16, errorCode uint32, payload []byte) error {
	if a.status() == constants.StatusClosed {
		return errors.New(constants.CodeInternalError, fmt.Errorf("agent: respond on closed connection"))
	}
	frame := &codec.ServerFrame{
		MsgSeq:    msgSeq,
		StageId:   uint64(a.sess.StageId()),
		ErrorCode: uint16(errorCode),
		Payload:   payload,
	}
	return a.enqueue(ctx, frame)
}

func (a *Agent) enqueue(ctx context.Context, frame *codec.ServerFrame) error {
	data, err := codec.EncodeServerFrame(frame, a.compressionMin)
	if err != nil {
		return fmt.Errorf("agent: encode frame: %w", err)
	}
	select {
	case a.chSend <- pendingWrite{ctx: ctx, data: data}:
	case <-a.chDie:
	}
	return nil
}

// Close closes the agent: stops the heartbeat/write loops, runs the
// session's close callbacks, removes it from the pool, and closes conn.
func (a *Agent) Close() error {
	a.closeMutex.Lock()
	defer a.closeMutex.Unlock()
	if a.status() == constants.StatusClosed {
		return fmt.Errorf("agent: already closed")
	}
	a.setStatus(constants.StatusClosed)

	logger.Log.Debugf("agent closed, sid=%d, accountId=%s, addr=%s", a.sess.Sid, a.sess.AccountId(), a.conn.RemoteAddr())

	select {
	case <-a.chDie:
	default:
		close(a.chStopWrite)
		close(a.chStopHeartbeat)
		close(a.chDie)
		a.sess.Close()
	}

	a.sessPool.Remove(a.sess)
	metrics.ReportNumberOfConnectedClients(a.metricsReporters, a.sessPool.Count())
	return a.conn.Close()
}

// Kick sends a kick (errorCode ShuttingDown, msgId "Kick") frame then lets
// the caller close the connection.
func (a *Agent) Kick(ctx context.Context) error {
	if a.status() == constants.StatusClosed {
		return nil
	}
	frame := &codec.ServerFrame{MsgId: "Kick", ErrorCode: uint16(constants.CodeShuttingDown)}
	data, err := codec.EncodeServerFrame(frame, 0)
	if err != nil {
		return err
	}
	_, err = a.conn.Write(data)
	return err
}

// RemoteAddr implementation for networkentity.NetworkEntity.
func (a *Agent) RemoteAddr() net.Addr {
	return a.conn.RemoteAddr()
}

// RequestToStage implementation for networkentity.NetworkEntity: forwards a
// client-originated request to the stage it addresses and blocks for the
// reply (used when the owning stage is hosted on a different Play node
// than this Session node, spec 4.4's routing rule).
func (a *Agent) RequestToStage(ctx context.Context, stageId int64, packet *route.Packet) (*route.Packet, error) {
	replyCh := make(chan *route.Packet, 1)
	errCh := make(chan uint32, 1)
	onReply := func(errorCode uint32, reply *route.Packet) {
		if errorCode != 0 {
			errCh <- errorCode
			return
		}
		replyCh <- reply
	}

	header := packet.Header
	header.StageId = stageId
	header.From = a.self
	noLocalStage := func(*route.Packet) {
		logger.Log.Errorf("agent: stage %d resolved to this Session node, which hosts no stages", stageId)
	}
	if err := a.sdr.RequestToStage(ctx, header, packet.MovePayload(), 0, onReply, noLocalStage); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case code := <-errCh:
		return nil, errors.New(code, nil)
	case <-ctx.Done():
		return nil, errors.RequestTimeout()
	}
}

func (a *Agent) status() int32 {
	return atomic.LoadInt32(&a.state)
}

func (a *Agent) setStatus(state int32) {
	atomic.StoreInt32(&a.state, state)
}

// Handle runs the agent's write and heartbeat loops and blocks until the
// connection dies. The caller runs ReadLoop concurrently.
func (a *Agent) Handle() {
	defer func() {
		a.Close()
		logger.Log.Debugf("agent handle goroutine exit, sid=%d", a.sess.Sid)
	}()

	go a.write()
	go a.heartbeat()
	<-a.chDie
}

// ReadLoop reads client frames off conn and hands each decoded frame to
// onFrame (the node's dispatcher: session bridge -> transport forwarding).
// It returns when the connection closes or a framing error occurs.
func (a *Agent) ReadLoop(onFrame func(*codec.ClientFrame)) {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := a.conn.Read(tmp)
		if err != nil {
			return
		}
		a.SetLastAt()
		buf = append(buf, tmp[:n]...)

		for {
			frame, consumed, derr := codec.DecodeClientFrame(buf, a.maxBodySize)
			if derr != nil {
				logger.Log.Warnf("agent: malformed frame, sid=%d: %s", a.sess.Sid, derr.Error())
				return
			}
			if frame == nil {
				break
			}
			buf = buf[consumed:]
			onFrame(frame)
		}
	}
}

// SetLastAt sets the last-heard-from timestamp to now.
func (a *Agent) SetLastAt() {
	atomic.StoreInt64(&a.lastAt, time.Now().Unix())
}

func (a *Agent) heartbeat() {
	if a.heartbeatTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(a.heartbeatTimeout)
	defer func() {
		ticker.Stop()
		a.Close()
	}()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(-2 * a.heartbeatTimeout).Unix()
			if atomic.LoadInt64(&a.lastAt) < deadline {
				logger.Log.Debugf("agent heartbeat timeout, sid=%d, lastAt=%d, deadline=%d", a.sess.Sid, atomic.LoadInt64(&a.lastAt), deadline)
				return
			}
		case <-a.chDie:
			return
		case <-a.chStopHeartbeat:
			return
		}
	}
}

func (a *Agent) write() {
	defer a.Close()
	for {
		select {
		case pWrite := <-a.chSend:
			if _, err := a.conn.Write(pWrite.data); err != nil {
				tracing.FinishSpan(pWrite.ctx, err)
				metrics.ReportTimingFromCtx(pWrite.ctx, a.metricsReporters, handlerType, err)
				logger.Log.Errorf("agent: write failed, sid=%d: %s", a.sess.Sid, err.Error())
				return
			}
			tracing.FinishSpan(pWrite.ctx, nil)
			metrics.ReportTimingFromCtx(pWrite.ctx, a.metricsReporters, handlerType, pWrite.err)
		case <-a.chStopWrite:
			return
		}
	}
}

// AnswerWithError replies to msgSeq with a framework/application error
// payload, logging if the write itself fails (mirrors agent.go's
// AnswerWithError, minus pitaya's serializer round-trip: the caller already
// owns an encoded payload or none at all).
func (a *Agent) AnswerWithError(ctx context.Context, msgSeq uint16, code uint32, err error) {
	var spanErr error
	defer func() {
		if spanErr != nil {
			tracing.FinishSpan(ctx, spanErr)
			metrics.ReportTimingFromCtx(ctx, a.metricsReporters, handlerType, spanErr)
		}
	}()
	if ctx != nil && err != nil {
		if s := opentracing.SpanFromContext(ctx); s != nil {
			tracing.LogError(s, err.Error())
		}
	}
	spanErr = a.Respond(ctx, msgSeq, code, nil)
	if spanErr != nil {
		logger.Log.Errorf("agent: error answering client with error, sid=%d: %s", a.sess.Sid, spanErr.Error())
	}
}
