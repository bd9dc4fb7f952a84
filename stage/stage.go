package stage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	pcontext "github.com/ulala-x/playhouse/context"
	"github.com/ulala-x/playhouse/correlator"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/timer"
)

// State is the stage lifecycle state machine of spec 4.6.
type State int32

const (
	Initializing State = iota
	Running
	Closing
	Closed
)

// Stage is an addressable, single-threaded game session (spec 3/glossary).
// Every field other than state is mutated only on the stage's own
// execution cycle (spec 3's invariant).
type Stage struct {
	StageId   int64
	StageType string
	HostNid   nid.NID

	handler      Handler
	actorHandler ActorHandler

	actors map[string]*Actor // accountId -> Actor
	bySid  map[int64]*Actor  // sid -> Actor, for connection-change lookups

	mailbox   *mailbox
	Timers    *timer.Wheel
	authMsgId string

	// sendFn is the same transport seam Reply's caller supplies (spec 4.8's
	// "sendFn is supplied by the sender package"), wired in at construction
	// so the stage can emit its own replies — dispatch errors, panics,
	// StageClosed rejections — without app code calling Reply itself.
	sendFn func(*route.Packet) error

	tickHandlersLock sync.Mutex
	tickHandlers     map[timer.Id]func()

	state int32 // atomic State

	scheduled int32 // atomic bool: already queued on the pool
	pool      *Pool

	closeDone chan struct{}
	closeOnce sync.Once
}

// New constructs a stage in Initializing state. Call Create to run OnCreate
// and transition it to Running (or Closed on failure), per spec 4.6's state
// machine.
func New(stageId int64, stageType string, host nid.NID, handler Handler, actorHandler ActorHandler, pool *Pool, sendFn func(*route.Packet) error) *Stage {
	s := &Stage{
		StageId:      stageId,
		StageType:    stageType,
		HostNid:      host,
		handler:      handler,
		actorHandler: actorHandler,
		actors:       make(map[string]*Actor),
		bySid:        make(map[int64]*Actor),
		mailbox:      newMailbox(),
		tickHandlers: make(map[timer.Id]func()),
		state:        int32(Initializing),
		pool:         pool,
		sendFn:       sendFn,
		closeDone:    make(chan struct{}),
	}
	s.Timers = timer.NewWheel(s)
	return s
}

// State returns the stage's current lifecycle state.
func (s *Stage) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Stage) setState(st State) {
	atomic.StoreInt32(&s.state, int32(st))
}

// Create runs OnCreate synchronously (it is the stage's very first cycle,
// called before the stage is registered anywhere reachable, so there is no
// concurrency to guard against yet) and transitions to Running or Closed.
func (s *Stage) Create(ctx context.Context, payload []byte) error {
	err := s.handler.OnCreate(ctx, s, payload)
	if err != nil {
		s.setState(Closed)
		return err
	}
	s.setState(Running)
	return nil
}

// Post enqueues a mailbox entry and schedules the stage onto the pool if
// it wasn't already scheduled (spec 5's "pinned so that no two cycles of
// the same stage run concurrently").
func (s *Stage) Post(entry interface{}) {
	if s.State() == Closed {
		s.rejectIfRequest(entry)
		return
	}
	s.mailbox.push(entry)
	if atomic.CompareAndSwapInt32(&s.scheduled, 0, 1) {
		s.pool.schedule(s)
	}
}

func (s *Stage) rejectIfRequest(entry interface{}) {
	if d, ok := entry.(dispatchEntry); ok {
		s.replyStageClosed(d.packet)
	}
}

// replyStageClosed answers a request that arrived after the stage closed
// with StageClosed (spec 5/7), then disposes the inbound packet.
func (s *Stage) replyStageClosed(p *route.Packet) {
	s.sendReply(p.Header, errors.CodeOf(errors.StageClosed()))
	p.Dispose()
}

// sendReply synthesizes and transmits a reply carrying errorCode to h's
// origin, for replies the stage itself originates rather than ones app code
// builds through Reply. It is a no-op for one-way messages (MsgSeq == 0),
// for headers that are themselves already a reply, and when no sendFn was
// wired in (tests that don't exercise reply delivery).
func (s *Stage) sendReply(h *route.Header, errorCode uint32) {
	if h.MsgSeq == 0 || h.IsReply || s.sendFn == nil {
		return
	}
	reply := h.ReplyHeader(errorCode)
	if err := s.sendFn(route.New(reply, nil)); err != nil {
		logger.Log.Warnf("stage %d: reply send failed: %s", s.StageId, err.Error())
	}
}

// runOneCycle pops exactly one mailbox entry and dispatches it (spec 4.6's
// numbered cycle steps).
func (s *Stage) runOneCycle() {
	item, ok := s.mailbox.pop()
	if !ok {
		return
	}

	switch e := item.(type) {
	case dispatchEntry:
		s.runDispatch(e)
	case replyEntry:
		s.runReply(e)
	case timer.Tick:
		s.runTick(e)
	case postCallbackEntry:
		s.runPostCallback(e)
	case closeEntry:
		s.runClose()
	default:
		logger.Log.Warnf("stage %d: unknown mailbox entry type %T", s.StageId, item)
	}
}

// afterCycle reschedules the stage if more work is queued, or marks it idle.
func (s *Stage) afterCycle(pool *Pool) {
	if s.mailbox.len() > 0 {
		pool.schedule(s)
		return
	}
	atomic.StoreInt32(&s.scheduled, 0)
	// Between the length check above and this store, Post may have pushed
	// a new entry and seen scheduled==1 (a stale read), deciding not to
	// reschedule. Re-check after clearing the flag to close that race.
	if s.mailbox.len() > 0 && atomic.CompareAndSwapInt32(&s.scheduled, 0, 1) {
		pool.schedule(s)
	}
}

func (s *Stage) runDispatch(e dispatchEntry) {
	defer func() {
		if r := recover(); r != nil {
			s.handlePanic(e.packet, r)
		}
	}()

	ctx := pcontext.WithHeader(context.Background(), e.packet.Header)
	err := s.handler.OnDispatch(ctx, s, e.actor, e.packet)
	s.finishDispatch(e.packet, err)
}

func (s *Stage) finishDispatch(p *route.Packet, err error) {
	if err != nil {
		logger.Log.Errorf("stage %d: dispatch error: %s", s.StageId, err.Error())
		s.sendReply(p.Header, errors.CodeOf(errors.Internal(err)))
	}
	if !p.Disposed() {
		p.Dispose()
	}
}

func (s *Stage) handlePanic(p *route.Packet, r interface{}) {
	logger.Log.Errorf("stage %d: recovered panic in dispatch: %v", s.StageId, r)
	s.sendReply(p.Header, errors.CodeOf(errors.Internal(nil)))
	if !p.Disposed() {
		p.Dispose()
	}
}

func (s *Stage) runReply(e replyEntry) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("stage %d: recovered panic in reply callback: %v", s.StageId, r)
		}
	}()
	if e.packet != nil {
		ctx := pcontext.WithHeader(context.Background(), e.packet.Header)
		_ = ctx // reserved for app code that inspects the current header from a reply callback
	}
	e.onReply(e.errorCode, e.packet)
}

func (s *Stage) runTick(tick timer.Tick) {
	if s.Timers.IsCancelled(tick.TimerId) {
		return
	}
	if fn, ok := s.tickHandler(tick.TimerId); ok {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Log.Errorf("stage %d: recovered panic in timer %d: %v", s.StageId, tick.TimerId, r)
				}
			}()
			fn()
		}()
	}
}

func (s *Stage) runPostCallback(e postCallbackEntry) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("stage %d: recovered panic in async post: %v", s.StageId, r)
		}
	}()
	e.fn()
}

func (s *Stage) runClose() {
	s.setState(Closing)
	s.Timers.CancelAll()
	s.handler.OnDestroy(context.Background(), s)
	s.setState(Closed)
	s.closeOnce.Do(func() { close(s.closeDone) })
}

// CloseStage queues a close entry; when it runs, the stage cancels its
// timers, calls OnDestroy and becomes Closed. Requests the stage has issued
// with RequestTo* and not yet had answered are not failed by closing.
func (s *Stage) CloseStage() {
	s.Post(closeEntry{})
}

// Wait blocks until the stage has finished closing.
func (s *Stage) Wait(timeout time.Duration) bool {
	select {
	case <-s.closeDone:
		return true
	case <-time.After(timeout):
		return false
	}
}

// DeliverReply wraps onReply so that, when invoked by the node-level
// correlator on the transport goroutine, delivery is deferred onto this
// stage's own mailbox instead — so app code observes the reply on its
// single-threaded cycle, not the transport goroutine (spec 4.6's mailbox
// entry list: "API replies routed back to this stage").
func (s *Stage) DeliverReply(onReply correlator.OnReply) correlator.OnReply {
	return func(errorCode uint32, packet *route.Packet) {
		s.Post(replyEntry{errorCode: errorCode, packet: packet, onReply: onReply})
	}
}
