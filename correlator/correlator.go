// Package correlator implements the request/reply correlator of spec 4.5:
// a per-node monotonic msgSeq generator, an in-flight concurrent map, a
// timeout-expiry scanner, and exactly-once reply delivery (spec 8,
// "Exactly-once reply").
package correlator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ulala-x/playhouse/clock"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
)

// OnReply is invoked exactly once per in-flight entry: either with a reply
// packet and errorCode 0, or with errorCode != 0 and a nil packet (spec 8).
type OnReply func(errorCode uint32, packet *route.Packet)

type entry struct {
	msgSeq    uint16
	deadline  time.Time
	onReply   OnReply
	originNid nid.NID
	completed int32 // atomic guard against double delivery
}

// Correlator owns one node's msgSeq generator and in-flight table.
type Correlator struct {
	mu      sync.Mutex
	entries map[uint16]*entry
	seq     uint32 // wraps at 2^16-1, skipping 0; stored wider to CAS-free increment

	clock          clock.Clock
	defaultTimeout time.Duration

	scanStop chan struct{}
	scanOnce sync.Once
}

// New builds a Correlator. defaultTimeout is spec 6's RequestTimeoutMs
// default (30s) when zero.
func New(c clock.Clock, defaultTimeout time.Duration) *Correlator {
	if c == nil {
		c = clock.Default
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Correlator{
		entries:        make(map[uint16]*entry),
		clock:          c,
		defaultTimeout: defaultTimeout,
		scanStop:       make(chan struct{}),
	}
}

// NextSeq allocates the next msgSeq, wrapping at 2^16-1 and skipping 0
// (spec 4.5: "0 denotes a push/one-way").
func (c *Correlator) NextSeq() uint16 {
	for {
		next := atomic.AddUint32(&c.seq, 1)
		seq := uint16(next % 0xFFFF)
		if seq != 0 {
			return seq
		}
		// fall through: wrapped onto 0, try again
	}
}

// Register allocates a request's in-flight entry before the packet is
// handed to the transport, per spec 4.5 steps 1-2. Call Register then
// Complete/Expire exactly once.
func (c *Correlator) Register(msgSeq uint16, origin nid.NID, timeout time.Duration, onReply OnReply) {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	e := &entry{
		msgSeq:    msgSeq,
		deadline:  c.clock.Now().Add(timeout),
		onReply:   onReply,
		originNid: origin,
	}
	c.mu.Lock()
	c.entries[msgSeq] = e
	c.mu.Unlock()
}

// Complete handles an inbound reply packet (spec 4.5 "Reply handling"):
// exact match removes the entry and invokes onReply exactly once; no match
// is logged at info level and the packet is disposed here.
func (c *Correlator) Complete(p *route.Packet) {
	msgSeq := p.Header.MsgSeq
	c.mu.Lock()
	e, ok := c.entries[msgSeq]
	if ok {
		delete(c.entries, msgSeq)
	}
	c.mu.Unlock()

	if !ok {
		logger.Log.Infof("correlator: no in-flight request for msgSeq=%d", msgSeq)
		p.Dispose()
		return
	}
	deliver(e, p.Header.ErrorCode, p)
}

// deliver invokes onReply exactly once, guarding against a late reply
// arriving concurrently with a timeout expiry for the same entry.
func deliver(e *entry, errorCode uint32, p *route.Packet) {
	if !atomic.CompareAndSwapInt32(&e.completed, 0, 1) {
		if p != nil {
			p.Dispose()
		}
		return
	}
	e.onReply(errorCode, p)
	if p != nil {
		p.Dispose()
	}
}

// StartExpiryScanner runs the single timer thread spec 4.5 describes,
// scanning entries whose deadline has passed every tick and expiring them
// with RequestTimeout.
func (c *Correlator) StartExpiryScanner(tick time.Duration) {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.expireOverdue()
			case <-c.scanStop:
				return
			}
		}
	}()
}

// StopExpiryScanner halts the background scanner goroutine.
func (c *Correlator) StopExpiryScanner() {
	c.scanOnce.Do(func() { close(c.scanStop) })
}

func (c *Correlator) expireOverdue() {
	now := c.clock.Now()
	var overdue []*entry

	c.mu.Lock()
	for seq, e := range c.entries {
		if now.After(e.deadline) {
			overdue = append(overdue, e)
			delete(c.entries, seq)
		}
	}
	c.mu.Unlock()

	for _, e := range overdue {
		deliver(e, errors.CodeOf(errors.RequestTimeout()), nil)
	}
}

// ExpireAll fails every outstanding entry with the given framework error
// code, whatever its origin. The node mains call it with ShuttingDown on
// shutdown; there is no stage-scoped expiry.
func (c *Correlator) ExpireAll(code uint32) {
	c.mu.Lock()
	all := make([]*entry, 0, len(c.entries))
	for seq, e := range c.entries {
		all = append(all, e)
		delete(c.entries, seq)
	}
	c.mu.Unlock()

	for _, e := range all {
		deliver(e, code, nil)
	}
}

// Cancel fails a single in-flight entry with code, leaving every other
// outstanding request untouched. Used when the send that registered msgSeq
// fails locally before ever reaching the transport (e.g. an unroutable
// stageId), so that failure does not collaterally expire unrelated
// requests the way ExpireAll would (spec 8's "Exactly-once reply" applies
// per-request, not per-node).
func (c *Correlator) Cancel(msgSeq uint16, code uint32) {
	c.mu.Lock()
	e, ok := c.entries[msgSeq]
	if ok {
		delete(c.entries, msgSeq)
	}
	c.mu.Unlock()

	if ok {
		deliver(e, code, nil)
	}
}

// Pending reports the number of in-flight requests (used for metrics/tests).
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
