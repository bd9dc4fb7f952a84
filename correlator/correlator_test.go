package correlator

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Now()} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestNextSeq_SkipsZero(t *testing.T) {
	c := New(newFakeClock(), time.Second)
	seen := map[uint16]bool{}
	for i := 0; i < 1000; i++ {
		seq := c.NextSeq()
		assert.NotZero(t, seq)
		seen[seq] = true
	}
	assert.Len(t, seen, 1000)
}

func TestComplete_ExactlyOnceDelivery(t *testing.T) {
	c := New(newFakeClock(), time.Second)
	var calls int32
	var gotCode uint32

	seq := c.NextSeq()
	c.Register(seq, nid.New(1, "a"), time.Second, func(errorCode uint32, p *route.Packet) {
		atomic.AddInt32(&calls, 1)
		gotCode = errorCode
	})

	reply := route.New(&route.Header{MsgSeq: seq, IsReply: true}, []byte("pong"))
	c.Complete(reply)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, uint32(0), gotCode)
	assert.Equal(t, 0, c.Pending())
}

func TestComplete_NoMatch_DropsSilently(t *testing.T) {
	c := New(newFakeClock(), time.Second)
	reply := route.New(&route.Header{MsgSeq: 999, IsReply: true}, nil)
	assert.NotPanics(t, func() { c.Complete(reply) })
}

func TestExpiry_FiresRequestTimeoutExactlyOnce(t *testing.T) {
	fc := newFakeClock()
	c := New(fc, time.Second)

	var calls int32
	var gotCode uint32
	seq := c.NextSeq()
	c.Register(seq, nid.New(1, "a"), 10*time.Millisecond, func(errorCode uint32, p *route.Packet) {
		atomic.AddInt32(&calls, 1)
		gotCode = errorCode
		assert.Nil(t, p)
	})

	fc.Advance(20 * time.Millisecond)
	c.expireOverdue()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, uint32(constants.CodeRequestTimeout), gotCode)
	assert.Equal(t, 0, c.Pending())

	// A late reply for the same msgSeq arriving after expiry finds no
	// in-flight entry (already removed) and is dropped rather than
	// delivered a second time.
	late := route.New(&route.Header{MsgSeq: seq, IsReply: true}, []byte("too late"))
	c.Complete(late)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExpireAll_FailsEveryOutstandingEntry(t *testing.T) {
	c := New(newFakeClock(), time.Second)
	var calls int32
	for i := 0; i < 5; i++ {
		seq := c.NextSeq()
		c.Register(seq, nid.New(1, "a"), time.Minute, func(errorCode uint32, p *route.Packet) {
			atomic.AddInt32(&calls, 1)
			assert.Equal(t, uint32(constants.CodeShuttingDown), errorCode)
		})
	}
	require.Equal(t, 5, c.Pending())

	c.ExpireAll(constants.CodeShuttingDown)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, c.Pending())
}

func TestStartStopExpiryScanner(t *testing.T) {
	fc := newFakeClock()
	c := New(fc, time.Second)
	c.StartExpiryScanner(5 * time.Millisecond)
	defer c.StopExpiryScanner()

	var called int32
	seq := c.NextSeq()
	c.Register(seq, nid.New(1, "a"), 10*time.Millisecond, func(errorCode uint32, p *route.Packet) {
		atomic.StoreInt32(&called, 1)
	})

	fc.Advance(50 * time.Millisecond)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&called) == 1
	}, time.Second, 5*time.Millisecond)
}
