package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/nid"
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

func TestRegistry_MonotonicityUntilLivenessTimeout(t *testing.T) {
	fc := newFakeClock()
	r := New(5*time.Second, time.Minute, fc)

	n := nid.New(1, "play-1")
	r.OnHeartbeat(ServerInfo{Nid: n, ServiceId: 1, State: ServerInfoRunning, Weight: 1})

	entry, ok := r.Get(n)
	require.True(t, ok)
	assert.Equal(t, Running, entry.State)

	fc.Advance(4 * time.Second)
	r.Sweep()
	entry, _ = r.Get(n)
	assert.Equal(t, Running, entry.State, "must remain Running before livenessTimeout elapses")

	fc.Advance(2 * time.Second)
	r.Sweep()
	entry, _ = r.Get(n)
	assert.Equal(t, Disabled, entry.State, "must be marked Disabled once age exceeds livenessTimeout")
}

func TestRegistry_PurgedAfterPurgeTimeout(t *testing.T) {
	fc := newFakeClock()
	r := New(time.Second, 5*time.Second, fc)

	n := nid.New(1, "play-1")
	r.OnHeartbeat(ServerInfo{Nid: n, ServiceId: 1, State: ServerInfoRunning})

	fc.Advance(10 * time.Second)
	r.Sweep()

	_, ok := r.Get(n)
	assert.False(t, ok, "entry must be removed after purgeTimeout")
}

func TestRegistry_IsReachable(t *testing.T) {
	fc := newFakeClock()
	r := New(5*time.Second, time.Minute, fc)
	n := nid.New(1, "play-1")

	assert.False(t, r.IsReachable(n))

	r.OnHeartbeat(ServerInfo{Nid: n, ServiceId: 1, State: ServerInfoRunning})
	assert.True(t, r.IsReachable(n))

	r.OnHeartbeat(ServerInfo{Nid: n, ServiceId: 1, State: ServerInfoDisabled})
	assert.False(t, r.IsReachable(n))
}

func TestRegistry_RoundRobin_IndependentCountersPerService(t *testing.T) {
	fc := newFakeClock()
	r := New(5*time.Second, time.Minute, fc)

	for i := 1; i <= 3; i++ {
		r.OnHeartbeat(ServerInfo{Nid: nid.New(1, "api-" + string(rune('0'+i))), ServiceId: 1, State: ServerInfoRunning})
	}
	r.OnHeartbeat(ServerInfo{Nid: nid.New(2, "play-1"), ServiceId: 2, State: ServerInfoRunning})

	seen := map[nid.NID]int{}
	for i := 0; i < 6; i++ {
		n, ok := r.RoundRobin(1)
		require.True(t, ok)
		seen[n]++
	}
	assert.Len(t, seen, 3, "round robin should cycle through all 3 running members")
	for _, count := range seen {
		assert.Equal(t, 2, count)
	}

	// The service-2 counter must be independent of service-1's.
	n, ok := r.RoundRobin(2)
	require.True(t, ok)
	assert.Equal(t, nid.New(2, "play-1"), n)
}

func TestRegistry_RoundRobin_NoneWhenNoRunningMembers(t *testing.T) {
	fc := newFakeClock()
	r := New(5*time.Second, time.Minute, fc)
	_, ok := r.RoundRobin(1)
	assert.False(t, ok)
}

func TestRegistry_Weighted_PicksHighestWeight_TieBrokenByNID(t *testing.T) {
	fc := newFakeClock()
	r := New(5*time.Second, time.Minute, fc)

	r.OnHeartbeat(ServerInfo{Nid: nid.New(1, "play-a"), ServiceId: 1, State: ServerInfoRunning, Weight: 5})
	r.OnHeartbeat(ServerInfo{Nid: nid.New(1, "play-b"), ServiceId: 1, State: ServerInfoRunning, Weight: 10})
	r.OnHeartbeat(ServerInfo{Nid: nid.New(1, "play-c"), ServiceId: 1, State: ServerInfoRunning, Weight: 10})

	n, ok := r.Weighted(1)
	require.True(t, ok)
	// play-b and play-c tie at weight 10; "1:play-b" < "1:play-c" lexically.
	assert.Equal(t, nid.New(1, "play-b"), n)
}

func TestRegistry_Weighted_NoneWhenNoRunningMembers(t *testing.T) {
	fc := newFakeClock()
	r := New(5*time.Second, time.Minute, fc)
	_, ok := r.Weighted(1)
	assert.False(t, ok)
}

func TestStageDirectory_AnnounceLocateForget(t *testing.T) {
	d := NewStageDirectory()
	host := nid.New(1, "play-1")

	_, ok := d.LocateStage(123)
	assert.False(t, ok)

	d.Announce(123, host)
	got, ok := d.LocateStage(123)
	require.True(t, ok)
	assert.Equal(t, host, got)

	d.Forget(123)
	_, ok = d.LocateStage(123)
	assert.False(t, ok)
}
