package heartbeat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/clock"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/registry"
	"github.com/ulala-x/playhouse/route"
)

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages [][]byte
}

func (b *fakeBroadcaster) BroadcastSystem(msgId string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, payload)
	return nil
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

func jsonEncode(info registry.ServerInfo) ([]byte, error) { return json.Marshal(info) }
func jsonDecode(b []byte) (registry.ServerInfo, error) {
	var info registry.ServerInfo
	err := json.Unmarshal(b, &info)
	return info, err
}

func TestService_Start_AnnouncesSelfImmediately(t *testing.T) {
	self := nid.New(1, "play-1")
	reg := registry.New(5*time.Second, time.Minute, clock.Default)
	bcast := &fakeBroadcaster{}
	svc := New(Config{
		Self: self, Registry: reg, Broadcaster: bcast,
		Interval: time.Hour, Encode: jsonEncode, Decode: jsonDecode,
	})

	svc.Start(context.Background())
	defer svc.Stop()

	assert.True(t, reg.IsReachable(self), "a node must know about itself immediately, before any broadcast round-trips")
	assert.Eventually(t, func() bool { return bcast.count() >= 1 }, time.Second, time.Millisecond)
}

func TestService_OnSystemMessage_FeedsRegistry(t *testing.T) {
	self := nid.New(1, "api-1")
	reg := registry.New(5*time.Second, time.Minute, clock.Default)
	svc := New(Config{Self: self, Registry: reg, Encode: jsonEncode, Decode: jsonDecode})

	peer := nid.New(1, "api-2")
	info := registry.ServerInfo{Nid: peer, ServiceId: 1, State: registry.ServerInfoRunning}
	payload, err := jsonEncode(info)
	require.NoError(t, err)

	svc.OnSystemMessage(&route.Header{MsgId: SystemMsgId}, payload)
	assert.True(t, reg.IsReachable(peer))
}

func TestService_OnSystemMessage_IgnoresOtherMsgIds(t *testing.T) {
	reg := registry.New(5*time.Second, time.Minute, clock.Default)
	svc := New(Config{Self: nid.New(1, "api-1"), Registry: reg, Encode: jsonEncode, Decode: jsonDecode})

	peer := nid.New(1, "api-2")
	payload, _ := jsonEncode(registry.ServerInfo{Nid: peer, ServiceId: 1, State: registry.ServerInfoRunning})
	svc.OnSystemMessage(&route.Header{MsgId: "not-a-heartbeat"}, payload)
	assert.False(t, reg.IsReachable(peer))
}

func TestService_Stop_HaltsAnnounceLoop(t *testing.T) {
	self := nid.New(1, "play-1")
	reg := registry.New(5*time.Second, time.Minute, clock.Default)
	bcast := &fakeBroadcaster{}
	svc := New(Config{
		Self: self, Registry: reg, Broadcaster: bcast,
		Interval: 2 * time.Millisecond, Encode: jsonEncode, Decode: jsonDecode,
	})

	svc.Start(context.Background())
	assert.Eventually(t, func() bool { return bcast.count() >= 2 }, time.Second, time.Millisecond)

	svc.Stop()
	countAtStop := bcast.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, countAtStop, bcast.count(), "no further announces after Stop")
}
