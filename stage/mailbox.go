package stage

import (
	"sync"

	"github.com/ulala-x/playhouse/correlator"
	"github.com/ulala-x/playhouse/route"
)

// mailbox entry kinds (spec 4.6: "Mailbox entries include: client-originated
// dispatch, inter-stage messages, API replies routed back to this stage,
// timer ticks, async-block post callbacks, and system lifecycle events").

type dispatchEntry struct {
	actor  *Actor
	packet *route.Packet
}

type replyEntry struct {
	errorCode uint32
	packet    *route.Packet
	onReply   correlator.OnReply
}

type postCallbackEntry struct {
	fn func()
}

type closeEntry struct{}

// mailbox is the FIFO queue a Stage drains one entry per cycle (spec 4.6).
type mailbox struct {
	mu    sync.Mutex
	items []interface{}
}

func newMailbox() *mailbox {
	return &mailbox{}
}

func (m *mailbox) push(item interface{}) {
	m.mu.Lock()
	m.items = append(m.items, item)
	m.mu.Unlock()
}

// pop removes and returns the oldest entry, or (nil, false) if empty.
func (m *mailbox) pop() (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil, false
	}
	item := m.items[0]
	m.items = m.items[1:]
	return item, true
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
