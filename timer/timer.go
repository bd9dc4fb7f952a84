// Package timer implements the per-stage timer wheel of spec 4.6: repeat
// and count timers that post a TimerTick into the owning stage's mailbox
// rather than invoking the callback directly, preserving the stage's
// single-threaded invariant.
package timer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Id identifies a timer within its owning stage.
type Id uint64

// Tick is the mailbox entry a fired timer posts (spec 4.6: "a TimerTick{timerId}
// entry is enqueued onto the owning stage's mailbox").
type Tick struct {
	TimerId Id
}

// Poster enqueues an entry onto the owning stage's mailbox. The stage
// package's Stage type implements this.
type Poster interface {
	Post(entry interface{})
}

type timerEntry struct {
	id        Id
	fn        func()
	period    time.Duration
	remaining int // -1 means unlimited (repeat timer)
	cancelled int32
	t         *time.Timer
}

// Wheel owns every timer for a single stage.
type Wheel struct {
	mu      sync.Mutex
	timers  map[Id]*timerEntry
	nextID  uint64
	poster  Poster
}

// NewWheel builds a Wheel posting ticks to poster.
func NewWheel(poster Poster) *Wheel {
	return &Wheel{
		timers: make(map[Id]*timerEntry),
		poster: poster,
	}
}

// AddRepeatTimer schedules a Tick to be posted every period, starting
// after initialDelay, until CancelTimer is called or the stage closes.
func (w *Wheel) AddRepeatTimer(initialDelay, period time.Duration) Id {
	return w.add(initialDelay, period, -1)
}

// AddCountTimer schedules a Tick to be posted count times, at period intervals
// after initialDelay. CountTimer cardinality: invokes exactly count times
// unless cancelled or the stage closes first (spec 8).
func (w *Wheel) AddCountTimer(initialDelay, period time.Duration, count int) Id {
	return w.add(initialDelay, period, count)
}

func (w *Wheel) add(initialDelay, period time.Duration, count int) Id {
	w.mu.Lock()
	id := Id(atomic.AddUint64(&w.nextID, 1))
	e := &timerEntry{id: id, period: period, remaining: count}
	w.timers[id] = e
	w.mu.Unlock()

	e.t = time.AfterFunc(initialDelay, func() { w.fire(e) })
	return id
}

func (w *Wheel) fire(e *timerEntry) {
	if atomic.LoadInt32(&e.cancelled) != 0 {
		return
	}

	w.poster.Post(Tick{TimerId: e.id})

	w.mu.Lock()
	_, stillTracked := w.timers[e.id]
	w.mu.Unlock()
	if !stillTracked {
		return
	}

	if e.remaining > 0 {
		e.remaining--
		if e.remaining == 0 {
			// The entry stays tracked so the final Tick, which may still be
			// queued in the stage's mailbox, is not dropped as cancelled.
			return
		}
	}

	e.t = time.AfterFunc(e.period, func() { w.fire(e) })
}

// CancelTimer removes the timer. In-flight ticks already posted to the
// mailbox are filtered out by the stage when processed (IsCancelled), since
// the tick may already be queued by the time this runs.
func (w *Wheel) CancelTimer(id Id) {
	w.mu.Lock()
	e, ok := w.timers[id]
	if ok {
		delete(w.timers, id)
	}
	w.mu.Unlock()

	if ok {
		atomic.StoreInt32(&e.cancelled, 1)
		e.t.Stop()
	}
}

// IsCancelled reports whether id is no longer tracked, so the stage can
// drop a Tick that was already sitting in its mailbox when CancelTimer ran.
func (w *Wheel) IsCancelled(id Id) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.timers[id]
	return !ok
}

// CancelAll stops every timer owned by this wheel (spec 5: "Closing a stage
// cancels all its timers").
func (w *Wheel) CancelAll() {
	w.mu.Lock()
	all := make([]*timerEntry, 0, len(w.timers))
	for _, e := range w.timers {
		all = append(all, e)
	}
	w.timers = make(map[Id]*timerEntry)
	w.mu.Unlock()

	for _, e := range all {
		atomic.StoreInt32(&e.cancelled, 1)
		e.t.Stop()
	}
}
