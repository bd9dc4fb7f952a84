package stage

import (
	"time"

	"github.com/ulala-x/playhouse/timer"
)

// AddRepeatTimer schedules fn to run on this stage's own cycle every
// period, starting after initialDelay, until CancelTimer or stage close
// (spec 4.6).
func (s *Stage) AddRepeatTimer(initialDelay, period time.Duration, fn func()) timer.Id {
	id := s.Timers.AddRepeatTimer(initialDelay, period)
	s.setTickHandler(id, fn)
	return id
}

// AddCountTimer schedules fn to run exactly count times (unless cancelled
// or the stage closes first), at period intervals after initialDelay
// (spec 4.6/8).
func (s *Stage) AddCountTimer(initialDelay, period time.Duration, count int, fn func()) timer.Id {
	id := s.Timers.AddCountTimer(initialDelay, period, count)
	s.setTickHandler(id, fn)
	return id
}

// CancelTimer removes the timer; an already-queued tick for it is dropped
// when popped (spec 4.6).
func (s *Stage) CancelTimer(id timer.Id) {
	s.Timers.CancelTimer(id)
}

func (s *Stage) setTickHandler(id timer.Id, fn func()) {
	s.tickHandlersLock.Lock()
	defer s.tickHandlersLock.Unlock()
	s.tickHandlers[id] = fn
}

func (s *Stage) tickHandler(id timer.Id) (func(), bool) {
	s.tickHandlersLock.Lock()
	defer s.tickHandlersLock.Unlock()
	fn, ok := s.tickHandlers[id]
	return fn, ok
}
