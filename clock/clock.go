// Package clock defines the mockable time source spec 6 requires
// ("Clock: monotonic Now(), used by timers/deadlines (must be mockable)").
package clock

import "time"

// Clock abstracts time.Now so timers and the request correlator can be
// tested deterministically.
type Clock interface {
	Now() time.Time
}

// System is the production Clock, backed by time.Now.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Default is the process-wide system clock.
var Default Clock = System{}
