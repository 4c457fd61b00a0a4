// Package clock binds the synchronizer's 32.32 fixed-point local time
// (internal/seqnum.LocalTime) to a real monotonic clock. Go's time.Now()
// is always monotonic-backed, which is the Go-idiomatic resolution of
// spec.md §4.F/§5's note about condition-variable waits needing an
// absolute-monotonic clock on platforms that support one.
package clock

import (
	"time"

	"airsync/internal/seqnum"
)

// Clock converts real time to and from the synchronizer's fixed-point
// local-time domain, which must agree with whatever clock the external
// timing-anchor collaborator uses to stamp its own snapshots.
type Clock interface {
	Now() seqnum.LocalTime
}

// Monotonic anchors LocalTime 0 at the instant it's constructed and
// reports elapsed monotonic time since then.
type Monotonic struct {
	epoch time.Time
}

// NewMonotonic returns a Clock whose epoch is the current instant.
func NewMonotonic() Monotonic {
	return Monotonic{epoch: time.Now()}
}

func (m Monotonic) Now() seqnum.LocalTime {
	return seqnum.FromDuration(time.Since(m.epoch))
}
