// Package flush implements the flush controller from spec.md §4.D: a
// pending flush request carries an rtp-timestamp boundary that gates
// which arriving packets are dropped (internal/ingress), and keeps doing
// so after the request itself is serviced until a later packet passes it.
// Egress does not scan the ring against the boundary: servicing a flush
// clears every slot instead.
package flush

import (
	"sync"

	"airsync/internal/seqnum"
)

// DrainLimit is a frame budget (≈0.2s at 44100Hz) for dropping frames at
// or before the flush boundary. No package in this module reads it: the
// egress loop has no drain step of its own, it clears the whole ring when
// it services a flush.
const DrainLimit = 8820

// Controller owns flush_requested/flush_rtp_timestamp under its own
// mutex, separate from ab_mutex, per spec.md §5's acquisition-order rule.
type Controller struct {
	mu sync.Mutex

	requested bool
	// boundary == 0 means "no flush pending" (spec.md §9: this overload
	// is preserved exactly — a caller flushing at the literal timestamp
	// 0 cannot be distinguished from "nothing pending". Documented, not
	// worked around.)
	boundary seqnum.Timestamp
}

// Request records a pending flush at ts, per the flush(ts) API (spec.md
// §4.K) and the connection-state-to-off trigger (spec.md §4.D).
func (c *Controller) Request(ts seqnum.Timestamp) {
	c.mu.Lock()
	c.requested = true
	c.boundary = ts
	c.mu.Unlock()
}

// Pending reports whether a flush is outstanding and its boundary.
func (c *Controller) Pending() (requested bool, boundary seqnum.Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requested, c.boundary
}

// Boundary returns the current flush_rtp_timestamp regardless of
// requested state — used by ingress to gate drops even after egress has
// cleared `requested` but the low-pass-filter boundary still lingers.
func (c *Controller) Boundary() seqnum.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boundary
}

// ClearRequested clears the requested flag once egress has performed the
// ring-resync side effects, leaving the boundary itself in place to keep
// low-pass-filtering stale frames (spec.md §4.D).
func (c *Controller) ClearRequested() {
	c.mu.Lock()
	c.requested = false
	c.mu.Unlock()
}

// ClearBoundary drops the lingering boundary once a frame strictly after
// it has been observed (spec.md §4.D: "flush_rtp_timestamp cleared when
// the first such frame is observed").
func (c *Controller) ClearBoundary() {
	c.mu.Lock()
	c.boundary = 0
	c.mu.Unlock()
}

// ShouldDropOnArrival implements spec.md §4.C step 1: a packet whose
// timestamp is at or before a pending boundary is dropped; once ts is
// strictly after it, the boundary itself clears (step 2).
func ShouldDropOnArrival(boundary seqnum.Timestamp, ts seqnum.Timestamp) (drop bool, clearBoundary bool) {
	if boundary == 0 {
		return false, false
	}
	if !seqnum.TSOrder(boundary, ts) {
		// ts is at or before boundary in wrap-safe order: drop.
		return true, false
	}
	return false, true
}
