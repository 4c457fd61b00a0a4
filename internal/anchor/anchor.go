// Package anchor defines the timing-anchor external collaborator contract
// from spec.md §6: a periodically-published pairing of a source media
// timestamp with a local wall-clock instant.
package anchor

import (
	"sync/atomic"

	"airsync/internal/seqnum"
)

// Snapshot is {reference_ts, reference_local_time} read together, per
// spec.md §5's "no tearing between the pair" requirement.
type Snapshot struct {
	ReferenceTS    seqnum.Timestamp
	ReferenceLocal seqnum.LocalTime
	RemoteLocal    seqnum.LocalTime
}

// Provider is implemented by the external timing-anchor collaborator.
// Snapshot's ts==0 means no anchor is available yet (spec.md §6).
type Provider interface {
	Snapshot() Snapshot
}

// Atomic is a concrete Provider: the publisher calls Publish, the reader
// calls Snapshot, and a single atomic pointer load/store keeps the pair
// from tearing without taking a lock on the hot egress path.
type Atomic struct {
	ptr atomic.Pointer[Snapshot]
}

// NewAtomic returns an Atomic with no anchor published yet.
func NewAtomic() *Atomic {
	a := &Atomic{}
	a.ptr.Store(&Snapshot{})
	return a
}

// Publish atomically installs a new anchor snapshot.
func (a *Atomic) Publish(s Snapshot) {
	cp := s
	a.ptr.Store(&cp)
}

// Snapshot returns the most recently published anchor.
func (a *Atomic) Snapshot() Snapshot {
	return *a.ptr.Load()
}

// Available reports whether a real anchor has been published yet.
func (s Snapshot) Available() bool {
	return s.ReferenceTS != 0
}
