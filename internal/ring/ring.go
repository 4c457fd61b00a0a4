// Package ring implements the fixed-capacity frame ring described in
// spec.md §3/§4.B: a power-of-two array of PCM slots indexed by sequence
// number modulo capacity, with the ready flag as the single bit that
// transfers ownership of the slot's PCM bytes between the ingress and
// egress paths.
package ring

import (
	msdk "github.com/livekit/media-sdk"

	"airsync/internal/seqnum"
)

// Slot holds one decoded-PCM frame's worth of state. Ready=false means a
// hole: missing, not yet arrived, already consumed, or flushed.
type Slot struct {
	Ready     bool
	Timestamp seqnum.Timestamp
	Sequence  seqnum.Seq
	PCM       msdk.PCM16Sample
}

// Ring is a fixed-size array of slots. Capacity must be a power of two.
type Ring struct {
	slots    []Slot
	capacity int
	frameLen int // stereo samples per slot (frame_size)
}

// New allocates a ring of the given capacity (must be a power of two) with
// each slot's PCM buffer pre-sized to hold frameSize interleaved stereo
// samples. Buffers are allocated once, for the session's lifetime, per
// spec.md §9's "arena of fixed PCM buffers" guidance.
func New(capacity, frameSize int) *Ring {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a power of two")
	}
	r := &Ring{
		slots:    make([]Slot, capacity),
		capacity: capacity,
		frameLen: frameSize * 2, // stereo
	}
	for i := range r.slots {
		r.slots[i].PCM = make(msdk.PCM16Sample, r.frameLen)
	}
	return r
}

// Capacity returns BUFFER_FRAMES.
func (r *Ring) Capacity() int { return r.capacity }

// BufIdx computes BUFIDX(s) = s mod BUFFER_FRAMES.
func (r *Ring) BufIdx(s seqnum.Seq) int {
	return int(s) & (r.capacity - 1)
}

// SlotFor returns a pointer to the slot that would hold sequence s.
func (r *Ring) SlotFor(s seqnum.Seq) *Slot {
	return &r.slots[r.BufIdx(s)]
}

// Clear marks the slot for s as not ready, without touching its backing
// PCM buffer (which is reused in place).
func (r *Ring) Clear(s seqnum.Seq) {
	slot := r.SlotFor(s)
	slot.Ready = false
	slot.Timestamp = 0
	slot.Sequence = 0
}

// ClearAll clears every slot, used by ring-resync on flush.
func (r *Ring) ClearAll() {
	for i := range r.slots {
		r.slots[i].Ready = false
		r.slots[i].Timestamp = 0
		r.slots[i].Sequence = 0
	}
}

// MarkReady stores decoded PCM into the slot for sequence s and marks it
// ready. pcm must already be exactly frameLen samples (4*frame_size bytes,
// per spec.md §4.C step 5); the caller (ingress) is responsible for that
// length assertion so ring stays oblivious to codec details.
func (r *Ring) MarkReady(s seqnum.Seq, ts seqnum.Timestamp, pcm msdk.PCM16Sample) {
	slot := r.SlotFor(s)
	copy(slot.PCM, pcm)
	slot.Ready = true
	slot.Timestamp = ts
	slot.Sequence = s
}

// AliasingRecovery implements spec.md §4.B: a writer that discovers the
// slot at BufIdx(s) is occupied by a different sequence number (an
// aliasing collision) must treat the stored entry as stale. If the stored
// sequence is after abRead in ordinate space, abRead should advance to it
// (recovery); otherwise the caller should just log an inconsistency.
//
// Returns (recoveredTo, recovered): recovered is true iff abRead should be
// advanced to recoveredTo.
func (r *Ring) AliasingRecovery(abRead, s seqnum.Seq) (recoveredTo seqnum.Seq, recovered bool) {
	slot := r.SlotFor(s)
	if !slot.Ready || slot.Sequence == s {
		return 0, false
	}
	if seqnum.SeqOrder(abRead, slot.Sequence) {
		return slot.Sequence, true
	}
	return 0, false
}
