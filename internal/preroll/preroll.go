// Package preroll implements the pre-roll synchronizer from spec.md
// §4.E: decide the first-play instant from the timing anchor, then emit
// silence until the output device will catch up to it exactly. Grounded
// on the teacher's bridge/endpoints/tg_endpoint.go SendPCMFrame10ms,
// which derives a stable playback timeline from time.Now() plus a fixed
// step and never lets it run backwards -- the same "compute a target
// instant once, then track toward it" shape, generalized from a fixed
// cadence to spec.md's anchor-derived target.
package preroll

import (
	"airsync/internal/anchor"
	"airsync/internal/clock"
	"airsync/internal/flush"
	"airsync/internal/seqnum"
)

// FillerSize and MaxDACDelay are the two constants spec.md §4.E names
// directly (4410 frames == 0.1s at 44100Hz).
const (
	FillerSize  = 4410
	MaxDACDelay = 4410
)

// Sink is the subset of the output-sink contract pre-roll needs.
type Sink interface {
	Delay() int
	Play(pcm []int16, frameCount int) error
}

// State is the pre-roll synchronizer's own bookkeeping, held alongside
// the session's other first_packet_* fields (spec.md §3).
type State struct {
	Buffering             bool
	FirstPacketTimestamp   seqnum.Timestamp
	FirstPacketTimeToPlay  seqnum.LocalTime
	havePlayTarget         bool
}

// NewState starts a session in the buffering phase, per spec.md §4.E's
// "active when ab_buffering == true" precondition.
func NewState() *State {
	return &State{Buffering: true}
}

// Outcome tells the egress loop what happened this iteration.
type Outcome int

const (
	StillBuffering Outcome = iota
	EmittedSilence
	Done
	FlushedLate
	Overshot
)

// Params are the configuration knobs pre-roll needs from spec.md §6.
type Params struct {
	Latency                  int64
	BackendLatencyOffset     int64
	FrameSize                int
	SampleRate               int
}

// Step runs one pre-roll iteration. curframeTimestamp/curframeReady
// describe the ring slot at ab_read; anchorProvider/clk/sink are the
// external collaborators; flushCtl receives the flush(ts) call when the
// first packet turns out to already be late.
func Step(st *State, curframeReady bool, curframeTimestamp seqnum.Timestamp, anchorProvider anchor.Provider, clk clock.Clock, sink Sink, flushCtl *flush.Controller, p Params) Outcome {
	if !curframeReady {
		return StillBuffering
	}

	if st.FirstPacketTimestamp == 0 {
		snap := anchorProvider.Snapshot()
		if !snap.Available() {
			return StillBuffering
		}
		st.FirstPacketTimestamp = curframeTimestamp
		delta := int64(int32(curframeTimestamp - snap.ReferenceTS))
		offsetFrames := delta + p.Latency + p.BackendLatencyOffset
		offsetLocal := seqnum.FramesToLocalTime(offsetFrames, p.SampleRate)
		st.FirstPacketTimeToPlay = seqnum.Add(snap.ReferenceLocal, offsetLocal)
		st.havePlayTarget = true

		now := clk.Now()
		if seqnum.Signed(now) >= seqnum.Signed(st.FirstPacketTimeToPlay) {
			flushCtl.Request(st.FirstPacketTimestamp + FillerSize)
			st.reset()
			return FlushedLate
		}
	}

	dacDelay := sink.Delay()
	if dacDelay < 0 {
		dacDelay = 0
	}

	now := clk.Now()
	remaining := seqnum.Sub(st.FirstPacketTimeToPlay, now)
	grossFrameGap := seqnum.LocalTimeToFrames(remaining, p.SampleRate)
	exactFrameGap := grossFrameGap - int64(dacDelay)

	if exactFrameGap <= 0 {
		// Overshot: the output device will never catch up to the first
		// packet's play target. Route through the flush controller so the
		// egress loop's existing ring_resync (sink.Flush, clear ring,
		// ab_synced=false, last_seqno_read=-1) performs the full spec.md
		// §4.D recovery, the same path FlushedLate uses above.
		flushCtl.Request(curframeTimestamp)
		st.reset()
		return Overshot
	}

	fs := FillerSize
	if MaxDACDelay-dacDelay < fs {
		fs = MaxDACDelay - dacDelay
	}
	if fs < 0 {
		fs = 0
	}

	if exactFrameGap <= int64(fs) || exactFrameGap <= int64(2*p.FrameSize) {
		fs = int(exactFrameGap)
		st.Buffering = false
		silence := make([]int16, fs*2)
		_ = sink.Play(silence, fs)
		return Done
	}

	silence := make([]int16, fs*2)
	_ = sink.Play(silence, fs)
	return EmittedSilence
}

func (st *State) reset() {
	st.Reset()
}

// Reset clears first_packet_timestamp/first_packet_time_to_play and
// re-enters buffering, the flush-controller side effect spec.md §4.D
// requires on ring_resync.
func (st *State) Reset() {
	st.FirstPacketTimestamp = 0
	st.FirstPacketTimeToPlay = 0
	st.havePlayTarget = false
	st.Buffering = true
}
