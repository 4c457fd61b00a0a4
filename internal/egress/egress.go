// Package egress implements the sync loop from spec.md §4.F: per frame,
// decide whether to release the next ring slot, compute sync error
// against the timing anchor, choose a ±1-sample correction, rate-limit
// it, and hand the result to the stuffer and sink. Grounded most heavily
// on the teacher's bridge/media_bridge.go writeTG goroutine: its
// driftAcc accumulator with hysteresis, its periodic stats logging, and
// its ticker-driven per-frame loop are the direct template, narrowed
// from "whole backlog frames" to spec.md's "one sample, probabilistically
// rate-limited by session age" semantics.
package egress

import (
	"math/rand"
	"time"

	"airsync/internal/anchor"
	"airsync/internal/clock"
	"airsync/internal/ring"
	"airsync/internal/seqnum"
	"airsync/internal/stats"
)

// DACBufferQueueMinimumLength is the spec.md §4.F constant below which
// corrections are forced to 0 regardless of sync error.
const DACBufferQueueMinimumLength = 5000

// Sink is the subset of the output contract egress needs directly;
// internal/stuff and internal/volume own the rest.
type Sink interface {
	Delay() int
	Play(pcm []int16, frameCount int) error
}

// Resender requests retransmission of a sequence range.
type Resender interface {
	RequestResend(first seqnum.Seq, count int) error
}

// Stuffer is implemented by internal/stuff.Basic (and, with a small
// adapter, HighQuality): produce frameSize+stuff stereo samples from in.
type Stuffer interface {
	Stuff(in []int16, frameSize int, stuffAmount int, fixVolume int32, out []int16) int
}

// Params mirrors the configuration knobs spec.md §6 lists that bear on
// the sync loop.
type Params struct {
	Latency                       int64
	BackendLatencyOffset          int64
	BackendBufferDesiredLength    int64
	Tolerance                     int64
	ResyncThreshold               int64
	FrameSize                     int
	SampleRate                   int
	TimeoutSeconds                int64
	DontCheckTimeout              bool
}

// Loop holds the cursors and counters the sync loop owns, the egress
// slice of spec.md §3's synchronizer state.
type Loop struct {
	Ring     *ring.Ring
	Anchor   anchor.Provider
	Clock    clock.Clock
	Sink     Sink
	Resender Resender
	Stuffer  Stuffer
	Stats    *stats.Window
	Params   Params
	rng      *rand.Rand

	ABRead         seqnum.Seq
	ABWrite        seqnum.Seq
	LastSeqnoRead  int64 // -1 means "not yet established"

	sessionStart        time.Time
	resyncWatchdogCount int
	FlushFn             func(ts seqnum.Timestamp)
	ShutdownFn          func()
}

// NewLoop constructs a Loop. sessionStart anchors the rate limiter's
// "time since first play" clause (spec.md §4.F).
func NewLoop(r *ring.Ring, a anchor.Provider, clk clock.Clock, sink Sink, resender Resender, stuffer Stuffer, st *stats.Window, p Params) *Loop {
	return &Loop{
		Ring: r, Anchor: a, Clock: clk, Sink: sink, Resender: resender,
		Stuffer: stuffer, Stats: st, Params: p,
		rng: rand.New(rand.NewSource(1)), LastSeqnoRead: -1,
		sessionStart: time.Now(),
	}
}

// ServiceTimeout implements spec.md §4.F step 1: if audio has been
// silent for timeout_seconds since lastAudioPacket, request upstream
// shutdown via ShutdownFn. Per spec.md §7, this only signals the
// caller -- it does not itself tear the core down. Returns true if the
// timeout condition holds (ShutdownFn may have already fired on a prior
// call; invoking it again is harmless since the caller is expected to
// latch the first signal).
func (l *Loop) ServiceTimeout(lastAudioPacket time.Time) bool {
	if l.Params.DontCheckTimeout || l.Params.TimeoutSeconds <= 0 {
		return false
	}
	if lastAudioPacket.IsZero() {
		return false
	}
	if time.Since(lastAudioPacket) < time.Duration(l.Params.TimeoutSeconds)*time.Second {
		return false
	}
	if l.ShutdownFn != nil {
		l.ShutdownFn()
	}
	return true
}

// ReleaseDecision implements spec.md §4.F step 5: should the frame at
// ab_read be released to the sink this instant?
func (l *Loop) ReleaseDecision(curframeTimestamp seqnum.Timestamp, ready bool) bool {
	if !ready || curframeTimestamp == 0 {
		return false
	}
	snap := l.Anchor.Snapshot()
	if !snap.Available() {
		return false
	}
	delta := int64(int32(curframeTimestamp - snap.ReferenceTS))
	offset := l.Params.Latency + l.Params.BackendLatencyOffset - l.Params.BackendBufferDesiredLength
	net := delta + offset
	timeToPlay := seqnum.Add(snap.ReferenceLocal, seqnum.FramesToLocalTime(net, l.Params.SampleRate))
	now := l.Clock.Now()
	return seqnum.Signed(now) >= seqnum.Signed(timeToPlay)
}

// LastChanceResend implements spec.md §4.F step 7's resend sweep: for i =
// 8, 16, 32, ... while i < seq_diff(ab_read, ab_write)/2, request a
// resend of the slot at ab_read+i if it still isn't ready.
func (l *Loop) LastChanceResend() {
	if l.Resender == nil {
		return
	}
	diff := seqnum.Distance(l.ABRead, l.ABWrite)
	for i := 8; i < diff/2; i *= 2 {
		s := seqnum.SeqSum(l.ABRead, seqnum.Seq(i))
		if !l.Ring.SlotFor(s).Ready {
			_ = l.Resender.RequestResend(s, 1)
			l.Stats.RecordResend()
		}
	}
}

// SyncError implements spec.md §4.F step 7's sync-error computation.
func (l *Loop) SyncError(curframeTimestamp seqnum.Timestamp) (syncError int64, currentDelay int) {
	snap := l.Anchor.Snapshot()
	td := seqnum.Sub(l.Clock.Now(), snap.ReferenceLocal)
	tdInFrames := seqnum.LocalTimeToFrames(td, l.Params.SampleRate)

	currentDelay = l.Sink.Delay()
	if currentDelay < 0 {
		currentDelay = 0
	}

	delay := tdInFrames + int64(snap.ReferenceTS) - (int64(curframeTimestamp) - int64(currentDelay))
	syncError = delay - l.Params.Latency
	return syncError, currentDelay
}

// CorrectionChoice implements spec.md §4.F's "correction choice" and
// rate limiter.
func (l *Loop) CorrectionChoice(syncError int64, currentDelay int) int {
	var amount int
	switch {
	case syncError > l.Params.Tolerance:
		amount = -1
	case syncError < -l.Params.Tolerance:
		amount = 1
	}

	if currentDelay < DACBufferQueueMinimumLength {
		return 0
	}

	since := time.Since(l.sessionStart)
	if since < 5*time.Second {
		return 0
	}
	if since < 30*time.Second {
		if l.rng.Intn(1000) < 648 {
			return 0
		}
	}
	return amount
}

// ResyncWatchdog implements spec.md §4.F's resync watchdog: three
// consecutive non-silent frames over resyncthreshold triggers a flush.
// Returns true if a flush was triggered this call.
func (l *Loop) ResyncWatchdog(syncError int64, ts seqnum.Timestamp) bool {
	if l.Params.ResyncThreshold == 0 || ts == 0 {
		l.resyncWatchdogCount = 0
		return false
	}
	abs := syncError
	if abs < 0 {
		abs = -abs
	}
	if abs <= l.Params.ResyncThreshold {
		l.resyncWatchdogCount = 0
		return false
	}
	l.resyncWatchdogCount++
	if l.resyncWatchdogCount >= 3 {
		l.resyncWatchdogCount = 0
		if l.FlushFn != nil {
			l.FlushFn(ts)
		}
		return true
	}
	return false
}

// SequenceAudit tracks last_seqno_read (spec.md §4.F): on a mismatch it
// rebases to seq and reports the mismatch through its return value (it
// does not log); silent-inserted frames advance it synthetically.
func (l *Loop) SequenceAudit(seq seqnum.Seq, synthetic bool) (mismatch bool) {
	expected := int64(seq)
	if l.LastSeqnoRead >= 0 {
		wantNext := (l.LastSeqnoRead + 1) & 0xFFFF
		if !synthetic && wantNext != expected {
			mismatch = true
		}
	}
	l.LastSeqnoRead = expected
	return mismatch
}

// AdvanceABRead moves the read cursor forward by one, clearing the slot
// that was just consumed.
func (l *Loop) AdvanceABRead() {
	l.Ring.Clear(l.ABRead)
	l.ABRead = seqnum.Successor(l.ABRead)
}
