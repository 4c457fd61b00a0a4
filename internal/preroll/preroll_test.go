package preroll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airsync/internal/anchor"
	"airsync/internal/flush"
	"airsync/internal/seqnum"
)

type fakeClock struct{ t seqnum.LocalTime }

func (c fakeClock) Now() seqnum.LocalTime { return c.t }

type fakeSink struct {
	delay    int
	played   [][]int16
}

func (s *fakeSink) Delay() int { return s.delay }
func (s *fakeSink) Play(pcm []int16, frameCount int) error {
	s.played = append(s.played, pcm)
	return nil
}

func TestPreRollBuffersWithoutAnchor(t *testing.T) {
	st := NewState()
	a := anchor.NewAtomic() // no anchor published
	clk := fakeClock{}
	sink := &fakeSink{}
	fc := &flush.Controller{}
	p := Params{Latency: 88200, FrameSize: 352, SampleRate: 44100}

	outcome := Step(st, true, 12000, a, clk, sink, fc, p)
	assert.Equal(t, StillBuffering, outcome)
	assert.True(t, st.Buffering)
}

func TestPreRollComputesFirstPacketTimeToPlay(t *testing.T) {
	st := NewState()
	a := anchor.NewAtomic()
	a.Publish(anchor.Snapshot{ReferenceTS: 10000, ReferenceLocal: seqnum.FromDuration(0)})
	clk := fakeClock{t: seqnum.FromDuration(0)}
	sink := &fakeSink{delay: 0}
	fc := &flush.Controller{}
	p := Params{Latency: 88200, FrameSize: 352, SampleRate: 44100}

	Step(st, true, 12000, a, clk, sink, fc, p)

	// delta=2000, latency=88200 -> (90200 << 32) / 44100 seconds worth of
	// fixed-point local time, per spec.md's worked pre-roll example.
	want := seqnum.FramesToLocalTime(90200, 44100)
	assert.Equal(t, want, st.FirstPacketTimeToPlay)
}

func TestPreRollFlushesWhenAlreadyLate(t *testing.T) {
	st := NewState()
	a := anchor.NewAtomic()
	a.Publish(anchor.Snapshot{ReferenceTS: 10000, ReferenceLocal: seqnum.FromDuration(0)})
	// "now" is already past the computed target.
	far := seqnum.FromDuration(seqnum.ToDuration(seqnum.FramesToLocalTime(90200, 44100)) * 2)
	clk := fakeClock{t: far}
	sink := &fakeSink{}
	fc := &flush.Controller{}
	p := Params{Latency: 88200, FrameSize: 352, SampleRate: 44100}

	outcome := Step(st, true, 12000, a, clk, sink, fc, p)
	assert.Equal(t, FlushedLate, outcome)
	requested, boundary := fc.Pending()
	assert.True(t, requested)
	assert.EqualValues(t, 12000+FillerSize, boundary)
	assert.True(t, st.Buffering, "resets back into buffering, doesn't resume mid-preroll")
}

func TestPreRollEmitsSilenceThenReleases(t *testing.T) {
	st := NewState()
	a := anchor.NewAtomic()
	a.Publish(anchor.Snapshot{ReferenceTS: 10000, ReferenceLocal: seqnum.FromDuration(0)})
	clk := fakeClock{t: seqnum.FromDuration(0)}
	sink := &fakeSink{delay: 0}
	fc := &flush.Controller{}
	p := Params{Latency: 88200, FrameSize: 352, SampleRate: 44100}

	outcome := Step(st, true, 12000, a, clk, sink, fc, p)
	require.Equal(t, EmittedSilence, outcome)
	require.Len(t, sink.played, 1)
	assert.LessOrEqual(t, len(sink.played[0])/2, FillerSize)
	assert.True(t, st.Buffering)
}

func TestPreRollOvershotRequestsFlushAndResetsState(t *testing.T) {
	st := NewState()
	a := anchor.NewAtomic()
	a.Publish(anchor.Snapshot{ReferenceTS: 10000, ReferenceLocal: seqnum.FromDuration(0)})
	clk := fakeClock{t: seqnum.FromDuration(0)}
	// A dac_delay far larger than the gross frame gap drives
	// exact_frame_gap negative even though "now" isn't past the target
	// yet, the Overshot path (distinct from FlushedLate).
	sink := &fakeSink{delay: 1_000_000}
	fc := &flush.Controller{}
	p := Params{Latency: 88200, FrameSize: 352, SampleRate: 44100}

	outcome := Step(st, true, 12000, a, clk, sink, fc, p)
	assert.Equal(t, Overshot, outcome)
	requested, boundary := fc.Pending()
	assert.True(t, requested, "overshoot must request a flush so the egress loop performs sink.Flush()+ring_resync")
	assert.EqualValues(t, 12000, boundary)
	assert.True(t, st.Buffering, "resets back into buffering")
	assert.EqualValues(t, 0, st.FirstPacketTimestamp)
}

func TestPreRollDoneWhenGapShrinksBelowThreshold(t *testing.T) {
	st := NewState()
	a := anchor.NewAtomic()
	a.Publish(anchor.Snapshot{ReferenceTS: 10000, ReferenceLocal: seqnum.FromDuration(0)})
	p := Params{Latency: 100, FrameSize: 352, SampleRate: 44100}
	clk := fakeClock{t: seqnum.FromDuration(0)}
	sink := &fakeSink{delay: 0}
	fc := &flush.Controller{}

	outcome := Step(st, true, 12000, a, clk, sink, fc, p)
	require.Equal(t, Done, outcome)
	assert.False(t, st.Buffering)
}
