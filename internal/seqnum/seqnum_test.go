package seqnum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSuccessorWrapsAt16Bit(t *testing.T) {
	assert.Equal(t, Seq(0), Successor(0xFFFF))
	assert.Equal(t, Seq(0xFFFF), Predecessor(0))
}

func TestSeqOrderAcrossWrap(t *testing.T) {
	assert.True(t, SeqOrder(0xFFFE, 1))
	assert.False(t, SeqOrder(1, 0xFFFE))
}

func TestTSOrderAcross32BitWrap(t *testing.T) {
	assert.True(t, TSOrder(0xFFFFFFF0, 0x00000010))
	assert.False(t, TSOrder(0x00000010, 0xFFFFFFF0))
}

func TestOrdinateSignConvention(t *testing.T) {
	// x strictly after origin -> positive ordinate.
	assert.Greater(t, Ordinate(100, 101), int32(0))
	// x strictly before origin -> negative ordinate.
	assert.Less(t, Ordinate(100, 99), int32(0))
	// equal -> zero.
	assert.Equal(t, int32(0), Ordinate(100, 100))
}

func TestSeqSumWraps(t *testing.T) {
	assert.Equal(t, Seq(0), SeqSum(0xFFFF, 1))
	assert.Equal(t, Seq(5), SeqSum(0xFFFF, 6))
}

func TestDistanceForwardOnly(t *testing.T) {
	assert.Equal(t, 1, Distance(0xFFFF, 0))
	assert.Equal(t, 5, Distance(10, 15))
}

// Property: for any origin and any x reachable within the representable
// ordinate range, SeqOrder(origin, x) agrees with the sign of Ordinate.
func TestSeqOrderMatchesOrdinateSign(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		origin := Seq(rapid.Uint16().Draw(rt, "origin"))
		delta := int32(rapid.Int32Range(-32000, 32000).Draw(rt, "delta"))
		x := Seq(int32(origin) + delta)

		ord := Ordinate(origin, x)
		order := SeqOrder(origin, x)
		require.Equal(rt, ord > 0, order)
	})
}

// Property: Successor/Predecessor are mutual inverses everywhere on the
// 16-bit ring, including across the 0xFFFF/0 boundary.
func TestSuccessorPredecessorInverse(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := Seq(rapid.Uint16().Draw(rt, "s"))
		require.Equal(rt, s, Predecessor(Successor(s)))
		require.Equal(rt, s, Successor(Predecessor(s)))
	})
}

func TestLocalTimeRoundTrip(t *testing.T) {
	cases := []time.Duration{
		0,
		time.Second,
		1500 * time.Millisecond,
		90200 * time.Millisecond / 100, // 0.902s, a fractional-second case
	}
	for _, d := range cases {
		lt := FromDuration(d)
		back := ToDuration(lt)
		assert.InDelta(t, d.Seconds(), back.Seconds(), 1e-6)
	}
}

func TestFramesToLocalTimeAndBack(t *testing.T) {
	const rate = 44100
	// Both conversions truncate, so the round trip loses one frame of
	// magnitude unless frames<<32 is an exact multiple of the rate (frames
	// a multiple of 11025 at 44100 Hz).
	for _, c := range []struct{ frames, want int64 }{
		{0, 0}, {1, 0}, {352, 351}, {4410, 4409}, {88200, 88200}, {-88200, -88200},
	} {
		lt := FramesToLocalTime(c.frames, rate)
		back := LocalTimeToFrames(lt, rate)
		assert.Equal(t, c.want, back, "frames %d", c.frames)
	}
}

// Matches the pre-roll worked example in spec.md §8 scenario 2:
// first_packet_time_to_play = T0 + ((12000 - 10000 + 88200) << 32) / 44100.
func TestPreRollWorkedExample(t *testing.T) {
	delta := int64(12000 - 10000)
	latency := int64(88200)
	offsetFrames := delta + latency
	addend := FramesToLocalTime(offsetFrames, 44100)

	wantSeconds := float64(90200) / 44100
	assert.InDelta(t, wantSeconds, ToDuration(addend).Seconds(), 1e-6)
}
