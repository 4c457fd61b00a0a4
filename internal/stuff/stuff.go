// Package stuff implements the ±1-sample stuffers from spec.md §4.G/§4.H:
// Basic splices a sample in or out at a randomly chosen point within the
// frame, and HighQuality resamples the whole frame instead. Both are
// generalizations of the teacher's PCMPlayoutBuffer.ReadIntoAdjust, which
// already reads frame_size±1 samples from a buffer and writes frame_size
// samples out — adapted here to spec.md's uniformly-random splice point
// (rather than click-minimization search) and routed through dithered
// volume scaling.
package stuff

import (
	"math/rand"
	"time"

	"airsync/internal/volume"
)

// Basic implements spec.md §4.G.
type Basic struct {
	dither volume.Dither
	rng    *rand.Rand
}

// NewBasic constructs a Basic stuffer. rng may be nil to use the default
// (non-deterministic) source; tests pass a seeded *rand.Rand for
// reproducibility.
func NewBasic(rng *rand.Rand) *Basic {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Basic{rng: rng}
}

// Stuff copies in (frame_size stereo samples, i.e. len(in) == 2*frameSize)
// into out, inserting or deleting one stereo sample per stuffAmount
// (-1/0/+1), running every sample through dithered volume scaling at
// fixVolume. out must have capacity for 2*(frameSize+1). Returns the
// number of stereo samples written (frameSize+stuffAmount).
func (b *Basic) Stuff(in []int16, frameSize int, stuffAmount int, fixVolume int32, out []int16) int {
	k := frameSize
	if stuffAmount != 0 {
		// Uniform in [1, frameSize-2], spec.md §4.G.
		if frameSize > 2 {
			k = 1 + b.rng.Intn(frameSize-2)
		} else {
			k = 1
		}
	}

	oi := 0
	for i := 0; i < k; i++ {
		out[oi] = volume.DitheredVol(&b.dither, in[2*i], fixVolume)
		out[oi+1] = volume.DitheredVol(&b.dither, in[2*i+1], fixVolume)
		oi += 2
	}

	ii := k
	if stuffAmount > 0 {
		l := shortMean(in[2*(k-1)], in[2*k])
		r := shortMean(in[2*(k-1)+1], in[2*k+1])
		out[oi] = volume.DitheredVol(&b.dither, l, fixVolume)
		out[oi+1] = volume.DitheredVol(&b.dither, r, fixVolume)
		oi += 2
	} else if stuffAmount < 0 {
		ii++ // skip one input stereo sample
	}

	// An insertion still copies every remaining input sample; a deletion
	// has one fewer left to copy.
	remaining := frameSize - k
	if stuffAmount < 0 {
		remaining += stuffAmount
	}
	for i := 0; i < remaining; i++ {
		out[oi] = volume.DitheredVol(&b.dither, in[2*(ii+i)], fixVolume)
		out[oi+1] = volume.DitheredVol(&b.dither, in[2*(ii+i)+1], fixVolume)
		oi += 2
	}

	return frameSize + stuffAmount
}

// shortMean is an overflow-safe integer average of two 16-bit samples.
func shortMean(a, b int16) int16 {
	return int16((int32(a) + int32(b)) / 2)
}
