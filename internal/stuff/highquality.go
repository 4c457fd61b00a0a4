package stuff

import (
	resampler "github.com/tphakala/go-audio-resampler"

	"airsync/internal/volume"
)

// HighQuality implements spec.md §4.H: a one-shot resample from frameSize
// to frameSize+stuff stereo samples, with the first and last 5 stereo
// samples of the output overwritten by the corresponding raw inputs to
// suppress Gibbs ringing at the block edges. Volume is only applied when
// the mixer isn't at unity gain, and advances by element count rather
// than byte count (spec.md §9's pointer-arithmetic fix).
type HighQuality struct {
	dither volume.Dither
}

func NewHighQuality() *HighQuality { return &HighQuality{} }

const edgeBlendSamples = 5

// Stuff mirrors Basic.Stuff's signature: in is frameSize stereo samples,
// out must hold capacity for frameSize+stuffAmount stereo samples.
// mixerVolume is the linear software gain (1.0 == unity, skips dither).
func (h *HighQuality) Stuff(in []int16, frameSize int, stuffAmount int, mixerVolume float64, fixVolume int32, out []int16) int {
	outFrames := frameSize + stuffAmount
	if stuffAmount == 0 {
		copy(out[:frameSize*2], in[:frameSize*2])
	} else {
		resampleStereo(in, frameSize, outFrames)
		copy(out[:outFrames*2], scratch[:outFrames*2])

		// Edge-blend: restore the raw input at the first/last few stereo
		// samples to avoid ringing at the block boundary.
		blend := edgeBlendSamples
		if blend > frameSize {
			blend = frameSize
		}
		if blend > outFrames {
			blend = outFrames
		}
		copy(out[:blend*2], in[:blend*2])
		copy(out[(outFrames-blend)*2:outFrames*2], in[(frameSize-blend)*2:frameSize*2])
	}

	if mixerVolume != 1.0 {
		for i := 0; i < outFrames*2; i++ {
			out[i] = volume.DitheredVol(&h.dither, out[i], fixVolume)
		}
	}
	return outFrames
}

// scratch is reused across calls to avoid a per-frame allocation in the
// hot resample path; egress calls Stuff from a single goroutine so no
// synchronization is needed.
var scratch [4096]int16

// resampleStereo deinterleaves, resamples each channel independently via
// the one-shot resampler, and re-interleaves into scratch. Advances every
// index by element count, never by byte count (the §9 fix).
func resampleStereo(in []int16, frameSize, outFrames int) {
	left := make([]int16, frameSize)
	right := make([]int16, frameSize)
	for i := 0; i < frameSize; i++ {
		left[i] = in[2*i]
		right[i] = in[2*i+1]
	}

	rl := resampler.New(float64(outFrames) / float64(frameSize))
	ro := resampler.New(float64(outFrames) / float64(frameSize))
	outLeft := rl.Process(left, outFrames)
	outRight := ro.Process(right, outFrames)

	for i := 0; i < outFrames; i++ {
		scratch[2*i] = outLeft[i]
		scratch[2*i+1] = outRight[i]
	}
}
