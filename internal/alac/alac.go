// Package alac implements the lossless-decoder external collaborator from
// spec.md §1/§6: a self-consistent fixed-linear-prediction + adaptive-Rice
// codec in the same family as Apple's ALAC. It is not bit-exact with
// Apple's proprietary bitstream — spec.md treats the decoder as a pure
// function whose only tested contract is decoded length and round-trip
// fidelity with its own encoder, not interoperability with a specific
// sender's bitstream.
package alac

import "fmt"

// FormatVector mirrors the 12-entry fmtp descriptor from spec.md §6.
// fmtp[1] = frame_size, fmtp[3] = sample_size (must be 16), fmtp[11] =
// sampling_rate; the rest are opaque tuning values forwarded as-is.
type FormatVector [12]int32

func (f FormatVector) FrameSize() int     { return int(f[1]) }
func (f FormatVector) SampleSize() int    { return int(f[3]) }
func (f FormatVector) SamplingRate() int  { return int(f[11]) }

// Codec holds the per-session coefficients derived from a format vector.
// A single Codec is shared for decode and encode; both are pure functions
// of the input and the format vector, so Codec carries no mutable state.
type Codec struct {
	frameSize int
}

// New validates the format vector (spec.md §7: sample size != 16 is a
// fatal malformed-stream error at play time) and builds a Codec.
func New(fmtp FormatVector) (*Codec, error) {
	if fmtp.SampleSize() != 16 {
		return nil, fmt.Errorf("alac: unsupported sample size %d, want 16", fmtp.SampleSize())
	}
	if fmtp.FrameSize() <= 0 {
		return nil, fmt.Errorf("alac: invalid frame size %d", fmtp.FrameSize())
	}
	return &Codec{frameSize: fmtp.FrameSize()}, nil
}

// FrameSize returns the configured stereo frame size.
func (c *Codec) FrameSize() int { return c.frameSize }

// maxRiceK caps the Rice parameter used for residual coding. A real ALAC
// stream adapts k per block from the running residual magnitude; this
// codec picks k once per channel per call from the actual residual
// distribution, which is sufficient for a self-consistent round-trip codec.
const maxRiceK = 30

// Decode turns an encoded block (produced by Encode) back into exactly
// 4*frame_size bytes: frame_size interleaved stereo int16 samples.
// A successful decode always has that length; errors come from a
// bitstream that ends before frame_size samples per channel are read.
func (c *Codec) Decode(payload []byte) ([]int16, error) {
	left, right, err := decodeChannels(payload, c.frameSize)
	if err != nil {
		return nil, err
	}
	out := make([]int16, c.frameSize*2)
	for i := 0; i < c.frameSize; i++ {
		out[2*i] = left[i]
		out[2*i+1] = right[i]
	}
	return out, nil
}

// Encode is the decoder's inverse, used by tests and by any loopback/pure
// encoder path; it is not exercised on the receive side of a real session.
func (c *Codec) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != c.frameSize*2 {
		return nil, fmt.Errorf("alac: encode expects %d samples, got %d", c.frameSize*2, len(pcm))
	}
	left := make([]int16, c.frameSize)
	right := make([]int16, c.frameSize)
	for i := 0; i < c.frameSize; i++ {
		left[i] = pcm[2*i]
		right[i] = pcm[2*i+1]
	}
	return encodeChannels(left, right), nil
}
