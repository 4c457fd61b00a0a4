package alac

import "fmt"

// encodeChannels packs two int16 channels into a self-describing block:
// a 1-byte Rice parameter per channel, the first two raw samples (the
// fixed predictor's seed), then Rice-coded zigzag residuals for the rest.
func encodeChannels(left, right []int16) []byte {
	w := newBitWriter()
	encodeChannel(w, left)
	encodeChannel(w, right)
	return w.bytes()
}

func encodeChannel(w *bitWriter, x []int16) {
	residuals := predictResidual(x)
	k := chooseRiceK(residuals)
	w.writeByte(byte(k))
	w.writeUint16(uint16(x[0]))
	if len(x) > 1 {
		w.writeUint16(uint16(x[1]))
	}
	for _, r := range residuals {
		w.writeRice(zigzag(r), k)
	}
}

// predictResidual runs the fixed second-order predictor pred[i] =
// 2*x[i-1] - x[i-2] over samples [2:], returning one residual per sample
// from index 2 onward.
func predictResidual(x []int16) []int32 {
	if len(x) <= 2 {
		return nil
	}
	out := make([]int32, len(x)-2)
	for i := 2; i < len(x); i++ {
		pred := 2*int32(x[i-1]) - int32(x[i-2])
		out[i-2] = int32(x[i]) - pred
	}
	return out
}

// chooseRiceK picks the Rice parameter that best matches the residuals'
// mean magnitude, the adaptive part of "adaptive Rice coding": k such
// that 2^k is near the mean absolute residual.
func chooseRiceK(residuals []int32) int {
	if len(residuals) == 0 {
		return 0
	}
	var sum int64
	for _, r := range residuals {
		if r < 0 {
			r = -r
		}
		sum += int64(r)
	}
	mean := sum / int64(len(residuals))
	k := 0
	for (int64(1) << uint(k)) < mean && k < maxRiceK {
		k++
	}
	return k
}

func zigzag(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

func unzigzag(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// decodeChannels is encodeChannels' inverse, reconstructing exactly
// frameSize samples per channel.
func decodeChannels(payload []byte, frameSize int) ([]int16, []int16, error) {
	r := newBitReader(payload)
	left, err := decodeChannel(r, frameSize)
	if err != nil {
		return nil, nil, fmt.Errorf("alac: decode left channel: %w", err)
	}
	right, err := decodeChannel(r, frameSize)
	if err != nil {
		return nil, nil, fmt.Errorf("alac: decode right channel: %w", err)
	}
	return left, right, nil
}

func decodeChannel(r *bitReader, frameSize int) ([]int16, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size %d", frameSize)
	}
	k, err := r.readByte()
	if err != nil {
		return nil, err
	}
	out := make([]int16, frameSize)
	first, err := r.readUint16()
	if err != nil {
		return nil, err
	}
	out[0] = int16(first)
	if frameSize == 1 {
		return out, nil
	}
	second, err := r.readUint16()
	if err != nil {
		return nil, err
	}
	out[1] = int16(second)
	for i := 2; i < frameSize; i++ {
		zz, err := r.readRice(int(k))
		if err != nil {
			return nil, err
		}
		residual := unzigzag(zz)
		pred := 2*int32(out[i-1]) - int32(out[i-2])
		out[i] = int16(pred + residual)
	}
	return out, nil
}
