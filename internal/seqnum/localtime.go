package seqnum

import "time"

// FromDuration converts a time.Duration into the 32.32 fixed-point
// representation used throughout the synchronizer. The conversion is an
// exact shift: whole seconds occupy the upper 32 bits, the sub-second
// remainder is scaled into the lower 32 bits.
func FromDuration(d time.Duration) LocalTime {
	sec := d / time.Second
	frac := d % time.Second
	fracFixed := (uint64(frac) << 32) / uint64(time.Second)
	return LocalTime(uint64(sec)<<32 | fracFixed)
}

// ToDuration converts a 32.32 fixed-point local time back into a
// time.Duration, the inverse of FromDuration.
func ToDuration(t LocalTime) time.Duration {
	sec := int64(t >> 32)
	fracFixed := uint64(t & 0xFFFFFFFF)
	frac := (fracFixed * uint64(time.Second)) >> 32
	return time.Duration(sec)*time.Second + time.Duration(frac)
}

// FramesToLocalTime converts a signed frame count at sampleRate Hz into a
// 32.32 fixed-point duration, using saturating intermediate 64-bit math as
// spec.md §4.E requires for the pre-roll target computation.
func FramesToLocalTime(frames int64, sampleRate int) LocalTime {
	if sampleRate <= 0 {
		sampleRate = 1
	}
	// frames / sampleRate seconds, expressed in 32.32 fixed point:
	// (frames << 32) / sampleRate.
	neg := frames < 0
	if neg {
		frames = -frames
	}
	fixed := (uint64(frames) << 32) / uint64(sampleRate)
	if neg {
		return LocalTime(-int64(fixed))
	}
	return LocalTime(fixed)
}

// LocalTimeToFrames converts a signed 32.32 fixed-point duration back into a
// signed frame count at sampleRate Hz: (t * sampleRate) >> 32.
func LocalTimeToFrames(t LocalTime, sampleRate int) int64 {
	signed := int64(t)
	neg := signed < 0
	if neg {
		signed = -signed
	}
	frames := int64((uint64(signed) * uint64(sampleRate)) >> 32)
	if neg {
		return -frames
	}
	return frames
}

// Add returns a + b as signed 64-bit fixed-point local time.
func Add(a, b LocalTime) LocalTime { return a + b }

// Sub returns a - b as signed 64-bit fixed-point local time (both operands
// and the result are reinterpreted as int64 by callers that need the sign).
func Sub(a, b LocalTime) LocalTime { return a - b }

// Signed reinterprets a LocalTime difference as a signed 64-bit quantity.
func Signed(t LocalTime) int64 { return int64(t) }
