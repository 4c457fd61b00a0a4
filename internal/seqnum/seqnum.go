// Package seqnum implements wrap-safe arithmetic over the 16-bit packet
// sequence numbers and 32-bit media timestamps carried on the wire, plus the
// 32.32 fixed-point local clock used to schedule playback.
//
// Never mix signed and unsigned comparisons on these types in application
// code; every ordering question must go through Ordinate, SeqOrder, or
// TSOrder so the wraparound boundary is handled in exactly one place.
package seqnum

// Seq is a 16-bit wrapping packet sequence number.
type Seq uint16

// Timestamp is a 32-bit wrapping media timestamp, in stereo sample frames.
type Timestamp uint32

// LocalTime is a 64-bit fixed-point local clock reading: the upper 32 bits
// are whole seconds, the lower 32 bits are a binary fraction of a second.
type LocalTime uint64

// Successor returns the next sequence number after s, wrapping at 2^16.
func Successor(s Seq) Seq { return s + 1 }

// Predecessor returns the sequence number before s, wrapping at 2^16.
func Predecessor(s Seq) Seq { return s - 1 }

// SeqSum returns (a+b) mod 2^16.
func SeqSum(a, b Seq) Seq { return a + b }

// Ordinate returns the signed modular distance of x from origin: the
// distance is computed in [0, 65535] and then coerced to a signed value by
// subtracting 65536 when it is >= 32767. A positive ordinate means x is
// "after" origin.
//
// Callers must hold whatever lock protects the moving origin (ab_read in
// the synchronizer) before calling this — ingress.Session.Mu in this module.
func Ordinate(origin, x Seq) int32 {
	dist := int32(uint16(x - origin))
	if dist >= 32767 {
		dist -= 65536
	}
	return dist
}

// SeqOrder reports whether b is strictly after a, relative to origin a:
// equivalent to Ordinate(a, b) > 0.
func SeqOrder(a, b Seq) bool {
	return Ordinate(a, b) > 0
}

// TSOrder reports whether b is strictly after a for 32-bit wrapping media
// timestamps, assuming the gap between any two neighboring timestamps never
// reaches 2^31.
func TSOrder(a, b Timestamp) bool {
	diff := int32(b - a)
	return diff > 0
}

// Distance returns the unsigned number of sequence numbers from a
// (exclusive) to b (inclusive) going forward, i.e. how many SUCCESSOR steps
// get from a to b. Only meaningful when SeqOrder(a, b) holds or a == b.
func Distance(a, b Seq) int {
	return int(uint16(b - a))
}
