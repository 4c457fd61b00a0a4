// Package ingress implements put_packet from spec.md §4.C: classify an
// arriving packet against the session's cursors, decrypt+decode it, and
// deposit the result into the frame ring, scheduling resend requests for
// any gap that opens up. Grounded on the teacher's
// bridge/pipeline/silence_filler.go, which inspects an incoming RTP
// header against last-seen sequence/timestamp state to decide whether a
// gap exists before forwarding -- generalized here to the full
// Expected/Future/Late/TooLate classification spec.md requires.
package ingress

import (
	"sync"
	"time"

	"airsync/internal/flush"
	"airsync/internal/ring"
	"airsync/internal/seqnum"
)

const maxPayloadBytes = 2048 // spec.md §4.C precondition

// Decrypter decrypts a packet payload in place (internal/streamcrypto).
type Decrypter interface {
	Decrypt(payload []byte) []byte
}

// Decoder turns a decrypted payload into exactly frame_size stereo
// samples (internal/alac).
type Decoder interface {
	Decode(payload []byte) ([]int16, error)
	FrameSize() int
}

// Resender requests retransmission of a sequence range
// (internal/resend).
type Resender interface {
	RequestResend(firstSeq seqnum.Seq, count int) error
}

// Session holds the cursor/classification state put_packet mutates.
// All fields are protected by Mu, mirroring spec.md §5's ab_mutex scope
// (cursors, ring slot fields, ab_synced, packet counters).
type Session struct {
	Mu sync.Mutex

	Ring  *ring.Ring
	Flush *flush.Controller

	decrypter Decrypter
	decoder   Decoder
	resender  Resender

	ABRead  seqnum.Seq
	ABWrite seqnum.Seq
	ABSynced bool

	ConnectionStateToOutput bool

	TimeOfLastAudioPacket time.Time
	PacketCount           uint64
	MissingPackets        uint64
	LatePackets           uint64
	TooLatePackets        uint64
	ResendRequests        uint64

	// Flowcontrol is signaled on every successfully-classified arrival so
	// the egress loop can re-check for newly ready data.
	Flowcontrol *sync.Cond
}

// NewSession constructs ingress state bound to a ring, flush controller,
// and the decrypt/decode/resend collaborators.
func NewSession(r *ring.Ring, fc *flush.Controller, dec Decrypter, codec Decoder, resender Resender) *Session {
	s := &Session{Ring: r, Flush: fc, decrypter: dec, decoder: codec, resender: resender, ConnectionStateToOutput: true}
	s.Flowcontrol = sync.NewCond(&s.Mu)
	return s
}

// Classification is the result of comparing an arriving sequence number
// against (ab_read, ab_write), spec.md §4.C step 4.
type Classification int

const (
	Expected Classification = iota
	Future
	LateButUnplayed
	TooLate
)

func classify(abRead, abWrite, seq seqnum.Seq) Classification {
	if seq == abWrite {
		return Expected
	}
	if seqnum.SeqOrder(abWrite, seq) {
		return Future
	}
	if seqnum.SeqOrder(abRead, seq) {
		return LateButUnplayed
	}
	return TooLate
}

// PutPacket implements spec.md §4.C in full.
func (s *Session) PutPacket(seq seqnum.Seq, ts seqnum.Timestamp, payload []byte) error {
	if len(payload) > maxPayloadBytes {
		return nil // malformed/oversized: drop silently per ingress propagation policy (spec.md §7)
	}

	s.Mu.Lock()
	defer s.Mu.Unlock()

	s.TimeOfLastAudioPacket = time.Now()
	s.PacketCount++

	if !s.ConnectionStateToOutput {
		return nil
	}

	boundary := s.Flush.Boundary()
	if boundary != 0 {
		drop, clearBoundary := flush.ShouldDropOnArrival(boundary, ts)
		if drop {
			return nil
		}
		if clearBoundary {
			s.Flush.ClearBoundary()
		}
	}

	if !s.ABSynced {
		s.ABWrite = seq
		s.ABRead = seq
		s.ABSynced = true
	}

	var targetSlot seqnum.Seq
	haveTarget := false

	switch classify(s.ABRead, s.ABWrite, seq) {
	case Expected:
		targetSlot, haveTarget = seq, true
		s.ABWrite = seqnum.Successor(s.ABWrite)

	case Future:
		gapStart := s.ABWrite
		gapCount := seqnum.Distance(s.ABWrite, seq)
		for g := gapStart; g != seq; g = seqnum.Successor(g) {
			s.Ring.Clear(g)
		}
		if s.resender != nil && gapCount > 0 {
			_ = s.resender.RequestResend(gapStart, gapCount)
		}
		s.ResendRequests++
		targetSlot, haveTarget = seq, true
		s.ABWrite = seqnum.Successor(seq)

	case LateButUnplayed:
		s.LatePackets++
		targetSlot, haveTarget = seq, true

	case TooLate:
		s.TooLatePackets++
		return nil
	}

	if !haveTarget {
		return nil
	}

	decrypted := s.decrypter.Decrypt(payload)
	pcm, err := s.decoder.Decode(decrypted)
	if err != nil {
		return err // decoder error is fatal, spec.md §7
	}
	if len(pcm) != s.decoder.FrameSize()*2 {
		return errDecodedLength
	}

	s.Ring.MarkReady(targetSlot, ts, pcm)
	s.Flowcontrol.Signal()
	return nil
}

var errDecodedLength = decodeLenErr{}

type decodeLenErr struct{}

func (decodeLenErr) Error() string { return "ingress: decoded length does not match frame_size" }
