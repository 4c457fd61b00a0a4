// Package resend implements the resend-request external collaborator
// contract from spec.md §6: request_resend(first_seq, count) enqueues a
// best-effort retransmit hint; no ack is ever expected.
package resend

import (
	"net"

	"github.com/pion/rtcp"

	"airsync/internal/seqnum"
)

// Sender is implemented by the resend-request collaborator.
type Sender interface {
	RequestResend(firstSeq seqnum.Seq, count int) error
}

// RTCPSender encodes resend requests as RTCP generic NACK packets
// (rtcp.TransportLayerNack): a sequence range is exactly what NACK's
// PacketList already encodes, so no bespoke wire format is needed.
type RTCPSender struct {
	conn       net.Conn
	senderSSRC uint32
	mediaSSRC  uint32
}

// NewRTCPSender wraps an already-connected UDP socket to the control
// channel peer.
func NewRTCPSender(conn net.Conn, senderSSRC, mediaSSRC uint32) *RTCPSender {
	return &RTCPSender{conn: conn, senderSSRC: senderSSRC, mediaSSRC: mediaSSRC}
}

// RequestResend marshals a TransportLayerNack covering [firstSeq,
// firstSeq+count) and writes it to the control channel. Best-effort: a
// write failure is returned but the caller is not expected to retry.
func (s *RTCPSender) RequestResend(firstSeq seqnum.Seq, count int) error {
	if count <= 0 {
		return nil
	}
	pairs := nackPairs(firstSeq, count)
	pkt := &rtcp.TransportLayerNack{
		SenderSSRC: s.senderSSRC,
		MediaSSRC:  s.mediaSSRC,
		Nacks:      pairs,
	}
	buf, err := pkt.Marshal()
	if err != nil {
		return err
	}
	_, err = s.conn.Write(buf)
	return err
}

// nackPairs packs a contiguous sequence range into rtcp's 1+16-bitmask
// NACK pair form, splitting into multiple pairs when count exceeds 17.
func nackPairs(first seqnum.Seq, count int) []rtcp.NackPair {
	var pairs []rtcp.NackPair
	s := first
	remaining := count
	for remaining > 0 {
		n := remaining
		if n > 17 {
			n = 17
		}
		var mask uint16
		for i := 1; i < n; i++ {
			mask |= 1 << uint(i-1)
		}
		pairs = append(pairs, rtcp.NackPair{PacketID: uint16(s), LostPackets: rtcp.PacketBitmap(mask)})
		s = seqnum.Seq(uint16(s) + uint16(n))
		remaining -= n
	}
	return pairs
}
