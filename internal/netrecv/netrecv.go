// Package netrecv implements the network-receiver external collaborator
// from spec.md §6: reads inbound audio packets and hands back the fields
// ingress needs (sequence number, media timestamp, encrypted payload).
// AirPlay's audio channel is itself RTP, so the wire framing is parsed
// with github.com/pion/rtp rather than a bespoke header layout.
package netrecv

import (
	"context"
	"fmt"
	"net"

	"github.com/pion/rtp"

	"airsync/internal/seqnum"
)

// Packet is one parsed inbound audio packet, ready for internal/ingress.
type Packet struct {
	Sequence seqnum.Seq
	Timestamp seqnum.Timestamp
	Payload   []byte
}

// Receiver is implemented by the network-receiver collaborator.
type Receiver interface {
	// Receive blocks until one packet arrives, ctx is cancelled, or the
	// socket errors.
	Receive(ctx context.Context) (Packet, error)
	Close() error
}

const maxPacketBytes = 2048 // spec.md §4.C precondition

// UDPReceiver reads RTP audio packets off a UDP socket.
type UDPReceiver struct {
	conn *net.UDPConn
}

// Listen opens a UDP socket on addr (host:port, host may be empty for any
// interface) for inbound audio.
func Listen(addr string) (*UDPReceiver, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("netrecv: resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("netrecv: listen %q: %w", addr, err)
	}
	return &UDPReceiver{conn: conn}, nil
}

// Receive reads one datagram, parses its RTP header, and returns the
// fields ingress needs. ctx cancellation closes the socket to unblock a
// pending read, matching the please_stop cancellation pattern elsewhere
// in the core.
func (r *UDPReceiver) Receive(ctx context.Context) (Packet, error) {
	stop := context.AfterFunc(ctx, func() { r.conn.Close() })
	defer stop()

	buf := make([]byte, maxPacketBytes)
	n, _, err := r.conn.ReadFromUDP(buf)
	if err != nil {
		if ctx.Err() != nil {
			return Packet{}, ctx.Err()
		}
		return Packet{}, fmt.Errorf("netrecv: read: %w", err)
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf[:n]); err != nil {
		return Packet{}, fmt.Errorf("netrecv: parse rtp: %w", err)
	}
	return Packet{
		Sequence:  seqnum.Seq(pkt.SequenceNumber),
		Timestamp: seqnum.Timestamp(pkt.Timestamp),
		Payload:   pkt.Payload,
	}, nil
}

func (r *UDPReceiver) Close() error { return r.conn.Close() }
