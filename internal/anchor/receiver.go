package anchor

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"airsync/internal/seqnum"
)

// wireSize is the fixed layout of one timing packet: reference_ts
// (uint32), reference_local_time and remote_time (32.32 fixed-point in
// a uint64), all big-endian, matching get_reference_timestamp_stuff's three fields
// from spec.md §6.
const wireSize = 4 + 8 + 8

// Receiver listens for timing-anchor packets on a UDP socket and
// publishes each one to an Atomic, the same shape as netrecv.UDPReceiver
// but for the control/timing channel rather than the audio channel.
type Receiver struct {
	conn *net.UDPConn
	dst  *Atomic
}

// Listen opens the timing-anchor UDP socket and binds it to dst.
func Listen(addr string, dst *Atomic) (*Receiver, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("anchor: resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("anchor: listen %q: %w", addr, err)
	}
	return &Receiver{conn: conn, dst: dst}, nil
}

// Run reads timing packets until ctx is cancelled, publishing each one
// to the bound Atomic. Malformed packets are skipped, not fatal: a
// dropped timing update just means the next one supersedes it.
func (r *Receiver) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { r.conn.Close() })
	defer stop()

	buf := make([]byte, wireSize)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("anchor: read: %w", err)
		}
		if n < wireSize {
			continue
		}
		snap := Snapshot{
			ReferenceTS:    seqnum.Timestamp(binary.BigEndian.Uint32(buf[0:4])),
			ReferenceLocal: seqnum.LocalTime(binary.BigEndian.Uint64(buf[4:12])),
			RemoteLocal:    seqnum.LocalTime(binary.BigEndian.Uint64(buf[12:20])),
		}
		if snap.Available() {
			r.dst.Publish(snap)
		}
	}
}

func (r *Receiver) Close() error { return r.conn.Close() }
