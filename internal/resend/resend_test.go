package resend

import (
	"net"
	"testing"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airsync/internal/seqnum"
)

func TestNackPairsCoversContiguousRange(t *testing.T) {
	pairs := nackPairs(100, 5)
	require.Len(t, pairs, 1)
	assert.Equal(t, uint16(100), pairs[0].PacketID)

	// Reconstruct the covered sequence set from PacketID + bitmap and
	// check it matches [100, 105).
	covered := map[uint16]bool{pairs[0].PacketID: true}
	for i := 0; i < 16; i++ {
		if pairs[0].LostPackets&(1<<uint(i)) != 0 {
			covered[pairs[0].PacketID+uint16(i)+1] = true
		}
	}
	for s := uint16(100); s < 105; s++ {
		assert.True(t, covered[s], "seq %d should be covered", s)
	}
}

func TestNackPairsSplitsLargeRanges(t *testing.T) {
	pairs := nackPairs(0, 40)
	assert.Greater(t, len(pairs), 1)
}

func TestNackPairsEmptyForZeroCount(t *testing.T) {
	assert.Empty(t, nackPairs(0, 0))
}

func TestRequestResendMarshalsAndWrites(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sender := NewRTCPSender(client, 1, 2)
	done := make(chan error, 1)
	go func() { done <- sender.RequestResend(seqnum.Seq(10), 3) }()

	buf := make([]byte, 1500)
	n, err := server.Read(buf)
	require.NoError(t, err)
	require.NoError(t, <-done)

	pkts, err := rtcp.Unmarshal(buf[:n])
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	nack, ok := pkts[0].(*rtcp.TransportLayerNack)
	require.True(t, ok)
	assert.Equal(t, uint32(1), nack.SenderSSRC)
	assert.Equal(t, uint32(2), nack.MediaSSRC)
	assert.Equal(t, uint16(10), nack.Nacks[0].PacketID)
}

func TestRequestResendNoOpForZeroCount(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	sender := NewRTCPSender(client, 1, 2)
	assert.NoError(t, sender.RequestResend(5, 0))
}
