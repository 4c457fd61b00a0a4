package netrecv

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveParsesRTPFields(t *testing.T) {
	recv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer recv.Close()

	sender, err := net.Dial("udp", recv.conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	pkt := &rtp.Packet{
		Header: rtp.Header{
			SequenceNumber: 4242,
			Timestamp:      123456789,
		},
		Payload: []byte{1, 2, 3, 4},
	}
	buf, err := pkt.Marshal()
	require.NoError(t, err)
	_, err = sender.Write(buf)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := recv.Receive(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4242, got.Sequence)
	assert.EqualValues(t, 123456789, got.Timestamp)
	assert.Equal(t, []byte{1, 2, 3, 4}, got.Payload)
}

func TestReceiveUnblocksOnContextCancel(t *testing.T) {
	recv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer recv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := recv.Receive(ctx)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Receive did not unblock on context cancellation")
	}
}
