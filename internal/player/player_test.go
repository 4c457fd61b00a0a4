package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airsync/internal/alac"
	"airsync/internal/anchor"
	"airsync/internal/seqnum"
	"airsync/internal/sink"
)

func testFormatVec(frameSize int) alac.FormatVector {
	var f alac.FormatVector
	f[1] = int32(frameSize)
	f[3] = 16
	f[11] = 44100
	return f
}

func TestPlayStopLifecycleDoesNotDeadlock(t *testing.T) {
	a := anchor.NewAtomic()
	s := New(Config{Latency: 88200, PacketStuffing: "basic"}, sink.NopSink{}, a, nil, nil)

	err := s.Play(StreamConfig{FormatVec: testFormatVec(352)})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return: egress goroutine likely deadlocked")
	}
}

func TestPutPacketAndVolumeAfterPlay(t *testing.T) {
	a := anchor.NewAtomic()
	a.Publish(anchor.Snapshot{ReferenceTS: 1000, ReferenceLocal: seqnum.FromDuration(0)})
	s := New(Config{Latency: 0, PacketStuffing: "basic"}, sink.NopSink{}, a, nil, nil)

	require.NoError(t, s.Play(StreamConfig{FormatVec: testFormatVec(4)}))
	defer s.Stop()

	codec, err := alac.New(testFormatVec(4))
	require.NoError(t, err)
	pcm := make([]int16, 4*2)
	payload, err := codec.Encode(pcm)
	require.NoError(t, err)

	err = s.PutPacket(1, 1000, payload)
	assert.NoError(t, err)

	assert.NoError(t, s.SetVolume(-10))
	time.Sleep(10 * time.Millisecond)
}
