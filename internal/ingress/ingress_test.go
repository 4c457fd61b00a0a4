package ingress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airsync/internal/flush"
	"airsync/internal/ring"
	"airsync/internal/seqnum"
)

type fakeDecrypter struct{}

func (fakeDecrypter) Decrypt(payload []byte) []byte { return payload }

type fakeDecoder struct {
	frameSize int
	err       error
}

func (d fakeDecoder) FrameSize() int { return d.frameSize }
func (d fakeDecoder) Decode(payload []byte) ([]int16, error) {
	if d.err != nil {
		return nil, d.err
	}
	return make([]int16, d.frameSize*2), nil
}

type fakeResender struct {
	calls []resendCall
}
type resendCall struct {
	first seqnum.Seq
	count int
}

func (r *fakeResender) RequestResend(first seqnum.Seq, count int) error {
	r.calls = append(r.calls, resendCall{first, count})
	return nil
}

func newTestSession(frameSize int) (*Session, *fakeResender) {
	r := ring.New(512, frameSize)
	fc := &flush.Controller{}
	resender := &fakeResender{}
	s := NewSession(r, fc, fakeDecrypter{}, fakeDecoder{frameSize: frameSize}, resender)
	return s, resender
}

func TestPutPacketExpectedAdvancesABWrite(t *testing.T) {
	s, _ := newTestSession(4)
	require.NoError(t, s.PutPacket(100, 1000, make([]byte, 16)))
	assert.EqualValues(t, 100, s.ABRead)
	assert.EqualValues(t, 101, s.ABWrite)
	assert.True(t, s.Ring.SlotFor(100).Ready)
}

func TestPutPacketGapAndFillIssuesOneResend(t *testing.T) {
	s, resender := newTestSession(4)
	require.NoError(t, s.PutPacket(100, 1000, make([]byte, 16)))
	require.NoError(t, s.PutPacket(101, 1004, make([]byte, 16)))
	require.NoError(t, s.PutPacket(103, 1012, make([]byte, 16))) // 102 missing

	require.Len(t, resender.calls, 1)
	assert.EqualValues(t, 102, resender.calls[0].first)
	assert.Equal(t, 1, resender.calls[0].count)
	assert.EqualValues(t, 1, s.ResendRequests)
	assert.False(t, s.Ring.SlotFor(102).Ready)
	assert.True(t, s.Ring.SlotFor(103).Ready)
}

func TestPutPacketTooLateDropsWithoutRingMutation(t *testing.T) {
	s, resender := newTestSession(4)
	require.NoError(t, s.PutPacket(500, 5000, make([]byte, 16)))
	s.ABRead = 501 // simulate having released 500 already

	require.NoError(t, s.PutPacket(490, 4900, make([]byte, 16)))
	assert.EqualValues(t, 1, s.TooLatePackets)
	assert.Empty(t, resender.calls)
	assert.False(t, s.Ring.SlotFor(490).Ready)
}

func TestPutPacketLateButUnplayedIsStoredAndCounted(t *testing.T) {
	s, _ := newTestSession(4)
	require.NoError(t, s.PutPacket(200, 2000, make([]byte, 16)))
	s.ABWrite = 210
	require.NoError(t, s.PutPacket(205, 2050, make([]byte, 16)))

	assert.EqualValues(t, 1, s.LatePackets)
	assert.True(t, s.Ring.SlotFor(205).Ready)
}

func TestPutPacketDroppedWhenConnectionStateOff(t *testing.T) {
	s, _ := newTestSession(4)
	s.ConnectionStateToOutput = false
	require.NoError(t, s.PutPacket(1, 10, make([]byte, 16)))
	assert.False(t, s.Ring.SlotFor(1).Ready)
	assert.EqualValues(t, 1, s.PacketCount, "counters update unconditionally")
}

func TestPutPacketDropsAtOrBeforeFlushBoundary(t *testing.T) {
	s, _ := newTestSession(4)
	s.Flush.Request(200000)
	require.NoError(t, s.PutPacket(1, 199000, make([]byte, 16)))
	assert.False(t, s.Ring.SlotFor(1).Ready)
	require.NoError(t, s.PutPacket(2, 200001, make([]byte, 16)))
	assert.True(t, s.Ring.SlotFor(2).Ready)
	assert.EqualValues(t, 0, s.Flush.Boundary(), "boundary clears once a later packet passes it")
}

func TestPutPacketDecoderErrorIsFatal(t *testing.T) {
	r := ring.New(512, 4)
	fc := &flush.Controller{}
	s := NewSession(r, fc, fakeDecrypter{}, fakeDecoder{frameSize: 4, err: errors.New("boom")}, nil)
	err := s.PutPacket(1, 10, make([]byte, 16))
	assert.Error(t, err)
}

func TestPutPacketOversizedPayloadDroppedSilently(t *testing.T) {
	s, _ := newTestSession(4)
	err := s.PutPacket(1, 10, make([]byte, 2049))
	assert.NoError(t, err)
	assert.False(t, s.Ring.SlotFor(1).Ready)
}
