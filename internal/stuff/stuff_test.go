package stuff

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unity = 0x10000

func TestBasicStuffZeroUnityIsIdentity(t *testing.T) {
	b := NewBasic(rand.New(rand.NewSource(42)))
	frameSize := 8
	in := make([]int16, frameSize*2)
	for i := range in {
		in[i] = int16(i * 100)
	}
	out := make([]int16, (frameSize+1)*2)
	n := b.Stuff(in, frameSize, 0, unity, out)
	require.Equal(t, frameSize, n)
	assert.Equal(t, in, out[:frameSize*2])
}

func TestBasicStuffInsertAddsOneStereoSample(t *testing.T) {
	b := NewBasic(rand.New(rand.NewSource(1)))
	frameSize := 10
	in := make([]int16, frameSize*2)
	for i := range in {
		in[i] = int16(i)
	}
	out := make([]int16, (frameSize+1)*2)
	n := b.Stuff(in, frameSize, 1, unity, out)
	assert.Equal(t, frameSize+1, n)
}

func TestBasicStuffDeleteRemovesOneStereoSample(t *testing.T) {
	b := NewBasic(rand.New(rand.NewSource(1)))
	frameSize := 10
	in := make([]int16, frameSize*2)
	for i := range in {
		in[i] = int16(i)
	}
	out := make([]int16, (frameSize+1)*2)
	n := b.Stuff(in, frameSize, -1, unity, out)
	assert.Equal(t, frameSize-1, n)
}

func TestShortMeanNoOverflow(t *testing.T) {
	assert.Equal(t, int16(32767), shortMean(32767, 32767))
	assert.Equal(t, int16(-32768), shortMean(-32768, -32768))
	assert.Equal(t, int16(0), shortMean(32767, -32767))
}
