package flush

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"airsync/internal/seqnum"
)

func TestShouldDropOnArrivalNoOpWhenNoBoundary(t *testing.T) {
	drop, clear := ShouldDropOnArrival(0, 12345)
	assert.False(t, drop)
	assert.False(t, clear)
}

func TestShouldDropOnArrivalDropsAtOrBeforeBoundary(t *testing.T) {
	drop, clear := ShouldDropOnArrival(200000, 200000)
	assert.True(t, drop)
	assert.False(t, clear)

	drop, clear = ShouldDropOnArrival(200000, 199000)
	assert.True(t, drop)
	assert.False(t, clear)
}

func TestShouldDropOnArrivalClearsBoundaryAfterPassing(t *testing.T) {
	drop, clear := ShouldDropOnArrival(200000, 200001)
	assert.False(t, drop)
	assert.True(t, clear)
}

func TestControllerRequestAndClear(t *testing.T) {
	c := &Controller{}
	requested, boundary := c.Pending()
	assert.False(t, requested)
	assert.Equal(t, seqnum.Timestamp(0), boundary)

	c.Request(500)
	requested, boundary = c.Pending()
	assert.True(t, requested)
	assert.EqualValues(t, 500, boundary)

	c.ClearRequested()
	requested, boundary = c.Pending()
	assert.False(t, requested)
	assert.EqualValues(t, 500, boundary, "boundary lingers after requested clears")

	c.ClearBoundary()
	assert.EqualValues(t, 0, c.Boundary())
}

func TestFlushZeroOverloadMeansNoFlushPending(t *testing.T) {
	c := &Controller{}
	c.Request(0)
	// Per spec.md §9, flush_rtp_timestamp == 0 is indistinguishable from
	// "no flush pending" -- this is documented, preserved behavior, not a
	// bug this implementation works around.
	assert.EqualValues(t, 0, c.Boundary())
	drop, _ := ShouldDropOnArrival(c.Boundary(), 1)
	assert.False(t, drop, "a boundary of 0 is treated as absent, not as flush-at-zero")
}
