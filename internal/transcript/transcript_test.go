package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferDropsWhenFull(t *testing.T) {
	drops := 0
	f := NewFeed(2, func() { drops++ })

	assert.True(t, f.Offer("a"))
	assert.True(t, f.Offer("b"))
	assert.False(t, f.Offer("c"))
	assert.Equal(t, uint64(1), f.Dropped())
	assert.Equal(t, 1, drops)

	require.Equal(t, "a", <-f.Lines())
	assert.True(t, f.Offer("d"))
	assert.Equal(t, "b", <-f.Lines())
	assert.Equal(t, "d", <-f.Lines())
}

func TestNilFeed(t *testing.T) {
	var f *Feed
	assert.False(t, f.Offer("x"))
}

func TestDefaultBuffer(t *testing.T) {
	f := NewFeed(0, nil)
	assert.Equal(t, DefaultBuffer, cap(f.lines))
}
