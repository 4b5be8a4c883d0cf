package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerFanOut(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	_, a := b.Subscribe()
	idB, c := b.Subscribe()

	require.NoError(t, b.Emit(sampleFrame()))
	assert.Equal(t, 2, (<-a).Samples())
	assert.Equal(t, 2, (<-c).Samples())

	b.Unsubscribe(idB)
	_, open := <-c
	assert.False(t, open)

	require.NoError(t, b.Emit(sampleFrame()))
	assert.Len(t, a, 1)
}

func TestBrokerDropsWhenFull(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	_, ch := b.Subscribe()
	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, b.Emit(sampleFrame()))
	}
	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, int64(5), b.Dropped())
}

func TestBrokerClose(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	_, ch := b.Subscribe()
	b.Close()
	_, open := <-ch
	assert.False(t, open)

	_, late := b.Subscribe()
	_, open = <-late
	assert.False(t, open)

	b.Unsubscribe("missing")
}
