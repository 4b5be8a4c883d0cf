package openbci

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/openbci/internal/timeutil"
)

func TestParseTimestampPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    TimestampPolicy
		wantErr bool
	}{
		{"", RelativeOffset, false},
		{"relative", RelativeOffset, false},
		{"absolute", Absolute, false},
		{"Absolute", 0, true},
		{"merged", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimestampPolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.want.String(), got.String())
	}
}

func TestRelativeOffsetIsFixedByFirstBlock(t *testing.T) {
	t.Parallel()

	wall := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(wall)
	a := aligner{policy: RelativeOffset, clock: clock}

	_, ok := a.offsetSeconds()
	assert.False(t, ok)
	assert.Empty(t, a.align(nil))
	_, ok = a.offsetSeconds()
	assert.False(t, ok, "an empty block must not fix the offset")

	// device clock counts from boot: first block ends at T = 102
	first := a.align([]float64{100, 101, 102})
	assert.Equal(t, wall.Add(-2*time.Second), first[0])
	assert.Equal(t, wall, first[2])

	offset, ok := a.offsetSeconds()
	require.True(t, ok)
	assert.Equal(t, timeutil.UnixSeconds(wall)-102, offset)

	// later blocks keep the same offset even though the wall clock moved
	clock.Advance(10 * time.Minute)
	later := a.align([]float64{150.5})
	assert.Equal(t, wall.Add(48500*time.Millisecond), later[0])

	again, _ := a.offsetSeconds()
	assert.Equal(t, offset, again)
}

func TestAbsolutePolicy(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	a := aligner{policy: Absolute, clock: clock}

	device := time.Date(2024, 3, 1, 12, 0, 0, 250000000, time.UTC)
	got := a.align([]float64{timeutil.UnixSeconds(device)})
	assert.Equal(t, device, got[0])

	_, ok := a.offsetSeconds()
	assert.False(t, ok)
}
