package openbci

import (
	"fmt"
	"time"

	"github.com/banshee-data/openbci/internal/timeutil"
)

// TimestampPolicy selects how device timestamps become the frame index.
type TimestampPolicy int

const (
	// RelativeOffset shifts every timestamp by the difference between the
	// wall clock and the last timestamp of the first non-empty block.
	RelativeOffset TimestampPolicy = iota
	// Absolute uses device timestamps unchanged.
	Absolute
)

func (p TimestampPolicy) String() string {
	switch p {
	case RelativeOffset:
		return "relative"
	case Absolute:
		return "absolute"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseTimestampPolicy accepts "relative" (or "") and "absolute".
func ParseTimestampPolicy(s string) (TimestampPolicy, error) {
	switch s {
	case "", "relative":
		return RelativeOffset, nil
	case "absolute":
		return Absolute, nil
	default:
		return 0, fmt.Errorf("unknown timestamp policy %q: expected relative or absolute", s)
	}
}

// aligner converts device timestamps in Unix seconds to the frame index.
type aligner struct {
	policy TimestampPolicy
	clock  timeutil.Clock
	offset *float64
}

func (a *aligner) align(ts []float64) []time.Time {
	shift := 0.0
	if a.policy == RelativeOffset && len(ts) > 0 {
		if a.offset == nil {
			o := timeutil.UnixSeconds(a.clock.Now()) - ts[len(ts)-1]
			a.offset = &o
		}
		shift = *a.offset
	}

	index := make([]time.Time, len(ts))
	for i, t := range ts {
		index[i] = timeutil.FromUnixSeconds(t + shift)
	}
	return index
}

// offsetSeconds returns the offset once it has been fixed.
func (a *aligner) offsetSeconds() (float64, bool) {
	if a.offset == nil {
		return 0, false
	}
	return *a.offset, true
}
