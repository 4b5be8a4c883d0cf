// Package host drives a node the way the dataflow runtime does: Update on
// every tick and Terminate once when the context ends.
package host

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/openbci/internal/monitoring"
	"github.com/banshee-data/openbci/internal/openbci"
	"github.com/banshee-data/openbci/internal/timeutil"
)

// DefaultInterval is the poll period when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Node is the lifecycle the host schedules.
type Node interface {
	Update() error
	Terminate() error
}

type Options struct {
	Interval time.Duration
	Clock    timeutil.Clock
	Logf     monitoring.Logger
}

// Run polls node until ctx is done, then terminates it and returns the
// teardown error. Update errors are logged and polling continues; an already
// terminated node ends the loop early.
func Run(ctx context.Context, node Node, opts Options) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	logf := monitoring.OrDefault(opts.Logf)

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	var updates, failures int
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C():
			updates++
			err := node.Update()
			if errors.Is(err, openbci.ErrTerminated) {
				break loop
			}
			if err != nil {
				failures++
				logf("update failed: %v", err)
			}
		}
	}

	logf("host stopping after %d updates (%d failed)", updates, failures)
	return node.Terminate()
}
