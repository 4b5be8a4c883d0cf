package openbci

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/banshee-data/openbci/internal/boards"
	"github.com/banshee-data/openbci/internal/monitoring"
)

// ErrAccelChannelCount is returned for a board that reports an accelerometer
// with other than three axes.
var ErrAccelChannelCount = errors.New("accelerometer must have 0 or 3 channels")

var accelAxes = [3]string{"accel_x", "accel_y", "accel_z"}

// BuildLabels returns one label per row of the board's sample block. Rows
// with no role keep their decimal index. A names list whose length differs
// from the EEG channel count is logged and replaced by eeg_1..eeg_N.
func BuildLabels(board boards.Descriptor, names []string, logf monitoring.Logger) ([]string, error) {
	logf = monitoring.OrDefault(logf)

	labels := make([]string, board.NumRows)
	for i := range labels {
		labels[i] = strconv.Itoa(i)
	}

	if names != nil && len(names) != len(board.EEG) {
		logf("channel label count mismatch: got %d labels for %d EEG channels, using defaults", len(names), len(board.EEG))
		names = nil
	}
	for i, row := range board.EEG {
		if names != nil {
			labels[row] = names[i]
		} else {
			labels[row] = fmt.Sprintf("eeg_%d", i+1)
		}
	}

	labels[board.PackageNum] = "num"
	labels[board.Timestamp] = "timestamp"

	switch len(board.Accel) {
	case 0:
	case len(accelAxes):
		for i, row := range board.Accel {
			labels[row] = accelAxes[i]
		}
	default:
		return nil, fmt.Errorf("%w: %s has %d", ErrAccelChannelCount, board.Board, len(board.Accel))
	}

	for i, row := range board.Analog {
		labels[row] = fmt.Sprintf("analog_%d", i+1)
	}
	for i, row := range board.Other {
		labels[row] = fmt.Sprintf("other_%d", i+1)
	}
	return labels, nil
}
