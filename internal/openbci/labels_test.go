package openbci

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/openbci/internal/boards"
)

// logRecorder captures formatted log lines.
type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *logRecorder) logf(format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

func (r *logRecorder) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestBuildLabelsAllBoards(t *testing.T) {
	t.Parallel()

	for _, name := range boards.Names() {
		t.Run(string(name), func(t *testing.T) {
			board, err := boards.Lookup(string(name))
			require.NoError(t, err)

			labels, err := BuildLabels(board, nil, nil)
			require.NoError(t, err)
			require.Len(t, labels, board.NumRows)

			for i, row := range board.EEG {
				assert.Equal(t, fmt.Sprintf("eeg_%d", i+1), labels[row])
			}
			for _, row := range board.Accel {
				assert.True(t, strings.HasPrefix(labels[row], "accel_"), labels[row])
			}
			for _, row := range board.Analog {
				assert.True(t, strings.HasPrefix(labels[row], "analog_"), labels[row])
			}
			for _, row := range board.Other {
				assert.True(t, strings.HasPrefix(labels[row], "other_"), labels[row])
			}
			assert.Equal(t, "num", labels[board.PackageNum])
			assert.Equal(t, "timestamp", labels[board.Timestamp])
			assert.Equal(t, strconv.Itoa(board.Marker), labels[board.Marker])
		})
	}
}

func TestBuildLabelsCyton(t *testing.T) {
	t.Parallel()

	board, err := boards.Lookup("cyton")
	require.NoError(t, err)

	labels, err := BuildLabels(board, nil, nil)
	require.NoError(t, err)

	want := []string{
		"num",
		"eeg_1", "eeg_2", "eeg_3", "eeg_4", "eeg_5", "eeg_6", "eeg_7", "eeg_8",
		"accel_x", "accel_y", "accel_z",
		"other_1", "other_2", "other_3", "other_4", "other_5", "other_6", "other_7",
		"analog_1", "analog_2", "analog_3",
		"timestamp", "23",
	}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildLabelsCustomNames(t *testing.T) {
	t.Parallel()

	board, _ := boards.Lookup("ganglion")
	names := []string{"Fp1", "Fp2", "O1", "O2"}

	labels, err := BuildLabels(board, names, nil)
	require.NoError(t, err)
	assert.Equal(t, names, labels[1:5])
}

func TestBuildLabelsMismatchFallsBack(t *testing.T) {
	t.Parallel()

	board, _ := boards.Lookup("cyton")
	for _, names := range [][]string{{}, {"Fp1"}, {"a", "b", "c", "d", "e", "f", "g", "h", "i"}} {
		var logs logRecorder
		labels, err := BuildLabels(board, names, logs.logf)
		require.NoError(t, err)
		assert.Equal(t, "eeg_1", labels[board.EEG[0]])
		assert.Equal(t, "eeg_8", labels[board.EEG[7]])
		assert.True(t, logs.contains("channel label count mismatch"), "names %v", names)
	}
}

func TestBuildLabelsAccelCount(t *testing.T) {
	t.Parallel()

	board, _ := boards.Lookup("cyton")
	board.Accel = board.Accel[:2]
	_, err := BuildLabels(board, nil, nil)
	assert.True(t, errors.Is(err, ErrAccelChannelCount))

	board.Accel = nil
	labels, err := BuildLabels(board, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "11", labels[11])
}
