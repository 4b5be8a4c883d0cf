package frame

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sampleFrame() Frame {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return Frame{
		Data:    mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
		Index:   []time.Time{t0, t0.Add(4 * time.Millisecond)},
		Columns: []string{"num", "eeg_1", "timestamp"},
		Meta:    map[string]any{MetaRate: 250},
	}
}

func TestFrameAccessors(t *testing.T) {
	t.Parallel()

	f := sampleFrame()
	require.NoError(t, f.Validate())
	assert.Equal(t, 2, f.Samples())
	assert.Equal(t, 250, f.Rate())

	col, ok := f.Column("eeg_1")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 5}, col)

	_, ok = f.Column("eeg_9")
	assert.False(t, ok)
}

func TestFrameValidate(t *testing.T) {
	t.Parallel()

	f := sampleFrame()
	f.Columns = f.Columns[:2]
	assert.Error(t, f.Validate())

	f = sampleFrame()
	f.Index = f.Index[:1]
	assert.Error(t, f.Validate())

	assert.Error(t, Frame{}.Validate())
}

func TestFrameJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(sampleFrame())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, []any{[]any{1.0, 2.0, 3.0}, []any{4.0, 5.0, 6.0}}, raw["data"])

	var back Frame
	require.NoError(t, json.Unmarshal(b, &back))
	require.NoError(t, back.Validate())
	assert.True(t, mat.Equal(sampleFrame().Data, back.Data))
	assert.Equal(t, 250, back.Rate())
	assert.True(t, back.Index[1].Equal(sampleFrame().Index[1]))
}

func TestFrameJSONRejectsMalformedData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"empty rows", `{"index":["2024-03-01T12:00:00Z"],"columns":[],"data":[[]]}`},
		{"ragged rows", `{"index":["2024-03-01T12:00:00Z","2024-03-01T12:00:01Z"],"columns":["a","b"],"data":[[1,2],[3]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Frame
			assert.NotPanics(t, func() {
				assert.Error(t, json.Unmarshal([]byte(tt.body), &f))
			})
		})
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	t.Parallel()

	var got int
	counting := PortFunc(func(Frame) error { got++; return nil })
	boom := errors.New("boom")
	failing := PortFunc(func(Frame) error { return boom })

	err := Multi(failing, counting, Discard).Emit(sampleFrame())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, got)
}

func TestLatest(t *testing.T) {
	t.Parallel()

	var l Latest
	_, ok := l.Get()
	assert.False(t, ok)

	require.NoError(t, l.Emit(sampleFrame()))
	f, ok := l.Get()
	require.True(t, ok)
	assert.Equal(t, 2, f.Samples())
}
