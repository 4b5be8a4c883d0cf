// Package frame defines the labeled, timestamped sample frames the node emits
// and the ports that carry them downstream.
package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Metadata keys set on every emitted frame.
const (
	MetaRate    = "rate"
	MetaBoard   = "board"
	MetaSession = "session"
)

// Frame is one poll's worth of samples. Data is samples × channels; row i of
// Data was sampled at Index[i] and column j is named Columns[j]. Frames are
// not modified once emitted.
type Frame struct {
	Data    *mat.Dense
	Index   []time.Time
	Columns []string
	Meta    map[string]any
}

// Samples returns the number of rows.
func (f Frame) Samples() int {
	return len(f.Index)
}

// Rate returns the sampling rate recorded in the metadata, or 0.
func (f Frame) Rate() int {
	switch v := f.Meta[MetaRate].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Column returns a copy of the named channel.
func (f Frame) Column(name string) ([]float64, bool) {
	j := slices.Index(f.Columns, name)
	if j < 0 || f.Data == nil {
		return nil, false
	}
	return mat.Col(nil, j, f.Data), true
}

// Validate checks that the matrix, index and columns agree in shape.
func (f Frame) Validate() error {
	if f.Data == nil {
		return errors.New("frame has no data")
	}
	r, c := f.Data.Dims()
	if r != len(f.Index) {
		return fmt.Errorf("frame has %d rows but %d index entries", r, len(f.Index))
	}
	if c != len(f.Columns) {
		return fmt.Errorf("frame has %d columns but %d labels", c, len(f.Columns))
	}
	return nil
}

type jsonFrame struct {
	Index   []time.Time    `json:"index"`
	Columns []string       `json:"columns"`
	Data    [][]float64    `json:"data"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// MarshalJSON encodes the frame row-major, one array per sample.
func (f Frame) MarshalJSON() ([]byte, error) {
	out := jsonFrame{Index: f.Index, Columns: f.Columns, Meta: f.Meta, Data: [][]float64{}}
	if f.Data != nil {
		r, _ := f.Data.Dims()
		out.Data = make([][]float64, r)
		for i := range out.Data {
			out.Data[i] = mat.Row(nil, i, f.Data)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (f *Frame) UnmarshalJSON(b []byte) error {
	var in jsonFrame
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*f = Frame{Index: in.Index, Columns: in.Columns, Meta: in.Meta}
	if len(in.Data) == 0 {
		return nil
	}
	cols := len(in.Data[0])
	if cols == 0 {
		return fmt.Errorf("%d rows with no values", len(in.Data))
	}
	flat := make([]float64, 0, len(in.Data)*cols)
	for i, row := range in.Data {
		if len(row) != cols {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	f.Data = mat.NewDense(len(in.Data), cols, flat)
	return nil
}
