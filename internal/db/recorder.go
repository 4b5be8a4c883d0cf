package db

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/openbci/internal/frame"
	"github.com/banshee-data/openbci/internal/timeutil"
)

// Recorder is a frame.Port that persists every frame. The first frame of a
// session creates its row; frames without a session id are filed under one
// generated for the recorder.
type Recorder struct {
	db    *DB
	clock timeutil.Clock

	mu       sync.Mutex
	fallback string
	open     map[string]bool
}

// NewRecorder returns a recorder writing to db.
func NewRecorder(db *DB, clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{db: db, clock: clock, fallback: uuid.NewString(), open: make(map[string]bool)}
}

func (r *Recorder) sessionID(f frame.Frame) string {
	if id, ok := f.Meta[frame.MetaSession].(string); ok && id != "" {
		return id
	}
	return r.fallback
}

// Emit implements frame.Port.
func (r *Recorder) Emit(f frame.Frame) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("record frame: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.sessionID(f)
	if !r.open[id] {
		board, _ := f.Meta[frame.MetaBoard].(string)
		s := Session{
			ID:      id,
			Board:   board,
			Rate:    f.Rate(),
			Labels:  f.Columns,
			Started: r.clock.Now(),
		}
		if len(f.Index) > 0 {
			s.Started = f.Index[0]
		}
		if err := r.db.CreateSession(s); err != nil {
			return err
		}
		r.open[id] = true
	}

	samples := make([]Sample, f.Samples())
	for i := range samples {
		samples[i] = Sample{Time: f.Index[i], Values: mat.Row(nil, i, f.Data)}
	}
	return r.db.InsertSamples(id, samples)
}

// Close stamps the end time on every session the recorder opened.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for id := range r.open {
		if err := r.db.EndSession(id, now); err != nil {
			return err
		}
		delete(r.open, id)
	}
	return nil
}

// Sessions returns the ids currently open.
func (r *Recorder) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.open))
	for id := range r.open {
		ids = append(ids, id)
	}
	return ids
}

var _ frame.Port = (*Recorder)(nil)
