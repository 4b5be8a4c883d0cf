package acquisition

import (
	"math"
	"sync"
	"time"

	"github.com/banshee-data/openbci/internal/boards"
	"github.com/banshee-data/openbci/internal/timeutil"
)

// SyntheticSession generates a deterministic signal at the board's sampling
// rate, paced by the clock. Each EEG row carries a sine whose frequency is the
// row's channel number in Hz; samples exist only for time spent streaming.
type SyntheticSession struct {
	board boards.Descriptor
	clock timeutil.Clock
	buf   *ring

	mu        sync.Mutex
	prepared  bool
	released  bool
	streaming bool
	epoch     time.Time // timestamp of sample zero of the current stream
	emitted   int64
	counter   int
	configs   []string
}

// syntheticAmplitude is the EEG sine amplitude in microvolts.
const syntheticAmplitude = 50.0

// NewSyntheticSession returns a session for a simulated board.
func NewSyntheticSession(board boards.Descriptor, clock timeutil.Clock, bufferSize int) *SyntheticSession {
	return &SyntheticSession{
		board: board,
		clock: clock,
		buf:   newRing(board.NumRows, bufferSize),
	}
}

func (s *SyntheticSession) Prepare() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrNotPrepared
	}
	s.prepared = true
	return nil
}

// ConfigBoard records the configuration; the simulated board accepts anything.
func (s *SyntheticSession) ConfigBoard(config string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.prepared || s.released {
		return "", ErrNotPrepared
	}
	s.configs = append(s.configs, config)
	return "", nil
}

// Configs returns every configuration string received.
func (s *SyntheticSession) Configs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.configs...)
}

func (s *SyntheticSession) StartStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.prepared || s.released {
		return ErrNotPrepared
	}
	if !s.streaming {
		s.streaming = true
		s.epoch = s.clock.Now()
		s.emitted = 0
	}
	return nil
}

func (s *SyntheticSession) BoardData() ([][]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.prepared || s.released {
		return nil, ErrNotPrepared
	}
	if s.streaming {
		s.generate(s.clock.Now())
	}
	return s.buf.drain(), nil
}

// generate fills the buffer with every sample due by now.
func (s *SyntheticSession) generate(now time.Time) {
	period := time.Second / time.Duration(s.board.SamplingRate)
	due := int64(now.Sub(s.epoch) / period)
	for ; s.emitted < due; s.emitted++ {
		at := s.epoch.Add(time.Duration(s.emitted) * period)
		s.buf.push(s.sample(at))
	}
}

func (s *SyntheticSession) sample(at time.Time) []float64 {
	b := s.board
	out := make([]float64, b.NumRows)
	t := float64(at.Sub(s.epoch)) / float64(time.Second)

	out[b.PackageNum] = float64(s.counter)
	s.counter = (s.counter + 1) % 256

	for i, row := range b.EEG {
		out[row] = syntheticAmplitude * math.Sin(2*math.Pi*float64(i+1)*t)
	}
	for i, row := range b.Accel {
		// gravity on z, slow sway on x and y
		if i == 2 {
			out[row] = 1
		} else {
			out[row] = 0.05 * math.Sin(2*math.Pi*0.1*t+float64(i))
		}
	}
	for i, row := range b.Analog {
		out[row] = float64(i)
	}
	for i, row := range b.Other {
		out[row] = float64(i)
	}
	out[b.Timestamp] = timeutil.UnixSeconds(at)
	return out
}

func (s *SyntheticSession) StopStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.prepared || s.released {
		return ErrNotPrepared
	}
	if s.streaming {
		s.generate(s.clock.Now())
		s.streaming = false
	}
	return nil
}

// Release is idempotent.
func (s *SyntheticSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.streaming = false
	return nil
}
