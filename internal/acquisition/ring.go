package acquisition

import "sync"

// ring holds the most recent samples of a session. Each entry is one column
// of the sample block, NumRows values long.
type ring struct {
	mu      sync.Mutex
	rows    int
	samples [][]float64
	start   int
	n       int
	dropped int64
}

func newRing(rows, capacity int) *ring {
	return &ring{rows: rows, samples: make([][]float64, capacity)}
}

func (r *ring) push(sample []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.samples)
	if r.n == capacity {
		r.samples[r.start] = sample
		r.start = (r.start + 1) % capacity
		r.dropped++
		return
	}
	r.samples[(r.start+r.n)%capacity] = sample
	r.n++
}

// drain empties the ring and returns its contents indexed [row][sample].
func (r *ring) drain() [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n == 0 {
		return nil
	}
	out := make([][]float64, r.rows)
	for row := range out {
		out[row] = make([]float64, r.n)
	}
	capacity := len(r.samples)
	for i := 0; i < r.n; i++ {
		idx := (r.start + i) % capacity
		for row := 0; row < r.rows; row++ {
			out[row][i] = r.samples[idx][row]
		}
		r.samples[idx] = nil
	}
	r.start, r.n = 0, 0
	return out
}

func (r *ring) overflowed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
