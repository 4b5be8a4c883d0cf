package acquisition

import (
	"sync"

	"github.com/banshee-data/openbci/internal/boards"
)

// FakeSession is a scripted Session for tests. Each BoardData call pops the
// next queued block; an exhausted queue yields an empty block.
type FakeSession struct {
	mu sync.Mutex

	// Blocks are returned by successive BoardData calls.
	Blocks [][][]float64

	PrepareErr error
	ConfigErr  error
	StartErr   error
	DataErr    error
	StopErr    error
	ReleaseErr error

	// Response is returned by ConfigBoard.
	Response string

	calls   []string
	configs []string
}

func (f *FakeSession) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *FakeSession) Prepare() error {
	f.record("prepare")
	return f.PrepareErr
}

func (f *FakeSession) ConfigBoard(config string) (string, error) {
	f.record("config_board")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, config)
	return f.Response, f.ConfigErr
}

func (f *FakeSession) StartStream() error {
	f.record("start_stream")
	return f.StartErr
}

func (f *FakeSession) BoardData() ([][]float64, error) {
	f.record("board_data")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DataErr != nil {
		return nil, f.DataErr
	}
	if len(f.Blocks) == 0 {
		return nil, nil
	}
	block := f.Blocks[0]
	f.Blocks = f.Blocks[1:]
	return block, nil
}

// Push queues a block for a later BoardData call.
func (f *FakeSession) Push(block [][]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Blocks = append(f.Blocks, block)
}

func (f *FakeSession) StopStream() error {
	f.record("stop_stream")
	return f.StopErr
}

func (f *FakeSession) Release() error {
	f.record("release")
	return f.ReleaseErr
}

// Calls returns the session methods invoked so far, in order.
func (f *FakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Configs returns every string passed to ConfigBoard.
func (f *FakeSession) Configs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.configs...)
}

// FakeOpener hands out a single FakeSession and records the open request.
type FakeOpener struct {
	Session *FakeSession
	Err     error

	Board  boards.Descriptor
	Params Params
	Opened int
}

func (o *FakeOpener) Open(board boards.Descriptor, params Params) (Session, error) {
	o.Opened++
	o.Board, o.Params = board, params
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Session, nil
}
