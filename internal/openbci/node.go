// Package openbci implements the acquisition node: it resolves a board, labels
// its channels, starts the acquisition session and turns each poll into one
// labeled, time-indexed frame.
package openbci

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/openbci/internal/acquisition"
	"github.com/banshee-data/openbci/internal/boards"
	"github.com/banshee-data/openbci/internal/frame"
	"github.com/banshee-data/openbci/internal/monitoring"
	"github.com/banshee-data/openbci/internal/timeutil"
)

var (
	// ErrAcquisitionStart wraps any failure to open, prepare, configure or
	// start the acquisition session.
	ErrAcquisitionStart = errors.New("acquisition start failed")
	// ErrTerminated is returned by calls made after Terminate.
	ErrTerminated = errors.New("node terminated")
)

// Config holds the construction parameters of a node.
type Config struct {
	Board string
	// Channels optionally names the EEG channels in ascending row order.
	Channels []string
	// Gain is the Cyton amplifier gain; nil selects DefaultGain.
	Gain *int
	// Disable lists 1-based Cyton channels to power down.
	Disable    []int
	Debug      bool
	Params     acquisition.Params
	Timestamps TimestampPolicy
}

// Stats summarises what a node has emitted.
type Stats struct {
	Frames    int64     `json:"frames"`
	Samples   int64     `json:"samples"`
	LastFrame time.Time `json:"last_frame,omitzero"`
}

// Option customises a Node.
type Option func(*Node)

// WithClock sets the clock used for the relative timestamp offset.
func WithClock(c timeutil.Clock) Option {
	return func(n *Node) { n.clock = c }
}

// WithLogger sets the logger for warnings and debug output.
func WithLogger(l monitoring.Logger) Option {
	return func(n *Node) { n.logf = l }
}

// WithSessionID sets the recording session id placed in frame metadata.
// By default a random UUID is used.
func WithSessionID(id string) Option {
	return func(n *Node) { n.sessionID = id }
}

// Node owns one acquisition session and emits a frame per non-empty poll.
type Node struct {
	mu sync.Mutex

	board     boards.Descriptor
	labels    []string
	meta      map[string]any
	command   string
	sessionID string

	session acquisition.Session
	out     frame.Port
	align   aligner

	clock  timeutil.Clock
	logf   monitoring.Logger
	debugf monitoring.Logger

	terminated bool
	stats      Stats
}

// New resolves the board, builds the channel labels and starts streaming.
// Any failure after the session is prepared releases it before returning.
func New(cfg Config, opener acquisition.Opener, out frame.Port, opts ...Option) (*Node, error) {
	n := &Node{out: out, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(n)
	}
	n.logf = monitoring.OrDefault(n.logf)
	n.debugf = monitoring.Debug(n.logf, cfg.Debug)
	if n.sessionID == "" {
		n.sessionID = uuid.NewString()
	}
	if n.out == nil {
		n.out = frame.Discard
	}

	board, err := boards.Lookup(cfg.Board)
	if err != nil {
		return nil, err
	}
	if err := cfg.Params.Validate(board); err != nil {
		return nil, err
	}
	n.board = board

	n.labels, err = BuildLabels(board, cfg.Channels, n.logf)
	if err != nil {
		return nil, err
	}
	n.meta = map[string]any{
		frame.MetaRate:    board.SamplingRate,
		frame.MetaBoard:   string(board.Board),
		frame.MetaSession: n.sessionID,
	}
	n.align = aligner{policy: cfg.Timestamps, clock: n.clock}

	gain := DefaultGain
	if cfg.Gain != nil {
		gain = *cfg.Gain
	}
	n.command, err = CytonCommand(board, gain, cfg.Disable)
	if err != nil {
		n.logf("warning: %v; channel settings not sent", err)
		n.command = ""
	}

	if err := n.start(opener, cfg.Params); err != nil {
		return nil, err
	}
	n.debugf("started %s (%d rows at %d Hz, timestamps %s)", board.Board, board.NumRows, board.SamplingRate, cfg.Timestamps)
	return n, nil
}

func (n *Node) start(opener acquisition.Opener, params acquisition.Params) error {
	session, err := opener.Open(n.board, params)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrAcquisitionStart, n.board.Board, err)
	}
	if err := session.Prepare(); err != nil {
		return fmt.Errorf("%w: prepare: %w", ErrAcquisitionStart, err)
	}

	fail := func(step string, err error) error {
		err = fmt.Errorf("%w: %s: %w", ErrAcquisitionStart, step, err)
		if rerr := session.Release(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release: %w", rerr))
		}
		return err
	}
	if n.command != "" {
		n.debugf("config board: %s", n.command)
		if _, err := session.ConfigBoard(n.command); err != nil {
			return fail("config board", err)
		}
	}
	if err := session.StartStream(); err != nil {
		return fail("start stream", err)
	}
	n.session = session
	return nil
}

// Update drains the session and emits one frame if any samples arrived.
func (n *Node) Update() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.terminated {
		return ErrTerminated
	}

	block, err := n.session.BoardData()
	if err != nil {
		return fmt.Errorf("board data: %w", err)
	}
	if len(block) == 0 || len(block[0]) == 0 {
		return nil
	}
	if len(block) != n.board.NumRows {
		return fmt.Errorf("board data has %d rows, want %d", len(block), n.board.NumRows)
	}

	samples := len(block[0])
	flat := make([]float64, 0, n.board.NumRows*samples)
	for i, row := range block {
		if len(row) != samples {
			return fmt.Errorf("board data row %d has %d samples, want %d", i, len(row), samples)
		}
		flat = append(flat, row...)
	}
	data := mat.DenseCopyOf(mat.NewDense(n.board.NumRows, samples, flat).T())

	f := frame.Frame{
		Data:    data,
		Index:   n.align.align(block[n.board.Timestamp]),
		Columns: slices.Clone(n.labels),
		Meta:    maps.Clone(n.meta),
	}
	if err := n.out.Emit(f); err != nil {
		return fmt.Errorf("emit frame: %w", err)
	}

	n.stats.Frames++
	n.stats.Samples += int64(samples)
	n.stats.LastFrame = f.Index[samples-1]
	n.debugf("emitted %d samples ending %s", samples, n.stats.LastFrame.Format(time.RFC3339Nano))
	return nil
}

// Terminate stops the stream and releases the session. Both are attempted
// and their errors joined. Later calls do nothing and return nil.
func (n *Node) Terminate() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.terminated {
		return nil
	}
	n.terminated = true

	var errs []error
	if err := n.session.StopStream(); err != nil {
		errs = append(errs, fmt.Errorf("stop stream: %w", err))
	}
	if err := n.session.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release: %w", err))
	}
	n.debugf("terminated after %d frames", n.stats.Frames)
	return errors.Join(errs...)
}

// SendCommand forwards a raw configuration string to the board.
func (n *Node) SendCommand(cmd string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.terminated {
		return "", ErrTerminated
	}
	n.debugf("config board: %s", cmd)
	return n.session.ConfigBoard(cmd)
}

// AttachAdminRoutes mounts the transport debug routes of the session, when it
// has any.
func (n *Node) AttachAdminRoutes(mux *http.ServeMux) {
	n.mu.Lock()
	r, ok := n.session.(acquisition.AdminRouter)
	n.mu.Unlock()
	if ok {
		r.AttachAdminRoutes(mux)
	}
}

// Labels returns a copy of the channel labels.
func (n *Node) Labels() []string {
	return slices.Clone(n.labels)
}

// Rate returns the board's sampling rate in Hz.
func (n *Node) Rate() int {
	return n.board.SamplingRate
}

// Board returns the resolved board descriptor.
func (n *Node) Board() boards.Descriptor {
	return n.board
}

// Command returns the channel settings string sent at start, if any.
func (n *Node) Command() string {
	return n.command
}

// SessionID returns the id placed in frame metadata.
func (n *Node) SessionID() string {
	return n.sessionID
}

// Stats returns emission counters.
func (n *Node) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}
