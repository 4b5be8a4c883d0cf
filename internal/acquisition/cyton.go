package acquisition

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/banshee-data/openbci/internal/boards"
	"github.com/banshee-data/openbci/internal/monitoring"
	"github.com/banshee-data/openbci/internal/serialmux"
	"github.com/banshee-data/openbci/internal/timeutil"
	"github.com/banshee-data/openbci/internal/units"
)

// Cyton single-character commands.
const (
	cmdStartStream = "b"
	cmdStopStream  = "s"
	cmdEnableDaisy = "C"
)

const (
	footerAnalog     = 0xC1
	defaultCytonGain = 24
)

// ErrMissingParam is returned when a session needs a transport parameter that
// was not supplied.
var ErrMissingParam = errors.New("missing transport parameter")

// CytonSession speaks the Cyton binary protocol over the RFduino serial
// dongle. Packets are framed by a serialmux monitor and converted to sample
// columns as they arrive.
type CytonSession struct {
	board boards.Descriptor
	path  string
	ports serialmux.SerialPortFactory
	clock timeutil.Clock
	logf  monitoring.Logger
	buf   *ring

	mu       sync.Mutex
	mux      *serialmux.SerialMux[serialmux.SerialPorter]
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	released bool

	gainMu sync.Mutex
	gains  []int // per physical channel

	pending   *serialmux.Packet // odd half of a daisy pair
	lastAccel [3]float64
}

// NewCytonSession returns an unprepared session. The port is opened by Prepare.
func NewCytonSession(board boards.Descriptor, params Params, ports serialmux.SerialPortFactory, clock timeutil.Clock, bufferSize int, logf monitoring.Logger) (*CytonSession, error) {
	if params.SerialPort == "" {
		return nil, fmt.Errorf("%w: %s requires %s", ErrMissingParam, board.Board, boards.ParamSerialPort)
	}
	gains := make([]int, len(board.CytonChannelIDs()))
	for i := range gains {
		gains[i] = defaultCytonGain
	}
	return &CytonSession{
		board: board,
		path:  params.SerialPort,
		ports: ports,
		clock: clock,
		logf:  monitoring.OrDefault(logf),
		buf:   newRing(board.NumRows, bufferSize),
		gains: gains,
	}, nil
}

func (c *CytonSession) Prepare() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrNotPrepared
	}
	if c.mux != nil {
		return nil
	}

	port, err := c.ports.Open(c.path, serialmux.PortOptions{BaudRate: serialmux.CytonBaudRate})
	if err != nil {
		return fmt.Errorf("open %s: %w", c.path, err)
	}
	mux := serialmux.NewSerialMux(port)
	mux.SetLogger(c.logf)
	_, packets := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	c.mux, c.cancel = mux, cancel

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		if err := mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logf("serial monitor for %s stopped: %v", c.path, err)
		}
	}()
	go func() {
		defer c.wg.Done()
		for p := range packets {
			c.handle(p)
		}
	}()

	if c.board.Daisy {
		if err := mux.SendCommand(cmdEnableDaisy); err != nil {
			c.releaseLocked()
			return fmt.Errorf("enable daisy: %w", err)
		}
	}
	return nil
}

// ConfigBoard writes config verbatim. Channel setting tokens in it update the
// gains used to scale subsequent samples.
func (c *CytonSession) ConfigBoard(config string) (string, error) {
	mux, err := c.port()
	if err != nil {
		return "", err
	}
	if err := mux.SendCommand(config); err != nil {
		return "", fmt.Errorf("config board: %w", err)
	}
	c.trackGains(config)
	return "", nil
}

// trackGains applies every x{id}{power}{gain}{input}{bias}{srb2}{srb1}X token.
func (c *CytonSession) trackGains(config string) {
	c.gainMu.Lock()
	defer c.gainMu.Unlock()

	for i := 0; i+9 <= len(config); i++ {
		tok := config[i : i+9]
		if tok[0] != 'x' || tok[8] != 'X' {
			continue
		}
		ch, ok := boards.CytonChannelIndex(tok[1])
		if !ok || ch >= len(c.gains) {
			continue
		}
		gain, ok := units.GainFromCode(int(tok[3] - '0'))
		if !ok {
			continue
		}
		c.gains[ch] = gain
		i += 8
	}
}

// Gains returns the per-channel gains currently used for scaling.
func (c *CytonSession) Gains() []int {
	c.gainMu.Lock()
	defer c.gainMu.Unlock()
	return append([]int(nil), c.gains...)
}

func (c *CytonSession) StartStream() error {
	mux, err := c.port()
	if err != nil {
		return err
	}
	return mux.SendCommand(cmdStartStream)
}

func (c *CytonSession) StopStream() error {
	mux, err := c.port()
	if err != nil {
		return err
	}
	return mux.SendCommand(cmdStopStream)
}

func (c *CytonSession) BoardData() ([][]float64, error) {
	if _, err := c.port(); err != nil {
		return nil, err
	}
	return c.buf.drain(), nil
}

// Release closes the port and waits for the reader goroutines. It is idempotent.
func (c *CytonSession) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releaseLocked()
}

func (c *CytonSession) releaseLocked() error {
	if c.released {
		return nil
	}
	c.released = true
	if c.mux == nil {
		return nil
	}
	c.cancel()
	err := c.mux.Close()
	c.wg.Wait()
	if n := c.buf.overflowed(); n > 0 {
		c.logf("%d samples overwritten before they were polled", n)
	}
	return err
}

// AttachAdminRoutes mounts the serial port debug routes. It does nothing
// before Prepare.
func (c *CytonSession) AttachAdminRoutes(mux *http.ServeMux) {
	if m, err := c.port(); err == nil {
		m.AttachAdminRoutes(mux)
	}
}

func (c *CytonSession) port() (*serialmux.SerialMux[serialmux.SerialPorter], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mux == nil || c.released {
		return nil, ErrNotPrepared
	}
	return c.mux, nil
}

// handle converts a packet to a sample column. With the daisy module the
// board sends odd sample numbers for channels 1-8 and even ones for 9-16.
// A daisy half is only joined to the board half immediately before it.
func (c *CytonSession) handle(p serialmux.Packet) {
	if !c.board.Daisy {
		c.buf.push(c.column(p, nil))
		return
	}
	if p.SampleNumber%2 == 1 {
		c.pending = &p
		return
	}
	if c.pending == nil {
		return
	}
	first := *c.pending
	c.pending = nil
	if p.SampleNumber != first.SampleNumber+1 {
		return
	}
	c.buf.push(c.column(first, &p))
}

func (c *CytonSession) column(p serialmux.Packet, daisy *serialmux.Packet) []float64 {
	b := c.board
	out := make([]float64, b.NumRows)
	out[b.PackageNum] = float64(p.SampleNumber)

	gains := c.Gains()
	for i, counts := range p.Channels {
		out[b.EEG[i]] = units.CountsToMicrovolts(counts, gains[i])
	}
	if daisy != nil {
		for i, counts := range daisy.Channels {
			out[b.EEG[8+i]] = units.CountsToMicrovolts(counts, gains[8+i])
		}
	}

	// the aux bytes of the later packet win
	aux := p
	if daisy != nil {
		aux = *daisy
	}
	switch aux.Footer {
	case serialmux.FooterAccel:
		if aux.Aux != ([6]byte{}) {
			for i, v := range aux.Accel() {
				c.lastAccel[i] = units.AccelCountsToG(v)
			}
		}
	case footerAnalog:
		for i, row := range b.Analog {
			out[row] = float64(uint16(aux.Aux[2*i])<<8 | uint16(aux.Aux[2*i+1]))
		}
	}
	for i, row := range b.Accel {
		out[row] = c.lastAccel[i]
	}
	for i, row := range b.Other {
		if i < len(aux.Aux) {
			out[row] = float64(aux.Aux[i])
		} else if i == len(aux.Aux) {
			out[row] = float64(aux.Footer)
		}
	}
	out[b.Timestamp] = timeutil.UnixSeconds(c.clock.Now())
	return out
}
