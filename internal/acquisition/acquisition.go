// Package acquisition defines the contract of the acquisition library the
// node delegates device communication to, together with the sessions this
// build ships: a synthetic board and the Cyton family over a serial dongle.
package acquisition

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/banshee-data/openbci/internal/boards"
	"github.com/banshee-data/openbci/internal/monitoring"
	"github.com/banshee-data/openbci/internal/serialmux"
	"github.com/banshee-data/openbci/internal/timeutil"
)

var (
	// ErrUnsupportedParam is returned when a transport parameter is set that
	// the target board does not accept.
	ErrUnsupportedParam = errors.New("unsupported transport parameter")
	// ErrTransportUnavailable is returned for boards whose transport has no
	// session implementation in this build.
	ErrTransportUnavailable = errors.New("transport not available")
	// ErrNotPrepared is returned by session calls made before Prepare or after Release.
	ErrNotPrepared = errors.New("session not prepared")
)

// DefaultBufferSize is the number of samples a session retains between polls;
// older samples are overwritten.
const DefaultBufferSize = 450000

// Session is one exclusive connection to a board. Sessions are not shared
// between nodes.
type Session interface {
	// Prepare acquires the transport.
	Prepare() error
	// ConfigBoard sends a raw configuration string to the board and returns
	// its response, if any.
	ConfigBoard(config string) (string, error)
	// StartStream begins sampling.
	StartStream() error
	// BoardData drains every sample collected since the previous call. The
	// result is indexed [row][sample]; it is empty when nothing new arrived.
	// It never blocks waiting for data.
	BoardData() ([][]float64, error)
	// StopStream ends sampling.
	StopStream() error
	// Release frees the transport. The session cannot be reused.
	Release() error
}

// AdminRouter is implemented by sessions that expose debug routes for their
// transport.
type AdminRouter interface {
	AttachAdminRoutes(mux *http.ServeMux)
}

// Opener creates sessions for a board.
type Opener interface {
	Open(board boards.Descriptor, params Params) (Session, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(board boards.Descriptor, params Params) (Session, error)

// Open calls f.
func (f OpenerFunc) Open(board boards.Descriptor, params Params) (Session, error) {
	return f(board, params)
}

// DefaultOpener dispatches on the board's transport to the sessions built
// into this package.
type DefaultOpener struct {
	Clock      timeutil.Clock
	Ports      serialmux.SerialPortFactory
	Logf       monitoring.Logger
	BufferSize int
}

// Open returns a session for board. Boards on BLE or WiFi transports resolve
// but have no session here and return ErrTransportUnavailable.
func (o DefaultOpener) Open(board boards.Descriptor, params Params) (Session, error) {
	if err := params.Validate(board); err != nil {
		return nil, err
	}

	clock := o.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	bufferSize := o.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	logf := monitoring.OrDefault(o.Logf).Prefixed(fmt.Sprintf("[%s] ", board.Board))

	switch board.Transport {
	case boards.TransportSimulated:
		return NewSyntheticSession(board, clock, bufferSize), nil
	case boards.TransportSerial:
		ports := o.Ports
		if ports == nil {
			ports = serialmux.RealPortFactory{}
		}
		return NewCytonSession(board, params, ports, clock, bufferSize, logf)
	default:
		return nil, fmt.Errorf("%w: %s boards use %s", ErrTransportUnavailable, board.Board, board.Transport)
	}
}
