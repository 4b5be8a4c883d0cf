// Serialmux provides an abstraction over the serial link of a Cyton board: a
// single writer for board commands and a monitor that frames the binary sample
// stream and fans packets out to any number of subscribers.
package serialmux

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/openbci/internal/monitoring"
	"tailscale.com/tsweb"
)

var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

// subscriberBuffer is sized for roughly one second of Cyton packets at 250 Hz.
const subscriberBuffer = 256

// SerialMux is a generic serial port multiplexer that allows multiple clients to
// subscribe to packets from a single serial port.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan Packet
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      atomic.Bool
	dropped      atomic.Int64
	logf         monitoring.Logger
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new channel for receiving packets from the serial
	// port. The channel ID is used to identify the unique channel when
	// unsubscribing.
	Subscribe() (string, chan Packet)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand writes the provided command to the serial port verbatim.
	SendCommand(string) error
	// Monitor reads packets from the serial port and sends them to the
	// subscribed channels.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux creates a SerialMux instance backed by the given port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan Packet),
		logf:        monitoring.OrDefault(nil),
	}
}

// SetLogger replaces the diagnostic logger.
func (s *SerialMux[T]) SetLogger(l monitoring.Logger) {
	s.logf = monitoring.OrDefault(l)
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan Packet) {
	id := randomID()
	ch := make(chan Packet, subscriberBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Dropped returns the number of packets not delivered because a subscriber
// channel was full.
func (s *SerialMux[T]) Dropped() int64 {
	return s.dropped.Load()
}

// SendCommand sends a command to the serial port. Cyton commands are raw
// characters, so nothing is appended.
func (s *SerialMux[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// portReader retries the empty reads a port with a read timeout returns, so
// the framing reader only sees data, errors, or EOF once the mux is closing.
type portReader[T SerialPorter] struct {
	s *SerialMux[T]
}

func (r portReader[T]) Read(p []byte) (int, error) {
	for {
		n, err := r.s.port.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
		if r.s.closing.Load() {
			return 0, io.EOF
		}
	}
}

// Monitor monitors the serial port for packets and sends them to subscribers.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	reader := NewPacketReader(portReader[T]{s})

	packetChan := make(chan Packet)
	readErrChan := make(chan error, 1)

	// the blocking read will not interfere with our outer loop awaiting
	// packets & context cancellation.
	go func() {
		defer close(packetChan)
		for {
			p, err := reader.Next()
			if err != nil {
				readErrChan <- err
				return
			}
			select {
			case packetChan <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case p, ok := <-packetChan:
			if !ok {
				select {
				case err := <-readErrChan:
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				default:
					return nil
				}
			}
			if s.closing.Load() {
				return nil
			}

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- p:
				default:
					// a slow subscriber must not stall the port
					s.dropped.Add(1)
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closing.Store(true)

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// API endpoint to write a raw command to the board
	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command %q to serial port", command))
	})

	// Server-Side Events (SSE) with one JSON object per decoded packet.
	debug.HandleSilentFunc("packets", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case p, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(p)
				if err != nil {
					s.logf("failed to encode packet: %v", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
