package acquisition

import (
	"fmt"

	"github.com/banshee-data/openbci/internal/boards"
)

// IPProtocol selects the socket type for network boards.
type IPProtocol string

const (
	ProtocolNone IPProtocol = "none"
	ProtocolTCP  IPProtocol = "tcp"
	ProtocolUDP  IPProtocol = "udp"
)

// Params is the set of transport options the acquisition library recognises.
// Every field is optional; values are passed through verbatim.
type Params struct {
	SerialPort string     `json:"serial_port,omitempty"`
	MACAddress string     `json:"mac_address,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	IPPort     int        `json:"ip_port,omitempty"`
	IPProtocol IPProtocol `json:"ip_protocol,omitempty"`
}

// Set returns the names of the fields that hold a non-zero value.
func (p Params) Set() []boards.Param {
	var set []boards.Param
	if p.SerialPort != "" {
		set = append(set, boards.ParamSerialPort)
	}
	if p.MACAddress != "" {
		set = append(set, boards.ParamMACAddress)
	}
	if p.IPAddress != "" {
		set = append(set, boards.ParamIPAddress)
	}
	if p.IPPort != 0 {
		set = append(set, boards.ParamIPPort)
	}
	if p.IPProtocol != "" {
		set = append(set, boards.ParamIPProtocol)
	}
	return set
}

// Validate checks that every set parameter is accepted by the board. Only the
// parameter names and the protocol enum are checked.
func (p Params) Validate(board boards.Descriptor) error {
	for _, name := range p.Set() {
		if !board.Accepts(name) {
			return fmt.Errorf("%w: %s does not accept %s", ErrUnsupportedParam, board.Board, name)
		}
	}
	switch p.IPProtocol {
	case "", ProtocolNone, ProtocolTCP, ProtocolUDP:
	default:
		return fmt.Errorf("%w: ip_protocol %q (expected tcp, udp or none)", ErrUnsupportedParam, p.IPProtocol)
	}
	return nil
}
