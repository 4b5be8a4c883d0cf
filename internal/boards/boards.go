// Package boards holds the finite table of supported OpenBCI boards and the
// channel layout the acquisition library reports for each of them.
package boards

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrInvalidBoard is returned when a board name is not in the table.
var ErrInvalidBoard = errors.New("invalid board")

// Board is the configuration name of a supported board.
type Board string

const (
	Synthetic      Board = "synthetic"
	Cyton          Board = "cyton"
	Ganglion       Board = "ganglion"
	CytonDaisy     Board = "cyton_daisy"
	GanglionWifi   Board = "ganglion_wifi"
	CytonWifi      Board = "cyton_wifi"
	CytonDaisyWifi Board = "cyton_daisy_wifi"
)

// Family groups boards that share a command protocol.
type Family int

const (
	FamilySynthetic Family = iota
	FamilyCyton
	FamilyGanglion
)

func (f Family) String() string {
	switch f {
	case FamilySynthetic:
		return "synthetic"
	case FamilyCyton:
		return "cyton"
	case FamilyGanglion:
		return "ganglion"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Transport is the physical link the acquisition library uses for a board.
type Transport int

const (
	TransportSimulated Transport = iota
	TransportSerial
	TransportBLE
	TransportWiFi
)

func (t Transport) String() string {
	switch t {
	case TransportSimulated:
		return "simulated"
	case TransportSerial:
		return "serial"
	case TransportBLE:
		return "ble"
	case TransportWiFi:
		return "wifi"
	default:
		return fmt.Sprintf("transport(%d)", int(t))
	}
}

// Param names a transport parameter accepted by the acquisition library.
type Param string

const (
	ParamSerialPort Param = "serial_port"
	ParamMACAddress Param = "mac_address"
	ParamIPAddress  Param = "ip_address"
	ParamIPPort     Param = "ip_port"
	ParamIPProtocol Param = "ip_protocol"
)

// Descriptor is the immutable channel layout of a board. Row indices refer to
// the rows of the sample block returned by the acquisition session.
type Descriptor struct {
	Board        Board
	ID           int // acquisition library board id
	SamplingRate int
	NumRows      int

	PackageNum int
	Timestamp  int
	Marker     int

	EEG    []int
	Accel  []int
	Analog []int
	Other  []int

	Family    Family
	Transport Transport
	Daisy     bool
	Params    []Param
}

// IsCyton reports whether the board speaks the Cyton channel settings protocol.
func (d Descriptor) IsCyton() bool {
	return d.Family == FamilyCyton
}

// Accepts reports whether p is a transport parameter this board understands.
func (d Descriptor) Accepts(p Param) bool {
	return slices.Contains(d.Params, p)
}

// Validate checks that every role index is within range and that no index is
// claimed by more than one role.
func (d Descriptor) Validate() error {
	if d.NumRows <= 0 {
		return fmt.Errorf("%s: num rows must be positive, got %d", d.Board, d.NumRows)
	}
	if d.SamplingRate <= 0 {
		return fmt.Errorf("%s: sampling rate must be positive, got %d", d.Board, d.SamplingRate)
	}

	owner := make(map[int]string, d.NumRows)
	claim := func(role string, idx int) error {
		if idx < 0 || idx >= d.NumRows {
			return fmt.Errorf("%s: %s index %d out of range [0,%d)", d.Board, role, idx, d.NumRows)
		}
		if prev, ok := owner[idx]; ok {
			return fmt.Errorf("%s: index %d claimed by both %s and %s", d.Board, idx, prev, role)
		}
		owner[idx] = role
		return nil
	}

	for _, single := range []struct {
		role string
		idx  int
	}{
		{"package_num", d.PackageNum},
		{"timestamp", d.Timestamp},
		{"marker", d.Marker},
	} {
		if err := claim(single.role, single.idx); err != nil {
			return err
		}
	}
	for _, group := range []struct {
		role string
		idx  []int
	}{
		{"eeg", d.EEG},
		{"accel", d.Accel},
		{"analog", d.Analog},
		{"other", d.Other},
	} {
		for _, idx := range group.idx {
			if err := claim(group.role, idx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d Descriptor) clone() Descriptor {
	d.EEG = slices.Clone(d.EEG)
	d.Accel = slices.Clone(d.Accel)
	d.Analog = slices.Clone(d.Analog)
	d.Other = slices.Clone(d.Other)
	d.Params = slices.Clone(d.Params)
	return d
}

// span returns the inclusive index range [from, to].
func span(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

var (
	serialParams = []Param{ParamSerialPort}
	bleParams    = []Param{ParamSerialPort, ParamMACAddress}
	wifiParams   = []Param{ParamIPAddress, ParamIPPort, ParamIPProtocol}
)

func cytonLayout(b Board, id, rate int, t Transport, params []Param) Descriptor {
	return Descriptor{
		Board: b, ID: id, SamplingRate: rate, NumRows: 24,
		PackageNum: 0, Timestamp: 22, Marker: 23,
		EEG: span(1, 8), Accel: span(9, 11), Other: span(12, 18), Analog: span(19, 21),
		Family: FamilyCyton, Transport: t, Params: params,
	}
}

func cytonDaisyLayout(b Board, id, rate int, t Transport, params []Param) Descriptor {
	return Descriptor{
		Board: b, ID: id, SamplingRate: rate, NumRows: 32,
		PackageNum: 0, Timestamp: 30, Marker: 31,
		EEG: span(1, 16), Accel: span(17, 19), Other: span(20, 26), Analog: span(27, 29),
		Family: FamilyCyton, Transport: t, Daisy: true, Params: params,
	}
}

var table = map[Board]Descriptor{
	Synthetic: {
		Board: Synthetic, ID: -1, SamplingRate: 250, NumRows: 32,
		PackageNum: 0, Timestamp: 30, Marker: 31,
		EEG: span(1, 16), Accel: span(17, 19), Other: span(20, 28),
		Family: FamilySynthetic, Transport: TransportSimulated,
	},
	Cyton:      cytonLayout(Cyton, 0, 250, TransportSerial, serialParams),
	CytonDaisy: cytonDaisyLayout(CytonDaisy, 2, 125, TransportSerial, serialParams),
	Ganglion: {
		Board: Ganglion, ID: 1, SamplingRate: 200, NumRows: 15,
		PackageNum: 0, Timestamp: 13, Marker: 14,
		EEG: span(1, 4), Accel: span(5, 7), Other: span(8, 12),
		Family: FamilyGanglion, Transport: TransportBLE, Params: bleParams,
	},
	GanglionWifi: {
		Board: GanglionWifi, ID: 4, SamplingRate: 1600, NumRows: 20,
		PackageNum: 0, Timestamp: 18, Marker: 19,
		EEG: span(1, 4), Accel: span(5, 7), Other: span(8, 14), Analog: span(15, 17),
		Family: FamilyGanglion, Transport: TransportWiFi, Params: wifiParams,
	},
	CytonWifi:      cytonLayout(CytonWifi, 5, 1000, TransportWiFi, wifiParams),
	CytonDaisyWifi: cytonDaisyLayout(CytonDaisyWifi, 6, 1000, TransportWiFi, wifiParams),
}

// Lookup resolves a board name to its descriptor. The returned descriptor is
// a copy and may be retained by the caller.
func Lookup(name string) (Descriptor, error) {
	d, ok := table[Board(name)]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w %q: expected one of %v", ErrInvalidBoard, name, Names())
	}
	return d.clone(), nil
}

// Names returns every supported board name in sorted order.
func Names() []Board {
	names := make([]Board, 0, len(table))
	for b := range table {
		names = append(names, b)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// cytonChannelIDs are the per-channel identifiers used by Cyton channel
// setting commands; the daisy module adds the second eight.
const cytonChannelIDs = "12345678QWERTYUI"

// CytonChannelIDs returns the channel identifiers for the board's physical
// channels: eight for a Cyton, sixteen with the daisy module.
func (d Descriptor) CytonChannelIDs() string {
	if d.Daisy {
		return cytonChannelIDs
	}
	return cytonChannelIDs[:8]
}

// CytonChannelIndex maps a channel identifier back to its zero-based channel.
func CytonChannelIndex(id byte) (int, bool) {
	for i := 0; i < len(cytonChannelIDs); i++ {
		if cytonChannelIDs[i] == id {
			return i, true
		}
	}
	return 0, false
}
