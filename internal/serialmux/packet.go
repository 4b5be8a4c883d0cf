package serialmux

import (
	"bufio"
	"errors"
	"io"
)

// Cyton binary stream framing.
const (
	PacketHeader = 0xA0
	PacketSize   = 33

	// FooterAccel marks a packet whose aux bytes carry three accelerometer axes.
	FooterAccel = 0xC0

	channelsPerPacket = 8
	auxBytes          = 6
)

var ErrShortPacket = errors.New("short cyton packet")

// Packet is one decoded frame of the Cyton stream: a sample counter, eight
// signed 24-bit ADC readings and six aux bytes qualified by the footer.
type Packet struct {
	SampleNumber uint8    `json:"sample_number"`
	Channels     [8]int32 `json:"channels"`
	Aux          [6]byte  `json:"aux"`
	Footer       byte     `json:"footer"`
}

// HasAccel reports whether the aux bytes hold accelerometer data.
func (p Packet) HasAccel() bool {
	return p.Footer == FooterAccel
}

// Accel returns the aux bytes as three big-endian signed axes.
func (p Packet) Accel() [3]int16 {
	var out [3]int16
	for i := range out {
		out[i] = int16(uint16(p.Aux[2*i])<<8 | uint16(p.Aux[2*i+1]))
	}
	return out
}

// validFooter accepts the 0xC0-0xCF range the firmware uses for aux modes.
func validFooter(b byte) bool {
	return b&0xF0 == 0xC0
}

func int24(b []byte) int32 {
	v := int32(b[0])<<16 | int32(b[1])<<8 | int32(b[2])
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

// DecodePacket decodes a framed 33 byte packet. The caller has already
// verified the header and footer.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < PacketSize {
		return Packet{}, ErrShortPacket
	}
	var p Packet
	p.SampleNumber = b[1]
	for ch := 0; ch < channelsPerPacket; ch++ {
		off := 2 + 3*ch
		p.Channels[ch] = int24(b[off : off+3])
	}
	copy(p.Aux[:], b[2+3*channelsPerPacket:2+3*channelsPerPacket+auxBytes])
	p.Footer = b[PacketSize-1]
	return p, nil
}

// EncodePacket is the inverse of DecodePacket. It is used to script serial
// input in tests and by the debug routes.
func EncodePacket(p Packet) []byte {
	b := make([]byte, PacketSize)
	b[0] = PacketHeader
	b[1] = p.SampleNumber
	for ch, v := range p.Channels {
		off := 2 + 3*ch
		u := uint32(v) & 0xFFFFFF
		b[off] = byte(u >> 16)
		b[off+1] = byte(u >> 8)
		b[off+2] = byte(u)
	}
	copy(b[2+3*channelsPerPacket:], p.Aux[:])
	footer := p.Footer
	if footer == 0 {
		footer = FooterAccel
	}
	b[PacketSize-1] = footer
	return b
}

// PacketReader frames packets out of a byte stream. It resynchronises on the
// header byte and skips candidates whose footer is invalid.
type PacketReader struct {
	r       *bufio.Reader
	skipped int
}

// NewPacketReader wraps r.
func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{r: bufio.NewReaderSize(r, 4*PacketSize)}
}

// Skipped returns the number of bytes discarded while searching for a frame.
func (pr *PacketReader) Skipped() int {
	return pr.skipped
}

// Next returns the next valid packet.
func (pr *PacketReader) Next() (Packet, error) {
	for {
		b, err := pr.r.Peek(1)
		if err != nil {
			return Packet{}, err
		}
		if b[0] != PacketHeader {
			pr.r.Discard(1)
			pr.skipped++
			continue
		}

		frame, err := pr.r.Peek(PacketSize)
		if err != nil {
			if errors.Is(err, io.EOF) && len(frame) > 0 {
				return Packet{}, io.ErrUnexpectedEOF
			}
			return Packet{}, err
		}
		if !validFooter(frame[PacketSize-1]) {
			// a header byte inside sample data; slide one byte and retry
			pr.r.Discard(1)
			pr.skipped++
			continue
		}

		p, err := DecodePacket(frame)
		pr.r.Discard(PacketSize)
		return p, err
	}
}
