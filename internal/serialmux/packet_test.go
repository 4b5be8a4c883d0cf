package serialmux

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := Packet{
		SampleNumber: 42,
		Channels:     [8]int32{0, 1, -1, 8388607, -8388608, 1000, -1000, 123456},
		Aux:          [6]byte{0x01, 0xF4, 0xFE, 0x0C, 0x00, 0x00},
		Footer:       FooterAccel,
	}

	b := EncodePacket(want)
	if len(b) != PacketSize {
		t.Fatalf("encoded length = %d, want %d", len(b), PacketSize)
	}
	if b[0] != PacketHeader {
		t.Fatalf("header = %#x", b[0])
	}

	got, err := DecodePacket(b)
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("packet mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodePacketShort(t *testing.T) {
	if _, err := DecodePacket(make([]byte, 10)); !errors.Is(err, ErrShortPacket) {
		t.Errorf("err = %v, want ErrShortPacket", err)
	}
}

func TestPacketAccel(t *testing.T) {
	p := Packet{Aux: [6]byte{0x01, 0xF4, 0xFE, 0x0C, 0x00, 0x00}, Footer: FooterAccel}
	if !p.HasAccel() {
		t.Fatal("expected accel footer")
	}
	got := p.Accel()
	want := [3]int16{500, -500, 0}
	if got != want {
		t.Errorf("Accel() = %v, want %v", got, want)
	}

	p.Footer = 0xC1
	if p.HasAccel() {
		t.Error("footer 0xC1 should not carry accel")
	}
}

func TestPacketReaderResync(t *testing.T) {
	first := Packet{SampleNumber: 1, Channels: [8]int32{10}}
	second := Packet{SampleNumber: 2, Channels: [8]int32{20}}

	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0x13, 0x37}) // line noise
	stream.Write(EncodePacket(first))
	// a header byte followed by garbage that would frame with a bad footer
	bad := EncodePacket(first)
	bad[PacketSize-1] = 0x00
	stream.Write(bad[:PacketSize-1])
	stream.Write([]byte{0x00})
	stream.Write(EncodePacket(second))

	r := NewPacketReader(&stream)

	p, err := r.Next()
	if err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if p.SampleNumber != 1 || p.Channels[0] != 10 {
		t.Errorf("first packet = %+v", p)
	}

	p, err = r.Next()
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if p.SampleNumber != 2 || p.Channels[0] != 20 {
		t.Errorf("second packet = %+v", p)
	}
	if r.Skipped() < 3+PacketSize {
		t.Errorf("Skipped() = %d, want at least %d", r.Skipped(), 3+PacketSize)
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("final Next err = %v, want EOF", err)
	}
}

func TestPacketReaderTruncated(t *testing.T) {
	b := EncodePacket(Packet{SampleNumber: 9})
	r := NewPacketReader(bytes.NewReader(b[:20]))
	if _, err := r.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want ErrUnexpectedEOF", err)
	}
}
