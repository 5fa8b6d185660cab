package frame

import (
	"bytes"
	"errors"
	"net"
	"os"
	"testing"
	"time"
)

func TestEncodeDecodeSample(t *testing.T) {
	block := []byte{1, 2, 3, 4, 5}
	packet, err := EncodeSample(42, block)
	if err != nil {
		t.Fatal(err)
	}
	if packet[0] != Sync1 || packet[1] != Sync2 {
		t.Fatalf("bad sync: % x", packet[:2])
	}
	h, ok := ParseHeader(packet)
	if !ok {
		t.Fatal("header not parsed")
	}
	if h.Class != ClassData || h.ID != IDSample || int(h.Length) != 8+len(block) {
		t.Errorf("header %+v", h)
	}
	seq, got, err := DecodeSample(packet)
	if err != nil {
		t.Fatal(err)
	}
	if seq != 42 {
		t.Errorf("seq = %d, want 42", seq)
	}
	if !bytes.Equal(got, block) {
		t.Errorf("block = % x, want % x", got, block)
	}
}

func TestChecksumMismatch(t *testing.T) {
	packet, err := EncodeSample(1, []byte{9, 9})
	if err != nil {
		t.Fatal(err)
	}
	packet[len(packet)-3] ^= 0xFF
	if VerifyChecksum(packet) {
		t.Error("corrupted packet passed checksum")
	}
	if _, _, err := DecodeSample(packet); !errors.Is(err, ErrChecksum) {
		t.Errorf("err = %v, want ErrChecksum", err)
	}
}

func TestEncodeTooLarge(t *testing.T) {
	if _, err := Encode(ClassData, IDSample, make([]byte, MaxPayload+1)); err == nil {
		t.Error("expected error for oversized payload")
	}
}

func TestIsSample(t *testing.T) {
	other, _ := Encode(0x20, 0x02, nil)
	if IsSample(other) {
		t.Error("foreign class accepted as sample")
	}
	if IsSample([]byte{Sync1}) {
		t.Error("short buffer accepted as sample")
	}
}

func TestPortReadFrame(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	port := NewPort(b)
	defer port.Close()

	packet, err := EncodeSample(7, []byte{0xA5, 0x5A, 0x01})
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		// мусор перед кадром, включая одиночный первый sync byte
		_, _ = a.Write([]byte{0x00, Sync1, 0x13})
		_, _ = a.Write(packet)
	}()

	got, err := port.ReadFrame(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, packet) {
		t.Errorf("got % x, want % x", got, packet)
	}
}

func TestPortReadFrameTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	port := NewPort(b)
	defer port.Close()

	_, err := port.ReadFrame(20 * time.Millisecond)
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestPortWriteFrame(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	port := NewPort(b)
	defer port.Close()

	packet, _ := EncodeSample(3, []byte{1})
	go func() { _ = port.WriteFrame(packet) }()

	got, err := NewPort(a).ReadFrame(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, packet) {
		t.Errorf("got % x, want % x", got, packet)
	}
}
