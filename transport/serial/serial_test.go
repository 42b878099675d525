package serial

import (
	"sync"
	"testing"

	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
)

func makeTestPacket() *wire.Packet {
	return &wire.Packet{
		RoutingHeader: wire.NewRoutingHeader([]node.ID{1, 2}),
		SessionID:     1,
		Payload:       wire.Ack{FragmentIndex: 3},
	}
}

func framePacket(t *testing.T, pkt *wire.Packet) []byte {
	t.Helper()
	encoded, err := wire.EncodePacket(pkt)
	if err != nil {
		t.Fatalf("failed to encode packet: %v", err)
	}
	frame := make([]byte, lengthPrefixSize+len(encoded))
	for i := 0; i < lengthPrefixSize; i++ {
		frame[i] = byte(len(encoded) >> (8 * i))
	}
	copy(frame[lengthPrefixSize:], encoded)
	return frame
}

func TestProcessFramesSingleFrame(t *testing.T) {
	pkt := makeTestPacket()
	frame := framePacket(t, pkt)

	var received []*wire.Packet
	var mu sync.Mutex

	l := &Link{}
	l.packetHandler = func(p *wire.Packet) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, p)
	}

	remaining := l.processFrames(frame)
	if len(remaining) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(remaining))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(received))
	}
	if received[0].SessionID != pkt.SessionID {
		t.Errorf("SessionID mismatch: got %d, want %d", received[0].SessionID, pkt.SessionID)
	}
}

func TestProcessFramesMultipleFrames(t *testing.T) {
	pkt1 := makeTestPacket()
	pkt2 := &wire.Packet{
		RoutingHeader: wire.NewRoutingHeader([]node.ID{3, 4}),
		SessionID:     2,
		Payload:       wire.Ack{FragmentIndex: 7},
	}

	frame1 := framePacket(t, pkt1)
	frame2 := framePacket(t, pkt2)
	combined := append(frame1, frame2...)

	var received []*wire.Packet
	var mu sync.Mutex

	l := &Link{}
	l.packetHandler = func(p *wire.Packet) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, p)
	}

	remaining := l.processFrames(combined)
	if len(remaining) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(remaining))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(received))
	}
	if received[0].SessionID != pkt1.SessionID || received[1].SessionID != pkt2.SessionID {
		t.Errorf("session id mismatch: got %d,%d", received[0].SessionID, received[1].SessionID)
	}
}

func TestProcessFramesIncompleteFrame(t *testing.T) {
	pkt := makeTestPacket()
	frame := framePacket(t, pkt)
	partial := frame[:len(frame)-2]

	var received []*wire.Packet
	l := &Link{}
	l.packetHandler = func(p *wire.Packet) {
		received = append(received, p)
	}

	remaining := l.processFrames(partial)
	if len(received) != 0 {
		t.Errorf("expected 0 packets from incomplete frame, got %d", len(received))
	}
	if len(remaining) != len(partial) {
		t.Errorf("expected all bytes returned as remaining, got %d vs %d", len(remaining), len(partial))
	}
}

func TestProcessFramesIncrementalAssembly(t *testing.T) {
	pkt := makeTestPacket()
	frame := framePacket(t, pkt)

	var received []*wire.Packet
	l := &Link{}
	l.packetHandler = func(p *wire.Packet) {
		received = append(received, p)
	}

	var buf []byte
	for _, b := range frame {
		buf = append(buf, b)
		buf = l.processFrames(buf)
	}

	if len(received) != 1 {
		t.Fatalf("expected 1 packet after incremental assembly, got %d", len(received))
	}
	if len(buf) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(buf))
	}
}

func TestProcessFramesNoHandler(t *testing.T) {
	pkt := makeTestPacket()
	frame := framePacket(t, pkt)

	l := &Link{}
	// No handler set, should not panic.
	remaining := l.processFrames(frame)
	if len(remaining) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(remaining))
	}
}

func TestProcessFramesOversizedLengthDiscardsBuffer(t *testing.T) {
	bogus := []byte{0xFF, 0xFF, 0xFF, 0x7F, 0x00, 0x01}
	l := New(Config{})
	remaining := l.processFrames(bogus)
	if remaining != nil {
		t.Errorf("expected buffer to be discarded, got %d bytes", len(remaining))
	}
}

func TestSendNotConnected(t *testing.T) {
	l := New(Config{Port: "/dev/null", BaudRate: 115200})

	pkt := makeTestPacket()
	if err := l.Send(pkt); err == nil {
		t.Fatal("expected error when not connected")
	}
}

func TestNewDefaults(t *testing.T) {
	l := New(Config{Port: "/dev/ttyUSB0", Neighbor: 9})
	if l.cfg.BaudRate != DefaultBaudRate {
		t.Errorf("expected default baud rate %d, got %d", DefaultBaudRate, l.cfg.BaudRate)
	}
	if l.log == nil {
		t.Error("expected logger to be set")
	}
	if l.Neighbor() != node.ID(9) {
		t.Errorf("Neighbor() = %d, want 9", l.Neighbor())
	}
}
