// Package serial provides a transport.Link for connecting to a physical
// neighbor over a serial cable.
//
// Packets are framed as a 4-byte little-endian length prefix followed
// by the EncodePacket bytes, so the read loop can recover message
// boundaries from an otherwise unstructured byte stream.
package serial

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"

	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
	"github.com/relaynet/mediaclient/transport"
)

// Compile-time interface check.
var _ transport.Link = (*Link)(nil)

const (
	// DefaultBaudRate is the default baud rate for neighbor serial links.
	DefaultBaudRate = 115200

	// readBufSize is the size of the serial read buffer.
	readBufSize = 1024

	// lengthPrefixSize is the size, in bytes, of the frame length prefix.
	lengthPrefixSize = 4

	// maxFrameSize bounds a single frame to guard against a runaway
	// length prefix (e.g. line noise) accumulating an unbounded buffer.
	maxFrameSize = 1 << 20
)

// Config holds the configuration for a serial neighbor link.
type Config struct {
	// Port is the serial port path (e.g., "/dev/ttyUSB0" or "COM3").
	Port string
	// BaudRate is the serial baud rate. Defaults to 115200.
	BaudRate int
	// Neighbor is the node id at the other end of this link.
	Neighbor node.ID
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Link implements transport.Link over a serial connection.
type Link struct {
	cfg  Config
	port serial.Port
	log  *slog.Logger

	mu            sync.RWMutex
	connected     bool
	cancel        context.CancelFunc
	done          chan struct{}
	packetHandler transport.PacketHandler
	stateHandler  transport.StateHandler
}

// New creates a serial Link with the given configuration.
func New(cfg Config) *Link {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Link{
		cfg: cfg,
		log: cfg.Logger.WithGroup("serial"),
	}
}

// Neighbor returns the node id at the other end of this link.
func (l *Link) Neighbor() node.ID { return l.cfg.Neighbor }

// Start opens the serial port and begins reading frames.
func (l *Link) Start(ctx context.Context) error {
	if l.cfg.Port == "" {
		return errors.New("serial port is required")
	}

	mode := &serial.Mode{BaudRate: l.cfg.BaudRate}
	port, err := serial.Open(l.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}

	l.mu.Lock()
	l.port = port
	l.connected = true
	l.done = make(chan struct{})
	handler := l.stateHandler
	l.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	go l.readLoop(readCtx)

	l.log.Info("connected to serial port", "port", l.cfg.Port, "baud", l.cfg.BaudRate, "neighbor", l.cfg.Neighbor)

	if handler != nil {
		handler(l, transport.EventConnected)
	}
	return nil
}

// Stop closes the serial port and stops the read loop.
func (l *Link) Stop() error {
	l.mu.Lock()
	handler := l.stateHandler
	l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}

	l.mu.Lock()
	l.connected = false
	port := l.port
	l.port = nil
	done := l.done
	l.mu.Unlock()

	var err error
	if port != nil {
		err = port.Close()
	}
	if done != nil {
		<-done
	}
	if handler != nil {
		handler(l, transport.EventDisconnected)
	}
	return err
}

// IsConnected reports whether the serial port is open.
func (l *Link) IsConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected
}

// SetPacketHandler registers the callback for packets decoded from this
// link.
func (l *Link) SetPacketHandler(fn transport.PacketHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.packetHandler = fn
}

// SetStateHandler registers the callback for connection state changes.
func (l *Link) SetStateHandler(fn transport.StateHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stateHandler = fn
}

// Send encodes pkt and writes it to the serial port as a length-framed
// message.
func (l *Link) Send(pkt *wire.Packet) error {
	l.mu.RLock()
	port := l.port
	connected := l.connected
	l.mu.RUnlock()

	if !connected || port == nil {
		return errors.New("not connected")
	}

	encoded, err := wire.EncodePacket(pkt)
	if err != nil {
		return fmt.Errorf("encoding packet: %w", err)
	}

	frame := make([]byte, lengthPrefixSize+len(encoded))
	binary.LittleEndian.PutUint32(frame, uint32(len(encoded)))
	copy(frame[lengthPrefixSize:], encoded)

	if _, err := port.Write(frame); err != nil {
		return fmt.Errorf("writing to serial port: %w", err)
	}
	return nil
}

// readLoop continuously reads from the serial port and assembles
// length-prefixed frames.
func (l *Link) readLoop(ctx context.Context) {
	defer close(l.done)

	buf := make([]byte, readBufSize)
	var assemblyBuf []byte

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := l.port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				l.handleDisconnect(err)
				return
			}
			l.log.Error("serial read error", "error", err)
			l.handleDisconnect(err)
			return
		}

		if n == 0 {
			continue
		}

		assemblyBuf = append(assemblyBuf, buf[:n]...)
		assemblyBuf = l.processFrames(assemblyBuf)
	}
}

// processFrames extracts complete length-prefixed frames from data and
// dispatches the decoded packets, returning any leftover bytes that
// don't yet form a complete frame.
func (l *Link) processFrames(data []byte) []byte {
	for {
		if len(data) < lengthPrefixSize {
			return data
		}
		frameLen := binary.LittleEndian.Uint32(data)
		if frameLen > maxFrameSize {
			l.log.Error("serial frame length out of bounds, resyncing", "length", frameLen)
			return nil
		}
		total := lengthPrefixSize + int(frameLen)
		if len(data) < total {
			return data // wait for the rest of the frame
		}

		payload := data[lengthPrefixSize:total]
		data = data[total:]

		pkt, err := wire.DecodePacket(payload)
		if err != nil {
			l.log.Debug("failed to decode packet from serial frame", "error", err)
			continue
		}

		l.mu.RLock()
		handler := l.packetHandler
		l.mu.RUnlock()

		if handler != nil {
			handler(pkt)
		}
	}
}

func (l *Link) handleDisconnect(err error) {
	l.mu.Lock()
	l.connected = false
	handler := l.stateHandler
	l.mu.Unlock()

	if err != nil {
		l.log.Error("serial disconnected", "error", err)
	}
	if handler != nil {
		handler(l, transport.EventDisconnected)
	}
}
