// Package inproc provides in-memory implementations of transport.Link
// and control.Link, used for tests and for embedding the client in
// another Go process without a real radio or broker underneath it.
package inproc

import (
	"context"
	"sync"

	"github.com/relaynet/mediaclient/control"
	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
	"github.com/relaynet/mediaclient/transport"
)

// Link is a transport.Link backed by an in-memory packet channel,
// suitable for wiring two in-process clients directly to one another or
// driving a client from a test.
type Link struct {
	neighbor node.ID
	out      chan *wire.Packet

	mu      sync.Mutex
	handler transport.PacketHandler
	state   transport.StateHandler
}

// NewLink returns a Link for the given neighbor with an unbounded-ish
// buffered outbound channel (capacity 256, matching spec §5's
// "outbound channels are unbounded in design").
func NewLink(neighbor node.ID) *Link {
	return &Link{neighbor: neighbor, out: make(chan *wire.Packet, 256)}
}

func (l *Link) Start(ctx context.Context) error {
	l.mu.Lock()
	handler := l.state
	l.mu.Unlock()
	if handler != nil {
		handler(l, transport.EventConnected)
	}
	go func() {
		<-ctx.Done()
		l.mu.Lock()
		h := l.state
		l.mu.Unlock()
		if h != nil {
			h(l, transport.EventDisconnected)
		}
	}()
	return nil
}

func (l *Link) Stop() error { return nil }

func (l *Link) IsConnected() bool { return true }

func (l *Link) Neighbor() node.ID { return l.neighbor }

func (l *Link) SetPacketHandler(fn transport.PacketHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = fn
}

func (l *Link) SetStateHandler(fn transport.StateHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = fn
}

// Send enqueues pkt for delivery to the peer side of this link.
func (l *Link) Send(pkt *wire.Packet) error {
	l.out <- pkt
	return nil
}

// Deliver feeds pkt into this link's registered PacketHandler, as if it
// had just arrived from the neighbor. Used by tests and by whatever
// wires two Links together to simulate a connection.
func (l *Link) Deliver(pkt *wire.Packet) {
	l.mu.Lock()
	handler := l.handler
	l.mu.Unlock()
	if handler != nil {
		handler(pkt)
	}
}

// Outbound exposes the channel of packets sent on this link, for a test
// or bridge to drain.
func (l *Link) Outbound() <-chan *wire.Packet {
	return l.out
}

// ControlLink is a control.Link backed by in-memory channels, letting a
// test drive the client with commands and observe its events directly.
type ControlLink struct {
	commands chan control.Command
	events   chan control.Event
}

// NewControlLink returns a ControlLink with buffered command/event
// channels.
func NewControlLink() *ControlLink {
	return &ControlLink{
		commands: make(chan control.Command, 256),
		events:   make(chan control.Event, 256),
	}
}

func (c *ControlLink) Commands() <-chan control.Command { return c.commands }

// Emit sends ev to the event channel, dropping it if the channel is
// full rather than blocking the client's event loop.
func (c *ControlLink) Emit(ev control.Event) {
	select {
	case c.events <- ev:
	default:
	}
}

func (c *ControlLink) Close() error {
	close(c.commands)
	return nil
}

// Send enqueues cmd for the client to process, from the test's side.
func (c *ControlLink) Send(cmd control.Command) {
	c.commands <- cmd
}

// Events exposes the channel of emitted events for a test to drain.
func (c *ControlLink) Events() <-chan control.Event {
	return c.events
}
