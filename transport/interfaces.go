// Package transport defines the carrier-agnostic contract between the
// client actor and the physical links it sends and receives packets on:
// one inbound packet-receive stream, and one outbound sink per
// neighbor, matching the per-link FIFO model in spec §5.
package transport

import (
	"context"

	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
)

// PacketHandler is called for every packet received over a Link,
// regardless of which neighbor it arrived from.
type PacketHandler func(pkt *wire.Packet)

// StateHandler is called when a Link's connection state changes.
type StateHandler func(link Link, event Event)

// Event represents a link state change.
type Event int

const (
	EventConnected Event = iota
	EventDisconnected
	EventReconnecting
	EventError
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnecting:
		return "reconnecting"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Link is a single neighbor's physical connection: a point-to-point
// carrier for packets between this node and one adjacent drone.
type Link interface {
	// Start begins the link's connection and receive loop. ctx controls
	// the link's lifetime.
	Start(ctx context.Context) error
	// Stop gracefully shuts the link down.
	Stop() error
	// IsConnected reports whether the link is currently usable.
	IsConnected() bool
	// Neighbor is the node id at the other end of this link.
	Neighbor() node.ID
	// SetPacketHandler registers the callback for packets arriving on
	// this link.
	SetPacketHandler(fn PacketHandler)
	// SetStateHandler registers the callback for connection state
	// changes on this link.
	SetStateHandler(fn StateHandler)
	// Send transmits pkt to the neighbor at the other end of this link.
	Send(pkt *wire.Packet) error
}
