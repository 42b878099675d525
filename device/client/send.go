package client

import (
	"errors"

	"github.com/relaynet/mediaclient/control"
	"github.com/relaynet/mediaclient/core/appmsg"
	"github.com/relaynet/mediaclient/core/cache"
	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
)

var errNeighborChannelFull = errors.New("client: neighbor channel full")

// sendPacket dispatches pkt according to its payload kind, grounded on
// the original's send_to.rs split: Ack/Nack/FloodResponse go through
// send-or-shortcut (the next hop may no longer be a known neighbor,
// which is an expected reliability path, not an error); FloodRequest
// goes to one explicit neighbor chosen by the caller instead of via
// routing header (see flood.go); MsgFragment resolves its next hop
// from the routing header like everything else.
func (c *Client) sendPacket(pkt *wire.Packet) {
	switch pkt.Payload.(type) {
	case wire.Ack, wire.Nack, wire.FloodResponse:
		c.sendOrShortcut(pkt)
	default:
		c.sendToNextHop(pkt)
	}
}

// sendToNextHop resolves pkt's next hop from its routing header and
// sends it there. A packet with no further hop (already at destination)
// is silently dropped — it should never reach sendPacket in that state.
func (c *Client) sendToNextHop(pkt *wire.Packet) {
	next, ok := pkt.RoutingHeader.NextHop()
	if !ok {
		return
	}
	c.sendToNeighbor(pkt, next)
}

// sendOrShortcut sends pkt to its next hop if that neighbor is known;
// otherwise it emits a ControllerShortcut event for out-of-band
// delivery instead of treating the missing neighbor as an error.
func (c *Client) sendOrShortcut(pkt *wire.Packet) {
	next, ok := pkt.RoutingHeader.NextHop()
	if !ok {
		return
	}
	if _, known := c.neighborChannel(next); !known {
		c.emit(control.ControllerShortcut{Packet: pkt})
		return
	}
	c.sendToNeighbor(pkt, next)
}

// sendToNeighbor sends pkt directly to the given neighbor id, emitting
// SendError/UnreachableNode events on failure instead of blocking.
func (c *Client) sendToNeighbor(pkt *wire.Packet, neighbor node.ID) {
	ch, ok := c.neighborChannel(neighbor)
	if !ok {
		c.emit(control.UnreachableNode{ID: neighbor})
		c.log.Error("cannot send, neighbor unreachable", "neighbor", neighbor)
		return
	}
	select {
	case ch <- pkt:
	default:
		idx, _ := pkt.FragmentIndex()
		c.emit(control.SendError{Session: pkt.SessionID, Fragment: idx, Err: errNeighborChannelFull})
		c.log.Error("send failed, neighbor channel full", "neighbor", neighbor, "session", pkt.SessionID)
	}
}

// dispatchRequest builds a Message carrying req addressed to
// destination, fragments it, caches every fragment, and sends each one
// along the given routing header.
func (c *Client) dispatchRequest(destination node.ID, header wire.RoutingHeader, req appmsg.ClientRequest) {
	session := c.nextSessionID()
	msg := appmsg.NewClientMessage(session, c.cfg.SelfID, destination, req)

	fragments, err := c.assembler.FragmentMessage(msg)
	if err != nil {
		c.log.Error("failed to fragment outgoing message", "error", err)
		return
	}

	for _, frag := range fragments {
		pkt := &wire.Packet{
			RoutingHeader: header.Clone(),
			SessionID:     session,
			Payload:       frag,
		}
		c.cache.Insert(pkt)
		c.sendPacket(pkt)
	}
}

// ackKeyFor derives a cache.Key for an ack/nack referencing fragment
// fragIdx in session.
func ackKeyFor(session, fragIdx uint64) cache.Key {
	return cache.Key{Session: session, Fragment: fragIdx}
}
