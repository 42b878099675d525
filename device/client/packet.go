package client

import (
	"github.com/relaynet/mediaclient/core/wire"
)

// handlePacket dispatches an inbound packet by its payload kind.
func (c *Client) handlePacket(pkt *wire.Packet) {
	switch payload := pkt.Payload.(type) {
	case wire.MsgFragment:
		c.handleFragment(pkt, payload)
	case wire.Ack:
		c.cache.TakePacket(ackKeyFor(pkt.SessionID, payload.FragmentIndex))
	case wire.Nack:
		reporter := pkt.RoutingHeader.Originator()
		c.handleNack(pkt.SessionID, payload, reporter)
	case wire.FloodRequest:
		c.handleFloodRequest(payload)
	case wire.FloodResponse:
		c.handleFloodResponse(payload)
	}
}

// handleFragment verifies the fragment actually arrived at self, acks
// or nacks accordingly, then feeds it to the assembler.
func (c *Client) handleFragment(pkt *wire.Packet, frag wire.MsgFragment) {
	current, ok := pkt.RoutingHeader.CurrentHop()
	if !ok || current != c.cfg.SelfID {
		c.sendPacket(&wire.Packet{
			RoutingHeader: pkt.RoutingHeader.Reversed(),
			SessionID:     pkt.SessionID,
			Payload:       wire.Nack{FragmentIndex: frag.Index, Kind: wire.UnexpectedRecipient, Node: c.cfg.SelfID},
		})
		return
	}

	c.sendPacket(&wire.Packet{
		RoutingHeader: pkt.RoutingHeader.Reversed(),
		SessionID:     pkt.SessionID,
		Payload:       wire.Ack{FragmentIndex: frag.Index},
	})

	source := pkt.RoutingHeader.Originator()
	msg, err := c.assembler.ProcessFragment(frag, pkt.SessionID, source)
	if err != nil {
		c.log.Debug("dropping malformed fragment", "session", pkt.SessionID, "source", source, "error", err)
		return
	}
	if msg != nil {
		c.handleMessage(msg)
	}
}
