package client

import (
	"github.com/relaynet/mediaclient/control"
	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
)

// handleNack dispatches a received Nack by kind. reporter is the node
// that sent us this nack packet (the first hop of its own routing
// header) — used as the drop source for Dropped, which carries no node
// id of its own.
func (c *Client) handleNack(session uint64, nack wire.Nack, reporter node.ID) {
	switch nack.Kind {
	case wire.ErrorInRouting:
		c.log.Error("error in routing", "crashed", nack.Node)
		c.router.DroneCrashed(nack.Node)
		c.resendForNack(session, nack.FragmentIndex, nack.Node)

	case wire.DestinationIsDrone:
		c.log.Error("destination is drone")
		destination := node.ID(0)
		if pkt, ok := c.cache.Peek(ackKeyFor(session, nack.FragmentIndex)); ok {
			destination = pkt.RoutingHeader.Destination()
		}
		c.emit(control.DestinationIsDrone{ID: destination})

	case wire.Dropped:
		c.log.Error("fragment dropped", "reporter", reporter)
		c.router.DroppedFragment(reporter)
		c.resendForNack(session, nack.FragmentIndex, reporter)

	case wire.UnexpectedRecipient:
		c.log.Error("unexpected recipient", "node", nack.Node)
		c.resendForNack(session, nack.FragmentIndex, nack.Node)
	}
}

// resendForNack retries the cached fragment named by (session, fragIdx),
// escalating to a reflood past RetryFloodThreshold retrievals and to
// treating nackSrc as crashed (reiniting the whole network if it isn't
// even known) past RetryCrashThreshold.
func (c *Client) resendForNack(session, fragIdx uint64, nackSrc node.ID) {
	key := ackKeyFor(session, fragIdx)
	pkt, freq, ok := c.cache.GetValue(key)
	if !ok {
		c.emit(control.ErrorPacketCache{Session: session, Fragment: fragIdx})
		return
	}

	destination := pkt.RoutingHeader.Destination()

	switch {
	case freq > uint64(c.cfg.RetryCrashThreshold):
		if !c.router.Known(nackSrc) {
			c.reinitNetwork()
		} else {
			c.router.DroneCrashed(nackSrc)
		}
		c.floodNetwork(false)

	case freq > uint64(c.cfg.RetryFloodThreshold):
		c.floodNetwork(false)
	}

	// Every retry level recomputes the route for the original
	// destination; recomputation failure falls back to resending with
	// the stale header rather than dropping the fragment outright.
	if header, err := c.router.SourceRoutingHeader(destination); err != nil {
		c.emit(control.UnreachableNode{ID: destination})
		c.sendPacket(pkt)
	} else {
		c.sendPacket(pkt.WithRoutingHeader(header))
	}
}
