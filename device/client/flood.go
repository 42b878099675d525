package client

import (
	"time"

	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
)

// floodNetwork broadcasts a fresh FloodRequest to every neighbor, then
// sleeps a settle delay so responses have a chance to percolate before
// control returns to the caller. boot selects the longer boot-time
// delay (spec §5's ≈2s); any other reflood uses the short ≈10ms delay.
func (c *Client) floodNetwork(boot bool) {
	for _, neighbor := range c.neighborIDs() {
		req := c.router.FloodRequest()
		pkt := &wire.Packet{
			RoutingHeader: wire.NewRoutingHeader([]node.ID{c.cfg.SelfID, neighbor}),
			Payload:       req,
		}
		c.sendToNeighbor(pkt, neighbor)
	}

	delay := c.cfg.RefloodSettleDelay
	if boot {
		delay = c.cfg.BootSettleDelay
	}
	time.Sleep(delay)
}

// reinitNetwork wipes the routing table and reruns flood discovery from
// scratch, used when a nack source can't even be recognized as a known
// node (drone_crashed reports nothing to remove).
func (c *Client) reinitNetwork() {
	c.log.Info("reinitializing network")
	c.router.ClearRoutingTable()
	c.floodNetwork(false)
}

// handleFloodRequest answers a FloodRequest by appending self to its
// path trace and routing the response back along the reverse path
// (appending the initiator if it isn't already the path's last entry),
// with HopIndex 0 at self per this module's routing-header convention.
func (c *Client) handleFloodRequest(req wire.FloodRequest) {
	trace := append(append([]wire.PathEntry{}, req.PathTrace...), wire.PathEntry{Node: c.cfg.SelfID, Kind: node.Client})

	hops := make([]node.ID, len(trace))
	for i, entry := range trace {
		hops[len(trace)-1-i] = entry.Node
	}
	if len(hops) == 0 || hops[len(hops)-1] != req.InitiatorID {
		hops = append(hops, req.InitiatorID)
	}

	resp := wire.FloodResponse{FloodID: req.FloodID, PathTrace: trace}
	pkt := &wire.Packet{
		RoutingHeader: wire.RoutingHeader{Hops: hops, HopIndex: 0},
		Payload:       resp,
	}
	c.sendPacket(pkt)
}

// handleFloodResponse feeds resp into the router's topology graph.
func (c *Client) handleFloodResponse(resp wire.FloodResponse) {
	c.router.HandleFloodResponse(resp)
}
