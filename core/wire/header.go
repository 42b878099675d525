package wire

import "github.com/relaynet/mediaclient/core/node"

// RoutingHeader carries a full source route: the ordered sequence of hops
// a packet traverses, and the index of the hop currently holding it.
//
// Invariants: 0 <= HopIndex < len(Hops); Hops[0] is the originator;
// Hops[len(Hops)-1] is the destination.
type RoutingHeader struct {
	Hops     []node.ID
	HopIndex int
}

// NewRoutingHeader builds a header for a freshly computed route, with
// HopIndex at the originator (0).
func NewRoutingHeader(hops []node.ID) RoutingHeader {
	return RoutingHeader{Hops: hops, HopIndex: 0}
}

// Valid reports whether the header satisfies its structural invariants.
func (h RoutingHeader) Valid() bool {
	return len(h.Hops) > 0 && h.HopIndex >= 0 && h.HopIndex < len(h.Hops)
}

// Originator returns Hops[0].
func (h RoutingHeader) Originator() node.ID {
	return h.Hops[0]
}

// Destination returns the last hop in the route.
func (h RoutingHeader) Destination() node.ID {
	return h.Hops[len(h.Hops)-1]
}

// CurrentHop returns the node id expected to be holding the packet right
// now, i.e. Hops[HopIndex].
func (h RoutingHeader) CurrentHop() (node.ID, bool) {
	if !h.Valid() {
		return 0, false
	}
	return h.Hops[h.HopIndex], true
}

// NextHop returns the node id the packet should be forwarded to next.
func (h RoutingHeader) NextHop() (node.ID, bool) {
	if h.HopIndex+1 >= len(h.Hops) {
		return 0, false
	}
	return h.Hops[h.HopIndex+1], true
}

// Reversed returns the return-path header: hops reversed, with HopIndex
// mirrored to the same position from the other end. When the packet had
// reached its destination (HopIndex == len(Hops)-1, the normal ack/nack
// case) this lands on 0, matching NewRoutingHeader's convention — Hops[0]
// is the new originator and NextHop immediately resolves to whichever
// hop most recently forwarded the packet. For a mismatched delivery
// (HopIndex short of the end, e.g. an UnexpectedRecipient nack) the
// mirrored index still resolves NextHop to the node that physically
// handed us the packet, not the one the stale header expected to.
func (h RoutingHeader) Reversed() RoutingHeader {
	reversed := make([]node.ID, len(h.Hops))
	for i, hop := range h.Hops {
		reversed[len(h.Hops)-1-i] = hop
	}
	return RoutingHeader{Hops: reversed, HopIndex: len(h.Hops) - 1 - h.HopIndex}
}

// Clone returns a deep copy of the header.
func (h RoutingHeader) Clone() RoutingHeader {
	hops := make([]node.ID, len(h.Hops))
	copy(hops, h.Hops)
	return RoutingHeader{Hops: hops, HopIndex: h.HopIndex}
}
