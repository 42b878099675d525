// Package wire defines the packet-level data model shared by every
// component: routing headers, the packet envelope, and its payload
// variants (fragment, ack, nack, flood request/response). Packet is the
// in-memory structure every component operates on, analogous to
// wg_2024::packet::Packet in the original implementation; EncodePacket
// and DecodePacket (encode.go) convert it to and from bytes for carriers
// that only move bytes.
package wire

// Packet is one unit of transmission: a routing header, a session id
// grouping it with sibling fragments, and one payload variant.
type Packet struct {
	RoutingHeader RoutingHeader
	SessionID     uint64
	Payload       Payload
}

// FragmentIndex returns the fragment index carried by this packet's
// payload, for payload kinds that carry one (MsgFragment, Ack, Nack).
func (p *Packet) FragmentIndex() (uint64, bool) {
	switch pl := p.Payload.(type) {
	case MsgFragment:
		return pl.Index, true
	case Ack:
		return pl.FragmentIndex, true
	case Nack:
		return pl.FragmentIndex, true
	default:
		return 0, false
	}
}

// Clone returns a deep copy of the packet, including its routing header
// and (for MsgFragment) its byte payload. Used before mutating a cached
// packet's routing header for a retry.
func (p *Packet) Clone() *Packet {
	clone := &Packet{
		RoutingHeader: p.RoutingHeader.Clone(),
		SessionID:     p.SessionID,
		Payload:       p.Payload,
	}
	if frag, ok := p.Payload.(MsgFragment); ok {
		bytesCopy := make([]byte, len(frag.Bytes))
		copy(bytesCopy, frag.Bytes)
		frag.Bytes = bytesCopy
		clone.Payload = frag
	}
	return clone
}

// WithRoutingHeader returns a shallow copy of the packet with a new
// routing header, used when a retried fragment is rerouted.
func (p *Packet) WithRoutingHeader(h RoutingHeader) *Packet {
	return &Packet{
		RoutingHeader: h,
		SessionID:     p.SessionID,
		Payload:       p.Payload,
	}
}
