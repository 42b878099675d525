package wire

import "github.com/relaynet/mediaclient/core/node"

// Payload is the sum type carried by a Packet. The concrete types below
// are the only implementations; callers switch on the concrete type the
// same way the original switched on wg_2024::packet::PacketType.
type Payload interface {
	payloadMarker()
}

// MsgFragment is one indexed slice of a fragmented application message.
// Total is the fragment count of the whole message, carried on every
// fragment so the receiver knows when reassembly is complete.
type MsgFragment struct {
	Index    uint64
	Total    uint64
	Bytes    []byte
	Checksum uint16 // Fletcher-16 of the whole encoded message (same on every fragment), verified at reassembly
}

func (MsgFragment) payloadMarker() {}

// Ack acknowledges receipt of a single fragment.
type Ack struct {
	FragmentIndex uint64
}

func (Ack) payloadMarker() {}

// NackKind classifies why a fragment could not be delivered.
type NackKind int

const (
	// ErrorInRouting indicates the node named in Nack.Node failed to route
	// the packet further (e.g. it crashed mid-flight).
	ErrorInRouting NackKind = iota
	// DestinationIsDrone indicates the route's destination was not
	// actually a server — an application-layer misrouting, not retried.
	DestinationIsDrone
	// Dropped indicates an ordinary link-level drop.
	Dropped
	// UnexpectedRecipient indicates the node named in Nack.Node received
	// a fragment not addressed to it at its hop position.
	UnexpectedRecipient
)

func (k NackKind) String() string {
	switch k {
	case ErrorInRouting:
		return "error_in_routing"
	case DestinationIsDrone:
		return "destination_is_drone"
	case Dropped:
		return "dropped"
	case UnexpectedRecipient:
		return "unexpected_recipient"
	default:
		return "unknown"
	}
}

// Nack is a negative acknowledgement for a single fragment. Node is only
// meaningful when Kind is ErrorInRouting or UnexpectedRecipient.
type Nack struct {
	FragmentIndex uint64
	Kind          NackKind
	Node          node.ID
}

func (Nack) payloadMarker() {}

// PathEntry is one hop recorded in a flood's path trace: the node id and
// its declared kind (drone, server or client).
type PathEntry struct {
	Node node.ID
	Kind node.Kind
}

// FloodRequest is a topology-discovery broadcast. FloodID is unique per
// originator (monotonic local counter); PathTrace accumulates one entry
// per hop visited so far.
type FloodRequest struct {
	FloodID     uint64
	InitiatorID node.ID
	PathTrace   []PathEntry
}

func (FloodRequest) payloadMarker() {}

// FloodResponse echoes a FloodRequest's path trace with the responder
// appended, routed back to the initiator along the reverse of that trace.
type FloodResponse struct {
	FloodID   uint64
	PathTrace []PathEntry
}

func (FloodResponse) payloadMarker() {}
