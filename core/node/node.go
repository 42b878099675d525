// Package node defines the node identity and kind used throughout the
// drone-relay network: an 8-bit id and a Drone/Server/Client
// classification.
package node

import "fmt"

// ID is an opaque node identifier. Drones, servers, and clients share
// the same id space; Kind distinguishes how a node may be used in a
// route.
type ID uint8

// String renders the id in decimal, matching log output across the module.
func (id ID) String() string {
	return fmt.Sprintf("%d", uint8(id))
}

// Kind classifies a node for routing purposes. Only Drone nodes may be
// an intermediate hop in a source route; Server and Client nodes are
// endpoints only.
type Kind uint8

const (
	// Drone nodes may relay fragments and participate in flood discovery.
	Drone Kind = iota
	// Server nodes are message endpoints only (text or media servers).
	Server
	// Client identifies this media client itself in a path trace. A
	// client is never a routable intermediate and is never added to
	// another node's topology graph as one.
	Client
)

// String renders the kind name, used in logging and test failure messages.
func (k Kind) String() string {
	switch k {
	case Drone:
		return "drone"
	case Server:
		return "server"
	case Client:
		return "client"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}
