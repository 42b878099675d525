// Package control defines the simulation controller's contract: the
// commands it sends into the client and the events the client emits
// back out, plus the Link interface a transport implements to carry
// them.
package control

import (
	"github.com/relaynet/mediaclient/core/appmsg"
	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
)

// Command is the sum type of inbound controller directives.
type Command interface {
	commandMarker()
}

// InitFlooding asks the client to broadcast a FloodRequest to every
// neighbor, as it does once at boot.
type InitFlooding struct{}

func (InitFlooding) commandMarker() {}

// AddSender registers a new neighbor with its outbound packet sink.
type AddSender struct {
	ID      node.ID
	Channel chan<- *wire.Packet
}

func (AddSender) commandMarker() {}

// RemoveSender drops a neighbor from the client's neighbor set.
type RemoveSender struct {
	ID node.ID
}

func (RemoveSender) commandMarker() {}

// GetServerList asks for the currently known server ids.
type GetServerList struct{}

func (GetServerList) commandMarker() {}

// AskServerType dispatches a GetServerType request to id.
type AskServerType struct {
	ID node.ID
}

func (AskServerType) commandMarker() {}

// AskFilesList dispatches a GetFilesList request to id.
type AskFilesList struct {
	ID node.ID
}

func (AskFilesList) commandMarker() {}

// AskForFile dispatches a GetFile request for fileID to id.
type AskForFile struct {
	ID     node.ID
	FileID string
}

func (AskForFile) commandMarker() {}

// Event is the sum type of outbound notifications to the controller.
type Event interface {
	eventMarker()
}

// AddedSender confirms a neighbor was added.
type AddedSender struct{ ID node.ID }

func (AddedSender) eventMarker() {}

// RemovedSender confirms a neighbor was removed.
type RemovedSender struct{ ID node.ID }

func (RemovedSender) eventMarker() {}

// ServerList answers GetServerList.
type ServerList struct{ IDs []node.ID }

func (ServerList) eventMarker() {}

// ReceivedServerType reports a server's kind.
type ReceivedServerType struct {
	Source node.ID
	Kind   appmsg.ServerKind
}

func (ReceivedServerType) eventMarker() {}

// ReceivedFileList reports the file ids a text server holds.
type ReceivedFileList struct {
	Source  node.ID
	Self    node.ID
	FileIDs []string
}

func (ReceivedFileList) eventMarker() {}

// UnreachableNode reports that id could not be routed to.
type UnreachableNode struct{ ID node.ID }

func (UnreachableNode) eventMarker() {}

// DestinationIsDrone reports an application-layer misrouting: the
// intended destination turned out not to be a server.
type DestinationIsDrone struct{ ID node.ID }

func (DestinationIsDrone) eventMarker() {}

// ErrorPacketCache reports a nack referencing an unknown cache entry.
type ErrorPacketCache struct {
	Session  uint64
	Fragment uint64
}

func (ErrorPacketCache) eventMarker() {}

// SendError reports a transport-level send failure.
type SendError struct {
	Session  uint64
	Fragment uint64
	Err      error
}

func (SendError) eventMarker() {}

// ControllerShortcut carries a packet the client could not route to its
// next hop (Ack, Nack, or FloodResponse) for out-of-band delivery.
type ControllerShortcut struct{ Packet *wire.Packet }

func (ControllerShortcut) eventMarker() {}

// CompleteBundle reports a fully resolved text file plus its media.
type CompleteBundle struct {
	Source  node.ID
	FileID  string
	Content string
	Media   map[string][]byte
}

func (CompleteBundle) eventMarker() {}

// Link is the transport-agnostic contract a controller carrier
// implements: an inbound command stream and an outbound event sink.
type Link interface {
	// Commands returns the channel of inbound controller commands.
	Commands() <-chan Command
	// Emit sends an event to the controller. Implementations must not
	// block indefinitely; a full/closed sink should drop and log.
	Emit(Event)
	// Close releases any resources held by the link.
	Close() error
}
