// Package appmsg defines the application-layer message carried inside
// fragmented packets: client requests and server replies exchanged
// between this client and text/media servers, plus their wire encoding.
package appmsg

import "github.com/relaynet/mediaclient/core/node"

// ServerKind classifies what a server answering ServerType can be.
type ServerKind uint8

const (
	Text ServerKind = iota
	Media
	Chat
)

func (k ServerKind) String() string {
	switch k {
	case Text:
		return "text"
	case Media:
		return "media"
	case Chat:
		return "chat"
	default:
		return "unknown"
	}
}

// ClientRequest is the sum type of requests this client sends to a server.
type ClientRequest interface {
	clientRequestMarker()
}

// GetServerType asks a server to identify its kind.
type GetServerType struct{}

func (GetServerType) clientRequestMarker() {}

// GetFilesList asks a text server for its list of file ids.
type GetFilesList struct{}

func (GetFilesList) clientRequestMarker() {}

// GetFile requests a specific text file by id.
type GetFile struct {
	FileID string
}

func (GetFile) clientRequestMarker() {}

// GetMedia requests a specific media blob by id.
type GetMedia struct {
	MediaID string
}

func (GetMedia) clientRequestMarker() {}

// ServerReply is the sum type of replies a server sends back.
type ServerReply interface {
	serverReplyMarker()
}

// ServerTypeReply answers GetServerType.
type ServerTypeReply struct {
	Kind ServerKind
}

func (ServerTypeReply) serverReplyMarker() {}

// FilesListReply answers GetFilesList.
type FilesListReply struct {
	FileIDs []string
}

func (FilesListReply) serverReplyMarker() {}

// FileReply answers GetFile with the file's id, declared size, and raw
// content (HTML-like text referencing media by the configured attribute).
type FileReply struct {
	FileID  string
	Size    uint64
	Content string
}

func (FileReply) serverReplyMarker() {}

// MediaReply answers GetMedia with the blob's id and raw bytes.
type MediaReply struct {
	MediaID string
	Bytes   []byte
}

func (MediaReply) serverReplyMarker() {}

// Content is either a ClientRequest or a ServerReply, matching spec's
// Message.content ∈ {ClientRequest, ServerReply}.
type Content interface {
	messageContentMarker()
}

type clientRequestContent struct{ Request ClientRequest }

func (clientRequestContent) messageContentMarker() {}

type serverReplyContent struct{ Reply ServerReply }

func (serverReplyContent) messageContentMarker() {}

// FromClient wraps a ClientRequest as Message content.
func FromClient(r ClientRequest) Content { return clientRequestContent{Request: r} }

// FromServer wraps a ServerReply as Message content.
func FromServer(r ServerReply) Content { return serverReplyContent{Reply: r} }

// AsClientRequest unwraps Content as a ClientRequest, if it is one.
func AsClientRequest(c Content) (ClientRequest, bool) {
	if cc, ok := c.(clientRequestContent); ok {
		return cc.Request, true
	}
	return nil, false
}

// AsServerReply unwraps Content as a ServerReply, if it is one.
func AsServerReply(c Content) (ServerReply, bool) {
	if sc, ok := c.(serverReplyContent); ok {
		return sc.Reply, true
	}
	return nil, false
}

// Message is the application-layer payload carried across a fragmented
// packet session: who sent it, who it is addressed to, and its content.
type Message struct {
	Session     uint64
	Source      node.ID
	Destination node.ID
	Content     Content
}

// NewClientMessage builds a Message wrapping a client request.
func NewClientMessage(session uint64, source, destination node.ID, r ClientRequest) Message {
	return Message{Session: session, Source: source, Destination: destination, Content: FromClient(r)}
}

// NewServerMessage builds a Message wrapping a server reply.
func NewServerMessage(session uint64, source, destination node.ID, r ServerReply) Message {
	return Message{Session: session, Source: source, Destination: destination, Content: FromServer(r)}
}
