package client

import (
	"github.com/relaynet/mediaclient/control"
	"github.com/relaynet/mediaclient/core/appmsg"
)

// handleMessage unwraps a reassembled Message as a server reply and
// dispatches it by reply kind. Client-request-shaped messages never
// arrive here in a well-behaved network (this client only originates
// those) and are ignored.
func (c *Client) handleMessage(msg *appmsg.Message) {
	reply, ok := appmsg.AsServerReply(msg.Content)
	if !ok {
		return
	}

	switch reply := reply.(type) {
	case appmsg.ServerTypeReply:
		if reply.Kind == appmsg.Media {
			c.mediaServers.Add(msg.Source)
		}
		c.emit(control.ReceivedServerType{Source: msg.Source, Kind: reply.Kind})

	case appmsg.FilesListReply:
		c.emit(control.ReceivedFileList{Source: msg.Source, Self: c.cfg.SelfID, FileIDs: reply.FileIDs})
		c.probeServerTypes()

	case appmsg.FileReply:
		c.handleFileReply(msg, reply)

	case appmsg.MediaReply:
		c.handleMediaReply(reply)
	}
}

// probeServerTypes asks every known server its kind, so media-capable
// ones get registered in mediaServers without a separate explicit ask.
func (c *Client) probeServerTypes() {
	for _, server := range c.router.ServerList() {
		header, err := c.router.SourceRoutingHeader(server)
		if err != nil {
			continue
		}
		c.dispatchRequest(server, header, appmsg.GetServerType{})
	}
}

// handleFileReply feeds a text file to the FileAssembler and, unless the
// bundle is already complete, dispatches a GetMedia to a round-robin
// media server for every media reference the file names.
func (c *Client) handleFileReply(msg *appmsg.Message, reply appmsg.FileReply) {
	mediaIDs, bundle := c.fileAssembler.AddTextFile(msg.Source, reply.FileID, reply.Content)
	if bundle != nil {
		// No references, or every one of them already arrived.
		c.emit(control.CompleteBundle{
			Source:  bundle.Source,
			FileID:  bundle.FileID,
			Content: bundle.Content,
			Media:   bundle.Media,
		})
		return
	}
	for _, mediaID := range mediaIDs {
		server, ok := c.mediaServers.Next()
		if !ok {
			c.log.Warn("no known media server to resolve reference", "media_id", mediaID)
			continue
		}
		header, err := c.router.SourceRoutingHeader(server)
		if err != nil {
			c.emit(control.UnreachableNode{ID: server})
			continue
		}
		c.dispatchRequest(server, header, appmsg.GetMedia{MediaID: mediaID})
	}
}

// handleMediaReply feeds a media blob to the FileAssembler and emits a
// CompleteBundle for every bundle it resolves.
func (c *Client) handleMediaReply(reply appmsg.MediaReply) {
	for _, bundle := range c.fileAssembler.AddMediaFile(reply.MediaID, reply.Bytes) {
		c.emit(control.CompleteBundle{
			Source:  bundle.Source,
			FileID:  bundle.FileID,
			Content: bundle.Content,
			Media:   bundle.Media,
		})
	}
}
