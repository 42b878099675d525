package client

import (
	"github.com/relaynet/mediaclient/control"
	"github.com/relaynet/mediaclient/core/appmsg"
	"github.com/relaynet/mediaclient/core/node"
)

// handleCommand dispatches a controller command to its handler.
func (c *Client) handleCommand(cmd control.Command) {
	switch cmd := cmd.(type) {
	case control.InitFlooding:
		c.floodNetwork(false)

	case control.AddSender:
		if c.addNeighbor(cmd.ID, cmd.Channel) {
			c.emit(control.AddedSender{ID: cmd.ID})
		} else {
			c.log.Warn("already connected to neighbor", "id", cmd.ID)
		}

	case control.RemoveSender:
		if c.removeNeighbor(cmd.ID) {
			c.emit(control.RemovedSender{ID: cmd.ID})
		} else {
			c.log.Warn("already disconnected from neighbor", "id", cmd.ID)
		}

	case control.GetServerList:
		c.handleGetServerList()

	case control.AskServerType, control.AskFilesList, control.AskForFile:
		c.handleAsk(cmd)
	}
}

// handleGetServerList reports the known server list, then opportunistically
// asks each of them their server type so the client learns which ones are
// media servers without waiting for a separate request (spec §9 point 4).
func (c *Client) handleGetServerList() {
	servers := c.router.ServerList()
	c.emit(control.ServerList{IDs: servers})

	for _, server := range servers {
		header, err := c.router.SourceRoutingHeader(server)
		if err != nil {
			continue
		}
		c.dispatchRequest(server, header, appmsg.GetServerType{})
	}
}

// handleAsk resolves a route to the command's destination and dispatches
// its corresponding appmsg request, shared by AskServerType/AskFilesList/
// AskForFile.
func (c *Client) handleAsk(cmd control.Command) {
	destination := askDestination(cmd)

	header, err := c.router.SourceRoutingHeader(destination)
	if err != nil {
		c.emit(control.UnreachableNode{ID: destination})
		c.log.Error("cannot send message, destination unreachable", "destination", destination)
		return
	}

	req, ok := clientRequestFor(cmd)
	if !ok {
		return
	}
	c.dispatchRequest(destination, header, req)
}

func askDestination(cmd control.Command) node.ID {
	switch cmd := cmd.(type) {
	case control.AskServerType:
		return cmd.ID
	case control.AskFilesList:
		return cmd.ID
	case control.AskForFile:
		return cmd.ID
	default:
		return 0
	}
}
