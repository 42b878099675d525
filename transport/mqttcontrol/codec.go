package mqttcontrol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/relaynet/mediaclient/control"
	"github.com/relaynet/mediaclient/core/appmsg"
	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
)

// ErrMalformedMessage indicates bytes that cannot be decoded as a
// control.Command or control.Event.
var ErrMalformedMessage = errors.New("mqttcontrol: malformed message")

// command tags. AddSender/RemoveSender are omitted: neighbor wiring
// requires a local Go channel that cannot cross an MQTT payload, so
// those commands are only ever issued in-process (see control.Link).
const (
	tagInitFlooding uint8 = iota
	tagGetServerList
	tagAskServerType
	tagAskFilesList
	tagAskForFile
)

// event tags.
const (
	tagAddedSender uint8 = iota
	tagRemovedSender
	tagServerList
	tagReceivedServerType
	tagReceivedFileList
	tagUnreachableNode
	tagDestinationIsDrone
	tagErrorPacketCache
	tagSendError
	tagControllerShortcut
	tagCompleteBundle
)

// EncodeCommand serializes a controller-issued command for publication
// on the command topic.
func EncodeCommand(cmd control.Command) ([]byte, error) {
	switch c := cmd.(type) {
	case control.InitFlooding:
		return []byte{tagInitFlooding}, nil
	case control.GetServerList:
		return []byte{tagGetServerList}, nil
	case control.AskServerType:
		return []byte{tagAskServerType, byte(c.ID)}, nil
	case control.AskFilesList:
		return []byte{tagAskFilesList, byte(c.ID)}, nil
	case control.AskForFile:
		buf := []byte{tagAskForFile, byte(c.ID)}
		return appendString(buf, c.FileID), nil
	default:
		return nil, fmt.Errorf("%w: command type %T cannot cross MQTT", ErrMalformedMessage, cmd)
	}
}

// DecodeCommand parses bytes produced by EncodeCommand.
func DecodeCommand(data []byte) (control.Command, error) {
	r := &mqReader{data: data}
	tag, ok := r.byte()
	if !ok {
		return nil, fmt.Errorf("%w: empty command", ErrMalformedMessage)
	}
	switch tag {
	case tagInitFlooding:
		return control.InitFlooding{}, nil
	case tagGetServerList:
		return control.GetServerList{}, nil
	case tagAskServerType:
		id, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated AskServerType", ErrMalformedMessage)
		}
		return control.AskServerType{ID: node.ID(id)}, nil
	case tagAskFilesList:
		id, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated AskFilesList", ErrMalformedMessage)
		}
		return control.AskFilesList{ID: node.ID(id)}, nil
	case tagAskForFile:
		id, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated AskForFile", ErrMalformedMessage)
		}
		fileID, ok := r.string()
		if !ok {
			return nil, fmt.Errorf("%w: truncated AskForFile", ErrMalformedMessage)
		}
		return control.AskForFile{ID: node.ID(id), FileID: fileID}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized command tag %d", ErrMalformedMessage, tag)
	}
}

// EncodeEvent serializes a client-emitted event for publication on the
// event topic.
func EncodeEvent(ev control.Event) ([]byte, error) {
	switch e := ev.(type) {
	case control.AddedSender:
		return []byte{tagAddedSender, byte(e.ID)}, nil
	case control.RemovedSender:
		return []byte{tagRemovedSender, byte(e.ID)}, nil
	case control.ServerList:
		buf := []byte{tagServerList}
		buf = appendUint32c(buf, uint32(len(e.IDs)))
		for _, id := range e.IDs {
			buf = append(buf, byte(id))
		}
		return buf, nil
	case control.ReceivedServerType:
		return []byte{tagReceivedServerType, byte(e.Source), byte(e.Kind)}, nil
	case control.ReceivedFileList:
		buf := []byte{tagReceivedFileList, byte(e.Source), byte(e.Self)}
		buf = appendUint32c(buf, uint32(len(e.FileIDs)))
		for _, id := range e.FileIDs {
			buf = appendString(buf, id)
		}
		return buf, nil
	case control.UnreachableNode:
		return []byte{tagUnreachableNode, byte(e.ID)}, nil
	case control.DestinationIsDrone:
		return []byte{tagDestinationIsDrone, byte(e.ID)}, nil
	case control.ErrorPacketCache:
		buf := []byte{tagErrorPacketCache}
		buf = appendUint64c(buf, e.Session)
		buf = appendUint64c(buf, e.Fragment)
		return buf, nil
	case control.SendError:
		buf := []byte{tagSendError}
		buf = appendUint64c(buf, e.Session)
		buf = appendUint64c(buf, e.Fragment)
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return appendString(buf, msg), nil
	case control.ControllerShortcut:
		pkt, err := wire.EncodePacket(e.Packet)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding shortcut packet: %v", ErrMalformedMessage, err)
		}
		buf := []byte{tagControllerShortcut}
		return appendBytesc(buf, pkt), nil
	case control.CompleteBundle:
		buf := []byte{tagCompleteBundle, byte(e.Source)}
		buf = appendString(buf, e.FileID)
		buf = appendString(buf, e.Content)
		buf = appendUint32c(buf, uint32(len(e.Media)))
		for name, content := range e.Media {
			buf = appendString(buf, name)
			buf = appendBytesc(buf, content)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: event type %T cannot cross MQTT", ErrMalformedMessage, ev)
	}
}

// DecodeEvent parses bytes produced by EncodeEvent.
func DecodeEvent(data []byte) (control.Event, error) {
	r := &mqReader{data: data}
	tag, ok := r.byte()
	if !ok {
		return nil, fmt.Errorf("%w: empty event", ErrMalformedMessage)
	}
	switch tag {
	case tagAddedSender:
		id, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated AddedSender", ErrMalformedMessage)
		}
		return control.AddedSender{ID: node.ID(id)}, nil
	case tagRemovedSender:
		id, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated RemovedSender", ErrMalformedMessage)
		}
		return control.RemovedSender{ID: node.ID(id)}, nil
	case tagServerList:
		n, ok := r.uint32()
		if !ok {
			return nil, fmt.Errorf("%w: truncated ServerList", ErrMalformedMessage)
		}
		ids := make([]node.ID, n)
		for i := range ids {
			b, ok := r.byte()
			if !ok {
				return nil, fmt.Errorf("%w: truncated ServerList", ErrMalformedMessage)
			}
			ids[i] = node.ID(b)
		}
		return control.ServerList{IDs: ids}, nil
	case tagReceivedServerType:
		src, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated ReceivedServerType", ErrMalformedMessage)
		}
		kind, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated ReceivedServerType", ErrMalformedMessage)
		}
		return control.ReceivedServerType{Source: node.ID(src), Kind: appmsg.ServerKind(kind)}, nil
	case tagReceivedFileList:
		src, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated ReceivedFileList", ErrMalformedMessage)
		}
		self, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated ReceivedFileList", ErrMalformedMessage)
		}
		n, ok := r.uint32()
		if !ok {
			return nil, fmt.Errorf("%w: truncated ReceivedFileList", ErrMalformedMessage)
		}
		ids := make([]string, n)
		for i := range ids {
			s, ok := r.string()
			if !ok {
				return nil, fmt.Errorf("%w: truncated ReceivedFileList", ErrMalformedMessage)
			}
			ids[i] = s
		}
		return control.ReceivedFileList{Source: node.ID(src), Self: node.ID(self), FileIDs: ids}, nil
	case tagUnreachableNode:
		id, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated UnreachableNode", ErrMalformedMessage)
		}
		return control.UnreachableNode{ID: node.ID(id)}, nil
	case tagDestinationIsDrone:
		id, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated DestinationIsDrone", ErrMalformedMessage)
		}
		return control.DestinationIsDrone{ID: node.ID(id)}, nil
	case tagErrorPacketCache:
		session, ok := r.uint64()
		if !ok {
			return nil, fmt.Errorf("%w: truncated ErrorPacketCache", ErrMalformedMessage)
		}
		frag, ok := r.uint64()
		if !ok {
			return nil, fmt.Errorf("%w: truncated ErrorPacketCache", ErrMalformedMessage)
		}
		return control.ErrorPacketCache{Session: session, Fragment: frag}, nil
	case tagSendError:
		session, ok := r.uint64()
		if !ok {
			return nil, fmt.Errorf("%w: truncated SendError", ErrMalformedMessage)
		}
		frag, ok := r.uint64()
		if !ok {
			return nil, fmt.Errorf("%w: truncated SendError", ErrMalformedMessage)
		}
		msg, ok := r.string()
		if !ok {
			return nil, fmt.Errorf("%w: truncated SendError", ErrMalformedMessage)
		}
		var err error
		if msg != "" {
			err = errors.New(msg)
		}
		return control.SendError{Session: session, Fragment: frag, Err: err}, nil
	case tagControllerShortcut:
		raw, ok := r.bytes()
		if !ok {
			return nil, fmt.Errorf("%w: truncated ControllerShortcut", ErrMalformedMessage)
		}
		pkt, err := wire.DecodePacket(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding shortcut packet: %v", ErrMalformedMessage, err)
		}
		return control.ControllerShortcut{Packet: pkt}, nil
	case tagCompleteBundle:
		src, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated CompleteBundle", ErrMalformedMessage)
		}
		fileID, ok := r.string()
		if !ok {
			return nil, fmt.Errorf("%w: truncated CompleteBundle", ErrMalformedMessage)
		}
		content, ok := r.string()
		if !ok {
			return nil, fmt.Errorf("%w: truncated CompleteBundle", ErrMalformedMessage)
		}
		n, ok := r.uint32()
		if !ok {
			return nil, fmt.Errorf("%w: truncated CompleteBundle", ErrMalformedMessage)
		}
		media := make(map[string][]byte, n)
		for i := uint32(0); i < n; i++ {
			name, ok := r.string()
			if !ok {
				return nil, fmt.Errorf("%w: truncated CompleteBundle", ErrMalformedMessage)
			}
			blob, ok := r.bytes()
			if !ok {
				return nil, fmt.Errorf("%w: truncated CompleteBundle", ErrMalformedMessage)
			}
			media[name] = blob
		}
		return control.CompleteBundle{Source: node.ID(src), FileID: fileID, Content: content, Media: media}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized event tag %d", ErrMalformedMessage, tag)
	}
}

func appendUint32c(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64c(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBytesc(buf []byte, b []byte) []byte {
	buf = appendUint32c(buf, uint32(len(b)))
	return append(buf, b...)
}

func appendString(buf []byte, s string) []byte {
	return appendBytesc(buf, []byte(s))
}

type mqReader struct {
	data []byte
	pos  int
}

func (r *mqReader) byte() (byte, bool) {
	if r.pos+1 > len(r.data) {
		return 0, false
	}
	b := r.data[r.pos]
	r.pos++
	return b, true
}

func (r *mqReader) uint32() (uint32, bool) {
	if r.pos+4 > len(r.data) {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, true
}

func (r *mqReader) uint64() (uint64, bool) {
	if r.pos+8 > len(r.data) {
		return 0, false
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, true
}

func (r *mqReader) bytes() ([]byte, bool) {
	n, ok := r.uint32()
	if !ok {
		return nil, false
	}
	if r.pos+int(n) > len(r.data) {
		return nil, false
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, true
}

func (r *mqReader) string() (string, bool) {
	b, ok := r.bytes()
	if !ok {
		return "", false
	}
	return string(b), true
}
