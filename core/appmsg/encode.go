package appmsg

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/relaynet/mediaclient/core/node"
)

// ErrMalformed indicates bytes that cannot be decoded as a Message.
// Decoding treats this as a soft failure:
// callers discard the message rather than propagating a fatal error.
var ErrMalformed = errors.New("appmsg: malformed message")

// content-kind tags, one byte, written first after the message header.
const (
	tagGetServerType uint8 = iota
	tagGetFilesList
	tagGetFile
	tagGetMedia
	tagServerTypeReply
	tagFilesListReply
	tagFileReply
	tagMediaReply
)

// Encode serializes a Message to bytes: Session/Source/Destination fixed
// fields, a one-byte content tag, then the tag-specific fields —
// length-prefixed strings and byte slices, binary.LittleEndian throughout.
func Encode(m Message) ([]byte, error) {
	buf := make([]byte, 0, 32)
	buf = appendUint64(buf, m.Session)
	buf = append(buf, byte(m.Source))
	buf = append(buf, byte(m.Destination))

	switch c := m.Content.(type) {
	case clientRequestContent:
		return encodeClientRequest(buf, c.Request)
	case serverReplyContent:
		return encodeServerReply(buf, c.Reply)
	default:
		return nil, fmt.Errorf("%w: unknown content type", ErrMalformed)
	}
}

func encodeClientRequest(buf []byte, r ClientRequest) ([]byte, error) {
	switch req := r.(type) {
	case GetServerType:
		return append(buf, tagGetServerType), nil
	case GetFilesList:
		return append(buf, tagGetFilesList), nil
	case GetFile:
		buf = append(buf, tagGetFile)
		buf = appendString(buf, req.FileID)
		return buf, nil
	case GetMedia:
		buf = append(buf, tagGetMedia)
		buf = appendString(buf, req.MediaID)
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: unknown client request type", ErrMalformed)
	}
}

func encodeServerReply(buf []byte, r ServerReply) ([]byte, error) {
	switch reply := r.(type) {
	case ServerTypeReply:
		buf = append(buf, tagServerTypeReply)
		buf = append(buf, byte(reply.Kind))
		return buf, nil
	case FilesListReply:
		buf = append(buf, tagFilesListReply)
		buf = appendUint32(buf, uint32(len(reply.FileIDs)))
		for _, id := range reply.FileIDs {
			buf = appendString(buf, id)
		}
		return buf, nil
	case FileReply:
		buf = append(buf, tagFileReply)
		buf = appendString(buf, reply.FileID)
		buf = appendUint64(buf, reply.Size)
		buf = appendString(buf, reply.Content)
		return buf, nil
	case MediaReply:
		buf = append(buf, tagMediaReply)
		buf = appendString(buf, reply.MediaID)
		buf = appendBytes(buf, reply.Bytes)
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: unknown server reply type", ErrMalformed)
	}
}

// Decode parses bytes produced by Encode back into a Message. Truncated
// or unrecognized-tag input returns ErrMalformed.
func Decode(data []byte) (Message, error) {
	r := &reader{data: data}
	session, ok := r.uint64()
	if !ok {
		return Message{}, fmt.Errorf("%w: short header", ErrMalformed)
	}
	source, ok := r.byte()
	if !ok {
		return Message{}, fmt.Errorf("%w: short header", ErrMalformed)
	}
	destination, ok := r.byte()
	if !ok {
		return Message{}, fmt.Errorf("%w: short header", ErrMalformed)
	}
	tag, ok := r.byte()
	if !ok {
		return Message{}, fmt.Errorf("%w: missing content tag", ErrMalformed)
	}

	content, err := decodeContent(tag, r)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Session:     session,
		Source:      node.ID(source),
		Destination: node.ID(destination),
		Content:     content,
	}, nil
}

func decodeContent(tag uint8, r *reader) (Content, error) {
	switch tag {
	case tagGetServerType:
		return FromClient(GetServerType{}), nil
	case tagGetFilesList:
		return FromClient(GetFilesList{}), nil
	case tagGetFile:
		id, ok := r.string()
		if !ok {
			return nil, fmt.Errorf("%w: truncated GetFile", ErrMalformed)
		}
		return FromClient(GetFile{FileID: id}), nil
	case tagGetMedia:
		id, ok := r.string()
		if !ok {
			return nil, fmt.Errorf("%w: truncated GetMedia", ErrMalformed)
		}
		return FromClient(GetMedia{MediaID: id}), nil
	case tagServerTypeReply:
		kind, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated ServerTypeReply", ErrMalformed)
		}
		return FromServer(ServerTypeReply{Kind: ServerKind(kind)}), nil
	case tagFilesListReply:
		count, ok := r.uint32()
		if !ok {
			return nil, fmt.Errorf("%w: truncated FilesListReply", ErrMalformed)
		}
		var ids []string
		if count > 0 {
			ids = make([]string, 0, count)
		}
		for i := uint32(0); i < count; i++ {
			id, ok := r.string()
			if !ok {
				return nil, fmt.Errorf("%w: truncated FilesListReply entry", ErrMalformed)
			}
			ids = append(ids, id)
		}
		return FromServer(FilesListReply{FileIDs: ids}), nil
	case tagFileReply:
		id, ok := r.string()
		if !ok {
			return nil, fmt.Errorf("%w: truncated FileReply", ErrMalformed)
		}
		size, ok := r.uint64()
		if !ok {
			return nil, fmt.Errorf("%w: truncated FileReply", ErrMalformed)
		}
		content, ok := r.string()
		if !ok {
			return nil, fmt.Errorf("%w: truncated FileReply", ErrMalformed)
		}
		return FromServer(FileReply{FileID: id, Size: size, Content: content}), nil
	case tagMediaReply:
		id, ok := r.string()
		if !ok {
			return nil, fmt.Errorf("%w: truncated MediaReply", ErrMalformed)
		}
		mediaBytes, ok := r.bytes()
		if !ok {
			return nil, fmt.Errorf("%w: truncated MediaReply", ErrMalformed)
		}
		return FromServer(MediaReply{MediaID: id, Bytes: mediaBytes}), nil
	default:
		return nil, fmt.Errorf("%w: unrecognized content tag %d", ErrMalformed, tag)
	}
}

// --- little-endian helpers, mirroring core/codec's builder/parser style ---

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = appendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) byte() (byte, bool) {
	if r.pos+1 > len(r.data) {
		return 0, false
	}
	b := r.data[r.pos]
	r.pos++
	return b, true
}

func (r *reader) uint32() (uint32, bool) {
	if r.pos+4 > len(r.data) {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, true
}

func (r *reader) uint64() (uint64, bool) {
	if r.pos+8 > len(r.data) {
		return 0, false
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, true
}

func (r *reader) string() (string, bool) {
	b, ok := r.bytes()
	if !ok {
		return "", false
	}
	return string(b), true
}

func (r *reader) bytes() ([]byte, bool) {
	n, ok := r.uint32()
	if !ok {
		return nil, false
	}
	if r.pos+int(n) > len(r.data) {
		return nil, false
	}
	if n == 0 {
		return nil, true
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, true
}
