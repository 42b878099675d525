package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/relaynet/mediaclient/core/node"
)

// ErrMalformedPacket indicates bytes that cannot be decoded as a Packet.
var ErrMalformedPacket = errors.New("wire: malformed packet")

// payload-kind tags, mirroring core/appmsg's tag+reader encoding style.
const (
	tagMsgFragment uint8 = iota
	tagAck
	tagNack
	tagFloodRequest
	tagFloodResponse
)

// EncodePacket serializes a Packet for transmission over a carrier that
// only moves bytes (e.g. an MQTT topic): the routing header, session id,
// then a one-byte payload tag followed by its fields.
func EncodePacket(p *Packet) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = appendHops(buf, p.RoutingHeader)
	buf = appendUint64w(buf, p.SessionID)

	switch pl := p.Payload.(type) {
	case MsgFragment:
		buf = append(buf, tagMsgFragment)
		buf = appendUint64w(buf, pl.Index)
		buf = appendUint64w(buf, pl.Total)
		buf = appendBytesw(buf, pl.Bytes)
		buf = appendUint32w(buf, uint32(pl.Checksum))
	case Ack:
		buf = append(buf, tagAck)
		buf = appendUint64w(buf, pl.FragmentIndex)
	case Nack:
		buf = append(buf, tagNack)
		buf = appendUint64w(buf, pl.FragmentIndex)
		buf = append(buf, byte(pl.Kind))
		buf = append(buf, byte(pl.Node))
	case FloodRequest:
		buf = append(buf, tagFloodRequest)
		buf = appendUint64w(buf, pl.FloodID)
		buf = append(buf, byte(pl.InitiatorID))
		buf = appendPathTrace(buf, pl.PathTrace)
	case FloodResponse:
		buf = append(buf, tagFloodResponse)
		buf = appendUint64w(buf, pl.FloodID)
		buf = appendPathTrace(buf, pl.PathTrace)
	default:
		return nil, fmt.Errorf("%w: unknown payload type", ErrMalformedPacket)
	}
	return buf, nil
}

// DecodePacket parses bytes produced by EncodePacket back into a Packet.
func DecodePacket(data []byte) (*Packet, error) {
	r := &readerw{data: data}

	hops, ok := r.hops()
	if !ok {
		return nil, fmt.Errorf("%w: truncated hops", ErrMalformedPacket)
	}
	hopIndex, ok := r.uint32()
	if !ok {
		return nil, fmt.Errorf("%w: truncated hop index", ErrMalformedPacket)
	}
	session, ok := r.uint64()
	if !ok {
		return nil, fmt.Errorf("%w: truncated session id", ErrMalformedPacket)
	}
	tag, ok := r.byte()
	if !ok {
		return nil, fmt.Errorf("%w: missing payload tag", ErrMalformedPacket)
	}

	payload, err := decodePayload(tag, r)
	if err != nil {
		return nil, err
	}

	return &Packet{
		RoutingHeader: RoutingHeader{Hops: hops, HopIndex: int(hopIndex)},
		SessionID:     session,
		Payload:       payload,
	}, nil
}

func decodePayload(tag uint8, r *readerw) (Payload, error) {
	switch tag {
	case tagMsgFragment:
		index, ok := r.uint64()
		if !ok {
			return nil, fmt.Errorf("%w: truncated MsgFragment", ErrMalformedPacket)
		}
		total, ok := r.uint64()
		if !ok {
			return nil, fmt.Errorf("%w: truncated MsgFragment", ErrMalformedPacket)
		}
		fragBytes, ok := r.bytes()
		if !ok {
			return nil, fmt.Errorf("%w: truncated MsgFragment", ErrMalformedPacket)
		}
		checksum, ok := r.uint32()
		if !ok {
			return nil, fmt.Errorf("%w: truncated MsgFragment", ErrMalformedPacket)
		}
		return MsgFragment{Index: index, Total: total, Bytes: fragBytes, Checksum: uint16(checksum)}, nil
	case tagAck:
		index, ok := r.uint64()
		if !ok {
			return nil, fmt.Errorf("%w: truncated Ack", ErrMalformedPacket)
		}
		return Ack{FragmentIndex: index}, nil
	case tagNack:
		index, ok := r.uint64()
		if !ok {
			return nil, fmt.Errorf("%w: truncated Nack", ErrMalformedPacket)
		}
		kind, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated Nack", ErrMalformedPacket)
		}
		nodeByte, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated Nack", ErrMalformedPacket)
		}
		return Nack{FragmentIndex: index, Kind: NackKind(kind), Node: node.ID(nodeByte)}, nil
	case tagFloodRequest:
		floodID, ok := r.uint64()
		if !ok {
			return nil, fmt.Errorf("%w: truncated FloodRequest", ErrMalformedPacket)
		}
		initiator, ok := r.byte()
		if !ok {
			return nil, fmt.Errorf("%w: truncated FloodRequest", ErrMalformedPacket)
		}
		trace, ok := r.pathTrace()
		if !ok {
			return nil, fmt.Errorf("%w: truncated FloodRequest path trace", ErrMalformedPacket)
		}
		return FloodRequest{FloodID: floodID, InitiatorID: node.ID(initiator), PathTrace: trace}, nil
	case tagFloodResponse:
		floodID, ok := r.uint64()
		if !ok {
			return nil, fmt.Errorf("%w: truncated FloodResponse", ErrMalformedPacket)
		}
		trace, ok := r.pathTrace()
		if !ok {
			return nil, fmt.Errorf("%w: truncated FloodResponse path trace", ErrMalformedPacket)
		}
		return FloodResponse{FloodID: floodID, PathTrace: trace}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized payload tag %d", ErrMalformedPacket, tag)
	}
}

func appendHops(buf []byte, h RoutingHeader) []byte {
	buf = appendUint32w(buf, uint32(len(h.Hops)))
	for _, hop := range h.Hops {
		buf = append(buf, byte(hop))
	}
	return appendUint32w(buf, uint32(h.HopIndex))
}

func appendPathTrace(buf []byte, trace []PathEntry) []byte {
	buf = appendUint32w(buf, uint32(len(trace)))
	for _, entry := range trace {
		buf = append(buf, byte(entry.Node), byte(entry.Kind))
	}
	return buf
}

func appendUint32w(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64w(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBytesw(buf []byte, b []byte) []byte {
	buf = appendUint32w(buf, uint32(len(b)))
	return append(buf, b...)
}

type readerw struct {
	data []byte
	pos  int
}

func (r *readerw) byte() (byte, bool) {
	if r.pos+1 > len(r.data) {
		return 0, false
	}
	b := r.data[r.pos]
	r.pos++
	return b, true
}

func (r *readerw) uint32() (uint32, bool) {
	if r.pos+4 > len(r.data) {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, true
}

func (r *readerw) uint64() (uint64, bool) {
	if r.pos+8 > len(r.data) {
		return 0, false
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, true
}

func (r *readerw) bytes() ([]byte, bool) {
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

func (r *readerw) hops() ([]node.ID, bool) {
	n, ok := r.uint32()
	if !ok {
		return nil, false
	}
	if r.pos+int(n) > len(r.data) {
		return nil, false
	}
	hops := make([]node.ID, n)
	for i := range hops {
		hops[i] = node.ID(r.data[r.pos])
		r.pos++
	}
	return hops, true
}

func (r *readerw) pathTrace() ([]PathEntry, bool) {
	n, ok := r.uint32()
	if !ok {
		return nil, false
	}
	trace := make([]PathEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		nodeByte, ok := r.byte()
		if !ok {
			return nil, false
		}
		kindByte, ok := r.byte()
		if !ok {
			return nil, false
		}
		trace = append(trace, PathEntry{Node: node.ID(nodeByte), Kind: node.Kind(kindByte)})
	}
	return trace, true
}
