// Package assembler turns an appmsg.Message into a sequence of fragment
// payloads for outbound sending, and reassembles incoming fragments back
// into a Message, one reassembly per (session, source) pair.
package assembler

import (
	"sync"

	"github.com/relaynet/mediaclient/core/appmsg"
	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
)

// DefaultChunkSize is the number of content bytes carried by each
// fragment, matching the typical on-wire fragment size.
const DefaultChunkSize = 128

// reassemblyKey identifies one in-progress reassembly: the session the
// fragments belong to and the node that sent them.
type reassemblyKey struct {
	session uint64
	source  node.ID
}

// reassemblyState holds the sparse set of fragment slots seen so far for
// one reassembly. Fragments may arrive out of order or duplicated; a slot
// is filled idempotently and completion is detected by counting filled
// slots against the expected total, not by a countdown.
type reassemblyState struct {
	slots    [][]byte
	filled   int
	expected int
	checksum uint16
}

// Assembler fragments outbound messages and reassembles inbound ones.
type Assembler struct {
	chunkSize int

	mu      sync.Mutex
	pending map[reassemblyKey]*reassemblyState
}

// New returns an Assembler using the given chunk size for fragmentation.
// A chunkSize <= 0 falls back to DefaultChunkSize.
func New(chunkSize int) *Assembler {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Assembler{
		chunkSize: chunkSize,
		pending:   make(map[reassemblyKey]*reassemblyState),
	}
}

// FragmentMessage encodes m and splits it into an ordered slice of
// wire.MsgFragment payloads, each carrying the Fletcher-16 checksum of
// the whole encoded message so the receiver can validate reassembly.
func (a *Assembler) FragmentMessage(m appmsg.Message) ([]wire.MsgFragment, error) {
	encoded, err := appmsg.Encode(m)
	if err != nil {
		return nil, err
	}

	checksum := appmsg.Fletcher16(encoded)
	total := (len(encoded) + a.chunkSize - 1) / a.chunkSize
	if total == 0 {
		total = 1
	}

	fragments := make([]wire.MsgFragment, 0, total)
	for i := 0; i < total; i++ {
		start := i * a.chunkSize
		end := start + a.chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunk := make([]byte, end-start)
		copy(chunk, encoded[start:end])
		fragments = append(fragments, wire.MsgFragment{
			Index:    uint64(i),
			Total:    uint64(total),
			Bytes:    chunk,
			Checksum: checksum,
		})
	}
	return fragments, nil
}

// ProcessFragment folds one inbound fragment into the reassembly for
// (session, source). When the last missing slot is filled, the encoded
// message is validated against its checksum and decoded; a mismatch or
// decode failure is a soft failure — the partial state is discarded and
// (nil, nil) is returned rather than an error, per the reassembler's
// "malformed serialization is a soft failure" contract.
func (a *Assembler) ProcessFragment(frag wire.MsgFragment, session uint64, source node.ID) (*appmsg.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := reassemblyKey{session: session, source: source}
	state, exists := a.pending[key]
	if !exists {
		state = &reassemblyState{
			slots:    make([][]byte, frag.Total),
			expected: int(frag.Total),
			checksum: frag.Checksum,
		}
		a.pending[key] = state
	}

	if int(frag.Index) >= len(state.slots) {
		return nil, nil
	}
	if state.slots[frag.Index] == nil {
		state.slots[frag.Index] = frag.Bytes
		state.filled++
	}

	if state.filled < state.expected {
		return nil, nil
	}

	delete(a.pending, key)

	encoded := make([]byte, 0)
	for _, slot := range state.slots {
		encoded = append(encoded, slot...)
	}

	if !appmsg.ValidateChecksum(encoded, state.checksum) {
		return nil, nil
	}

	msg, err := appmsg.Decode(encoded)
	if err != nil {
		return nil, nil
	}
	return &msg, nil
}

// PendingCount returns the number of in-progress reassemblies, for tests.
func (a *Assembler) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}
