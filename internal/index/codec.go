package index

import (
	"encoding/binary"
	"fmt"

	"github.com/quiverdb/quiver/pkg/errors"
)

// Posting lists are stored as a length-prefixed little-endian framing:
//
//	uint32 posting count
//	per posting: uint32 doc-id length, doc-id bytes,
//	             uint32 position count, uint32 positions...
//
// The framing is deterministic for a given PostingList, so encode/decode
// round-trips exactly.

// EncodePostingList serialises pl into its on-disk representation.
func EncodePostingList(pl PostingList) []byte {
	size := 4
	for _, p := range pl {
		size += 4 + len(p.DocID) + 4 + 4*len(p.Positions)
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(pl)))
	for _, p := range pl {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.DocID)))
		buf = append(buf, p.DocID...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.Positions)))
		for _, pos := range p.Positions {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(pos))
		}
	}
	return buf
}

// DecodePostingList parses an encoded posting list. Any framing violation
// returns an error wrapping errors.ErrCorrupt.
func DecodePostingList(data []byte) (PostingList, error) {
	r := reader{data: data}
	count, err := r.uint32()
	if err != nil {
		return nil, err
	}
	pl := make(PostingList, 0, count)
	for i := uint32(0); i < count; i++ {
		idLen, err := r.uint32()
		if err != nil {
			return nil, err
		}
		docID, err := r.bytes(int(idLen))
		if err != nil {
			return nil, err
		}
		posCount, err := r.uint32()
		if err != nil {
			return nil, err
		}
		positions := make([]int, posCount)
		for j := range positions {
			pos, err := r.uint32()
			if err != nil {
				return nil, err
			}
			positions[j] = int(pos)
		}
		pl = append(pl, Posting{DocID: string(docID), Positions: positions})
	}
	if len(r.data[r.off:]) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", errors.ErrCorrupt, len(r.data[r.off:]))
	}
	return pl, nil
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) uint32() (uint32, error) {
	if r.off+4 > len(r.data) {
		return 0, fmt.Errorf("%w: truncated at offset %d", errors.ErrCorrupt, r.off)
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.off+n > len(r.data) {
		return nil, fmt.Errorf("%w: truncated at offset %d", errors.ErrCorrupt, r.off)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}
