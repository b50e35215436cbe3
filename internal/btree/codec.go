package btree

import "encoding/binary"

// Uint32Codec stores a single docNr — the value shape for unique
// char/number/float indices and for link multi-indices (spec.md §3
// "Index entry").
type Uint32Codec struct{}

func (Uint32Codec) Size() int { return 4 }
func (Uint32Codec) Encode(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
func (Uint32Codec) Decode(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// PostingRef is the leaf payload for multi/weighted/IDL-multi indices: a
// byte offset into the posting bit stream appended after the tree
// region, plus the weighted index's per-key maxWeight and the IDL
// index's sidecar file offset (spec.md §3 "Index entry", §4.F).
type PostingRef struct {
	PostingOffset uint64
	MaxWeight     uint32
	IDLOffset     uint64
}

type PostingRefCodec struct{}

func (PostingRefCodec) Size() int { return 20 }

func (PostingRefCodec) Encode(v PostingRef) []byte {
	b := make([]byte, 20)
	binary.LittleEndian.PutUint64(b[0:8], v.PostingOffset)
	binary.LittleEndian.PutUint32(b[8:12], v.MaxWeight)
	binary.LittleEndian.PutUint64(b[12:20], v.IDLOffset)
	return b
}

func (PostingRefCodec) Decode(b []byte) PostingRef {
	return PostingRef{
		PostingOffset: binary.LittleEndian.Uint64(b[0:8]),
		MaxWeight:     binary.LittleEndian.Uint32(b[8:12]),
		IDLOffset:     binary.LittleEndian.Uint64(b[12:20]),
	}
}
