package btree

import (
	"encoding/binary"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

const (
	pageLeaf   byte = 0
	pageBranch byte = 1
)

// node is the decoded, in-memory form of one page. Each entry is a key
// slice plus its fixed-size value slice; on disk an entry is a 2-byte
// key length, the key bytes and the value bytes, packed one after
// another. Split points are chosen against this byte budget rather than
// a fixed fanout.
type node struct {
	isLeaf bool
	page   uint32

	// leaf fields
	next uint32 // next leaf page, 0 if last

	// branch fields: left is the leftmost child; for i in range(keys),
	// keys[i] separates children[i] (< key) from children[i+1] (>= key).
	left uint32

	keys     [][]byte
	values   [][]byte // leaf: payload bytes; branch: 4-byte child page numbers
}

func (n *node) byteSize() int {
	sz := 16
	for i := range n.keys {
		sz += 2 + len(n.keys[i]) + len(n.values[i])
	}
	return sz
}

func encodeNode(n *node, pageSize int) []byte {
	buf := make([]byte, pageSize)
	if n.isLeaf {
		buf[0] = pageLeaf
		binary.LittleEndian.PutUint32(buf[4:8], n.next)
	} else {
		buf[0] = pageBranch
		binary.LittleEndian.PutUint32(buf[4:8], n.left)
	}
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(n.keys)))
	off := 16
	for i := range n.keys {
		k, v := n.keys[i], n.values[i]
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(len(k)))
		off += 2
		copy(buf[off:], k)
		off += len(k)
		copy(buf[off:], v)
		off += len(v)
	}
	return buf
}

func decodeNode(buf []byte, page uint32, valueSize int) *node {
	n := &node{page: page}
	n.isLeaf = buf[0] == pageLeaf
	if n.isLeaf {
		n.next = binary.LittleEndian.Uint32(buf[4:8])
	} else {
		n.left = binary.LittleEndian.Uint32(buf[4:8])
	}
	count := int(binary.LittleEndian.Uint32(buf[8:12]))
	off := 16
	n.keys = make([][]byte, count)
	n.values = make([][]byte, count)
	for i := 0; i < count; i++ {
		klen := int(binary.LittleEndian.Uint16(buf[off : off+2]))
		off += 2
		key := make([]byte, klen)
		copy(key, buf[off:off+klen])
		off += klen
		val := make([]byte, valueSize)
		copy(val, buf[off:off+valueSize])
		off += valueSize
		n.keys[i] = key
		n.values[i] = val
	}
	return n
}

func childPage(v []byte) uint32 { return binary.LittleEndian.Uint32(v) }

func encodeChildPage(p uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, p)
	return b
}

var errCorruptPage = mrserrors.NewCorruptError("btree.decodeNode", nil)
