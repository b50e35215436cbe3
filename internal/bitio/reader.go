package bitio

import (
	"bufio"
	"io"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

// Reader consumes bits from a byte source, lazily, through a small
// buffered window. When the source is a page-cache-backed file reader,
// sequential scans cost one page load per page (spec.md §4.A).
type Reader struct {
	r     *bufio.Reader
	cur   byte
	nbits uint // bits remaining in cur, MSB first
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadBits reads n (<=32) bits, most significant first.
func (br *Reader) ReadBits(n uint) (uint32, error) {
	var v uint32
	for i := uint(0); i < n; i++ {
		if br.nbits == 0 {
			b, err := br.r.ReadByte()
			if err == io.EOF {
				return 0, mrserrors.NewEndOfStreamError("bitio.ReadBits")
			}
			if err != nil {
				return 0, mrserrors.NewIOError("bitio.ReadBits", err)
			}
			br.cur = b
			br.nbits = 8
		}
		bit := (br.cur >> (br.nbits - 1)) & 1
		br.nbits--
		v = (v << 1) | uint32(bit)
	}
	return v, nil
}

// ReadGamma reads one Elias-γ code and returns the decoded positive integer.
func (br *Reader) ReadGamma() (uint32, error) {
	var zeros uint
	for {
		b, err := br.ReadBits(1)
		if err != nil {
			return 0, err
		}
		if b == 1 {
			break
		}
		zeros++
	}
	if zeros == 0 {
		return 1, nil
	}
	rest, err := br.ReadBits(zeros)
	if err != nil {
		return 0, err
	}
	return (1 << zeros) | rest, nil
}

// Align discards any partially-consumed byte, advancing to the next
// byte boundary — used before a raw-copy concatenation.
func (br *Reader) Align() {
	br.nbits = 0
}

// CopyBits copies n raw bits verbatim from src into dst, byte-aligning
// the source stream on completion (Concatenate/CopyInPlace in spec.md §4.A).
func CopyBits(dst *Writer, src *Reader, n int64) error {
	var i int64
	for ; i+32 <= n; i += 32 {
		v, err := src.ReadBits(32)
		if err != nil {
			return err
		}
		if err := dst.WriteBits(v, 32); err != nil {
			return err
		}
	}
	if rem := n - i; rem > 0 {
		v, err := src.ReadBits(uint(rem))
		if err != nil {
			return err
		}
		if err := dst.WriteBits(v, uint(rem)); err != nil {
			return err
		}
	}
	src.Align()
	return nil
}
