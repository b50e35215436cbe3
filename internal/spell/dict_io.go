package spell

import (
	"encoding/binary"
	"io"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

// WriteDict serializes d to w in the dictionary file format of
// spec.md §6: a docCount header, each state's out-edge run (length-
// prefixed so a state with zero out-edges round-trips unambiguously,
// which a pure flat last-bit-terminated transition stream cannot),
// and the trailing u32(0) sentinel that Open Question #2 uses to
// reject the legacy format on read.
func WriteDict(w io.Writer, d *DAFSA, docCount uint32) error {
	var transitionCount uint32
	for _, s := range d.states {
		transitionCount += uint32(len(s))
	}
	header := make([]byte, 12)
	binary.LittleEndian.PutUint32(header[0:4], docCount)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(d.states)))
	binary.LittleEndian.PutUint32(header[8:12], transitionCount)
	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, s := range d.states {
		degree := make([]byte, 2)
		binary.LittleEndian.PutUint16(degree, uint16(len(s)))
		if _, err := w.Write(degree); err != nil {
			return err
		}
		for _, t := range s {
			buf := make([]byte, 8)
			binary.LittleEndian.PutUint64(buf, uint64(t))
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}
	sentinel := make([]byte, 4)
	_, err := w.Write(sentinel)
	return err
}

// ReadDict deserializes a dictionary file written by WriteDict,
// returning the automaton and the docCount it was built against.
func ReadDict(r io.Reader) (*DAFSA, uint32, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, 0, mrserrors.NewCorruptError("spell.ReadDict", err)
	}
	docCount := binary.LittleEndian.Uint32(header[0:4])
	stateCount := binary.LittleEndian.Uint32(header[4:8])
	transitionCount := binary.LittleEndian.Uint32(header[8:12])

	d := &DAFSA{states: make([][]Transition, stateCount)}
	var seen uint32
	for i := uint32(0); i < stateCount; i++ {
		degreeBuf := make([]byte, 2)
		if _, err := io.ReadFull(r, degreeBuf); err != nil {
			return nil, 0, mrserrors.NewCorruptError("spell.ReadDict", err)
		}
		degree := binary.LittleEndian.Uint16(degreeBuf)
		trans := make([]Transition, degree)
		for j := uint16(0); j < degree; j++ {
			buf := make([]byte, 8)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, 0, mrserrors.NewCorruptError("spell.ReadDict", err)
			}
			trans[j] = Transition(binary.LittleEndian.Uint64(buf))
		}
		d.states[i] = trans
		seen += uint32(degree)
	}
	if seen != transitionCount {
		return nil, 0, mrserrors.NewCorruptError("spell.ReadDict", io.ErrUnexpectedEOF).WithContext("reason", "transition count mismatch")
	}

	sentinel := make([]byte, 4)
	if _, err := io.ReadFull(r, sentinel); err != nil {
		return nil, 0, mrserrors.NewCorruptError("spell.ReadDict", err).WithContext("reason", "missing format sentinel")
	}
	if binary.LittleEndian.Uint32(sentinel) != 0 {
		return nil, 0, mrserrors.NewCorruptError("spell.ReadDict", nil).WithContext("reason", "unsupported legacy dictionary format")
	}
	return d, docCount, nil
}
