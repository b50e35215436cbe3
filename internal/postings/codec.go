// Package postings implements the bit-packed posting-list codecs of
// spec.md §4.F: multi, weighted, and in-document-location (IDL) lists,
// all addressed by byte offset into an index file's posting region, plus
// a materialized bitmap for range/pattern/boolean set operations.
package postings

import (
	"github.com/standardbeagle/mrsdb/internal/bitio"
)

// Posting is (docNr, weight) — spec.md §3.
type Posting struct {
	Doc    uint32
	Weight uint32
}

// MaxAggregateWeight is the saturation ceiling for the full-text
// writer's running term-frequency aggregator across non-excluded
// fields (spec.md §4.H "saturate aggregation at u8::MAX").
const MaxAggregateWeight = 255

// WriteMulti encodes a sorted, duplicate-free doc list as a
// {docCount, firstDoc} header followed by gamma-coded doc deltas.
func WriteMulti(w *bitio.Writer, docs []uint32) error {
	if err := w.WriteBits(uint32(len(docs)), 32); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	if err := w.WriteBits(docs[0], 32); err != nil {
		return err
	}
	prev := docs[0]
	for _, d := range docs[1:] {
		if err := w.WriteGamma(d - prev); err != nil {
			return err
		}
		prev = d
	}
	return nil
}

// ReadMulti decodes a list previously written by WriteMulti.
func ReadMulti(r *bitio.Reader) ([]uint32, error) {
	n, err := r.ReadBits(32)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]uint32, n)
	first, err := r.ReadBits(32)
	if err != nil {
		return nil, err
	}
	out[0] = first
	prev := first
	for i := uint32(1); i < n; i++ {
		delta, err := r.ReadGamma()
		if err != nil {
			return nil, err
		}
		prev += delta
		out[i] = prev
	}
	return out, nil
}

// bitsFor returns ceil(log2(maxWeight)), with a floor of 1 bit so a
// maxWeight of 1 still encodes.
func bitsFor(maxWeight uint32) uint {
	if maxWeight <= 1 {
		return 1
	}
	var bits uint
	for v := maxWeight - 1; v > 0; v >>= 1 {
		bits++
	}
	return bits
}

// WriteWeighted encodes postings (already sorted by doc number — ranked
// search walks these in doc order, see spec.md §4.I) as
// {docCount, maxWeight, firstDoc} then (gamma doc-delta, fixed-width weight).
func WriteWeighted(w *bitio.Writer, ps []Posting, maxWeight uint32) error {
	if err := w.WriteBits(uint32(len(ps)), 32); err != nil {
		return err
	}
	if err := w.WriteBits(maxWeight, 32); err != nil {
		return err
	}
	if len(ps) == 0 {
		return nil
	}
	bits := bitsFor(maxWeight)
	if err := w.WriteBits(ps[0].Doc, 32); err != nil {
		return err
	}
	if err := w.WriteBits(ps[0].Weight, bits); err != nil {
		return err
	}
	prev := ps[0].Doc
	for _, p := range ps[1:] {
		if err := w.WriteGamma(p.Doc - prev); err != nil {
			return err
		}
		if err := w.WriteBits(p.Weight, bits); err != nil {
			return err
		}
		prev = p.Doc
	}
	return nil
}

// ReadWeighted decodes a list previously written by WriteWeighted,
// returning the postings in doc order and the stored maxWeight.
func ReadWeighted(r *bitio.Reader) ([]Posting, uint32, error) {
	n, err := r.ReadBits(32)
	if err != nil {
		return nil, 0, err
	}
	maxWeight, err := r.ReadBits(32)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, maxWeight, nil
	}
	bits := bitsFor(maxWeight)
	out := make([]Posting, n)
	doc, err := r.ReadBits(32)
	if err != nil {
		return nil, 0, err
	}
	weight, err := r.ReadBits(bits)
	if err != nil {
		return nil, 0, err
	}
	out[0] = Posting{Doc: doc, Weight: weight}
	prev := doc
	for i := uint32(1); i < n; i++ {
		delta, err := r.ReadGamma()
		if err != nil {
			return nil, 0, err
		}
		prev += delta
		w, err := r.ReadBits(bits)
		if err != nil {
			return nil, 0, err
		}
		out[i] = Posting{Doc: prev, Weight: w}
	}
	return out, maxWeight, nil
}

// WriteIDL encodes, for each doc in the same order as the paired multi
// list, (gamma count, gamma location-deltas) into the sidecar IDL stream
// (spec.md §4.F "IDL-multi").
func WriteIDL(w *bitio.Writer, locations [][]uint32) error {
	for _, locs := range locations {
		if err := w.WriteGamma(uint32(len(locs)) + 1); err != nil {
			return err
		}
		var prev uint32
		for i, loc := range locs {
			if i == 0 {
				if err := w.WriteGamma(loc + 1); err != nil {
					return err
				}
			} else if err := w.WriteGamma(loc - prev); err != nil {
				return err
			}
			prev = loc
		}
	}
	return nil
}

// ReadIDL decodes docCount per-document location lists written by WriteIDL.
// Counts and the first location are stored +1 so a zero-length or
// zero-valued location still round-trips through a gamma code (which
// requires n>=1).
func ReadIDL(r *bitio.Reader, docCount int) ([][]uint32, error) {
	out := make([][]uint32, docCount)
	for d := 0; d < docCount; d++ {
		countPlus1, err := r.ReadGamma()
		if err != nil {
			return nil, err
		}
		count := countPlus1 - 1
		if count == 0 {
			continue
		}
		locs := make([]uint32, count)
		var prev uint32
		for i := uint32(0); i < count; i++ {
			v, err := r.ReadGamma()
			if err != nil {
				return nil, err
			}
			if i == 0 {
				locs[i] = v - 1
			} else {
				locs[i] = prev + v
			}
			prev = locs[i]
		}
		out[d] = locs
	}
	return out, nil
}
