package postings

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/standardbeagle/mrsdb/internal/bitio"
)

func TestMultiRoundTrip(t *testing.T) {
	docs := []uint32{1, 2, 5, 100, 101, 1000}
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	if err := WriteMulti(w, docs); err != nil {
		t.Fatalf("WriteMulti: %v", err)
	}
	w.Sync()

	r := bitio.NewReader(&buf)
	got, err := ReadMulti(r)
	if err != nil {
		t.Fatalf("ReadMulti: %v", err)
	}
	if !reflect.DeepEqual(got, docs) {
		t.Errorf("got %v, want %v", got, docs)
	}
}

func TestWeightedRoundTrip(t *testing.T) {
	ps := []Posting{{1, 3}, {2, 255}, {10, 1}, {11, 128}}
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	if err := WriteWeighted(w, ps, 255); err != nil {
		t.Fatalf("WriteWeighted: %v", err)
	}
	w.Sync()

	r := bitio.NewReader(&buf)
	got, maxW, err := ReadWeighted(r)
	if err != nil {
		t.Fatalf("ReadWeighted: %v", err)
	}
	if maxW != 255 {
		t.Errorf("maxWeight = %d, want 255", maxW)
	}
	if !reflect.DeepEqual(got, ps) {
		t.Errorf("got %v, want %v", got, ps)
	}
}

func TestIDLRoundTrip(t *testing.T) {
	locs := [][]uint32{{0, 5, 10}, nil, {42}}
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	if err := WriteIDL(w, locs); err != nil {
		t.Fatalf("WriteIDL: %v", err)
	}
	w.Sync()

	r := bitio.NewReader(&buf)
	got, err := ReadIDL(r, len(locs))
	if err != nil {
		t.Fatalf("ReadIDL: %v", err)
	}
	if !reflect.DeepEqual(got, locs) {
		t.Errorf("got %v, want %v", got, locs)
	}
}

func TestBitmapOps(t *testing.T) {
	a := BitmapFromDocs([]uint32{1, 2, 3, 10}, 20)
	b := BitmapFromDocs([]uint32{2, 3, 4}, 20)

	and := a.And(b)
	if !reflect.DeepEqual(and.Docs(), []uint32{2, 3}) {
		t.Errorf("AND = %v", and.Docs())
	}
	or := a.Or(b)
	if !reflect.DeepEqual(or.Docs(), []uint32{1, 2, 3, 4, 10}) {
		t.Errorf("OR = %v", or.Docs())
	}
	not := BitmapFromDocs([]uint32{1}, 3).Not()
	if !reflect.DeepEqual(not.Docs(), []uint32{2, 3}) {
		t.Errorf("NOT = %v", not.Docs())
	}
}
