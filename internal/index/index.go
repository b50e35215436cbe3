// Package index wraps the generic B+-tree of spec.md §4.E with the
// posting-list codecs of §4.F, giving the query executor and batch
// indexer one typed handle per named index: unique (single docNr),
// multi (compressed posting list), weighted (full-text), or
// multi-IDL (posting list + in-document locations).
package index

import (
	"io"
	"os"

	"github.com/standardbeagle/mrsdb/internal/bitio"
	"github.com/standardbeagle/mrsdb/internal/btree"
	"github.com/standardbeagle/mrsdb/internal/pagecache"
	"github.com/standardbeagle/mrsdb/internal/postings"
)

// Kind is the closed index-type enumeration of spec.md §3.
type Kind int

const (
	KindChar Kind = iota
	KindNumber
	KindFloat
	KindCharMulti
	KindNumberMulti
	KindFloatMulti
	KindLink
	KindCharMultiIDL
	KindCharWeighted
)

// Unique reports whether a kind stores a single docNr per key rather
// than a posting list.
func (k Kind) Unique() bool {
	return k == KindChar || k == KindNumber || k == KindFloat
}

// HasIDL reports whether this kind's postings carry in-document
// locations in a sidecar file.
func (k Kind) HasIDL() bool { return k == KindCharMultiIDL }

// Weighted reports whether this kind's postings carry a weight.
func (k Kind) Weighted() bool { return k == KindCharWeighted }

func comparatorFor(k Kind) btree.Comparator {
	switch k {
	case KindNumber, KindNumberMulti:
		return btree.Numeric{}
	case KindFloat, KindFloatMulti:
		return btree.Float{}
	default:
		return btree.Bytewise{}
	}
}

// Index is one named index: a B+-tree of keys to either a bare docNr
// (unique kinds) or a PostingRef pointing into this index's posting
// sidecar file (multi/weighted/IDL kinds).
type Index struct {
	Name string
	Kind Kind

	cache *pagecache.Cache

	uniqueTree   *btree.Tree[uint32]
	postingsTree *btree.Tree[btree.PostingRef]

	postingFile *pagecache.File // appended bit streams (spec.md §4.F)
	idlFile     *pagecache.File // sidecar locations file, IDL kind only

	postingEnd int64
	idlEnd     int64
}

// Create initializes a new, empty index of the given kind. basePath
// is extended with ".index", ".postings", and (for IDL kinds)
// ".idl". A one-byte ".kind" sidecar records the Kind so a later
// facade Open can discover it without an external schema (spec.md §6
// "header page holds {magic, type, ...}" — the generic B+-tree header
// carries no application-level type tag, so the kind tag lives
// alongside it instead).
func Create(cache *pagecache.Cache, basePath string, kind Kind, pageSize int) (*Index, error) {
	ix := &Index{Name: basePath, Kind: kind, cache: cache}

	if err := os.WriteFile(basePath+".kind", []byte{byte(kind)}, 0o644); err != nil {
		return nil, err
	}

	idxFile, err := pagecache.OpenFile(basePath+".index", os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := idxFile.Truncate(int64(pageSize)); err != nil {
		return nil, err
	}
	cmp := comparatorFor(kind)
	if kind.Unique() {
		tree, err := btree.Create[uint32](cache, idxFile, cmp, btree.ModeUnique, btree.Uint32Codec{}, pageSize)
		if err != nil {
			return nil, err
		}
		ix.uniqueTree = tree
		return ix, nil
	}

	tree, err := btree.Create[btree.PostingRef](cache, idxFile, cmp, btree.ModeMulti, btree.PostingRefCodec{}, pageSize)
	if err != nil {
		return nil, err
	}
	ix.postingsTree = tree

	pf, err := pagecache.OpenFile(basePath+".postings", os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	ix.postingFile = pf

	if kind.HasIDL() {
		idlf, err := pagecache.OpenFile(basePath+".idl", os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, err
		}
		ix.idlFile = idlf
	}
	return ix, nil
}

// Peek reads an index's Kind from its ".kind" sidecar without opening
// any of its data files, letting a facade discover how to Open each
// `*.index` file it finds in a databank directory.
func Peek(basePath string) (Kind, error) {
	b, err := os.ReadFile(basePath + ".kind")
	if err != nil {
		return 0, err
	}
	if len(b) != 1 {
		return 0, io.ErrUnexpectedEOF
	}
	return Kind(b[0]), nil
}

// Open reopens an existing index written by a prior Create (and,
// typically, Finish/FinishBatch).
func Open(cache *pagecache.Cache, basePath string, kind Kind, pageSize int) (*Index, error) {
	ix := &Index{Name: basePath, Kind: kind, cache: cache}

	idxFile, err := pagecache.OpenFile(basePath+".index", os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	cmp := comparatorFor(kind)
	if kind.Unique() {
		tree, err := btree.Open[uint32](cache, idxFile, cmp, btree.ModeUnique, btree.Uint32Codec{}, pageSize)
		if err != nil {
			return nil, err
		}
		ix.uniqueTree = tree
		return ix, nil
	}

	tree, err := btree.Open[btree.PostingRef](cache, idxFile, cmp, btree.ModeMulti, btree.PostingRefCodec{}, pageSize)
	if err != nil {
		return nil, err
	}
	ix.postingsTree = tree

	pf, err := pagecache.OpenFile(basePath+".postings", os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	ix.postingFile = pf
	if sz, err := pf.Size(); err == nil {
		ix.postingEnd = sz
	}

	if kind.HasIDL() {
		idlf, err := pagecache.OpenFile(basePath+".idl", os.O_RDWR, 0o644)
		if err != nil {
			return nil, err
		}
		ix.idlFile = idlf
		if sz, err := idlf.Size(); err == nil {
			ix.idlEnd = sz
		}
	}
	return ix, nil
}

// fileAppendWriter is an io.Writer that appends to a pagecache.File,
// bypassing the page cache since posting streams are not page-aligned.
type fileAppendWriter struct {
	f   *pagecache.File
	off *int64
}

func (w *fileAppendWriter) Write(p []byte) (int, error) {
	if err := w.f.WriteAt(p, *w.off); err != nil {
		return 0, err
	}
	*w.off += int64(len(p))
	return len(p), nil
}

// fileSectionReader is an io.Reader that sequentially reads a
// pagecache.File starting at a fixed offset, never requesting bytes
// past limit: pagecache.File.ReadAt is all-or-nothing, so a naive
// wrapper would turn the buffered reader's final, partially-filled
// read at end of file into a hard I/O error instead of a clean EOF.
type fileSectionReader struct {
	f     *pagecache.File
	pos   int64
	limit int64
}

func (r *fileSectionReader) Read(p []byte) (int, error) {
	if r.pos >= r.limit {
		return 0, io.EOF
	}
	n := len(p)
	if int64(n) > r.limit-r.pos {
		n = int(r.limit - r.pos)
	}
	if err := r.f.ReadAt(p[:n], r.pos); err != nil {
		return 0, err
	}
	r.pos += int64(n)
	return n, nil
}

// PutUnique inserts a single docNr under key (KindChar/Number/Float).
func (ix *Index) PutUnique(key []byte, doc uint32) error {
	return ix.uniqueTree.Insert(key, doc)
}

// PutMulti writes a compressed (unweighted) posting list for key and
// inserts the resulting PostingRef (KindCharMulti/NumberMulti/
// FloatMulti/Link).
func (ix *Index) PutMulti(key []byte, docs []uint32) error {
	ref := btree.PostingRef{PostingOffset: uint64(ix.postingEnd)}
	w := bitio.NewWriter(&fileAppendWriter{f: ix.postingFile, off: &ix.postingEnd})
	if err := postings.WriteMulti(w, docs); err != nil {
		return err
	}
	if err := w.Sync(); err != nil {
		return err
	}
	return ix.postingsTree.Insert(key, ref)
}

// PutWeighted writes a weighted posting list for key (KindCharWeighted,
// the synthetic full-text index of spec.md §4.H step "finish").
func (ix *Index) PutWeighted(key []byte, ps []postings.Posting, maxWeight uint32) error {
	ref := btree.PostingRef{PostingOffset: uint64(ix.postingEnd), MaxWeight: maxWeight}
	w := bitio.NewWriter(&fileAppendWriter{f: ix.postingFile, off: &ix.postingEnd})
	if err := postings.WriteWeighted(w, ps, maxWeight); err != nil {
		return err
	}
	if err := w.Sync(); err != nil {
		return err
	}
	return ix.postingsTree.Insert(key, ref)
}

// PutIDL writes a multi posting list plus per-document location lists
// to the IDL sidecar file (KindCharMultiIDL).
func (ix *Index) PutIDL(key []byte, docs []uint32, locations [][]uint32) error {
	ref := btree.PostingRef{PostingOffset: uint64(ix.postingEnd)}
	w := bitio.NewWriter(&fileAppendWriter{f: ix.postingFile, off: &ix.postingEnd})
	if err := postings.WriteMulti(w, docs); err != nil {
		return err
	}
	if err := w.Sync(); err != nil {
		return err
	}
	ref.IDLOffset = uint64(ix.idlEnd)
	iw := bitio.NewWriter(&fileAppendWriter{f: ix.idlFile, off: &ix.idlEnd})
	if err := postings.WriteIDL(iw, locations); err != nil {
		return err
	}
	if err := iw.Sync(); err != nil {
		return err
	}
	return ix.postingsTree.Insert(key, ref)
}

// Docs returns every docNr stored under key, regardless of kind.
func (ix *Index) Docs(key []byte) ([]uint32, error) {
	if ix.Kind.Unique() {
		v, ok, err := ix.uniqueTree.Find(key)
		if err != nil || !ok {
			return nil, err
		}
		return []uint32{v}, nil
	}
	ref, ok, err := ix.postingsTree.Find(key)
	if err != nil || !ok {
		return nil, err
	}
	return ix.docsForRef(ref)
}

// WeightedPostings returns the (docNr, weight) pairs and the per-key
// max weight stored under key (KindCharWeighted only).
func (ix *Index) WeightedPostings(key []byte) ([]postings.Posting, uint32, error) {
	ref, ok, err := ix.postingsTree.Find(key)
	if err != nil || !ok {
		return nil, 0, err
	}
	r := bitio.NewReader(&fileSectionReader{f: ix.postingFile, pos: int64(ref.PostingOffset), limit: ix.postingEnd})
	return postings.ReadWeighted(r)
}

// DocFrequency returns the number of documents carrying key, without
// materializing the posting list (used for idf in ranked search).
func (ix *Index) DocFrequency(key []byte) (int, error) {
	if ix.Kind.Unique() {
		_, ok, err := ix.uniqueTree.Find(key)
		if !ok || err != nil {
			return 0, err
		}
		return 1, nil
	}
	if ix.Kind.Weighted() {
		ps, _, err := ix.WeightedPostings(key)
		return len(ps), err
	}
	docs, err := ix.Docs(key)
	return len(docs), err
}

func (ix *Index) readMultiAt(offset uint64) ([]uint32, error) {
	r := bitio.NewReader(&fileSectionReader{f: ix.postingFile, pos: int64(offset), limit: ix.postingEnd})
	return postings.ReadMulti(r)
}

// docsForRef extracts the bare doc list behind ref, decoding it under
// whichever wire format this index's kind actually wrote (a weighted
// index's posting stream carries a {docCount,maxWeight,firstDoc}
// header, not the plain multi header, so it cannot go through
// readMultiAt).
func (ix *Index) docsForRef(ref btree.PostingRef) ([]uint32, error) {
	if ix.Kind.Weighted() {
		r := bitio.NewReader(&fileSectionReader{f: ix.postingFile, pos: int64(ref.PostingOffset), limit: ix.postingEnd})
		ps, _, err := postings.ReadWeighted(r)
		if err != nil {
			return nil, err
		}
		out := make([]uint32, len(ps))
		for i, p := range ps {
			out[i] = p.Doc
		}
		return out, nil
	}
	return ix.readMultiAt(ref.PostingOffset)
}

// RangeDocs collects every doc in [lo,hi] for ordered (non-unique or
// unique) kinds (spec.md §4.I "field:lo..hi").
func (ix *Index) RangeDocs(lo, hi []byte) ([]uint32, error) {
	var out []uint32
	var rangeErr error
	emit := func(add []uint32) {
		out = append(out, add...)
	}
	if ix.Kind.Unique() {
		err := ix.uniqueTree.FindRange(lo, hi, func(v uint32) { emit([]uint32{v}) })
		return out, err
	}
	err := ix.postingsTree.FindRange(lo, hi, func(ref btree.PostingRef) {
		docs, err := ix.docsForRef(ref)
		if err != nil {
			rangeErr = err
			return
		}
		emit(docs)
	})
	if err != nil {
		return out, err
	}
	return out, rangeErr
}

// PatternDocs collects every doc whose key matches the glob pattern
// (spec.md §4.I "field:pat*").
func (ix *Index) PatternDocs(pattern string) ([]uint32, error) {
	var out []uint32
	var patErr error
	if ix.Kind.Unique() {
		err := ix.uniqueTree.FindPattern(pattern, func(v uint32) { out = append(out, v) })
		return out, err
	}
	err := ix.postingsTree.FindPattern(pattern, func(ref btree.PostingRef) {
		docs, err := ix.docsForRef(ref)
		if err != nil {
			patErr = err
			return
		}
		out = append(out, docs...)
	})
	if err != nil {
		return out, err
	}
	return out, patErr
}

// FindOp evaluates a single-key comparator predicate (spec.md §4.E
// "find(key, op, bitmap, &count)").
func (ix *Index) FindOp(key []byte, op btree.Op) ([]uint32, error) {
	var out []uint32
	var opErr error
	if ix.Kind.Unique() {
		err := ix.uniqueTree.FindOp(key, op, func(v uint32) { out = append(out, v) })
		return out, err
	}
	err := ix.postingsTree.FindOp(key, op, func(ref btree.PostingRef) {
		docs, err := ix.docsForRef(ref)
		if err != nil {
			opErr = err
			return
		}
		out = append(out, docs...)
	})
	if err != nil {
		return out, err
	}
	return out, opErr
}

// VisitWeightedPostings streams every (term, postings, maxWeight)
// triple in key order (KindCharWeighted only), used to recompute the
// document weight vector after a batch finish (spec.md §4.I "Document
// weights").
func (ix *Index) VisitWeightedPostings(fn func(key []byte, ps []postings.Posting, maxWeight uint32) error) error {
	var visitErr error
	err := ix.postingsTree.VisitAll(func(key []byte, ref btree.PostingRef) bool {
		r := bitio.NewReader(&fileSectionReader{f: ix.postingFile, pos: int64(ref.PostingOffset), limit: ix.postingEnd})
		ps, maxWeight, err := postings.ReadWeighted(r)
		if err != nil {
			visitErr = err
			return false
		}
		if err := fn(key, ps, maxWeight); err != nil {
			visitErr = err
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return visitErr
}

// VisitKeys streams every distinct key with its posting count (the
// number of documents in its posting list; 1 for unique kinds), used by
// the spell DAFSA builder over the full-text weighted index.
func (ix *Index) VisitKeys(fn func(key []byte, count int)) error {
	if ix.Kind.Unique() {
		return ix.uniqueTree.VisitKeys(fn)
	}
	var visitErr error
	err := ix.postingsTree.VisitAll(func(key []byte, ref btree.PostingRef) bool {
		docs, err := ix.docsForRef(ref)
		if err != nil {
			visitErr = err
			return false
		}
		fn(key, len(docs))
		return true
	})
	if err != nil {
		return err
	}
	return visitErr
}

// StartBatch/Append/FinishBatch expose the underlying tree's bulk-load
// path for the batch indexer (spec.md §4.H step 4 "finish_batch_mode").

func (ix *Index) StartBatch() {
	if ix.Kind.Unique() {
		ix.uniqueTree.StartBatch()
	} else {
		ix.postingsTree.StartBatch()
	}
}

func (ix *Index) AppendUnique(key []byte, doc uint32) error {
	return ix.uniqueTree.Append(key, doc)
}

// AppendMulti writes docs's posting list and batch-appends the
// resulting leaf entry; the batch-mode value stream must itself arrive
// in ascending key order (spec.md §4.H "drain each typed value run
// merger ... insert(value, docs)").
func (ix *Index) AppendMulti(key []byte, docs []uint32) error {
	ref := btree.PostingRef{PostingOffset: uint64(ix.postingEnd)}
	w := bitio.NewWriter(&fileAppendWriter{f: ix.postingFile, off: &ix.postingEnd})
	if err := postings.WriteMulti(w, docs); err != nil {
		return err
	}
	if err := w.Sync(); err != nil {
		return err
	}
	return ix.postingsTree.Append(key, ref)
}

// AppendWeighted is AppendMulti's weighted counterpart for the
// synthetic full-text index built during finish().
func (ix *Index) AppendWeighted(key []byte, ps []postings.Posting, maxWeight uint32) error {
	ref := btree.PostingRef{PostingOffset: uint64(ix.postingEnd), MaxWeight: maxWeight}
	w := bitio.NewWriter(&fileAppendWriter{f: ix.postingFile, off: &ix.postingEnd})
	if err := postings.WriteWeighted(w, ps, maxWeight); err != nil {
		return err
	}
	if err := w.Sync(); err != nil {
		return err
	}
	return ix.postingsTree.Append(key, ref)
}

// AppendIDL is PutIDL's batch-mode counterpart, used by per-field
// writers that track in-document locations (KindCharMultiIDL).
func (ix *Index) AppendIDL(key []byte, docs []uint32, locations [][]uint32) error {
	ref := btree.PostingRef{PostingOffset: uint64(ix.postingEnd)}
	w := bitio.NewWriter(&fileAppendWriter{f: ix.postingFile, off: &ix.postingEnd})
	if err := postings.WriteMulti(w, docs); err != nil {
		return err
	}
	if err := w.Sync(); err != nil {
		return err
	}
	ref.IDLOffset = uint64(ix.idlEnd)
	iw := bitio.NewWriter(&fileAppendWriter{f: ix.idlFile, off: &ix.idlEnd})
	if err := postings.WriteIDL(iw, locations); err != nil {
		return err
	}
	if err := iw.Sync(); err != nil {
		return err
	}
	return ix.postingsTree.Append(key, ref)
}

func (ix *Index) FinishBatch() error {
	if ix.Kind.Unique() {
		return ix.uniqueTree.FinishBatch()
	}
	return ix.postingsTree.FinishBatch()
}

func (ix *Index) Vacuum() error {
	if ix.Kind.Unique() {
		return ix.uniqueTree.Vacuum()
	}
	return ix.postingsTree.Vacuum()
}

// Close releases the index's sidecar file handles (the tree's own
// index file stays registered with the shared cache until the cache
// itself is closed/purged).
func (ix *Index) Close() error {
	var firstErr error
	if ix.postingFile != nil {
		if err := ix.postingFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if ix.idlFile != nil {
		if err := ix.idlFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ io.Writer = (*fileAppendWriter)(nil)
var _ io.Reader = (*fileSectionReader)(nil)
