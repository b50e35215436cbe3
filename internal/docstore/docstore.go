// Package docstore implements the variable-length compressed document
// store of spec.md §4.D: chained data pages holding packed
// (docNr, length, bytes) runs, indexed by docNr through a B+-tree over
// big-endian-encoded u32 keys so byte order matches numeric order.
package docstore

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/standardbeagle/mrsdb/internal/btree"
	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
	"github.com/standardbeagle/mrsdb/internal/pagecache"
)

var errTooManyAttrs = fmt.Errorf("docstore: attribute count exceeds %d", maxAttrs)

const (
	magic           = 0x6d366473 // ASCII "m6ds"
	version         = 1
	headerPageSize  = 4096
	dataPageMinFree = 64 // allocate a new page once free space drops below this
	maxAttrs        = 255
	maxAttrValue    = 255
)

// Ref is the docstore index payload: the page holding the document's
// first fragment and its total compressed length (spec.md §3 invariant
// "for every docNr d there exists exactly one (page,size) pair").
type Ref struct {
	Page uint32
	Size uint32
}

type refCodec struct{}

func (refCodec) Size() int { return 8 }
func (refCodec) Encode(r Ref) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], r.Page)
	binary.BigEndian.PutUint32(b[4:8], r.Size)
	return b
}
func (refCodec) Decode(b []byte) Ref {
	return Ref{Page: binary.BigEndian.Uint32(b[0:4]), Size: binary.BigEndian.Uint32(b[4:8])}
}

func docKey(docNr uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, docNr)
	return b
}

// Attribute is a name/value pair attached to a document (spec.md §3,
// names ≤255 bytes, values ≤255 bytes, ≤255 attributes per document).
type Attribute struct {
	Name  string
	Value string
}

// Document is the decoded payload returned by Fetch.
type Document struct {
	DocNr      uint32
	Attributes []Attribute
	Links      map[string][]string
	Text       []byte
}

// Store is the paged document store. Page 0 of the data file is its
// header page, mirroring the convention the index B+-tree uses for its
// own file (spec.md §4.D header fields).
type Store struct {
	cache *pagecache.Cache
	file  *pagecache.File

	pageSize int
	index    *btree.Tree[Ref]
	idxFile  *pagecache.File

	docCount      uint32
	nextDocNr     uint32
	firstDataPage uint32
	lastDataPage  uint32
	attrNames     []string
	attrIDs       map[string]uint8
}

// Create initializes a new, empty document store backed by dataPath
// (document pages) and indexPath (the docNr->ref B+-tree).
func Create(cache *pagecache.Cache, dataPath, indexPath string, pageSize int) (*Store, error) {
	f, err := pagecache.OpenFile(dataPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(pageSize)); err != nil {
		return nil, err
	}
	cache.Register(f)

	idxFile, err := pagecache.OpenFile(indexPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := idxFile.Truncate(int64(pageSize)); err != nil {
		return nil, err
	}
	idx, err := btree.Create[Ref](cache, idxFile, btree.Bytewise{}, btree.ModeUnique, refCodec{}, pageSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		cache:     cache,
		file:      f,
		pageSize:  pageSize,
		index:     idx,
		idxFile:   idxFile,
		nextDocNr: 1,
		attrIDs:   make(map[string]uint8),
	}
	if err := s.writeHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open reopens an existing document store written by a prior Create, for
// the read-only query path (spec.md §4.D "a reader opens the databank
// without re-running the indexer").
func Open(cache *pagecache.Cache, dataPath, indexPath string, pageSize int) (*Store, error) {
	f, err := pagecache.OpenFile(dataPath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	cache.Register(f)

	idxFile, err := pagecache.OpenFile(indexPath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	idx, err := btree.Open[Ref](cache, idxFile, btree.Bytewise{}, btree.ModeUnique, refCodec{}, pageSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		cache:    cache,
		file:     f,
		pageSize: pageSize,
		index:    idx,
		idxFile:  idxFile,
		attrIDs:  make(map[string]uint8),
	}
	if err := s.readHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

const headerAttrTableSize = 1 << 13 // room for up to 255 attribute names within page 0

func (s *Store) writeHeader() error {
	h, err := s.cache.Load(s.file, 0)
	if err != nil {
		return err
	}
	buf := h.Bytes()
	binary.BigEndian.PutUint32(buf[0:4], magic)
	binary.BigEndian.PutUint32(buf[4:8], version)
	binary.BigEndian.PutUint32(buf[8:12], s.docCount)
	binary.BigEndian.PutUint32(buf[12:16], s.nextDocNr)
	binary.BigEndian.PutUint32(buf[16:20], s.firstDataPage)
	binary.BigEndian.PutUint32(buf[20:24], s.lastDataPage)
	binary.BigEndian.PutUint16(buf[24:26], uint16(len(s.attrNames)))
	off := 26
	for _, name := range s.attrNames {
		buf[off] = byte(len(name))
		off++
		copy(buf[off:], name)
		off += len(name)
	}
	binary.BigEndian.PutUint16(buf[s.pageSize-2:], 0) // page 0 carries no document runs
	s.cache.Release(h, true)
	return nil
}

func (s *Store) readHeader() error {
	h, err := s.cache.Load(s.file, 0)
	if err != nil {
		return err
	}
	defer s.cache.Release(h, false)
	buf := h.Bytes()
	if binary.BigEndian.Uint32(buf[0:4]) != magic {
		return mrserrors.NewCorruptError("docstore.Open", nil).WithContext("path", s.file.Path())
	}
	s.docCount = binary.BigEndian.Uint32(buf[8:12])
	s.nextDocNr = binary.BigEndian.Uint32(buf[12:16])
	s.firstDataPage = binary.BigEndian.Uint32(buf[16:20])
	s.lastDataPage = binary.BigEndian.Uint32(buf[20:24])
	n := int(binary.BigEndian.Uint16(buf[24:26]))
	off := 26
	for i := 0; i < n; i++ {
		l := int(buf[off])
		off++
		name := string(buf[off : off+l])
		off += l
		s.attrNames = append(s.attrNames, name)
		s.attrIDs[name] = uint8(i + 1)
	}
	return nil
}

// Flush persists the header and hands off to the cache to write back any
// dirty data/index pages.
func (s *Store) Flush() error {
	if err := s.writeHeader(); err != nil {
		return err
	}
	if err := s.cache.Flush(s.file); err != nil {
		return err
	}
	if err := s.cache.Flush(s.idxFile); err != nil {
		return err
	}
	return nil
}

// RegisterAttribute assigns (or reuses) the small integer attribute
// number used in the on-disk attribute table.
func (s *Store) RegisterAttribute(name string) (uint8, error) {
	if id, ok := s.attrIDs[name]; ok {
		return id, nil
	}
	if len(s.attrNames) >= maxAttrs {
		return 0, mrserrors.NewOverflowError("docstore.RegisterAttribute", errTooManyAttrs)
	}
	id := uint8(len(s.attrNames) + 1) // 0 is the terminator sentinel
	s.attrNames = append(s.attrNames, name)
	s.attrIDs[name] = id
	return id, nil
}

func (s *Store) AttributeName(id uint8) string {
	if id == 0 || int(id) > len(s.attrNames) {
		return ""
	}
	return s.attrNames[id-1]
}

// NextDocumentNumber returns and consumes the next dense docNr.
func (s *Store) NextDocumentNumber() uint32 {
	d := s.nextDocNr
	s.nextDocNr++
	return d
}

func (s *Store) MaxDocNr() uint32 { return s.nextDocNr - 1 }
func (s *Store) Size() uint32     { return s.docCount }

// EraseDocument is declared for API parity with the original store but
// deletion support was dropped from this engine: there is no tombstone
// or compaction path, and removing a docNr from a dense, page-linked
// store without one would corrupt every index built against it.
func (s *Store) EraseDocument(docNr uint32) error {
	return mrserrors.NewUnsupportedError("docstore.EraseDocument")
}

// encodePayload builds the pre-compression byte stream: attribute table,
// zero terminator, optional links block, then raw text
// (spec.md §4.D "Storing a document" step 1).
func encodePayload(attrs []Attribute, attrID func(name string) (uint8, error), links map[string][]string, text []byte) ([]byte, error) {
	var buf bytes.Buffer
	for _, a := range attrs {
		if len(a.Value) > maxAttrValue {
			a.Value = a.Value[:maxAttrValue]
		}
		id, err := attrID(a.Name)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(id)
		buf.WriteByte(byte(len(a.Value)))
		buf.WriteString(a.Value)
	}
	buf.WriteByte(0) // attribute table terminator

	if len(links) > 0 {
		buf.WriteString("[[\n")
		for db, ids := range links {
			buf.WriteString(db)
			buf.WriteByte('\t')
			for i, id := range ids {
				if i > 0 {
					buf.WriteByte(';')
				}
				buf.WriteString(id)
			}
			buf.WriteByte('\n')
		}
		buf.WriteString("]]\n")
	}
	buf.Write(text)
	return buf.Bytes(), nil
}

// Store compresses the document payload and appends it to the data page
// chain, then inserts (docNr -> firstFragmentPage, length) into the
// index (spec.md §4.D "Storing a document").
func (s *Store) Store(docNr uint32, attrs []Attribute, links map[string][]string, text []byte) error {
	raw, err := encodePayload(attrs, s.RegisterAttribute, links, text)
	if err != nil {
		return err
	}
	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		return mrserrors.NewIOError("docstore.Store: flate.NewWriter", err)
	}
	if _, err := fw.Write(raw); err != nil {
		return mrserrors.NewIOError("docstore.Store: compress", err)
	}
	if err := fw.Close(); err != nil {
		return mrserrors.NewIOError("docstore.Store: compress close", err)
	}

	firstPage, err := s.appendFragments(docNr, compressed.Bytes())
	if err != nil {
		return err
	}

	if err := s.index.Insert(docKey(docNr), Ref{Page: firstPage, Size: uint32(compressed.Len())}); err != nil {
		return err
	}
	s.docCount++
	if docNr >= s.nextDocNr {
		s.nextDocNr = docNr + 1
	}
	return s.writeHeader()
}

func (s *Store) readPage(page uint32) (pagecache.Handle, []byte, error) {
	h, err := s.cache.Load(s.file, int64(page)*int64(s.pageSize))
	if err != nil {
		return pagecache.Handle{}, nil, err
	}
	return h, h.Bytes(), nil
}

// pageRunHeaderSize is the docNr(4)+length(2) run header; pageLinkSize
// is the trailing link(4) every data page carries.
const pageRunHeaderSize = 4 + 2
const pageLinkSize = 4

func (s *Store) ensureLastPage() (uint32, error) {
	if s.lastDataPage != 0 {
		return s.lastDataPage, nil
	}
	page, err := s.allocDataPage()
	if err != nil {
		return 0, err
	}
	s.firstDataPage = page
	s.lastDataPage = page
	return page, nil
}

func (s *Store) allocDataPage() (uint32, error) {
	size, err := s.file.Size()
	if err != nil {
		return 0, err
	}
	page := uint32(size / int64(s.pageSize))
	if err := s.file.Truncate(size + int64(s.pageSize)); err != nil {
		return 0, err
	}
	return page, nil
}

// appendFragments walks lastDataPage forward writing (docNr,len,bytes)
// runs, allocating a new linked page whenever free space drops below
// dataPageMinFree (spec.md §4.D step 2). Returns the page of the first
// fragment written for this call.
func (s *Store) appendFragments(docNr uint32, data []byte) (uint32, error) {
	page, err := s.ensureLastPage()
	if err != nil {
		return 0, err
	}
	firstPage := page
	firstWrite := true
	remaining := data

	for len(remaining) > 0 || firstWrite {
		h, buf, err := s.readPage(page)
		if err != nil {
			return 0, err
		}
		used := int(binary.BigEndian.Uint16(buf[s.pageSize-2:]))
		free := s.pageSize - pageLinkSize - 2 - used
		if free < dataPageMinFree && len(remaining) > 0 {
			s.cache.Release(h, false)
			next, err := s.allocDataPage()
			if err != nil {
				return 0, err
			}
			nh, nbuf, err := s.readPage(page)
			if err != nil {
				return 0, err
			}
			binary.BigEndian.PutUint32(nbuf[s.pageSize-pageLinkSize-2:s.pageSize-2], next)
			s.cache.Release(nh, true)
			s.lastDataPage = next
			page = next
			continue
		}

		chunk := free - pageRunHeaderSize
		if chunk > len(remaining) {
			chunk = len(remaining)
		}
		if chunk < 0 {
			chunk = 0
		}
		if firstWrite {
			firstPage = page
		}
		off := used
		binary.BigEndian.PutUint32(buf[off:off+4], docNr)
		binary.BigEndian.PutUint16(buf[off+4:off+6], uint16(chunk))
		copy(buf[off+6:off+6+chunk], remaining[:chunk])
		binary.BigEndian.PutUint16(buf[s.pageSize-2:], uint16(used+pageRunHeaderSize+chunk))
		s.cache.Release(h, true)

		remaining = remaining[chunk:]
		firstWrite = false
		if len(remaining) == 0 {
			break
		}
	}
	return firstPage, nil
}

// Fetch decompresses and decodes the document stored under docNr.
func (s *Store) Fetch(docNr uint32) (*Document, bool, error) {
	ref, ok, err := s.index.Find(docKey(docNr))
	if err != nil || !ok {
		return nil, ok, err
	}
	raw, err := s.readFragments(docNr, ref)
	if err != nil {
		return nil, false, err
	}
	fr := flate.NewReader(bytes.NewReader(raw))
	defer fr.Close()
	decoded, err := io.ReadAll(fr)
	if err != nil {
		return nil, false, mrserrors.NewCorruptError("docstore.Fetch: inflate", err)
	}
	return decodeDocument(docNr, decoded, s.AttributeName)
}

// readFragments walks the page chain starting at ref.Page, collecting
// exactly ref.Size bytes belonging to docNr (a page may hold runs
// belonging to other documents interleaved before/after).
func (s *Store) readFragments(docNr uint32, ref Ref) ([]byte, error) {
	out := make([]byte, 0, ref.Size)
	page := ref.Page
	for uint32(len(out)) < ref.Size && page != 0 {
		h, buf, err := s.readPage(page)
		if err != nil {
			return nil, err
		}
		used := int(binary.BigEndian.Uint16(buf[s.pageSize-2:]))
		off := 0
		for off < used {
			d := binary.BigEndian.Uint32(buf[off : off+4])
			l := int(binary.BigEndian.Uint16(buf[off+4 : off+6]))
			off += 6
			if d == docNr {
				out = append(out, buf[off:off+l]...)
			}
			off += l
		}
		page = binary.BigEndian.Uint32(buf[s.pageSize-pageLinkSize-2 : s.pageSize-2])
		s.cache.Release(h, false)
	}
	return out, nil
}
