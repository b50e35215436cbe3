// Package databank implements the facade of spec.md §4.K: the single
// owning handle over a directory holding a document store, a family
// of named indices, the synthetic full-text weighted index, the
// document-weight vector, the spell-correction dictionary, and an
// optional set of cross-databank link indices.
package databank

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/standardbeagle/mrsdb/internal/config"
	"github.com/standardbeagle/mrsdb/internal/docstore"
	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
	"github.com/standardbeagle/mrsdb/internal/index"
	"github.com/standardbeagle/mrsdb/internal/indexer"
	"github.com/standardbeagle/mrsdb/internal/lexicon"
	"github.com/standardbeagle/mrsdb/internal/pagecache"
	"github.com/standardbeagle/mrsdb/internal/spell"
)

const (
	fullTextName = "full-text"
	linksDir     = "links"
)

// Databank is the open handle over one databank directory (spec.md
// §4.K). A Databank is either in batch mode (between StartBatch and
// FinishBatch, with a live lexicon and indexer) or query mode (ready
// for Query/Fetch), never both.
type Databank struct {
	dir     string
	uuid    string
	version string
	cfg     *config.Config

	cache *pagecache.Cache
	store *docstore.Store

	fullText *index.Index
	fields   []*Field
	byName   map[string]*Field

	docWeights []float64
	dict       *spell.DAFSA

	lexicon      *lexicon.Lexicon
	batchIndexer *indexer.Indexer
	storeCh      chan indexer.InputDocument
	storeDone    chan struct{}
	storeErr     chan error
	fastaFile    *os.File
}

// Create deletes any prior directory at dir, then lays out a fresh,
// empty databank ready for StartBatch (spec.md §4.K "A new databank
// creation deletes any prior directory, creates uuid, version.txt,
// optional index-names.txt, and empty data store").
func Create(dir string, fields []FieldDef, cfg *config.Config) (*Databank, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, mrserrors.NewIOError("databank.Create", err).WithContext("dir", dir)
	}
	if err := os.MkdirAll(filepath.Join(dir, linksDir), 0o755); err != nil {
		return nil, mrserrors.NewIOError("databank.Create", err).WithContext("dir", dir)
	}

	id := uuid.New().String()
	if err := os.WriteFile(filepath.Join(dir, "uuid"), []byte(id+"\n"), 0o644); err != nil {
		return nil, mrserrors.NewIOError("databank.Create", err)
	}
	version := time.Now().UTC().Format("2006-01-02")
	if err := os.WriteFile(filepath.Join(dir, "version.txt"), []byte(version+"\n"), 0o644); err != nil {
		return nil, mrserrors.NewIOError("databank.Create", err)
	}

	cache := pagecache.New(cfg.Cache.CapacityPages, cfg.Storage.PageSize)
	store, err := docstore.Create(cache, filepath.Join(dir, "data"), filepath.Join(dir, "data.index"), cfg.Storage.PageSize)
	if err != nil {
		return nil, err
	}
	fullText, err := index.Create(cache, filepath.Join(dir, fullTextName), index.KindCharWeighted, cfg.Storage.PageSize)
	if err != nil {
		return nil, err
	}

	db := &Databank{
		dir:      dir,
		uuid:     id,
		version:  version,
		cfg:      cfg,
		cache:    cache,
		store:    store,
		fullText: fullText,
		byName:   make(map[string]*Field),
	}

	for _, def := range fields {
		ix, err := index.Create(cache, db.basePathFor(def), def.IndexKind, cfg.Storage.PageSize)
		if err != nil {
			return nil, err
		}
		f := &Field{Def: def, Index: ix}
		db.fields = append(db.fields, f)
		db.byName[def.Name] = f
	}

	if err := db.writeIndexNames(); err != nil {
		return nil, err
	}
	return db, nil
}

// basePathFor returns the on-disk base path (without extension) for a
// field's index: link fields live under links/ with their target
// databank name percent-encoded (spec.md §6 "db-name percent-encoded
// with '/'->\"%2F\""); every other field lives directly in dir.
func (db *Databank) basePathFor(def FieldDef) string {
	if def.Collect == indexer.FieldLink {
		return filepath.Join(db.dir, linksDir, encodeDBName(def.Name))
	}
	return filepath.Join(db.dir, def.Name)
}

func encodeDBName(name string) string { return strings.ReplaceAll(name, "/", "%2F") }
func decodeDBName(name string) string { return strings.ReplaceAll(name, "%2F", "/") }

// writeIndexNames persists D/index-names.txt: one tab-separated
// name<TAB>description line per non-link field (spec.md §6). Link
// indices are named after the databanks they reference, not given a
// human description, so they're left out of this file.
func (db *Databank) writeIndexNames() error {
	var b strings.Builder
	for _, f := range db.fields {
		if f.Def.Collect == indexer.FieldLink {
			continue
		}
		fmt.Fprintf(&b, "%s\t%s\n", f.Def.Name, f.Def.Description)
	}
	path := filepath.Join(db.dir, "index-names.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return mrserrors.NewIOError("databank.writeIndexNames", err)
	}
	return nil
}

func readIndexNames(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, mrserrors.NewIOError("databank.readIndexNames", err)
	}
	names := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		names[parts[0]] = parts[1]
	}
	return names, nil
}

// Open reopens an existing databank directory for querying: discovers
// every "*.index" file (skipping full-text.index, explicitly reopened
// as weighted, and the document store's own data.index), recovers each one's Kind from its ".kind" sidecar, and
// loads the weights file and dictionary if present (spec.md §4.K
// "open(path, mode) discovers all *.index files ... and mmaps/lockMem
// the weights file if present").
func Open(dir string, cfg *config.Config) (*Databank, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	idBytes, err := os.ReadFile(filepath.Join(dir, "uuid"))
	if err != nil {
		return nil, mrserrors.NewIOError("databank.Open", err).WithContext("dir", dir)
	}
	versionBytes, err := os.ReadFile(filepath.Join(dir, "version.txt"))
	if err != nil {
		return nil, mrserrors.NewIOError("databank.Open", err).WithContext("dir", dir)
	}
	names, err := readIndexNames(filepath.Join(dir, "index-names.txt"))
	if err != nil {
		return nil, err
	}

	cache := pagecache.New(cfg.Cache.CapacityPages, cfg.Storage.PageSize)
	store, err := docstore.Open(cache, filepath.Join(dir, "data"), filepath.Join(dir, "data.index"), cfg.Storage.PageSize)
	if err != nil {
		return nil, err
	}
	fullText, err := index.Open(cache, filepath.Join(dir, fullTextName), index.KindCharWeighted, cfg.Storage.PageSize)
	if err != nil {
		return nil, err
	}

	db := &Databank{
		dir:      dir,
		uuid:     strings.TrimSpace(string(idBytes)),
		version:  strings.TrimSpace(string(versionBytes)),
		cfg:      cfg,
		cache:    cache,
		store:    store,
		fullText: fullText,
		byName:   make(map[string]*Field),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, mrserrors.NewIOError("databank.Open", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".index") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".index")
		if base == fullTextName || base == "data" {
			continue
		}
		if err := db.openField(base, names[base], false); err != nil {
			return nil, err
		}
	}

	linkEntries, err := os.ReadDir(filepath.Join(dir, linksDir))
	if err == nil {
		for _, e := range linkEntries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".index") {
				continue
			}
			base := strings.TrimSuffix(e.Name(), ".index")
			if err := db.openField(filepath.Join(linksDir, base), "", true); err != nil {
				return nil, err
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, mrserrors.NewIOError("databank.Open", err)
	}

	weights, err := ReadWeights(filepath.Join(dir, "full-text.weights"))
	if err != nil {
		return nil, err
	}
	db.docWeights = weights

	if f, err := os.Open(filepath.Join(dir, "full-text.dict")); err == nil {
		dict, _, err := spell.ReadDict(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		db.dict = dict
	} else if !os.IsNotExist(err) {
		return nil, mrserrors.NewIOError("databank.Open", err)
	}

	return db, nil
}

// openField discovers and opens one index file rooted at dir/relBase
// (relBase may include the "links/" prefix), recovering its Kind via
// index.Peek and registering it under its bare field name.
func (db *Databank) openField(relBase, description string, isLink bool) error {
	base := filepath.Join(db.dir, relBase)
	kind, err := index.Peek(base)
	if err != nil {
		return mrserrors.NewIOError("databank.openField", err).WithContext("path", base)
	}
	ix, err := index.Open(db.cache, base, kind, db.cfg.Storage.PageSize)
	if err != nil {
		return err
	}
	name := filepath.Base(relBase)
	collect := indexer.FieldValueUnique
	switch {
	case isLink:
		name = decodeDBName(name)
		collect = indexer.FieldLink
	case kind == index.KindCharMulti, kind == index.KindCharMultiIDL:
		collect = indexer.FieldToken
	case kind == index.KindNumberMulti, kind == index.KindFloatMulti:
		collect = indexer.FieldValueMulti
	}
	f := &Field{Def: FieldDef{Name: name, Description: description, IndexKind: kind, Collect: collect}, Index: ix}
	db.fields = append(db.fields, f)
	db.byName[name] = f
	return nil
}

// FieldInfo summarizes one registered field for GetInfo.
type FieldInfo struct {
	Name        string
	Description string
	Kind        index.Kind
}

// Info is the read-only summary of a databank's identity and schema
// (spec.md §4.K's facade state, minus the live index handles).
type Info struct {
	UUID     string
	Version  string
	Fields   []FieldInfo
	DocCount uint32
	MaxDocNr uint32
}

func (db *Databank) GetInfo() Info {
	info := Info{UUID: db.uuid, Version: db.version, DocCount: db.store.Size(), MaxDocNr: db.store.MaxDocNr()}
	for _, f := range db.fields {
		info.Fields = append(info.Fields, FieldInfo{Name: f.Def.Name, Description: f.Def.Description, Kind: f.Def.IndexKind})
	}
	return info
}

// Fetch retrieves and decompresses document docNr (spec.md §4.D).
func (db *Databank) Fetch(docNr uint32) (*docstore.Document, bool, error) {
	return db.store.Fetch(docNr)
}

// Close flushes the document store and releases every index's sidecar
// file handles. The tree files themselves remain registered with the
// shared cache, which is owned by this Databank and discarded with it.
func (db *Databank) Close() error {
	var firstErr error
	if err := db.store.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := db.fullText.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, f := range db.fields {
		if err := f.Index.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if db.fastaFile != nil {
		if err := db.fastaFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
