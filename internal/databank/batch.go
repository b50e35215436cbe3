package databank

import (
	"os"
	"path/filepath"

	"github.com/standardbeagle/mrsdb/internal/docstore"
	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
	"github.com/standardbeagle/mrsdb/internal/indexer"
	"github.com/standardbeagle/mrsdb/internal/lexicon"
	"github.com/standardbeagle/mrsdb/internal/tokenizer"
)

// storeQueueCapacity bounds the ingestion->index worker queue, mirroring
// spec.md §5's "queues are bounded (~8-100 items) and block producers
// when full".
const storeQueueCapacity = 64

// RawDocument is one caller-assembled record ready for ingestion: the
// attribute/text payload stored verbatim, plus the raw content for
// every token field (tokenized internally) and the already-typed
// values for every value/link field.
type RawDocument struct {
	Attributes  []docstore.Attribute
	Text        []byte
	TokenFields map[string]string
	Values      map[string]string
	MultiValues map[string][]string
	Links       map[string][]string
}

// StartBatch begins a batch build: creates the lexicon and indexer
// this ingestion pass shares, registers every field with the indexer,
// and starts the single background index worker that drains the
// store queue (spec.md §4.K "start_batch(lexicon) creates the batch
// orchestrator + store/index worker threads").
func (db *Databank) StartBatch(progress indexer.Progress) error {
	db.lexicon = lexicon.New()
	db.batchIndexer = indexer.New(db.lexicon, db.store, db.fullText, db.cfg.RunMerge.ScratchDir, progress)
	for _, f := range db.fields {
		db.batchIndexer.AddField(toFieldSpec(f.Def), f.Index)
	}

	fastaFile, err := os.Create(filepath.Join(db.dir, "fasta"))
	if err != nil {
		return mrserrors.NewIOError("databank.StartBatch", err)
	}
	db.fastaFile = fastaFile

	db.storeCh = make(chan indexer.InputDocument, storeQueueCapacity)
	db.storeDone = make(chan struct{})
	db.storeErr = make(chan error, 1)
	go db.runIndexWorker()
	return nil
}

// runIndexWorker is the single index-thread of spec.md §5, draining
// the store queue until it is closed by EndBatch. A captured error is
// stashed in the shared storeErr slot and stops further document
// processing (spec.md §5 "a captured exception in any worker is
// stored in a shared slot").
func (db *Databank) runIndexWorker() {
	defer close(db.storeDone)
	for doc := range db.storeCh {
		if err := db.batchIndexer.AddDocument(doc); err != nil {
			select {
			case db.storeErr <- err:
			default:
			}
			for range db.storeCh {
				// drain so StoreDocument's sends never block forever
			}
			return
		}
	}
}

// StoreDocument enqueues doc for ingestion, assigning its docNr
// immediately on the caller's own goroutine so docNrs remain
// monotonic in ingestion order even though indexing happens on the
// background worker (spec.md §5 "DocNrs are assigned in ingestion
// order").
func (db *Databank) StoreDocument(doc RawDocument) (uint32, error) {
	select {
	case err := <-db.storeErr:
		db.storeErr <- err
		return 0, err
	default:
	}

	docNr := db.store.NextDocumentNumber()
	if db.fastaFile != nil && len(doc.Text) > 0 {
		if _, err := db.fastaFile.Write(doc.Text); err != nil {
			return 0, mrserrors.NewIOError("databank.StoreDocument", err)
		}
		if _, err := db.fastaFile.Write([]byte("\n")); err != nil {
			return 0, mrserrors.NewIOError("databank.StoreDocument", err)
		}
	}

	tokens := make(map[string][]string, len(doc.TokenFields))
	for name, raw := range doc.TokenFields {
		tokens[name] = tokenizer.New(raw).Words()
	}

	input := indexer.InputDocument{
		DocNr:       docNr,
		Attributes:  doc.Attributes,
		Text:        doc.Text,
		Tokens:      tokens,
		Values:      doc.Values,
		MultiValues: doc.MultiValues,
		Links:       doc.Links,
	}
	db.storeCh <- input
	return docNr, nil
}

// EndBatch closes the store queue and joins the index worker (spec.md
// §4.K "end_batch() joins"), surfacing any error the worker captured.
func (db *Databank) EndBatch() error {
	close(db.storeCh)
	<-db.storeDone
	select {
	case err := <-db.storeErr:
		return err
	default:
		return nil
	}
}

// FinishBatch runs spec.md §4.H's finish orchestration over the
// batch indexer, recomputes document weights, builds the spell
// dictionary, and flushes the store — the facade-level counterpart of
// spec.md §4.K "finish_batch() runs §4.H finish + weights +
// dictionary".
func (db *Databank) FinishBatch() error {
	if err := db.batchIndexer.Finish(db.store.MaxDocNr()); err != nil {
		return err
	}
	db.docWeights = db.batchIndexer.DocWeights
	if err := db.writeWeights(); err != nil {
		return err
	}
	if err := db.buildDictionary(); err != nil {
		return err
	}
	if err := db.store.Flush(); err != nil {
		return err
	}
	if db.fastaFile != nil {
		if err := db.fastaFile.Close(); err != nil {
			return mrserrors.NewIOError("databank.FinishBatch", err)
		}
		db.fastaFile = nil
	}
	db.batchIndexer = nil
	db.lexicon = nil
	return nil
}
