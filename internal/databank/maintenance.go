package databank

import (
	"os"
	"path/filepath"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
	"github.com/standardbeagle/mrsdb/internal/indexer"
	"github.com/standardbeagle/mrsdb/internal/spell"
)

// Vacuum rewrites every field index and the full-text index into a
// compact, densely-packed tree (spec.md §4.E "vacuum"), carried into
// this facade as a databank-wide maintenance operation over every
// index it owns.
func (db *Databank) Vacuum() error {
	for _, f := range db.fields {
		if err := f.Index.Vacuum(); err != nil {
			return err
		}
	}
	return db.fullText.Vacuum()
}

// RecomputeWeights re-derives the document weight vector from the
// current full-text index and rewrites full-text.weights, without
// rerunning the rest of a batch build.
func (db *Databank) RecomputeWeights() error {
	weights, err := indexer.RecomputeDocWeights(db.fullText, db.store.MaxDocNr())
	if err != nil {
		return err
	}
	db.docWeights = weights
	return db.writeWeights()
}

func (db *Databank) writeWeights() error {
	return WriteWeights(filepath.Join(db.dir, "full-text.weights"), db.docWeights)
}

// buildDictionary scans the full-text vocabulary and writes the
// resulting DAFSA to full-text.dict.
func (db *Databank) buildDictionary() error {
	docCount := db.store.MaxDocNr()
	dict, err := spell.BuildFromIndex(db.fullText, docCount)
	if err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(db.dir, "full-text.dict"))
	if err != nil {
		return mrserrors.NewIOError("databank.buildDictionary", err)
	}
	defer f.Close()
	if err := spell.WriteDict(f, dict, docCount); err != nil {
		return err
	}
	db.dict = dict
	return nil
}
