package databank

import "github.com/standardbeagle/mrsdb/internal/spell"

// Complete returns prefix completions of w against the full-text
// vocabulary's dictionary, in ascending idf order (spec.md §4.J
// "Completion"). Returns nil if no dictionary has been built yet
// (FinishBatch never ran, or the vocabulary was empty).
func (db *Databank) Complete(w []byte) []spell.Completion {
	if db.dict == nil {
		return nil
	}
	return db.dict.Complete(w, db.store.MaxDocNr())
}

// Correct suggests spelling corrections for w against the full-text
// vocabulary's dictionary (spec.md §4.J "Correction").
func (db *Databank) Correct(w []byte) []spell.Correction {
	if db.dict == nil {
		return nil
	}
	return db.dict.Correct(w)
}
