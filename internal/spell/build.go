package spell

import (
	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
	"github.com/standardbeagle/mrsdb/internal/index"
)

// BuildFromIndex scans fullText's key stream (already in ascending
// byte order via the underlying tree) and constructs the spell DAFSA
// from the subset of terms passing spec.md §4.J's triple filter. A
// full-text index with no terms at all is rejected as corrupt.
func BuildFromIndex(fullText *index.Index, docCount uint32) (*DAFSA, error) {
	var entries []Entry
	keys := 0
	err := fullText.VisitKeys(func(key []byte, count int) {
		keys++
		if !Keep(key, count, docCount) {
			return
		}
		entries = append(entries, Entry{Term: append([]byte(nil), key...), DF: count})
	})
	if err != nil {
		return nil, err
	}
	if keys == 0 {
		return nil, mrserrors.NewCorruptError("spell.BuildFromIndex", nil).WithContext("reason", "full-text index has no terms")
	}
	return Build(entries), nil
}
