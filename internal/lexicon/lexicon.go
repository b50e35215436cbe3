// Package lexicon implements the dense string interner of spec.md §4.C:
// unique byte strings packed into append-only arenas, each mapped to a
// monotonically increasing 32-bit id, under a reader/writer lock:
// lookups share the read lock, so concurrent batch workers look up in
// parallel, and only the rare insert takes the write lock.
package lexicon

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

var errTooLong = fmt.Errorf("token exceeds MAX_KEY_LEN")

// MaxKeyLen is the declared constant bounding a single term's byte length
// (spec.md §3, "Term"). Tokens longer than this are rejected with kOverflow.
const MaxKeyLen = 255

// arenaSize is the append-only slab size terms are packed into
// (spec.md §4.C, original_source M6Lexicon's 8 MiB arenas).
const arenaSize = 8 << 20

// StopID is the reserved sentinel/stop token id (spec.md §3, "Term").
const StopID uint32 = 0

type entry struct {
	arena  int32
	offset int32
	length int32
}

// Lexicon interns byte strings to stable, monotonically increasing ids.
// Token id 0 is never issued by Store; it is reserved as the sentinel.
type Lexicon struct {
	mu      sync.RWMutex
	arenas  [][]byte
	entries []entry          // id -> location, index 0 unused (sentinel)
	byHash  map[uint64][]uint32
}

func New() *Lexicon {
	l := &Lexicon{
		entries: make([]entry, 1, 1024), // reserve index 0 for StopID
		byHash:  make(map[uint64][]uint32),
	}
	return l
}

func (l *Lexicon) bytesFor(e entry) []byte {
	return l.arenas[e.arena][e.offset : e.offset+e.length]
}

// Lookup returns the id for bytes, or 0 if not yet interned. Safe for
// concurrent use with Store and other Lookups (shared lock).
func (l *Lexicon) Lookup(s []byte) uint32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lookupLocked(s)
}

func (l *Lexicon) lookupLocked(s []byte) uint32 {
	h := xxhash.Sum64(s)
	for _, id := range l.byHash[h] {
		if bytes.Equal(l.bytesFor(l.entries[id]), s) {
			return id
		}
	}
	return 0
}

// Store interns s, returning its id. Idempotent: a second Store of the
// same bytes returns the same id without allocating. Uses the
// double-checked lookup-then-insert pattern from spec.md §4.C: a shared
// lookup first, and only on miss does it escalate to the exclusive lock.
func (l *Lexicon) Store(s []byte) (uint32, error) {
	if len(s) > MaxKeyLen {
		return 0, mrserrors.NewOverflowError("lexicon.Store", errTooLong).WithContext("len", itoa(len(s)))
	}
	if id := l.Lookup(s); id != 0 {
		return id, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check: another writer may have stored s between the shared
	// lookup above and acquiring the exclusive lock.
	if id := l.lookupLocked(s); id != 0 {
		return id, nil
	}

	a, off := l.alloc(len(s))
	copy(l.arenas[a][off:off+len(s)], s)
	id := uint32(len(l.entries))
	e := entry{arena: int32(a), offset: int32(off), length: int32(len(s))}
	l.entries = append(l.entries, e)
	h := xxhash.Sum64(s)
	l.byHash[h] = append(l.byHash[h], id)
	return id, nil
}

func (l *Lexicon) alloc(n int) (arenaIdx, offset int) {
	if len(l.arenas) == 0 || len(l.arenas[len(l.arenas)-1])+n > arenaSize {
		cap := arenaSize
		if n > cap {
			cap = n
		}
		l.arenas = append(l.arenas, make([]byte, 0, cap))
	}
	arenaIdx = len(l.arenas) - 1
	a := &l.arenas[arenaIdx]
	offset = len(*a)
	*a = (*a)[:offset+n]
	return
}

// Get returns the bytes previously stored under id, or nil if unknown.
func (l *Lexicon) Get(id uint32) []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id == 0 || int(id) >= len(l.entries) {
		return nil
	}
	e := l.entries[id]
	out := make([]byte, e.length)
	copy(out, l.bytesFor(e))
	return out
}

// Compare returns the sign of comparing the byte strings behind idA, idB,
// using the lexicon's total order (plain byte-lexicographic).
func (l *Lexicon) Compare(idA, idB uint32) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return bytes.Compare(l.bytesFor(l.entries[idA]), l.bytesFor(l.entries[idB]))
}

// Count returns the number of interned strings (excluding the sentinel).
func (l *Lexicon) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries) - 1
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
