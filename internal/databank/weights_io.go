package databank

import (
	"encoding/binary"
	"math"
	"os"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

// WriteWeights writes the document-weight vector to path as the raw,
// headerless little-endian float32 array of spec.md §6 ("length =
// maxDocNr"): weights[0] is the unused docNr-0 slot and is dropped, so
// byte offset (d-1)*4 holds docNr d's weight.
func WriteWeights(path string, weights []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return mrserrors.NewIOError("databank.WriteWeights", err).WithContext("path", path)
	}
	defer f.Close()
	if len(weights) <= 1 {
		return nil
	}
	buf := make([]byte, 4*(len(weights)-1))
	for i, w := range weights[1:] {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(float32(w)))
	}
	if _, err := f.Write(buf); err != nil {
		return mrserrors.NewIOError("databank.WriteWeights", err).WithContext("path", path)
	}
	return nil
}

// ReadWeights reads a weights file written by WriteWeights, expanding
// it back to the indexer's 1-based docNr convention (result[0] == 0,
// result[d] is docNr d's weight). A missing file is not an error: it
// means no batch has finished yet, and yields a nil vector.
func ReadWeights(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, mrserrors.NewIOError("databank.ReadWeights", err).WithContext("path", path)
	}
	n := len(data) / 4
	out := make([]float64, n+1)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		out[i+1] = float64(math.Float32frombits(bits))
	}
	return out, nil
}
