// Package pagecache implements the fixed-size paged I/O and shared LRU
// cache of spec.md §4.B: a cache serving every file loaded through it
// (each New call creates an independent cache; a databank creates its
// own), with reference-counted pinning, dirty tracking and a fixed
// memory budget expressed as a page count.
package pagecache

import (
	"os"
	"sync/atomic"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

// File is a low-level pread/pwrite wrapper. It never buffers: all
// buffering lives in the Cache above it.
type File struct {
	f      *os.File
	id     uint32
	path   string
	closed int32
}

var nextFileID uint32

func OpenFile(path string, flag int, perm os.FileMode) (*File, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, mrserrors.NewIOError("pagecache.OpenFile", err).WithContext("path", path)
	}
	return &File{f: f, id: atomic.AddUint32(&nextFileID, 1), path: path}, nil
}

func (fh *File) ID() uint32   { return fh.id }
func (fh *File) Path() string { return fh.path }

func (fh *File) ReadAt(buf []byte, off int64) error {
	n, err := fh.f.ReadAt(buf, off)
	if err != nil && n != len(buf) {
		return mrserrors.NewIOError("pagecache.File.ReadAt", err).WithContext("path", fh.path)
	}
	return nil
}

func (fh *File) WriteAt(buf []byte, off int64) error {
	if _, err := fh.f.WriteAt(buf, off); err != nil {
		return mrserrors.NewIOError("pagecache.File.WriteAt", err).WithContext("path", fh.path)
	}
	return nil
}

func (fh *File) Truncate(size int64) error {
	if err := fh.f.Truncate(size); err != nil {
		return mrserrors.NewIOError("pagecache.File.Truncate", err).WithContext("path", fh.path)
	}
	return nil
}

func (fh *File) Size() (int64, error) {
	st, err := fh.f.Stat()
	if err != nil {
		return 0, mrserrors.NewIOError("pagecache.File.Size", err)
	}
	return st.Size(), nil
}

func (fh *File) Sync() error {
	if err := fh.f.Sync(); err != nil {
		return mrserrors.NewIOError("pagecache.File.Sync", err)
	}
	return nil
}

func (fh *File) Close() error {
	if !atomic.CompareAndSwapInt32(&fh.closed, 0, 1) {
		return nil
	}
	if err := fh.f.Close(); err != nil {
		return mrserrors.NewIOError("pagecache.File.Close", err)
	}
	return nil
}
