// Package mmfile provides platform-specific helpers for memory-mapping
// buffer files.
//
// On unix a File is a shared read/write mapping, so writes through Bytes()
// land in the page cache and reach disk on msync or eventually on munmap.
// Elsewhere the file is read into memory and written back explicitly by the
// caller.
package mmfile

import (
	"errors"
	"fmt"
	"os"
)

// ErrClosed is returned by operations on a closed File.
var ErrClosed = errors.New("mmfile: file is closed")

// File is a resizable mapping of one file.
//
// NOT thread-safe.
type File struct {
	f    *os.File
	data []byte
	path string
}

// Open opens or creates the file at path and maps it. A file shorter than
// size is extended with zeros first; a longer one is mapped whole.
func Open(path string, size int) (*File, error) {
	if size < 0 {
		return nil, fmt.Errorf("mmfile: negative size %d", size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	cur := info.Size()
	if cur > int64(^uint(0)>>1) {
		f.Close()
		return nil, fmt.Errorf("mmfile: file too large to map (%d bytes)", cur)
	}
	if int64(size) > cur {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("mmfile: failed to extend %s: %w", path, err)
		}
		cur = int64(size)
	}

	m := &File{f: f, path: path}
	data, err := m.mapRW(int(cur))
	if err != nil {
		f.Close()
		return nil, err
	}
	m.data = data
	return m, nil
}

// Bytes returns the mapped contents. The slice is invalidated by Resize and
// Close.
func (m *File) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.data
}

// File returns the underlying file handle.
func (m *File) File() *os.File { return m.f }

// Path returns the file path.
func (m *File) Path() string { return m.path }

// Size returns the mapped length in bytes.
func (m *File) Size() int { return len(m.data) }
