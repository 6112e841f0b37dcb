//go:build !unix

package mmfile

import (
	"fmt"
	"os"
)

// Map reads the entire file when mmap is not available.
func Map(path string) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	return data, func() error { return nil }, nil
}

func (m *File) mapRW(size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := m.f.ReadAt(data, 0); err != nil && size > 0 {
		return nil, err
	}
	return data, nil
}

// Resize truncates or extends the file to size bytes and reloads it. Bytes
// written since the last write-back are carried over in memory.
func (m *File) Resize(size int) error {
	if m == nil || m.f == nil {
		return ErrClosed
	}
	if size < 0 {
		return fmt.Errorf("mmfile: negative size %d", size)
	}
	if err := m.f.Truncate(int64(size)); err != nil {
		return fmt.Errorf("mmfile: failed to truncate file: %w", err)
	}
	data := make([]byte, size)
	copy(data, m.data)
	m.data = data
	return nil
}

// Close closes the file. Unflushed bytes are discarded.
func (m *File) Close() error {
	if m == nil || m.f == nil {
		return nil
	}
	m.data = nil
	err := m.f.Close()
	m.f = nil
	return err
}
