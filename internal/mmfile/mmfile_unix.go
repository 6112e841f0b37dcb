//go:build unix

package mmfile

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map maps the file at path read-only and returns its contents.
func Map(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close() // safe before return; mapping keeps pages alive

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := info.Size()
	if size == 0 {
		return []byte{}, func() error { return nil }, nil
	}
	if size > int64(^uint(0)>>1) {
		return nil, nil, fmt.Errorf("mmfile: file too large to map (%d bytes)", size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unmap(data) }, nil
}

func unmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

func (m *File) mapRW(size int) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	return unix.Mmap(int(m.f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Resize truncates or extends the file to size bytes and remaps it. The
// mapping usually moves, so callers must re-read Bytes(). On failure the old
// size is remapped.
func (m *File) Resize(size int) error {
	if m == nil || m.f == nil {
		return ErrClosed
	}
	if size < 0 {
		return fmt.Errorf("mmfile: negative size %d", size)
	}
	if size == len(m.data) {
		return nil
	}
	old := len(m.data)

	if err := unmap(m.data); err != nil {
		return fmt.Errorf("mmfile: failed to unmap before resize: %w", err)
	}
	m.data = nil

	if err := m.f.Truncate(int64(size)); err != nil {
		m.data, _ = m.mapRW(old)
		return fmt.Errorf("mmfile: failed to truncate file: %w", err)
	}

	data, err := m.mapRW(size)
	if err != nil {
		if terr := m.f.Truncate(int64(old)); terr == nil {
			m.data, _ = m.mapRW(old)
		}
		return fmt.Errorf("mmfile: failed to remap after resize: %w", err)
	}
	m.data = data
	return nil
}

// Close unmaps and closes the file.
func (m *File) Close() error {
	if m == nil || m.f == nil {
		return nil
	}
	err := unmap(m.data)
	m.data = nil
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	m.f = nil
	return err
}
