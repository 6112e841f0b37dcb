//go:build unix

package mmfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestMapReadOnlyUnix(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mmap test in short mode")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "test.bin")
	want := []byte{0xde, 0xad, 0xbe, 0xef, 0x42}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, cleanup, err := Map(path)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer func() {
		if cleanupErr := cleanup(); cleanupErr != nil {
			t.Fatalf("cleanup: %v", cleanupErr)
		}
	}()
	if !bytes.Equal(data, want) {
		t.Fatalf("contents mismatch: got %x want %x", data, want)
	}
}

func TestMapReadOnlyUnixZeroLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, cleanup, err := Map(path)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected zero-length mapping, got %d", len(data))
	}
	if cleanupErr := cleanup(); cleanupErr != nil {
		t.Fatalf("cleanup: %v", cleanupErr)
	}
}

func TestOpenWritesThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rw.bin")
	m, err := Open(path, 8192)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if m.Size() != 8192 {
		t.Fatalf("size: got %d want 8192", m.Size())
	}
	copy(m.Bytes()[4000:], "memkit")
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got[4000:4006]) != "memkit" {
		t.Fatalf("write did not reach the file: %q", got[4000:4006])
	}
}

func TestResizeRemaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grow.bin")
	m, err := Open(path, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()
	copy(m.Bytes(), "0123456789abcdef")

	if err := m.Resize(64 * 1024); err != nil {
		t.Fatalf("Resize grow: %v", err)
	}
	if m.Size() != 64*1024 {
		t.Fatalf("size after grow: got %d", m.Size())
	}
	if string(m.Bytes()[:16]) != "0123456789abcdef" {
		t.Fatalf("prefix lost on grow: %q", m.Bytes()[:16])
	}
	if m.Bytes()[64*1024-1] != 0 {
		t.Fatalf("grown tail not zeroed")
	}

	if err := m.Resize(4); err != nil {
		t.Fatalf("Resize shrink: %v", err)
	}
	if string(m.Bytes()) != "0123" {
		t.Fatalf("prefix lost on shrink: %q", m.Bytes())
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 4 {
		t.Fatalf("file size: got %d want 4", info.Size())
	}

	if err := m.Resize(0); err != nil {
		t.Fatalf("Resize zero: %v", err)
	}
	if len(m.Bytes()) != 0 {
		t.Fatalf("expected empty mapping")
	}
}

func TestOpenKeepsLongerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.bin")
	if err := os.WriteFile(path, bytes.Repeat([]byte{7}, 100), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	m, err := Open(path, 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()
	if m.Size() != 100 || m.Bytes()[99] != 7 {
		t.Fatalf("existing contents not mapped: size %d", m.Size())
	}
}

func TestClosedFile(t *testing.T) {
	m, err := Open(filepath.Join(t.TempDir(), "c.bin"), 8)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := m.Resize(16); err != ErrClosed {
		t.Fatalf("Resize after close: got %v want ErrClosed", err)
	}
}
