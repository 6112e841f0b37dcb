package platform

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/internal/mmfile"
	"github.com/joshuapare/memkit/mem/buffer"
	"github.com/joshuapare/memkit/mem/dirty"
	"github.com/joshuapare/memkit/pkg/types"
)

// FileExt is the extension of buffer files in a Mapped directory.
const FileExt = ".mem"

// MappedOptions configures a Mapped allocator.
type MappedOptions struct {
	// Dir holds one file per buffer. It is created if missing.
	Dir string
	// Flush is the durability mode used by Flush and Release.
	Flush dirty.FlushMode
}

// Mapped allocates buffers backed by memory-mapped files, so their contents
// survive the process. Allocating a name whose file exists reattaches to
// it; views that keep their state in the buffer (Stream, HashTable) pick up
// where they left off.
//
// Writes through a view are not observed, so callers mark what they changed
// with MarkDirty before Flush. Resize marks the whole buffer.
//
// NOT thread-safe.
type Mapped struct {
	opts   MappedOptions
	blocks map[string]*mapping
}

type mapping struct {
	buf   *buffer.Buffer
	file  *mmfile.File
	dirty *dirty.Tracker
}

// OpenMapped returns an allocator over opts.Dir.
func OpenMapped(opts MappedOptions) (*Mapped, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("platform: mapped allocator needs a directory: %w", types.ErrInvalidArguments)
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("platform: %w", err)
	}
	return &Mapped{opts: opts, blocks: make(map[string]*mapping)}, nil
}

// Path returns the file backing the buffer called name.
func (m *Mapped) Path(name string) string {
	return filepath.Join(m.opts.Dir, name+FileExt)
}

// Allocate maps the file for name, creating or extending it to size bytes.
// An existing longer file is mapped whole. Only Persistent buffers are
// supported.
func (m *Mapped) Allocate(name string, size int, lifetime Lifetime) (*buffer.Buffer, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if lifetime != Persistent {
		return nil, fmt.Errorf("platform: buffer %q: %s lifetime is not file-backed: %w",
			name, lifetime, types.ErrInvalidArguments)
	}
	if _, ok := m.blocks[name]; ok {
		return nil, fmt.Errorf("platform: buffer %q: %w", name, types.ErrInUse)
	}

	f, err := mmfile.Open(m.Path(name), size)
	if err != nil {
		return nil, fmt.Errorf("platform: buffer %q: %w", name, errors.Join(types.ErrSystem, err))
	}
	b := &buffer.Buffer{Data: f.Bytes(), Size: f.Size(), Name: name}
	m.blocks[name] = &mapping{buf: b, file: f, dirty: dirty.NewTracker(f)}
	logger.Debug("platform: map", "buffer", name, "path", f.Path(), "size", b.Size)
	return b, nil
}

func (m *Mapped) lookup(b *buffer.Buffer) *mapping {
	buffer.Require(b, "platform")
	mp, ok := m.blocks[b.Name]
	if !ok || mp.buf != b {
		return nil
	}
	return mp
}

// Resize truncates or extends the backing file and remaps it. The buffer
// relocates on every call. I/O failures are fatal.
func (m *Mapped) Resize(b *buffer.Buffer, size int) int {
	mp := m.lookup(b)
	if mp == nil {
		crash.Fatal(types.ErrKindMissingData, "platform: resize of unknown buffer %s", b)
	}
	if err := mp.file.Resize(size); err != nil {
		crash.Fatal(types.ErrKindSystem, "platform: resize %s to %d bytes: %v", b, size, err)
	}
	b.Data = mp.file.Bytes()
	b.Size = mp.file.Size()
	mp.dirty.Reset()
	mp.dirty.Add(0, b.Size)
	logger.Debug("platform: remap", "buffer", b.Name, "size", b.Size)
	return b.Size
}

// MarkDirty records that [off, off+length) of b was modified.
func (m *Mapped) MarkDirty(b *buffer.Buffer, off, length int) {
	mp := m.lookup(b)
	if mp == nil {
		crash.Fatal(types.ErrKindMissingData, "platform: mark of unknown buffer %s", b)
	}
	if off < 0 || length < 0 || off+length > b.Size {
		crash.Fatal(types.ErrKindOutOfBounds, "platform: dirty range [%d, %d) outside %s", off, off+length, b)
	}
	mp.dirty.Add(off, length)
}

// Flush writes every dirty range of every buffer to disk.
func (m *Mapped) Flush(ctx context.Context) error {
	var errs []error
	for _, name := range m.Names() {
		if err := m.blocks[name].dirty.Flush(ctx, m.opts.Flush); err != nil {
			if ctx.Err() != nil {
				return err
			}
			errs = append(errs, fmt.Errorf("platform: flush %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Release flushes b, unmaps it and closes its file. The file is kept.
func (m *Mapped) Release(b *buffer.Buffer) error {
	if b == nil || m.lookup(b) == nil {
		return fmt.Errorf("platform: release of unknown buffer %s: %w", b, types.ErrMissingData)
	}
	return m.release(context.Background(), b.Name)
}

func (m *Mapped) release(ctx context.Context, name string) error {
	mp := m.blocks[name]
	ferr := mp.dirty.Flush(ctx, m.opts.Flush)
	cerr := mp.file.Close()
	delete(m.blocks, name)
	*mp.buf = buffer.Buffer{Name: name}
	if err := errors.Join(ferr, cerr); err != nil {
		return fmt.Errorf("platform: release %q: %w", name, err)
	}
	return nil
}

// Remove releases the buffer called name if it is live and deletes its file.
func (m *Mapped) Remove(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	var rerr error
	if _, ok := m.blocks[name]; ok {
		rerr = m.release(context.Background(), name)
	}
	if err := os.Remove(m.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Join(rerr, err)
	}
	return rerr
}

// Close releases every buffer.
func (m *Mapped) Close() error {
	var errs []error
	for _, name := range m.Names() {
		errs = append(errs, m.release(context.Background(), name))
	}
	return errors.Join(errs...)
}

// Find returns the live buffer called name, or nil.
func (m *Mapped) Find(name string) *buffer.Buffer {
	if mp, ok := m.blocks[name]; ok {
		return mp.buf
	}
	return nil
}

// Names returns the live buffer names in sorted order.
func (m *Mapped) Names() []string {
	return slices.Sorted(maps.Keys(m.blocks))
}
