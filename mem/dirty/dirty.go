// Package dirty tracks and flushes modified byte ranges of file-backed
// buffers.
//
// The tracker keeps a list of dirty byte ranges, coalesces them into
// page-aligned ranges at flush time, and writes them out with the
// platform's sync primitive (msync on unix, an explicit write-back
// elsewhere).
package dirty

import (
	"context"
	"os"
	"sort"
)

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	// standardPageSize is the typical OS page size (4KB).
	standardPageSize = 4096
)

// FlushMode controls durability guarantees of Flush.
type FlushMode int

const (
	// FlushAuto syncs dirty pages and then the file data.
	FlushAuto FlushMode = iota

	// FlushDataOnly only syncs dirty pages. The caller is responsible for
	// syncing the file later.
	FlushDataOnly

	// FlushFull is FlushAuto plus F_FULLFSYNC on macOS.
	FlushFull
)

// String returns the flag spelling of the mode.
func (m FlushMode) String() string {
	switch m {
	case FlushAuto:
		return "auto"
	case FlushDataOnly:
		return "data"
	case FlushFull:
		return "full"
	default:
		return "unknown"
	}
}

// Range represents a dirty byte range.
type Range struct {
	Off int64
	Len int64
}

// Target is the file-backed memory a Tracker flushes.
type Target interface {
	// Bytes returns the current contents. It is re-read on every flush
	// since a resize may have remapped it.
	Bytes() []byte
	// File returns the backing file.
	File() *os.File
}

// Tracker accumulates dirty ranges of one Target and flushes them.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	target   Target
	ranges   []Range // raw ranges, coalesced at flush time
	pageSize int64
}

// NewTracker creates a dirty tracker for target.
func NewTracker(target Target) *Tracker {
	return &Tracker{
		target:   target,
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: standardPageSize,
	}
}

// Add records a dirty range. It only appends; alignment and merging happen
// at flush time.
func (t *Tracker) Add(off, length int) {
	if length <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{Off: int64(off), Len: int64(length)})
}

// Pending reports whether any range is waiting to be flushed.
func (t *Tracker) Pending() bool { return len(t.ranges) > 0 }

// Flush writes every dirty range to disk and clears the list. Unless mode is
// FlushDataOnly the file is synced afterwards.
//
// The context is checked between ranges. If it is cancelled mid-flush some
// ranges may have been written while others have not; all ranges stay
// pending in that case.
func (t *Tracker) Flush(ctx context.Context, mode FlushMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(t.ranges) == 0 {
		return nil
	}

	data := t.target.Bytes()
	if len(data) > 0 {
		if err := t.flushRanges(ctx, data); err != nil {
			return err
		}
	}
	t.ranges = t.ranges[:0]

	if mode == FlushDataOnly {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fdatasync(t.target.File(), mode == FlushFull)
}

// Reset clears all tracked ranges without flushing.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// Ranges returns the page-aligned, sorted and merged ranges the next Flush
// writes.
func (t *Tracker) Ranges() []Range {
	return t.coalesce()
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping or
// adjacent ranges.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := (r.Off / t.pageSize) * t.pageSize
		end := r.Off + r.Len
		if end%t.pageSize != 0 {
			end = ((end / t.pageSize) + 1) * t.pageSize
		}
		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= current.Off+current.Len {
			end := max(current.Off+current.Len, next.Off+next.Len)
			current.Len = end - current.Off
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// clamp limits r to a buffer of n bytes. ok is false when nothing remains.
func clamp(r Range, n int) (start, end int, ok bool) {
	start, end = int(r.Off), int(r.Off+r.Len)
	if end > n {
		end = n
	}
	return start, end, start < end
}
