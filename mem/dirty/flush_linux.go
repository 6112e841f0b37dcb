//go:build linux || freebsd

package dirty

import (
	"context"
	"os"

	"golang.org/x/sys/unix"
)

// flushRanges msyncs each coalesced range. Ranges are page-aligned and the
// mapping starts on a page boundary, so sub-slices are valid msync targets.
func (t *Tracker) flushRanges(ctx context.Context, data []byte) error {
	for _, r := range t.coalesce() {
		if err := ctx.Err(); err != nil {
			return err
		}
		start, end, ok := clamp(r, len(data))
		if !ok {
			continue
		}
		if err := unix.Msync(data[start:end], unix.MS_SYNC); err != nil {
			return err
		}
	}
	return nil
}

// fdatasync syncs file data. fullfsync is ignored on Linux/FreeBSD.
func fdatasync(f *os.File, _ bool) error {
	return unix.Fdatasync(int(f.Fd()))
}
