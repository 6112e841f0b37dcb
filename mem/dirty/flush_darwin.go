//go:build darwin

package dirty

import (
	"context"
	"os"

	"golang.org/x/sys/unix"
)

// flushRanges syncs the whole mapping. On macOS msync needs the address the
// mapping was created at, so sub-slices cannot be passed; the kernel only
// writes pages that are actually dirty.
func (t *Tracker) flushRanges(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return unix.Msync(data, unix.MS_SYNC)
}

// fdatasync syncs the file. With fullfsync it uses F_FULLFSYNC so data
// reaches the physical disk rather than the drive cache.
func fdatasync(f *os.File, fullfsync bool) error {
	if fullfsync {
		_, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0)
		return err
	}
	return unix.Fsync(int(f.Fd()))
}
