//go:build !linux && !freebsd && !darwin

package dirty

import (
	"context"
	"os"
)

// flushRanges writes each coalesced range back to the file. Without a
// shared mapping the in-memory bytes are not the page cache.
func (t *Tracker) flushRanges(ctx context.Context, data []byte) error {
	f := t.target.File()
	for _, r := range t.coalesce() {
		if err := ctx.Err(); err != nil {
			return err
		}
		start, end, ok := clamp(r, len(data))
		if !ok {
			continue
		}
		if _, err := f.WriteAt(data[start:end], int64(start)); err != nil {
			return err
		}
	}
	return nil
}

func fdatasync(f *os.File, _ bool) error {
	return f.Sync()
}
