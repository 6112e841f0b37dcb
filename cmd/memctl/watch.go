package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/internal/logger"
)

var (
	watchInterval time.Duration
)

func init() {
	cmd := newWatchCmd()
	cmd.Flags().DurationVar(&watchInterval, "interval", time.Second,
		"Also poll the modification time at this interval (0 disables)")
	rootCmd.AddCommand(cmd)
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-inspect a buffer file whenever it changes",
		Long: `The watch command prints the inspect report for a buffer file and
prints it again each time the file changes, until interrupted.

Writes made through a shared mapping do not raise file events, so the
modification time is polled as well.

Example:
  memctl watch state/scores.mem
  memctl watch state/scores.mem --interval 250ms`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runWatch(ctx, args[0])
		},
	}
}

// fileWatcher reports changes to one file.
type fileWatcher struct {
	w      *fsnotify.Watcher
	target string
	mtime  time.Time
}

// newFileWatcher watches the directory holding path, since editors and
// allocators may replace the file rather than write it in place.
func newFileWatcher(path string) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &fileWatcher{w: w, target: filepath.Clean(path)}
	if err := w.Add(filepath.Dir(fw.target)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch: %w", err)
	}
	if info, err := os.Stat(fw.target); err == nil {
		fw.mtime = info.ModTime()
	}
	return fw, nil
}

// touched reports whether the modification time moved since the last call.
func (fw *fileWatcher) touched() bool {
	info, err := os.Stat(fw.target)
	if err != nil {
		return false
	}
	if info.ModTime().Equal(fw.mtime) {
		return false
	}
	fw.mtime = info.ModTime()
	return true
}

// run calls onChange for each change until ctx is done. Errors from
// onChange are logged and do not stop the watch.
func (fw *fileWatcher) run(ctx context.Context, interval time.Duration, onChange func() error) error {
	defer fw.w.Close()

	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	fire := func() {
		if err := onChange(); err != nil {
			logger.Warn("watch: refresh failed", "path", fw.target, "err", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != fw.target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fw.touched()
			fire()
		case <-tick:
			if fw.touched() {
				fire()
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		}
	}
}

func runWatch(ctx context.Context, path string) error {
	fw, err := newFileWatcher(path)
	if err != nil {
		return err
	}
	refresh := func() error {
		printInfo("%s\n", render(titleStyle, time.Now().Format("15:04:05.000")))
		return runInspect(path)
	}
	if err := refresh(); err != nil {
		fw.w.Close()
		return err
	}
	return fw.run(ctx, watchInterval, refresh)
}
