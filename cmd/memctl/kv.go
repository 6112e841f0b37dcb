package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/internal/mmfile"
	"github.com/joshuapare/memkit/mem/buffer"
	"github.com/joshuapare/memkit/mem/dirty"
	"github.com/joshuapare/memkit/mem/hashtable"
	"github.com/joshuapare/memkit/mem/platform"
	"github.com/joshuapare/memkit/mem/stream"
)

var (
	kvMaxLoad  float64
	kvCapacity int
	kvFlush    string
)

func init() {
	put := newPutCmd()
	put.Flags().Float64Var(&kvMaxLoad, "max-load", 0, "Load factor bound for a new table (default 0.6)")
	put.Flags().IntVar(&kvCapacity, "capacity", hashtable.DefaultCapacity, "Initial capacity for a new table")
	put.Flags().StringVar(&kvFlush, "flush", "auto", "Durability: auto, data or full")
	rootCmd.AddCommand(put, newGetCmd(), newDelCmd())
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <file> <key> <value>",
		Short: "Store a uint64 value in a table file",
		Long: `The put command opens (or creates) a uint64 to uint64 hash table
stored in a .mem file and sets one key. The file grows as the table does.

Example:
  memctl put state/scores.mem 42 1000
  memctl put state/scores.mem 0x10 7 --flush full`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(args)
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <file> <key>",
		Short: "Read a uint64 value from a table file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(args)
		},
	}
}

func newDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <file> <key>",
		Short: "Erase a key from a table file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDel(args)
		},
	}
}

func parseFlushMode(s string) (dirty.FlushMode, error) {
	for _, m := range []dirty.FlushMode{dirty.FlushAuto, dirty.FlushDataOnly, dirty.FlushFull} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown flush mode %q (want auto, data or full)", s)
}

// tableFile is an open uint64 table in a mapped buffer file.
type tableFile struct {
	alloc *platform.Mapped
	buf   *buffer.Buffer
	table *hashtable.Table[uint64, uint64]
}

// openTable maps the table at path. Without create a missing file is an error.
func openTable(path string, create bool, mode dirty.FlushMode) (*tableFile, error) {
	dir, name, err := splitBufferPath(path)
	if err != nil {
		return nil, err
	}
	size := 0
	switch _, err := os.Stat(path); {
	case err == nil:
		// The mapping is shared, so a file that is not already a table must
		// be refused before New would reformat it.
		if err := checkTableFile(path); err != nil {
			return nil, err
		}
	case create && errors.Is(err, os.ErrNotExist):
		if kvCapacity <= 0 {
			return nil, fmt.Errorf("capacity must be positive, got %d", kvCapacity)
		}
		size = hashtable.PrecomputeSize[uint64, uint64](kvCapacity)
	default:
		return nil, fmt.Errorf("failed to open table: %w", err)
	}

	m, err := platform.OpenMapped(platform.MappedOptions{Dir: dir, Flush: mode})
	if err != nil {
		return nil, err
	}
	b, err := m.Allocate(name, size, platform.Persistent)
	if err != nil {
		return nil, errors.Join(err, m.Close())
	}

	tf := &tableFile{alloc: m, buf: b}
	if ferr := crash.Catch(func() {
		tf.table = hashtable.New[uint64, uint64](b, m.Resize, hashtable.Options[uint64]{MaxLoad: kvMaxLoad})
	}); ferr != nil {
		return nil, errors.Join(ferr, m.Close())
	}
	printVerbose("Opened %s: %d keys, capacity %d\n", path, tf.table.Count(), tf.table.Capacity())
	return tf, nil
}

// checkTableFile maps path read-only and reports an error unless it holds a
// well-formed uint64 table.
func checkTableFile(path string) error {
	data, unmap, err := mmfile.Map(path)
	if err != nil {
		return fmt.Errorf("failed to map file: %w", err)
	}
	defer unmap()

	b := &buffer.Buffer{Data: data, Size: len(data), Name: path}
	if !hashtable.Valid[uint64, uint64](b) {
		kind := "unknown data"
		if _, ok := stream.Inspect(b); ok {
			kind = "a stream"
		} else if _, ok := hashtable.Inspect(b); ok {
			kind = "a damaged or non-uint64 table"
		}
		return fmt.Errorf("%s holds %s, not a uint64 table", path, kind)
	}
	return nil
}

// commit marks the whole buffer dirty and releases it.
func (tf *tableFile) commit() error {
	tf.alloc.MarkDirty(tf.buf, 0, tf.buf.Size)
	return tf.alloc.Close()
}

func parseKey(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid uint64 %q: %w", s, err)
	}
	return v, nil
}

func runPut(args []string) error {
	mode, err := parseFlushMode(kvFlush)
	if err != nil {
		return err
	}
	key, err := parseKey(args[1])
	if err != nil {
		return err
	}
	value, err := parseKey(args[2])
	if err != nil {
		return err
	}

	tf, err := openTable(args[0], true, mode)
	if err != nil {
		return err
	}
	if ferr := crash.Catch(func() { tf.table.Set(key, value) }); ferr != nil {
		return errors.Join(ferr, tf.alloc.Close())
	}
	if jsonOut {
		if err := printJSON(map[string]any{"key": key, "value": value, "count": tf.table.Count()}); err != nil {
			return errors.Join(err, tf.commit())
		}
	} else {
		printInfo("%d = %d (%s keys)\n", key, value, formatNumber(tf.table.Count()))
	}
	return tf.commit()
}

func runGet(args []string) error {
	key, err := parseKey(args[1])
	if err != nil {
		return err
	}
	tf, err := openTable(args[0], false, dirty.FlushDataOnly)
	if err != nil {
		return err
	}
	defer tf.alloc.Close()

	value, ok := tf.table.Get(key)
	if !ok {
		return fmt.Errorf("key %d not found", key)
	}
	if jsonOut {
		return printJSON(map[string]uint64{"key": key, "value": value})
	}
	printInfo("%d\n", value)
	return nil
}

func runDel(args []string) error {
	key, err := parseKey(args[1])
	if err != nil {
		return err
	}
	tf, err := openTable(args[0], false, dirty.FlushAuto)
	if err != nil {
		return err
	}
	if !tf.table.Erase(key) {
		return errors.Join(fmt.Errorf("key %d not found", key), tf.alloc.Close())
	}
	printInfo("erased %d (%s keys left)\n", key, formatNumber(tf.table.Count()))
	return tf.commit()
}
