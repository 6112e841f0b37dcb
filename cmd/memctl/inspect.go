package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/mmfile"
	"github.com/joshuapare/memkit/internal/pod"
	"github.com/joshuapare/memkit/mem/buffer"
	"github.com/joshuapare/memkit/mem/hashtable"
	"github.com/joshuapare/memkit/mem/stream"
)

var (
	inspectCells bool
)

func init() {
	cmd := newInspectCmd()
	cmd.Flags().BoolVar(&inspectCells, "cells", false, "Dump the raw cell table (uint64 tables only)")
	rootCmd.AddCommand(cmd)
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Identify a buffer file and show its header",
		Long: `The inspect command maps a buffer file read-only, identifies a
stream or hash table header by its magic number, and prints the metadata.

Example:
  memctl inspect state/scores.mem
  memctl inspect state/scores.mem --cells
  memctl inspect state/scores.mem --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args[0])
		},
	}
	return cmd
}

// CellReport is one occupied or empty table slot.
type CellReport struct {
	Slot     int    `json:"slot"`
	Key      uint64 `json:"key"`
	Value    uint64 `json:"value"`
	Distance uint8  `json:"distance"`
}

// Report describes a buffer file.
type Report struct {
	Path  string        `json:"path"`
	Size  int64         `json:"size"`
	Kind  string        `json:"kind"`
	Magic uint32        `json:"magic"`
	Table *TableReport  `json:"table,omitempty"`
	Queue *StreamReport `json:"stream,omitempty"`
}

// TableReport is the hash table header.
type TableReport struct {
	Capacity  uint64       `json:"capacity"`
	Count     uint64       `json:"count"`
	MaxMiss   uint64       `json:"max_miss"`
	MaxLoad   float64      `json:"max_load"`
	Rehashing bool         `json:"rehashing"`
	Cells     []CellReport `json:"cells,omitempty"`
}

// StreamReport is the stream header.
type StreamReport struct {
	Read  uint64 `json:"read"`
	Write uint64 `json:"write"`
	Count uint64 `json:"count"`
}

// inspectFile builds the report for path.
func inspectFile(path string, cells bool) (*Report, error) {
	data, unmap, err := mmfile.Map(path)
	if err != nil {
		return nil, fmt.Errorf("failed to map file: %w", err)
	}
	defer unmap()

	b := &buffer.Buffer{Data: data, Size: len(data), Name: path}
	r := &Report{Path: path, Size: int64(len(data)), Kind: "unknown"}

	if h, ok := hashtable.Inspect(b); ok {
		r.Kind, r.Magic = "hashtable", h.Magic
		r.Table = &TableReport{
			Capacity:  h.Capacity,
			Count:     h.Count,
			MaxMiss:   h.MaxMiss,
			MaxLoad:   h.MaxLoad,
			Rehashing: h.Rehashing != 0,
		}
		if cells {
			r.Table.Cells, err = dumpCells(b)
			if err != nil {
				return nil, err
			}
		}
		return r, nil
	}
	if h, ok := stream.Inspect(b); ok {
		r.Kind, r.Magic = "stream", h.Magic
		r.Queue = &StreamReport{Read: h.Read, Write: h.Write, Count: h.Count}
		return r, nil
	}
	if len(data) >= 4 {
		r.Magic = uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	}
	return r, nil
}

// dumpCells reads the cell table of a uint64 table from a private copy, so
// a header that fails validation is reformatted in memory only.
func dumpCells(b *buffer.Buffer) ([]CellReport, error) {
	h, _ := hashtable.Inspect(b)
	if h.Capacity == 0 || h.Capacity > uint64(b.Size) || h.MaxMiss > uint64(b.Size) {
		return nil, fmt.Errorf("%s: implausible capacity %d", b.Name, h.Capacity)
	}
	cells := int(h.Capacity + h.MaxMiss)
	if _, err := buf.CheckElements(b.Size, hashtable.HeaderSize, cells,
		pod.Size[hashtable.Cell[uint64, uint64]]()); err != nil {
		return nil, fmt.Errorf("%s: %d uint64 cells: %w", b.Name, cells, err)
	}
	tbl := hashtable.New[uint64, uint64](buffer.Clone(b), nil, hashtable.Options[uint64]{})
	var out []CellReport
	for slot, c := range tbl.Cells() {
		out = append(out, CellReport{Slot: slot, Key: c.Key, Value: c.Value, Distance: c.Distance})
	}
	return out, nil
}

func runInspect(path string) error {
	printVerbose("Mapping buffer: %s\n", path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	r, err := inspectFile(path, inspectCells)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(r)
	}

	lines := []string{
		field("Path", path),
		field("Size", fmt.Sprintf("%s (%s bytes)", formatBytes(r.Size), formatNumber(r.Size))),
		field("Modified", info.ModTime().Format("2006-01-02 15:04:05")),
		field("Magic", fmt.Sprintf("0x%08x", r.Magic)),
	}
	switch {
	case r.Table != nil:
		t := r.Table
		lines = append(lines,
			field("Capacity", formatNumber(t.Capacity)),
			field("Count", formatNumber(t.Count)),
			field("Load", fmt.Sprintf("%.3f / %.3f", float64(t.Count)/float64(t.Capacity), t.MaxLoad)),
			field("Max miss", t.MaxMiss),
		)
		if t.Rehashing {
			lines = append(lines, field("Rehashing", "interrupted, will be reset on open"))
		}
	case r.Queue != nil:
		q := r.Queue
		lines = append(lines,
			field("Count", formatNumber(q.Count)),
			field("Read head", q.Read),
			field("Write head", q.Write),
		)
	}
	printInfo("%s\n", panel(r.Kind, lines...))

	if r.Table != nil && len(r.Table.Cells) > 0 {
		printInfo("\n%6s  %20s  %20s  %s\n", "slot", "key", "value", "dist")
		for _, c := range r.Table.Cells {
			if c.Distance == 0 {
				printInfo("%6d  %20s  %20s  %d\n", c.Slot, "-", "-", 0)
				continue
			}
			printInfo("%6d  %20d  %20d  %d\n", c.Slot, c.Key, c.Value, c.Distance)
		}
	}
	return nil
}
