package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/joshuapare/memkit/mem/platform"
	"github.com/joshuapare/memkit/mem/stream"
)

// writeStream creates a stream buffer file holding 1..n.
func writeStream(t *testing.T, dir string, n int) string {
	t.Helper()
	m, err := platform.OpenMapped(platform.MappedOptions{Dir: dir})
	if err != nil {
		t.Fatalf("OpenMapped: %v", err)
	}
	b, err := m.Allocate("events", stream.PrecomputeSize[uint32](8), platform.Persistent)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	s := stream.New[uint32](b, m.Resize)
	for i := 1; i <= n; i++ {
		s.Push(uint32(i))
	}
	m.MarkDirty(b, 0, b.Size)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return m.Path("events")
}

func TestInspectCommand(t *testing.T) {
	resetFlags()
	table := testBufferPath(t, "table")
	if _, err := captureOutput(t, func() error { return runPut([]string{table, "9", "81"}) }); err != nil {
		t.Fatalf("seed: %v", err)
	}
	events := writeStream(t, t.TempDir(), 10)
	junk := filepath.Join(t.TempDir(), "junk.mem")
	if err := os.WriteFile(junk, []byte("not a buffer at all, just bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tests := []struct {
		name        string
		path        string
		cells       bool
		json        bool
		wantErr     bool
		wantContain []string
	}{
		{
			name:        "table header",
			path:        table,
			wantContain: []string{"hashtable", "Capacity", "64", "Count"},
		},
		{
			name:        "table cells",
			path:        table,
			cells:       true,
			wantContain: []string{"slot", "81"},
		},
		{
			name:        "stream header",
			path:        events,
			wantContain: []string{"stream", "Read head", "Write head"},
		},
		{
			name:        "unknown",
			path:        junk,
			wantContain: []string{"unknown"},
		},
		{
			name:        "table JSON",
			path:        table,
			json:        true,
			wantContain: []string{`"kind": "hashtable"`, `"count": 1`},
		},
		{
			name:    "missing",
			path:    filepath.Join(t.TempDir(), "missing.mem"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			inspectCells = tt.cells
			jsonOut = tt.json

			output, err := captureOutput(t, func() error { return runInspect(tt.path) })
			if (err != nil) != tt.wantErr {
				t.Fatalf("runInspect() error = %v, wantErr %v\nOutput: %s", err, tt.wantErr, output)
			}
			if tt.json && !tt.wantErr {
				assertJSON(t, output)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestInspectFileCells(t *testing.T) {
	resetFlags()
	path := testBufferPath(t, "cells")
	for _, kv := range [][]string{{"1", "10"}, {"2", "20"}, {"3", "30"}} {
		if _, err := captureOutput(t, func() error { return runPut(append([]string{path}, kv...)) }); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	r, err := inspectFile(path, true)
	if err != nil {
		t.Fatalf("inspectFile: %v", err)
	}
	if r.Table == nil {
		t.Fatalf("expected a table report, got kind %q", r.Kind)
	}
	if got, want := len(r.Table.Cells), 64+6; got != want {
		t.Fatalf("cells: got %d want %d", got, want)
	}
	found := map[uint64]uint64{}
	for _, c := range r.Table.Cells {
		if c.Distance != 0 {
			found[c.Key] = c.Value
		}
	}
	if len(found) != 3 || found[2] != 20 {
		t.Fatalf("unexpected occupied cells: %v", found)
	}
}

func TestInspectCellsRejectsOversizedHeader(t *testing.T) {
	resetFlags()
	path := testBufferPath(t, "lying")
	if _, err := captureOutput(t, func() error { return runPut([]string{path, "1", "1"}) }); err != nil {
		t.Fatalf("seed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// claim 1024 slots in a file sized for 64
	binary.LittleEndian.PutUint64(data[8:], 1024)
	binary.LittleEndian.PutUint64(data[24:], 10)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := captureOutput(t, func() error { return runInspect(path) }); err != nil {
		t.Fatalf("header-only inspect: %v", err)
	}
	inspectCells = true
	_, err = captureOutput(t, func() error { return runInspect(path) })
	if err == nil {
		t.Fatalf("expected cell table bounds error")
	}
	assertContains(t, err.Error(), []string{"1034 uint64 cells", "bounds"})
}
