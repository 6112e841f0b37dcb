package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestPutGetDel(t *testing.T) {
	resetFlags()
	path := testBufferPath(t, "scores")

	for k := 1; k <= 100; k++ {
		args := []string{path, strconv.Itoa(k), strconv.Itoa(k * 3)}
		if _, err := captureOutput(t, func() error { return runPut(args) }); err != nil {
			t.Fatalf("put %d: %v", k, err)
		}
	}

	out, err := captureOutput(t, func() error { return runGet([]string{path, "42"}) })
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assertContains(t, out, []string{"126"})

	out, err = captureOutput(t, func() error { return runDel([]string{path, "42"}) })
	if err != nil {
		t.Fatalf("del: %v", err)
	}
	assertContains(t, out, []string{"erased 42", "99 keys left"})

	if _, err := captureOutput(t, func() error { return runGet([]string{path, "42"}) }); err == nil {
		t.Fatalf("get after del: expected not found")
	}
	if _, err := captureOutput(t, func() error { return runDel([]string{path, "42"}) }); err == nil {
		t.Fatalf("second del: expected not found")
	}
}

func TestKVCommands(t *testing.T) {
	tests := []struct {
		name        string
		run         func(path string) error
		seed        bool
		json        bool
		wantErr     bool
		wantContain []string
	}{
		{
			name:        "put prints count",
			run:         func(p string) error { return runPut([]string{p, "0x10", "7"}) },
			wantContain: []string{"16 = 7", "1 keys"},
		},
		{
			name:        "put as JSON",
			run:         func(p string) error { return runPut([]string{p, "5", "6"}) },
			json:        true,
			wantContain: []string{`"key": 5`, `"value": 6`},
		},
		{
			name:        "get as JSON",
			run:         func(p string) error { return runGet([]string{p, "1"}) },
			seed:        true,
			json:        true,
			wantContain: []string{`"value": 2`},
		},
		{
			name:    "get missing file",
			run:     func(p string) error { return runGet([]string{p, "1"}) },
			wantErr: true,
		},
		{
			name:    "bad key",
			run:     func(p string) error { return runPut([]string{p, "minus-one", "1"}) },
			wantErr: true,
		},
		{
			name:    "bad extension",
			run:     func(p string) error { return runPut([]string{p + ".txt", "1", "1"}) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			path := testBufferPath(t, "kv")
			if tt.seed {
				if _, err := captureOutput(t, func() error { return runPut([]string{path, "1", "2"}) }); err != nil {
					t.Fatalf("seed: %v", err)
				}
			}
			jsonOut = tt.json

			output, err := captureOutput(t, func() error { return tt.run(path) })
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v\nOutput: %s", err, tt.wantErr, output)
			}
			if tt.json && !tt.wantErr {
				assertJSON(t, output)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestPutFlushModes(t *testing.T) {
	for _, mode := range []string{"auto", "data", "full"} {
		t.Run(mode, func(t *testing.T) {
			resetFlags()
			kvFlush = mode
			path := testBufferPath(t, "flush")
			if _, err := captureOutput(t, func() error { return runPut([]string{path, "1", "1"}) }); err != nil {
				t.Fatalf("put: %v", err)
			}
		})
	}

	resetFlags()
	kvFlush = "sometimes"
	if _, err := captureOutput(t, func() error { return runPut([]string{testBufferPath(t, "x"), "1", "1"}) }); err == nil {
		t.Fatalf("expected unknown flush mode error")
	}
}

func TestKVRefusesNonTableFiles(t *testing.T) {
	resetFlags()
	events := writeStream(t, t.TempDir(), 5)
	junk := filepath.Join(t.TempDir(), "junk.mem")
	if err := os.WriteFile(junk, bytes.Repeat([]byte{0xab}, 4096), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	for _, path := range []string{events, junk} {
		before, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		cmds := map[string]func() error{
			"get": func() error { return runGet([]string{path, "1"}) },
			"del": func() error { return runDel([]string{path, "1"}) },
			"put": func() error { return runPut([]string{path, "1", "2"}) },
		}
		for name, run := range cmds {
			if _, err := captureOutput(t, run); err == nil {
				t.Errorf("%s %s: expected an error", name, filepath.Base(path))
			}
		}
		after, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if !bytes.Equal(before, after) {
			t.Fatalf("%s was modified", filepath.Base(path))
		}
	}

	r, err := inspectFile(events, false)
	if err != nil {
		t.Fatalf("inspectFile: %v", err)
	}
	if r.Kind != "stream" || r.Queue.Count != 5 {
		t.Fatalf("stream damaged: kind %q, report %+v", r.Kind, r.Queue)
	}
}
