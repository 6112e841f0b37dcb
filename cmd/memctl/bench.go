package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/mem/hashtable"
	"github.com/joshuapare/memkit/mem/platform"
	"github.com/joshuapare/memkit/mem/pool"
	"github.com/joshuapare/memkit/mem/ring"
)

var (
	benchN     int
	benchKinds []string
)

func init() {
	cmd := newBenchCmd()
	cmd.Flags().IntVarP(&benchN, "n", "n", 100000, "Operations per phase")
	cmd.Flags().StringSliceVar(&benchKinds, "kind", []string{"table", "pool", "ring"}, "Containers to measure")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Measure container throughput",
		Long: `The bench command measures insert, lookup and erase throughput of
the hash table, create, lookup and destroy throughput of the pool, and
push throughput of the ring, all over heap buffers.

Example:
  memctl bench
  memctl bench -n 1000000 --kind table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench()
		},
	}
}

// BenchResult is one measured phase.
type BenchResult struct {
	Kind     string        `json:"kind"`
	Phase    string        `json:"phase"`
	Ops      int           `json:"ops"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	OpsPerMs float64       `json:"ops_per_ms"`
}

func measure(kind, phase string, ops int, fn func()) BenchResult {
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	r := BenchResult{Kind: kind, Phase: phase, Ops: ops, Elapsed: elapsed}
	if ms := float64(elapsed) / float64(time.Millisecond); ms > 0 {
		r.OpsPerMs = float64(ops) / ms
	}
	return r
}

func benchTable(n int) ([]BenchResult, error) {
	heap := platform.NewHeap(platform.HeapOptions{})
	b, err := heap.Allocate("bench.table", hashtable.PrecomputeSize[uint64, uint64](hashtable.DefaultCapacity), platform.Persistent)
	if err != nil {
		return nil, err
	}
	defer heap.Release(b)

	tbl := hashtable.New[uint64, uint64](b, heap.Resize, hashtable.Options[uint64]{})
	var out []BenchResult
	out = append(out, measure("table", "set", n, func() {
		for i := range uint64(n) {
			tbl.Set(i*0x9e3779b97f4a7c15, i)
		}
	}))
	out = append(out, measure("table", "get", n, func() {
		for i := range uint64(n) {
			tbl.Get(i * 0x9e3779b97f4a7c15)
		}
	}))
	out = append(out, measure("table", "erase", n, func() {
		for i := range uint64(n) {
			tbl.Erase(i * 0x9e3779b97f4a7c15)
		}
	}))
	printVerbose("table: final capacity %d, %s\n", tbl.Capacity(), formatBytes(int64(b.Size)))
	return out, nil
}

func benchPool(n int) []BenchResult {
	n = min(n, pool.MaxObjects)
	p := pool.New[[4]float32](64, "bench.pool")
	ids := make([]pool.ID, 0, n)
	var out []BenchResult
	out = append(out, measure("pool", "create", n, func() {
		for i := range n {
			ids = append(ids, p.Create([4]float32{float32(i)}))
		}
	}))
	out = append(out, measure("pool", "lookup", n, func() {
		for _, id := range ids {
			p.Lookup(id)
		}
	}))
	out = append(out, measure("pool", "destroy", n, func() {
		for _, id := range ids {
			p.Destroy(id)
		}
	}))
	return out
}

func benchRing(n int) ([]BenchResult, error) {
	heap := platform.NewHeap(platform.HeapOptions{})
	b, err := heap.Allocate("bench.ring", ring.PrecomputeSize[float64](1024), platform.Persistent)
	if err != nil {
		return nil, err
	}
	defer heap.Release(b)

	r := ring.New[float64](b, heap.Resize)
	return []BenchResult{measure("ring", "push", n, func() {
		for i := range n {
			r.Push(float64(i))
		}
	})}, nil
}

func runBench() error {
	if benchN <= 0 {
		return fmt.Errorf("-n must be positive, got %d", benchN)
	}
	var results []BenchResult
	for _, kind := range benchKinds {
		switch kind {
		case "table":
			r, err := benchTable(benchN)
			if err != nil {
				return err
			}
			results = append(results, r...)
		case "pool":
			results = append(results, benchPool(benchN)...)
		case "ring":
			r, err := benchRing(benchN)
			if err != nil {
				return err
			}
			results = append(results, r...)
		default:
			return fmt.Errorf("unknown kind %q (want %v)", kind, []string{"table", "pool", "ring"})
		}
	}

	if jsonOut {
		return printJSON(results)
	}
	var lines []string
	for _, r := range results {
		lines = append(lines, field(r.Kind+" "+r.Phase,
			fmt.Sprintf("%s ops in %v (%s ops/ms)", formatNumber(r.Ops), r.Elapsed.Round(time.Microsecond), formatNumber(int(r.OpsPerMs)))))
	}
	printInfo("%s\n", panel("bench", lines...))
	return nil
}
