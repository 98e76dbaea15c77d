package caravel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// ParallelConfig controls when and how row-wise work fans out across
// goroutines.
type ParallelConfig struct {
	// MinRowsForParallel is the row count below which work stays inline.
	MinRowsForParallel int

	// MorselSize is the rows per claimed work unit.
	MorselSize int

	// MaxWorkers caps the worker goroutines. Zero means GOMAXPROCS.
	MaxWorkers int

	// Enabled turns parallel execution off entirely when false.
	Enabled bool
}

// DefaultParallelConfig returns the default tuning.
func DefaultParallelConfig() *ParallelConfig {
	return &ParallelConfig{
		MinRowsForParallel: 8192,
		MorselSize:         4096,
		MaxWorkers:         0,
		Enabled:            true,
	}
}

var globalConfig = DefaultParallelConfig()

// SetParallelConfig replaces the global tuning. Nil is ignored.
func SetParallelConfig(cfg *ParallelConfig) {
	if cfg != nil {
		globalConfig = cfg
	}
}

// GetParallelConfig returns the global tuning.
func GetParallelConfig() *ParallelConfig {
	return globalConfig
}

func (cfg *ParallelConfig) numWorkers() int {
	if cfg.MaxWorkers > 0 {
		return cfg.MaxWorkers
	}
	return runtime.GOMAXPROCS(0)
}

func (cfg *ParallelConfig) shouldParallelize(rows int) bool {
	return cfg.Enabled && rows >= cfg.MinRowsForParallel
}

// Morsel is a half-open row range [Start, End) claimed by one worker.
type Morsel struct {
	Start int
	End   int
}

// MorselIterator hands out morsels to competing workers. Claims go
// through a CAS on the cursor, so slow workers never block fast ones.
type MorselIterator struct {
	rows   int
	step   int
	cursor atomic.Int64
}

// NewMorselIterator covers totalRows in chunks of morselSize rows.
// A non-positive morselSize falls back to the configured default.
func NewMorselIterator(totalRows, morselSize int) *MorselIterator {
	if morselSize <= 0 {
		morselSize = globalConfig.MorselSize
	}
	return &MorselIterator{rows: totalRows, step: morselSize}
}

// Next claims the next morsel, or returns nil when the range is spent.
// Safe for concurrent use.
func (mi *MorselIterator) Next() *Morsel {
	for {
		start := mi.cursor.Load()
		if int(start) >= mi.rows {
			return nil
		}
		end := int(start) + mi.step
		if end > mi.rows {
			end = mi.rows
		}
		if mi.cursor.CompareAndSwap(start, int64(end)) {
			return &Morsel{Start: int(start), End: end}
		}
	}
}

// spawnWorkers runs fn on n goroutines and waits for all of them.
func spawnWorkers(n int, fn func(worker int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for w := 0; w < n; w++ {
		go func(worker int) {
			defer wg.Done()
			fn(worker)
		}(w)
	}
	wg.Wait()
}

// ParallelFor runs fn over [0, totalRows) split into morsels. Small
// inputs run inline as a single range.
func ParallelFor(totalRows int, fn func(start, end int)) {
	cfg := globalConfig
	if !cfg.shouldParallelize(totalRows) {
		fn(0, totalRows)
		return
	}

	iter := NewMorselIterator(totalRows, cfg.MorselSize)
	spawnWorkers(cfg.numWorkers(), func(int) {
		for m := iter.Next(); m != nil; m = iter.Next() {
			fn(m.Start, m.End)
		}
	})
}

// ParallelMap evaluates fn for every index and collects the results in
// order.
func ParallelMap[T any](n int, fn func(i int) T) []T {
	out := make([]T, n)
	if !globalConfig.shouldParallelize(n) {
		for i := range out {
			out[i] = fn(i)
		}
		return out
	}
	ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = fn(i)
		}
	})
	return out
}

// ParallelBuildColumns materializes n columns concurrently, one
// goroutine per column.
func ParallelBuildColumns(n int, builder func(colIdx int) *Series) []*Series {
	cols := make([]*Series, n)
	if !globalConfig.Enabled || n <= 1 {
		for i := range cols {
			cols[i] = builder(i)
		}
		return cols
	}
	spawnWorkers(n, func(i int) {
		cols[i] = builder(i)
	})
	return cols
}

// OperationType tags a kernel for per-row cost estimation.
type OperationType int

const (
	OpFilter OperationType = iota
	OpSort
	OpJoinBuild
	OpJoinProbe
	OpGroupByHash
	OpGroupByAgg
	OpGather
)

// opCostNs approximates nanoseconds of work per row by operation.
var opCostNs = map[OperationType]int{
	OpFilter:      2,
	OpSort:        50,
	OpJoinBuild:   20,
	OpJoinProbe:   30,
	OpGroupByHash: 15,
	OpGroupByAgg:  5,
	OpGather:      3,
}

// EstimatedCostPerRow returns the per-row cost estimate in nanoseconds.
func EstimatedCostPerRow(op OperationType) int {
	if ns, ok := opCostNs[op]; ok {
		return ns
	}
	return 10
}

// ShouldParallelizeOp weighs estimated work against goroutine startup
// and synchronization overhead (~5us per worker), requiring a 10x
// margin before fanning out.
func ShouldParallelizeOp(op OperationType, rows int) bool {
	cfg := globalConfig
	if !cfg.Enabled {
		return false
	}
	work := rows * EstimatedCostPerRow(op)
	overhead := 5000 * cfg.numWorkers()
	return work > overhead*10
}

// JoinMatch pairs a left row with its matching right row.
type JoinMatch struct {
	LeftIdx  int
	RightIdx int
}
