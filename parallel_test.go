package caravel

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestMorselIteratorCoversAllRows(t *testing.T) {
	iter := NewMorselIterator(10000, 1024)

	covered := 0
	last := 0
	for {
		m := iter.Next()
		if m == nil {
			break
		}
		if m.Start != last {
			t.Fatalf("morsel starts at %d, want %d (contiguous)", m.Start, last)
		}
		covered += m.End - m.Start
		last = m.End
	}
	if covered != 10000 {
		t.Errorf("covered = %d rows, want 10000", covered)
	}
}

func TestMorselIteratorLastMorselClamped(t *testing.T) {
	iter := NewMorselIterator(100, 64)

	first := iter.Next()
	second := iter.Next()
	if first.End-first.Start != 64 {
		t.Errorf("first morsel size = %d, want 64", first.End-first.Start)
	}
	if second.End != 100 {
		t.Errorf("second morsel End = %d, want 100", second.End)
	}
	if iter.Next() != nil {
		t.Error("iterator should be exhausted")
	}
}

func TestMorselIteratorEmpty(t *testing.T) {
	if m := NewMorselIterator(0, 64).Next(); m != nil {
		t.Errorf("Next on empty iterator = %+v, want nil", m)
	}
}

func TestMorselIteratorConcurrent(t *testing.T) {
	iter := NewMorselIterator(100000, 512)

	var total int64
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				m := iter.Next()
				if m == nil {
					return
				}
				atomic.AddInt64(&total, int64(m.End-m.Start))
			}
		}()
	}
	wg.Wait()

	if total != 100000 {
		t.Errorf("total claimed rows = %d, want 100000 (no overlap, no gaps)", total)
	}
}

func TestParallelForSmallInputRunsInline(t *testing.T) {
	calls := 0
	ParallelFor(10, func(start, end int) {
		calls++
		if start != 0 || end != 10 {
			t.Errorf("range = [%d, %d), want [0, 10)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (below the parallel threshold)", calls)
	}
}

func TestParallelForCoversAllRows(t *testing.T) {
	n := 50000
	var total int64
	ParallelFor(n, func(start, end int) {
		atomic.AddInt64(&total, int64(end-start))
	})
	if total != int64(n) {
		t.Errorf("total = %d, want %d", total, n)
	}
}

func TestParallelMap(t *testing.T) {
	got := ParallelMap(50000, func(i int) int { return i * 2 })
	if len(got) != 50000 {
		t.Fatalf("len = %d, want 50000", len(got))
	}
	for _, i := range []int{0, 1, 25000, 49999} {
		if got[i] != i*2 {
			t.Errorf("got[%d] = %d, want %d", i, got[i], i*2)
		}
	}
}

func TestParallelBuildColumns(t *testing.T) {
	cols := ParallelBuildColumns(4, func(i int) *Series {
		return NewSeriesInt64("c", []int64{int64(i)})
	})
	if len(cols) != 4 {
		t.Fatalf("len = %d, want 4", len(cols))
	}
	for i, col := range cols {
		if col.Int64()[0] != int64(i) {
			t.Errorf("col %d = %d, want %d", i, col.Int64()[0], i)
		}
	}
}

func TestShouldParallelizeOp(t *testing.T) {
	if ShouldParallelizeOp(OpFilter, 100) {
		t.Error("tiny filter should run inline")
	}
	if !ShouldParallelizeOp(OpSort, 10_000_000) {
		t.Error("large sort should parallelize")
	}
}

func TestShouldParallelizeOpDisabled(t *testing.T) {
	old := GetParallelConfig()
	defer SetParallelConfig(old)

	SetParallelConfig(&ParallelConfig{Enabled: false})
	if ShouldParallelizeOp(OpSort, 10_000_000) {
		t.Error("disabled config should never parallelize")
	}
}

func TestParallelConfigWorkers(t *testing.T) {
	cfg := &ParallelConfig{MaxWorkers: 3}
	if got := cfg.numWorkers(); got != 3 {
		t.Errorf("numWorkers = %d, want 3", got)
	}
	unlimited := &ParallelConfig{}
	if got := unlimited.numWorkers(); got < 1 {
		t.Errorf("numWorkers = %d, want at least 1", got)
	}
}

func TestSetParallelConfigIgnoresNil(t *testing.T) {
	old := GetParallelConfig()
	SetParallelConfig(nil)
	if GetParallelConfig() != old {
		t.Error("nil config should be ignored")
	}
}

func TestByteMaskPoolZeroed(t *testing.T) {
	mask := getByteMask(100)
	for i := range mask.Data {
		mask.Data[i] = 1
	}
	mask.Release()

	again := getByteMask(100)
	defer again.Release()
	for i, b := range again.Data {
		if b != 0 {
			t.Fatalf("Data[%d] = %d, want 0 (masks come back zeroed)", i, b)
		}
	}
}

func TestIndexSlicePool(t *testing.T) {
	idx := getIndexSlice(10)
	if len(idx.Data) != 10 {
		t.Errorf("len = %d, want 10", len(idx.Data))
	}
	idx.Data[0] = 42
	idx.Release()

	again := getIndexSlice(200)
	defer again.Release()
	if len(again.Data) != 200 {
		t.Errorf("len = %d, want 200", len(again.Data))
	}
}
