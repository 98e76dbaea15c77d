package caravel

import (
	"math/bits"
	"sync"
)

// ByteMask is a reusable row selection mask. Release returns it to its
// pool zeroed, so a fresh mask is always all-zero.
type ByteMask struct {
	Data []byte
	home *sync.Pool
}

// Release hands the mask back for reuse.
func (m *ByteMask) Release() {
	if m.home == nil || m.Data == nil {
		return
	}
	clear(m.Data)
	m.home.Put(m)
}

// IndexSlice is a reusable row index buffer. Contents are not zeroed on
// Release; borrowers overwrite before reading.
type IndexSlice struct {
	Data []int
	home *sync.Pool
}

// Release hands the buffer back for reuse.
func (s *IndexSlice) Release() {
	if s.home != nil && s.Data != nil {
		s.home.Put(s)
	}
}

// Buffers pool in power-of-two buckets; a request lands in the smallest
// bucket that fits it.
const poolBuckets = 32

var (
	maskPools = makeBucketPools(func(n int) any {
		return &ByteMask{Data: make([]byte, n)}
	})
	indexPools = makeBucketPools(func(n int) any {
		return &IndexSlice{Data: make([]int, n)}
	})
)

func makeBucketPools(alloc func(n int) any) *[poolBuckets]*sync.Pool {
	var pools [poolBuckets]*sync.Pool
	for i := range pools {
		n := 1 << i
		pools[i] = &sync.Pool{New: func() any { return alloc(n) }}
	}
	return &pools
}

func bucketFor(size int) int {
	if size <= 1 {
		return 0
	}
	b := bits.Len(uint(size - 1))
	if b >= poolBuckets {
		b = poolBuckets - 1
	}
	return b
}

// getByteMask borrows a zeroed mask of exactly size bytes.
func getByteMask(size int) *ByteMask {
	pool := maskPools[bucketFor(size)]
	m := pool.Get().(*ByteMask)
	m.home = pool
	if size > cap(m.Data) {
		m.Data = make([]byte, size)
	} else {
		m.Data = m.Data[:size]
	}
	return m
}

// getIndexSlice borrows an index buffer of exactly size entries.
func getIndexSlice(size int) *IndexSlice {
	pool := indexPools[bucketFor(size)]
	s := pool.Get().(*IndexSlice)
	s.home = pool
	if size > cap(s.Data) {
		s.Data = make([]int, size)
	} else {
		s.Data = s.Data[:size]
	}
	return s
}
