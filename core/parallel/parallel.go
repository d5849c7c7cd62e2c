// Package parallel splits row-wise work into contiguous chunks run on
// separate goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold is the row count under which Rows runs inline.
const DefaultThreshold = 4096

// Chunks splits [0, n) into at most workers contiguous ranges of near-equal size.
func Chunks(n, workers int) [][2]int {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	size := (n + workers - 1) / workers

	out := make([][2]int, 0, workers)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// Rows calls fn once per chunk of [0, n). Below threshold fn runs once on the
// calling goroutine; above it the chunks run concurrently, one per CPU.
// fn must only touch rows inside its own range.
func Rows(n, threshold int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if n <= threshold {
		fn(0, n)
		return
	}

	var wg sync.WaitGroup
	for _, c := range Chunks(n, runtime.GOMAXPROCS(0)) {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(c[0], c[1])
	}
	wg.Wait()
}
