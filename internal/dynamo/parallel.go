package dynamo

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// Workers is the fork-join width used by ParallelFor and ParallelSum.
// Zero means runtime.GOMAXPROCS(0).
var Workers = 0

func workerCount() int {
	if Workers > 0 {
		return Workers
	}
	return runtime.GOMAXPROCS(0)
}

// ParallelFor executes a function in parallel over a range [0, n).
// Each call of fn receives a disjoint [start, end) chunk; ParallelFor
// returns once every chunk is done.
func ParallelFor(n, minChunk int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if minChunk < 1 {
		minChunk = 1
	}
	numWorkers := workerCount()
	if n <= minChunk || numWorkers <= 1 {
		fn(0, n)
		return
	}

	workers := numWorkers
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

// ParallelSum maps term over [0, n) and sums the vectors. Partial sums are
// kept per chunk and combined in chunk order, so the result is independent
// of goroutine scheduling.
func ParallelSum(n, minChunk int, term func(i int) r3.Vec) r3.Vec {
	if n <= 0 {
		return r3.Vec{}
	}
	if minChunk < 1 {
		minChunk = 1
	}

	chunks := (n + minChunk - 1) / minChunk
	partial := make([]r3.Vec, chunks)

	ParallelFor(chunks, 1, func(cs, ce int) {
		for c := cs; c < ce; c++ {
			start := c * minChunk
			end := start + minChunk
			if end > n {
				end = n
			}
			var sum r3.Vec
			for i := start; i < end; i++ {
				sum = r3.Add(sum, term(i))
			}
			partial[c] = sum
		}
	})

	var total r3.Vec
	for _, p := range partial {
		total = r3.Add(total, p)
	}
	return total
}
