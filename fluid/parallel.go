package fluid

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum iteration count to use parallel
// processing. Below this, single-threaded is faster due to goroutine
// overhead.
const parallelThreshold = 64

// parallelFor splits [0,n) into contiguous chunks and runs fn on each from
// a worker goroutine, returning after all chunks complete. Iterations must
// write to disjoint state; reads see the snapshot taken before the call.
func parallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if n < parallelThreshold {
		fn(0, n)
		return
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
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
