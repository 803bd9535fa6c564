package testutil

import (
	"sync"
	"testing"
)

// RunConcurrent executes the given function concurrently n times.
// Waits for all goroutines to complete before returning.
// Any panics are captured and reported as test failures.
func RunConcurrent(t *testing.T, n int, fn func(workerID int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(n)

	for i := range n {
		go func(workerID int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("worker %d panicked: %v", workerID, r)
				}
			}()
			fn(workerID)
		}(i)
	}

	wg.Wait()
}
