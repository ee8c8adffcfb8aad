package probe

import "sync"

// DefaultWorkers is the pool size used when the caller does not care.
const DefaultWorkers = 4

// Outcome pairs a work item with the result of its probe.
type Outcome[T any] struct {
	Item   T
	Result Result
}

// Map runs fn for every item using at most workers concurrent goroutines
// and returns one outcome per item, in input order. A failing or
// timed-out item never disturbs its siblings; its failure is recorded in
// its own outcome. The pool exists only for the duration of the call.
func Map[T any](items []T, workers int, fn func(T) Result) []Outcome[T] {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(items) {
		workers = len(items)
	}

	outcomes := make([]Outcome[T], len(items))
	for i, item := range items {
		outcomes[i].Item = item
	}

	if len(items) == 0 {
		return outcomes
	}

	indexes := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				// Each slot is written by exactly one worker.
				outcomes[i].Result = fn(items[i])
			}
		}()
	}

	for i := range items {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return outcomes
}
