package app

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"gomarker/domain/marker"
)

// BatchRunner executes independent analysis invocations concurrently. The
// pipeline stays single-threaded inside one invocation; throughput comes from
// whole-invocation parallelism, bounded by a weighted semaphore.
type BatchRunner struct {
	service *MarkerService
	sem     *semaphore.Weighted
}

// NewBatchRunner bounds concurrent invocations at limit (minimum 1).
func NewBatchRunner(service *MarkerService, limit int64) *BatchRunner {
	if limit < 1 {
		limit = 1
	}
	return &BatchRunner{
		service: service,
		sem:     semaphore.NewWeighted(limit),
	}
}

// BatchItem is one invocation's outcome; Err and Result are exclusive.
type BatchItem struct {
	Request AnalysisRequest
	Result  *marker.Result
	Err     error
}

// RunAll executes every request and returns outcomes in request order. A
// failed invocation does not cancel its siblings; each item carries its own
// error.
func (b *BatchRunner) RunAll(ctx context.Context, reqs []AnalysisRequest) []BatchItem {
	items := make([]BatchItem, len(reqs))
	var wg sync.WaitGroup

	for i, req := range reqs {
		items[i].Request = req

		if err := b.sem.Acquire(ctx, 1); err != nil {
			items[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, req AnalysisRequest) {
			defer wg.Done()
			defer b.sem.Release(1)
			items[i].Result, items[i].Err = b.service.Run(ctx, req)
		}(i, req)
	}

	wg.Wait()
	return items
}
