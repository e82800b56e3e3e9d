package pipeline

import (
	"sync"

	"fmriclean/internal/models"
)

// executeRuns conditions independent runs on a fixed-size worker pool.
// Each run reads its own inputs and writes its own uniquely-named
// outputs, so no synchronization beyond the pool itself is needed, and
// results are deterministic regardless of scheduling order. A failing
// run fails only its own RunResult.
func (o *Orchestrator) executeRuns(contexts []models.RunContext) []RunResult {
	workers := o.params.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(contexts) {
		workers = len(contexts)
	}

	type job struct {
		idx int
		ctx models.RunContext
	}

	results := make([]RunResult, len(contexts))
	jobs := make(chan job, len(contexts))

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.idx] = RunResult{
					Subject: j.ctx.Subject,
					Run:     j.ctx.Run,
					Err:     o.runFn(j.ctx),
				}
			}
		}()
	}
	for i, ctx := range contexts {
		jobs <- job{idx: i, ctx: ctx}
	}
	close(jobs)
	wg.Wait()

	return results
}

// Failed returns the subset of results that carry an error.
func Failed(results []RunResult) []RunResult {
	var failed []RunResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
