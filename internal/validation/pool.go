package validation

import (
	"context"
	"sync"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
)

type eventResult struct {
	eventID string
	out     outcome
	err     error
}

// runPool validates events with at most opts.Workers in flight. Each worker
// pauses PolitenessDelay between its events. Once ctx is done no new event is
// started. The returned channel is closed when all workers have finished.
func (v *Validator) runPool(ctx context.Context, events []*domain.Event) <-chan eventResult {
	results := make(chan eventResult, len(events))
	queue := make(chan *domain.Event)

	workers := min(v.opts.Workers, max(len(events), 1))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := true
			for e := range queue {
				if !first {
					if err := v.sleep(ctx, v.opts.PolitenessDelay); err != nil {
						continue
					}
				}
				first = false
				out, err := v.validateLocked(ctx, e)
				results <- eventResult{eventID: e.ID, out: out, err: err}
			}
		}()
	}

	go func() {
		defer close(results)
		defer wg.Wait()
		defer close(queue)
		for _, e := range events {
			if ctx.Err() != nil {
				return
			}
			select {
			case queue <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	return results
}
