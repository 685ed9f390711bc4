// Package concurrent fans work out over bounded goroutine pools.
package concurrent

import (
	"context"
	"fmt"
	"sync"
)

// Outcome is the result of one item of a fan-out, in input order
type Outcome[R any] struct {
	Key   string
	Value R
	Err   error
}

// Map runs fn for every item with at most limit calls in flight (limit <= 0 means one
// goroutine per item). Items that have not started when ctx is done are not run; their
// outcome carries ctx.Err(). Failures never stop sibling items.
func Map[T any, R any](
	ctx context.Context,
	items []T,
	key func(T) string,
	fn func(ctx context.Context, item T) (R, error),
	limit int,
) []Outcome[R] {
	outcomes := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return outcomes
	}
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	slots := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, item := range items {
		outcomes[i].Key = key(item)

		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			outcomes[i].Err = ctx.Err()
			continue
		}

		wg.Add(1)
		go func(o *Outcome[R], item T) {
			defer wg.Done()
			defer func() { <-slots }()

			o.Value, o.Err = fn(ctx, item)
		}(&outcomes[i], item)
	}

	wg.Wait()
	return outcomes
}

// Errors formats the failed outcomes as "key: error" messages
func Errors[R any](outcomes []Outcome[R]) []string {
	msgs := make([]string, 0)
	for _, o := range outcomes {
		if o.Err != nil {
			msgs = append(msgs, fmt.Sprintf("%s: %v", o.Key, o.Err))
		}
	}
	return msgs
}

// Err joins the failed outcomes into one error, nil when every item succeeded
func Err[R any](outcomes []Outcome[R]) error {
	msgs := Errors(outcomes)
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) == 1 {
		return fmt.Errorf("1 of %d items failed: %s", len(outcomes), msgs[0])
	}
	return fmt.Errorf("%d of %d items failed: %s (and %d more)", len(msgs), len(outcomes), msgs[0], len(msgs)-1)
}
