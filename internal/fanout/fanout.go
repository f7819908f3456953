// Package fanout runs independent per-item work on a bounded worker pool and
// re-associates every result with the position of its input.
//
// Each item gets exactly one Result slot. A failing or panicking item only
// fills its own slot with an error; its siblings keep running:
//
//	results := fanout.Run(ctx, chunks, 4, func(ctx context.Context, i int, c types.Chunk) ([]types.QARecord, error) {
//	    return process(ctx, c)
//	})
//	for _, r := range results {
//	    if r.Err != nil {
//	        log.Printf("chunk %d failed: %v", r.Index, r.Err)
//	    }
//	}
package fanout

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Func processes one item. index is the item's position in the input slice.
type Func[In, Out any] func(ctx context.Context, index int, item In) (Out, error)

// Result is the tagged outcome of one item: either Value or Err is meaningful
type Result[Out any] struct {
	Index int
	Value Out
	Err   error
}

// OK reports whether the item succeeded
func (r Result[Out]) OK() bool {
	return r.Err == nil
}

// ProgressFunc is called after each item completes
type ProgressFunc func(done, total int)

type options struct {
	progress ProgressFunc
}

// Option configures Run
type Option func(*options)

// WithProgress registers a completion callback. It may be called from
// several goroutines concurrently.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// Run applies fn to every item with at most workers calls in flight.
// The returned slice has one slot per item, in input order. Items that have
// not started when ctx is cancelled are marked with ctx.Err().
func Run[In, Out any](ctx context.Context, items []In, workers int, fn Func[In, Out], opts ...Option) []Result[Out] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if workers <= 0 {
		workers = 1
	}

	results := make([]Result[Out], len(items))
	var done atomic.Int32

	// Errors never reach the group, so one failure does not cancel siblings
	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i := range items {
		results[i].Index = i

		// Go blocks while the pool is full; stop queueing once cancelled
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
			} else {
				results[i].Value, results[i].Err = call(ctx, i, items[i], fn)
			}

			if o.progress != nil {
				o.progress(int(done.Add(1)), len(items))
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// call invokes fn and converts a panic into an error for this slot only
func call[In, Out any](ctx context.Context, index int, item In, fn Func[In, Out]) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing item %d: %v\n%s", index, r, debug.Stack())
		}
	}()
	return fn(ctx, index, item)
}

// Values returns the values of successful results, in input order
func Values[Out any](results []Result[Out]) []Out {
	values := make([]Out, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			values = append(values, r.Value)
		}
	}
	return values
}

// Errors returns the failed results, in input order
func Errors[Out any](results []Result[Out]) []Result[Out] {
	var failed []Result[Out]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
