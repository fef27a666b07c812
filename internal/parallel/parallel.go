// Package parallel provides bounded-concurrency fan-out helpers shared by
// the resolution kernel and the download orchestrator. Both need the same
// shape: run N independent units of work against a shared limiter, collect
// errors without letting one failure cancel its siblings (spec.md's "record
// and continue" propagation policy).
package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is used when a caller passes a non-positive limit.
const DefaultLimit = 3

// Range calls fn once per integer in [0, n) with bounded concurrency limit.
// It returns the first error encountered, but does not stop dispatching
// already-scheduled work early -- callers that need fail-fast cancellation
// should pass a cancelable ctx and check ctx.Err() inside fn.
func Range(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error) error {
	if limit <= 0 {
		limit = DefaultLimit
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(ctx, i)
		})
	}
	return g.Wait()
}

// Map applies fn to each element of in with bounded concurrency limit,
// returning one output per input element in the same order. An error from
// any fn invocation is returned once all in-flight calls complete; results
// for inputs that errored are left at their zero value.
func Map[T, R any](ctx context.Context, in []T, limit int, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	out := make([]R, len(in))
	err := Range(ctx, len(in), limit, func(ctx context.Context, i int) error {
		r, err := fn(ctx, in[i])
		if err != nil {
			return err
		}
		out[i] = r
		return nil
	})
	return out, err
}

// MapTolerant is like Map but never fails the batch: per-item errors are
// collected into errs (indexed like in/out) instead of aborting the group,
// matching spec.md's "the resolver never throws for individual-node
// failures -- it records and continues" policy.
func MapTolerant[T, R any](ctx context.Context, in []T, limit int, fn func(ctx context.Context, item T) (R, error)) (out []R, errs []error) {
	out = make([]R, len(in))
	errs = make([]error, len(in))
	Range(ctx, len(in), limit, func(ctx context.Context, i int) error {
		r, err := fn(ctx, in[i])
		out[i] = r
		errs[i] = err
		return nil
	})
	return out, errs
}
