package notify

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// BestEffort runs fn for every index in [0, n) concurrently, at most limit at
// a time (limit <= 0 means unbounded). A failing or panicking call only
// records its own error; siblings keep running. It never returns an error
// itself: errs[i] is nil when call i succeeded.
func BestEffort(ctx context.Context, limit, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			errs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
