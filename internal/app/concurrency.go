package app

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fanOut runs the page lookups concurrently and returns the first error.
// The context handed to the lookups is canceled as soon as one fails, so a
// store timeout on counts does not wait out the membership queries.
//
// Each lookup writes its own result variable; they are only read after
// fanOut returns nil.
func fanOut(ctx context.Context, lookups ...func(context.Context) error) error {
	if len(lookups) == 1 {
		return lookups[0](ctx)
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, lookup := range lookups {
		g.Go(func() error { return lookup(ctx) })
	}

	return g.Wait()
}
