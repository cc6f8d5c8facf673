package service

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// loadPair fetches the same data for two organizations concurrently.
// Both results are fully materialized before it returns.
func loadPair[T any](ctx context.Context, orgA, orgB string, load func(ctx context.Context, orgID string) ([]T, error)) ([]T, []T, error) {
	var a, b []T
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = load(gctx, orgA)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = load(gctx, orgB)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}
