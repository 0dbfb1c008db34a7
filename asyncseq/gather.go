package asyncseq

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Gather drives every sequence in seqs to completion concurrently and
// returns their collected values, preserving input order. A failure in any
// one sequence cancels the rest and is returned as the sole error; no
// partial result is returned on failure.
func Gather[V any](ctx context.Context, seqs []Seq[V]) ([][]V, error) {
	results := make([][]V, len(seqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, seq := range seqs {
		i, seq := i, seq
		g.Go(func() error {
			values, err := Collect(gctx, seq)
			if err != nil {
				return err
			}
			if values == nil {
				values = []V{}
			}
			results[i] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
