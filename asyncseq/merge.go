package asyncseq

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rogeriochaves/langstream/engineconfig"
)

// Merge interleaves two sequences as items arrive, using the default
// Config's MergeBufferSize for the output channel.
func Merge[V any](a, b Seq[V]) Seq[V] {
	return MergeWithConfig(engineconfig.DefaultConfig(), a, b)
}

// MergeWithConfig interleaves two sequences as items arrive into an output
// channel buffered per cfg.MergeBufferSize. Items are yielded in the
// real-time order of producer readiness. Each input is forwarded by its own
// goroutine into the shared output channel, so when both are ready at once
// the order is whichever send completes first; no cross-stream tie-break is
// defined. The merge
// completes once both inputs drain. If either producer fails, the other is
// cancelled and the failure surfaces after any items already in flight.
func MergeWithConfig[V any](cfg *engineconfig.Config, a, b Seq[V]) Seq[V] {
	return func(ctx context.Context) <-chan Item[V] {
		out := make(chan Item[V], cfg.MergeBufferSize)
		go func() {
			defer close(out)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(pump(ctx, gctx, a, out))
			g.Go(pump(ctx, gctx, b, out))

			if err := g.Wait(); err != nil && ctx.Err() == nil {
				send(ctx, out, Item[V]{Err: err})
			}
		}()
		return out
	}
}

// pump forwards every item of seq into out, evaluated under gctx so that a
// sibling pump's failure (which cancels gctx via errgroup) stops this one
// too. Forwarded items are delivered under the caller's original ctx so a
// successful drain isn't dropped merely because gctx was since cancelled by
// a sibling's unrelated failure path finishing first.
func pump[V any](ctx, gctx context.Context, seq Seq[V], out chan<- Item[V]) func() error {
	return func() error {
		ch := seq(gctx)
		for {
			select {
			case item, ok := <-ch:
				if !ok {
					return nil
				}
				if item.Err != nil {
					return item.Err
				}
				if !send(ctx, out, item) {
					return ctx.Err()
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	}
}
