package stage

import (
	"context"

	"github.com/rogeriochaves/langstream/asyncseq"
	"github.com/rogeriochaves/langstream/emission"
)

// runOnError iterates src and forwards its emissions unchanged as long as
// nothing fails. The moment src fails, it emits a non-final marker carrying
// the error as selfName's own payload, then drains handle's sequence and
// forwards it verbatim (the caller is responsible for stamping those
// Emissions with the right stage name and finality). A failure raised
// inside handle is forwarded and terminates the sequence unhandled, per
// spec: errors raised inside the handler are never re-handled.
func runOnError(
	ctx context.Context,
	selfName string,
	src <-chan asyncseq.Item[emission.Emission],
	out chan<- asyncseq.Item[emission.Emission],
	handle func(error) asyncseq.Seq[emission.Emission],
) {
	for item := range src {
		if item.Err != nil {
			marker := emission.Value(emission.StageName(selfName), item.Err, false)
			if !deliver(ctx, out, asyncseq.Item[emission.Emission]{Value: marker}) {
				return
			}
			for hItem := range handle(item.Err)(ctx) {
				if !deliver(ctx, out, hItem) {
					return
				}
				if hItem.Err != nil {
					return
				}
			}
			return
		}
		if !deliver(ctx, out, item) {
			return
		}
	}
}

// OnErrorFunc installs a handler scoped to s: failures occurring strictly
// inside s are recovered by invoking h and streaming its single U as the
// final output under "<s.Name()>@on_error"; failures downstream of this
// combinator, or raised inside h itself, propagate unhandled.
func OnErrorFunc[T, U any](s *Stage[T, U], h func(error) U) *Stage[T, U] {
	name := opName(s.Name(), "on_error")
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				runOnError(ctx, s.Name(), s.Invoke(input)(ctx), out, func(err error) asyncseq.Seq[emission.Emission] {
					return asyncseq.FromValues(emission.Value(emission.StageName(name), h(err), true))
				})
			}()
			return out
		}
	}
	return New[T, U](name, run)
}

// OnErrorStage behaves like OnErrorFunc but delegates recovery to another
// Stage invoked with the error value, re-emitting its full output (so a
// handler that itself emits intermediates is observable). Per the naming
// algorithm's adoption exception, the composed Stage adopts h's name rather
// than appending "@on_error".
func OnErrorStage[T, U any](s *Stage[T, U], h *Stage[error, U]) *Stage[T, U] {
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				runOnError(ctx, s.Name(), s.Invoke(input)(ctx), out, func(err error) asyncseq.Seq[emission.Emission] {
					return h.Invoke(err)
				})
			}()
			return out
		}
	}
	return New[T, U](h.Name(), run)
}
