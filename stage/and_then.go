package stage

import (
	"context"

	"github.com/rogeriochaves/langstream/asyncseq"
	"github.com/rogeriochaves/langstream/emission"
	"github.com/rogeriochaves/langstream/pipelineerr"
)

// drainAll forwards every emission of src to out as a passthrough (finals
// included, turned non-final) and accumulates the payloads of every final
// observed, in order. It powers and_then, collect, join and gather, which
// all drain their source fully before invoking a successor on the
// accumulation.
func drainAll[U any](ctx context.Context, src <-chan asyncseq.Item[emission.Emission], out chan<- asyncseq.Item[emission.Emission]) (finals []U, ok bool) {
	for item := range src {
		if item.Err != nil {
			deliver(ctx, out, item)
			return nil, false
		}
		e := item.Value
		if !deliver(ctx, out, asyncseq.Item[emission.Emission]{Value: emission.Passthrough(e)}) {
			return nil, false
		}
		if !e.Final {
			continue
		}
		u, assertOk := e.Data.(U)
		if !assertOk {
			deliver(ctx, out, asyncseq.Item[emission.Emission]{
				Err: pipelineerr.NewInvariantViolation(string(e.Stage), "drain: final payload is not of the expected type"),
			})
			return nil, false
		}
		finals = append(finals, u)
	}
	return finals, true
}

// AndThenFunc drains s fully, re-emitting every emission as non-final, then
// invokes f on the accumulated finals and emits its result as the sole
// final under "<s.Name()>@and_then".
func AndThenFunc[T, U, V any](s *Stage[T, U], f func([]U) V) *Stage[T, V] {
	name := opName(s.Name(), "and_then")
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				finals, ok := drainAll[U](ctx, s.Invoke(input)(ctx), out)
				if !ok {
					return
				}
				deliver(ctx, out, asyncseq.Item[emission.Emission]{
					Value: emission.Value(emission.StageName(name), f(finals), true),
				})
			}()
			return out
		}
	}
	return New[T, V](name, run)
}

// AndThenStage drains s fully then invokes g on the accumulated finals,
// re-emitting g's entire output. Per the naming algorithm's adoption
// exception, the composed Stage adopts g's name.
func AndThenStage[T, U, V any](s *Stage[T, U], g *Stage[[]U, V]) *Stage[T, V] {
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				finals, ok := drainAll[U](ctx, s.Invoke(input)(ctx), out)
				if !ok {
					return
				}
				for item := range g.Invoke(finals)(ctx) {
					if !deliver(ctx, out, item) {
						return
					}
					if item.Err != nil {
						return
					}
				}
			}()
			return out
		}
	}
	return New[T, V](g.Name(), run)
}
