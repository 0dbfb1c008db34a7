package stage

import (
	"context"

	"github.com/rogeriochaves/langstream/asyncseq"
	"github.com/rogeriochaves/langstream/emission"
	"github.com/rogeriochaves/langstream/pipelineerr"
)

// Map returns a new Stage named "<s.Name()>@map". For every final u emitted
// by s, it emits f(u) as a final; s's own emissions are re-emitted
// non-final first, so the order is always: original item, then its mapped
// image, interleaved across items as they arrive.
func Map[T, U, V any](s *Stage[T, U], f func(U) V) *Stage[T, V] {
	name := opName(s.Name(), "map")
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				for item := range s.Invoke(input)(ctx) {
					if item.Err != nil {
						deliver(ctx, out, item)
						return
					}
					e := item.Value
					if !deliver(ctx, out, asyncseq.Item[emission.Emission]{Value: emission.Passthrough(e)}) {
						return
					}
					if !e.Final {
						continue
					}
					u, ok := e.Data.(U)
					if !ok {
						deliver(ctx, out, asyncseq.Item[emission.Emission]{
							Err: pipelineerr.NewInvariantViolation(name, "map: final payload is not of the expected type"),
						})
						return
					}
					mapped := emission.Value(emission.StageName(name), f(u), true)
					if !deliver(ctx, out, asyncseq.Item[emission.Emission]{Value: mapped}) {
						return
					}
				}
			}()
			return out
		}
	}
	return New[T, V](name, run)
}

// Filter returns a new Stage named "<s.Name()>@filter". It re-emits all of
// s's emissions non-final, and for each final u with p(u)=true, emits u as
// a final under the new name.
func Filter[T, U any](s *Stage[T, U], p func(U) bool) *Stage[T, U] {
	name := opName(s.Name(), "filter")
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				for item := range s.Invoke(input)(ctx) {
					if item.Err != nil {
						deliver(ctx, out, item)
						return
					}
					e := item.Value
					if !deliver(ctx, out, asyncseq.Item[emission.Emission]{Value: emission.Passthrough(e)}) {
						return
					}
					if !e.Final {
						continue
					}
					u, ok := e.Data.(U)
					if !ok {
						deliver(ctx, out, asyncseq.Item[emission.Emission]{
							Err: pipelineerr.NewInvariantViolation(name, "filter: final payload is not of the expected type"),
						})
						return
					}
					if !p(u) {
						continue
					}
					passed := emission.Value(emission.StageName(name), u, true)
					if !deliver(ctx, out, asyncseq.Item[emission.Emission]{Value: passed}) {
						return
					}
				}
			}()
			return out
		}
	}
	return New[T, U](name, run)
}
