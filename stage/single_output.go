package stage

import (
	"context"

	"github.com/rogeriochaves/langstream/asyncseq"
	"github.com/rogeriochaves/langstream/emission"
	"github.com/rogeriochaves/langstream/optional"
	"github.com/rogeriochaves/langstream/pipelineerr"
)

// SingleOutputStage is a Stage whose contract promises exactly one logical
// final value per invocation. A second final observed during drain raises
// pipelineerr.InvariantViolation; this is the stricter of the two stances
// the source historically took, chosen because silently keeping the last
// final would hide the class of bug this type exists to catch.
type SingleOutputStage[T, U any] struct {
	Stage[T, U]
}

// FromFunc builds a leaf SingleOutputStage from an ordinary synchronous
// function, producing exactly one final Emission per invocation.
func FromFunc[T, U any](name string, f func(T) U) *SingleOutputStage[T, U] {
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			return asyncseq.FromValues(emission.Value(emission.StageName(name), f(input), true))(ctx)
		}
	}
	return &SingleOutputStage[T, U]{Stage: Stage[T, U]{name: name, run: run}}
}

// drainSingle forwards every emission of src to out as a passthrough
// (finals included, so tracing still sees them) and returns the payload of
// the single final observed. A second final delivers InvariantViolation to
// out and returns ok=false; exhausting src without any final is reported by
// the caller via hasFinal=false, not as an error here, since some callers
// (GatherSingle on empty input) tolerate that.
func drainSingle[U any](ctx context.Context, selfName string, src <-chan asyncseq.Item[emission.Emission], out chan<- asyncseq.Item[emission.Emission]) (final U, hasFinal bool, ok bool) {
	for item := range src {
		if item.Err != nil {
			deliver(ctx, out, item)
			return final, false, false
		}
		e := item.Value
		if !deliver(ctx, out, asyncseq.Item[emission.Emission]{Value: emission.Passthrough(e)}) {
			return final, false, false
		}
		if !e.Final {
			continue
		}
		if hasFinal {
			deliver(ctx, out, asyncseq.Item[emission.Emission]{
				Err: pipelineerr.NewInvariantViolation(selfName, "single-output stage received a second final value"),
			})
			return final, false, false
		}
		u, assertOk := e.Data.(U)
		if !assertOk {
			deliver(ctx, out, asyncseq.Item[emission.Emission]{
				Err: pipelineerr.NewInvariantViolation(selfName, "single-output stage's final payload is not of the expected type"),
			})
			return final, false, false
		}
		final, hasFinal = u, true
	}
	return final, hasFinal, true
}

// MapSingle applies f to the single final of s, returning another
// SingleOutputStage. Forwards s's own emissions as passthroughs first.
func MapSingle[T, U, V any](s *SingleOutputStage[T, U], f func(U) V) *SingleOutputStage[T, V] {
	name := opName(s.Name(), "map")
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				final, hasFinal, ok := drainSingle[U](ctx, s.Name(), s.Invoke(input)(ctx), out)
				if !ok {
					return
				}
				if !hasFinal {
					deliver(ctx, out, asyncseq.Item[emission.Emission]{Err: pipelineerr.ErrEmptyOutput})
					return
				}
				mapped := emission.Value(emission.StageName(name), f(final), true)
				deliver(ctx, out, asyncseq.Item[emission.Emission]{Value: mapped})
			}()
			return out
		}
	}
	return &SingleOutputStage[T, V]{Stage: Stage[T, V]{name: name, run: run}}
}

// FilterSingle never drops the envelope: if p(final) is false, the single
// final becomes optional.None[U](), preserving single-output-ness instead
// of the weaker "becomes nil" behavior the source used.
func FilterSingle[T, U any](s *SingleOutputStage[T, U], p func(U) bool) *SingleOutputStage[T, optional.Optional[U]] {
	name := opName(s.Name(), "filter")
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				final, hasFinal, ok := drainSingle[U](ctx, s.Name(), s.Invoke(input)(ctx), out)
				if !ok {
					return
				}
				if !hasFinal {
					deliver(ctx, out, asyncseq.Item[emission.Emission]{Err: pipelineerr.ErrEmptyOutput})
					return
				}
				var result optional.Optional[U]
				if p(final) {
					result = optional.Some(final)
				} else {
					result = optional.None[U]()
				}
				deliver(ctx, out, asyncseq.Item[emission.Emission]{
					Value: emission.Value(emission.StageName(name), result, true),
				})
			}()
			return out
		}
	}
	return &SingleOutputStage[T, optional.Optional[U]]{Stage: Stage[T, optional.Optional[U]]{name: name, run: run}}
}

// AndThenFuncSingle passes the unwrapped single value (not a list) to f.
func AndThenFuncSingle[T, U, V any](s *SingleOutputStage[T, U], f func(U) V) *Stage[T, V] {
	name := opName(s.Name(), "and_then")
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				final, hasFinal, ok := drainSingle[U](ctx, s.Name(), s.Invoke(input)(ctx), out)
				if !ok {
					return
				}
				if !hasFinal {
					deliver(ctx, out, asyncseq.Item[emission.Emission]{Err: pipelineerr.ErrEmptyOutput})
					return
				}
				deliver(ctx, out, asyncseq.Item[emission.Emission]{
					Value: emission.Value(emission.StageName(name), f(final), true),
				})
			}()
			return out
		}
	}
	return New[T, V](name, run)
}

// AndThenStageSingle passes the unwrapped single value to g and adopts
// g's name, per the naming algorithm's adoption exception.
func AndThenStageSingle[T, U, V any](s *SingleOutputStage[T, U], g *Stage[U, V]) *Stage[T, V] {
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				final, hasFinal, ok := drainSingle[U](ctx, s.Name(), s.Invoke(input)(ctx), out)
				if !ok {
					return
				}
				if !hasFinal {
					deliver(ctx, out, asyncseq.Item[emission.Emission]{Err: pipelineerr.ErrEmptyOutput})
					return
				}
				for item := range g.Invoke(final)(ctx) {
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

// GatherSingle drives the single final's inner lazy sequences concurrently
// when that final is a []asyncseq.Seq[V], returning [][]V. Empty input (no inner
// sequences) yields an empty result rather than ErrEmptyOutput, per spec.
func GatherSingle[T, V any](s *SingleOutputStage[T, []asyncseq.Seq[V]]) *SingleOutputStage[T, [][]V] {
	name := opName(s.Name(), "gather")
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				final, hasFinal, ok := drainSingle[[]asyncseq.Seq[V]](ctx, s.Name(), s.Invoke(input)(ctx), out)
				if !ok {
					return
				}
				if !hasFinal {
					final = nil
				}
				results, err := asyncseq.Gather(ctx, final)
				if err != nil {
					deliver(ctx, out, asyncseq.Item[emission.Emission]{Err: err})
					return
				}
				deliver(ctx, out, asyncseq.Item[emission.Emission]{
					Value: emission.Value(emission.StageName(name), results, true),
				})
			}()
			return out
		}
	}
	return &SingleOutputStage[T, [][]V]{Stage: Stage[T, [][]V]{name: name, run: run}}
}

// PipeFuncSingle wraps the single final as a one-element lazy sequence
// before handing it to phi, then behaves like AndThenFuncSingle: every item
// phi's result stream produces is wrapped as a final Emission under
// "<s.Name()>@pipe" and forwarded.
func PipeFuncSingle[T, U, V any](s *SingleOutputStage[T, U], phi func(asyncseq.Seq[U]) asyncseq.Seq[V]) *Stage[T, V] {
	name := opName(s.Name(), "pipe")
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				final, hasFinal, ok := drainSingle[U](ctx, s.Name(), s.Invoke(input)(ctx), out)
				if !ok {
					return
				}
				if !hasFinal {
					deliver(ctx, out, asyncseq.Item[emission.Emission]{Err: pipelineerr.ErrEmptyOutput})
					return
				}
				results := phi(asyncseq.FromValues(final))
				for item := range results(ctx) {
					if item.Err != nil {
						deliver(ctx, out, asyncseq.Item[emission.Emission]{Err: item.Err})
						return
					}
					e := emission.Value(emission.StageName(name), item.Value, true)
					if !deliver(ctx, out, asyncseq.Item[emission.Emission]{Value: e}) {
						return
					}
				}
			}()
			return out
		}
	}
	return New[T, V](name, run)
}

// PipeStageSingle behaves like PipeFuncSingle but delegates to another
// Stage, adopting its name per the naming algorithm's adoption exception.
func PipeStageSingle[T, U, V any](s *SingleOutputStage[T, U], phi *Stage[asyncseq.Seq[U], V]) *Stage[T, V] {
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				final, hasFinal, ok := drainSingle[U](ctx, s.Name(), s.Invoke(input)(ctx), out)
				if !ok {
					return
				}
				if !hasFinal {
					deliver(ctx, out, asyncseq.Item[emission.Emission]{Err: pipelineerr.ErrEmptyOutput})
					return
				}
				for item := range phi.Invoke(asyncseq.FromValues(final))(ctx) {
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
	return New[T, V](phi.Name(), run)
}

// OnErrorFuncSingle preserves single-output-ness and the @on_error suffix.
func OnErrorFuncSingle[T, U any](s *SingleOutputStage[T, U], h func(error) U) *SingleOutputStage[T, U] {
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
	return &SingleOutputStage[T, U]{Stage: Stage[T, U]{name: name, run: run}}
}
