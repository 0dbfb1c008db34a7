// Package stage implements the engine's core abstraction: a named, lazy,
// unary transformer from an input value to an asynchronous sequence of
// Emissions. Combinators compose Stages into larger Stages; because Go
// forbids a method from introducing a type parameter absent from its
// receiver, every combinator here is a free top-level generic function
// rather than a method (stage.Map(s, f), not s.Map(f)).
package stage

import (
	"context"

	"github.com/rogeriochaves/langstream/asyncseq"
	"github.com/rogeriochaves/langstream/emission"
)

// Stage is a pure, immutable value: a name and a behavior mapping an input
// of type T to a lazy sequence of Emissions carrying U-typed finals.
// Stages hold no per-invocation state; a generator spawned per call holds
// whatever accumulator or pending-value state a combinator needs.
type Stage[T, U any] struct {
	name string
	run  func(input T) asyncseq.Seq[emission.Emission]
}

// New builds a Stage directly from a function producing a lazy sequence of
// Emissions. This is the low-level constructor combinators and adapters use
// when they already think in terms of the Emission envelope; leaf Stages
// are usually built with FromSeq or FromFunc instead.
func New[T, U any](name string, run func(T) asyncseq.Seq[emission.Emission]) *Stage[T, U] {
	return &Stage[T, U]{name: name, run: run}
}

// FromSeq builds a leaf Stage that maps its input to a lazy sequence of U,
// each value becoming a final Emission under this Stage's own name. This is
// the constructor behind scenarios like Stage("Words", s -> from_values(...)).
func FromSeq[T, U any](name string, produce func(T) asyncseq.Seq[U]) *Stage[T, U] {
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				src := produce(input)(ctx)
				for item := range src {
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
	return New[T, U](name, run)
}

// Name returns the Stage's compositional name, e.g. "Words@map@join".
func (s *Stage[T, U]) Name() string {
	return s.name
}

// Invoke runs the Stage on input, returning its lazy sequence of Emissions.
// Building the sequence does no work; the underlying goroutine only begins
// producing once the caller starts ranging over the channel it returns.
func (s *Stage[T, U]) Invoke(input T) asyncseq.Seq[emission.Emission] {
	return s.run(input)
}

// deliver sends item to out, returning false if ctx was cancelled first.
// Every combinator in this package funnels its sends through this helper so
// cancellation unwinds identically everywhere.
func deliver[V any](ctx context.Context, out chan<- asyncseq.Item[V], item asyncseq.Item[V]) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

// opName composes a combinator's default name, "<base>@<op>".
func opName(base, op string) string {
	return base + "@" + op
}
