package stage

import (
	"context"
	"strings"

	"github.com/rogeriochaves/langstream/asyncseq"
	"github.com/rogeriochaves/langstream/emission"
)

// Collect drains s fully, re-emitting every emission non-final, then emits
// the accumulated finals as the sole final of a new SingleOutputStage.
func Collect[T, U any](s *Stage[T, U]) *SingleOutputStage[T, []U] {
	name := opName(s.Name(), "collect")
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
					Value: emission.Value(emission.StageName(name), finals, true),
				})
			}()
			return out
		}
	}
	return &SingleOutputStage[T, []U]{Stage: Stage[T, []U]{name: name, run: run}}
}

// JoinStage is Collect followed by string concatenation with sep; it
// requires the underlying Stage's output type to be string.
func JoinStage[T any](s *Stage[T, string], sep string) *SingleOutputStage[T, string] {
	name := opName(s.Name(), "join")
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				finals, ok := drainAll[string](ctx, s.Invoke(input)(ctx), out)
				if !ok {
					return
				}
				deliver(ctx, out, asyncseq.Item[emission.Emission]{
					Value: emission.Value(emission.StageName(name), strings.Join(finals, sep), true),
				})
			}()
			return out
		}
	}
	return &SingleOutputStage[T, string]{Stage: Stage[T, string]{name: name, run: run}}
}

// GatherStage is equivalent to Collect(s).Gather(): it waits for all of s's
// finals (each itself a lazy sequence of V) to be known, then drives them
// concurrently, returning [][]V with outer and inner order preserved.
func GatherStage[T, V any](s *Stage[T, asyncseq.Seq[V]]) *SingleOutputStage[T, [][]V] {
	name := opName(s.Name(), "gather")
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				finals, ok := drainAll[asyncseq.Seq[V]](ctx, s.Invoke(input)(ctx), out)
				if !ok {
					return
				}
				results, err := asyncseq.Gather(ctx, finals)
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
