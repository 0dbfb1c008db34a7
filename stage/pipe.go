package stage

import (
	"context"

	"github.com/rogeriochaves/langstream/asyncseq"
	"github.com/rogeriochaves/langstream/emission"
	"github.com/rogeriochaves/langstream/pipelineerr"
)

// teeForPipe duplicates s's emission stream into two independently-read
// branches, implementing pipe as tee + merge per the design notes.
func teeForPipe[T, U any](s *Stage[T, U], input T) (branchA, branchB asyncseq.Seq[emission.Emission]) {
	source := s.Invoke(input)
	branches := asyncseq.Tee(source, 2)
	return branches[0], branches[1]
}

// finalsOf projects a branch's stream down to the typed payload of its
// final Emissions only, discarding non-finals.
func finalsOf[U any](selfName string, branch asyncseq.Seq[emission.Emission]) asyncseq.Seq[U] {
	return func(ctx context.Context) <-chan asyncseq.Item[U] {
		out := make(chan asyncseq.Item[U])
		go func() {
			defer close(out)
			for item := range branch(ctx) {
				if item.Err != nil {
					deliver(ctx, out, asyncseq.Item[U]{Err: item.Err})
					return
				}
				if !item.Value.Final {
					continue
				}
				u, ok := item.Value.Data.(U)
				if !ok {
					deliver(ctx, out, asyncseq.Item[U]{
						Err: pipelineerr.NewInvariantViolation(selfName, "pipe: final payload is not of the expected type"),
					})
					return
				}
				if !deliver(ctx, out, asyncseq.Item[U]{Value: u}) {
					return
				}
			}
		}()
		return out
	}
}

// passthroughOf re-emits every item of branch as a non-final passthrough,
// for the tracing side of pipe.
func passthroughOf(branch asyncseq.Seq[emission.Emission]) asyncseq.Seq[emission.Emission] {
	return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
		out := make(chan asyncseq.Item[emission.Emission])
		go func() {
			defer close(out)
			for item := range branch(ctx) {
				if item.Err != nil {
					deliver(ctx, out, item)
					return
				}
				if !deliver(ctx, out, asyncseq.Item[emission.Emission]{Value: emission.Passthrough(item.Value)}) {
					return
				}
			}
		}()
		return out
	}
}

// PipeFunc duplicates s's output via tee: branch A is re-emitted non-final
// for tracing, branch B is filtered to finals and fed into phi; phi's
// results are wrapped as finals under "<s.Name()>@pipe" and merged back
// with A in real-time order.
func PipeFunc[T, U, V any](s *Stage[T, U], phi func(asyncseq.Seq[U]) asyncseq.Seq[V]) *Stage[T, V] {
	name := opName(s.Name(), "pipe")
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			branchA, branchB := teeForPipe(s, input)
			traced := passthroughOf(branchA)
			results := phi(finalsOf[U](s.Name(), branchB))
			wrapped := func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
				out := make(chan asyncseq.Item[emission.Emission])
				go func() {
					defer close(out)
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
			return asyncseq.Merge[emission.Emission](traced, wrapped)(ctx)
		}
	}
	return New[T, V](name, run)
}

// PipeStage behaves like PipeFunc but delegates the transformation to
// another Stage invoked with the lazy sequence of s's finals; the composed
// Stage adopts phi's name, per the naming algorithm's adoption exception.
func PipeStage[T, U, V any](s *Stage[T, U], phi *Stage[asyncseq.Seq[U], V]) *Stage[T, V] {
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			branchA, branchB := teeForPipe(s, input)
			traced := passthroughOf(branchA)
			results := phi.Invoke(finalsOf[U](s.Name(), branchB))
			return asyncseq.Merge[emission.Emission](traced, results)(ctx)
		}
	}
	return New[T, V](phi.Name(), run)
}
