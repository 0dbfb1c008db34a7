// Package debugtap provides the engine's final-filter and tracing
// utilities: keep-final projections, collect-final/join-final shortcuts,
// and a Debug wrapper that prints a human trace and opens an OpenTelemetry
// span per invocation without altering ordering or finality.
package debugtap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rogeriochaves/langstream/asyncseq"
	"github.com/rogeriochaves/langstream/emission"
	"github.com/rogeriochaves/langstream/engineconfig"
	"github.com/rogeriochaves/langstream/stage"
)

var tracer = otel.Tracer("github.com/rogeriochaves/langstream/debugtap")

// FilterFinal retains only final Emissions from seq and projects them down
// to their payload.
func FilterFinal(seq asyncseq.Seq[emission.Emission]) asyncseq.Seq[any] {
	return func(ctx context.Context) <-chan asyncseq.Item[any] {
		out := make(chan asyncseq.Item[any])
		go func() {
			defer close(out)
			for item := range seq(ctx) {
				if item.Err != nil {
					select {
					case out <- asyncseq.Item[any]{Err: item.Err}:
					case <-ctx.Done():
					}
					return
				}
				if !item.Value.Final {
					continue
				}
				select {
				case out <- asyncseq.Item[any]{Value: item.Value.Data}:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out
	}
}

// CollectFinal is collect composed with FilterFinal.
func CollectFinal(ctx context.Context, seq asyncseq.Seq[emission.Emission]) ([]any, error) {
	return asyncseq.Collect(ctx, FilterFinal(seq))
}

// JoinFinal is join composed with FilterFinal; it requires every final
// payload to be a string.
func JoinFinal(ctx context.Context, seq asyncseq.Seq[emission.Emission], sep string) (string, error) {
	values, err := CollectFinal(ctx, seq)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("debugtap: join_final: payload %v is not a string", v)
		}
		parts[i] = s
	}
	return strings.Join(parts, sep), nil
}

// Debug wraps s with a tracing side effect written to w (os.Stderr when w
// is nil), using the default Config for everything else.
func Debug[T, U any](s *stage.Stage[T, U], w io.Writer) *stage.Stage[T, U] {
	cfg := engineconfig.DefaultConfig()
	cfg.DebugWriter = w
	return DebugWithConfig(cfg, s)
}

// DebugWithConfig wraps s with a tracing side effect: it prints a header to
// cfg.DebugWriter whenever the producing stage's name changes, prints each
// payload inline via emission.Render, and opens an OpenTelemetry span
// bracketing the whole invocation recording the emission count and final
// failure status. It does not alter ordering or finality; under
// pipe/gather, interleaved output from concurrent branches is expected and
// not synchronized.
func DebugWithConfig[T, U any](cfg *engineconfig.Config, s *stage.Stage[T, U]) *stage.Stage[T, U] {
	w := cfg.DebugWriter
	if w == nil {
		w = os.Stderr
	}
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			invocationID := uuid.NewString()
			spanCtx, span := tracer.Start(ctx, s.Name(), trace.WithAttributes(
				attribute.String("langstream.invocation_id", invocationID),
			))
			go func() {
				defer close(out)
				defer span.End()

				lastStage := emission.StageName("")
				count := 0
				defer func() {
					span.SetAttributes(attribute.Int("langstream.emission_count", count))
				}()
				for item := range s.Invoke(input)(spanCtx) {
					if item.Err != nil {
						span.RecordError(item.Err)
						span.SetStatus(codes.Error, item.Err.Error())
						fmt.Fprintf(w, "[%s] error: %v\n", invocationID[:8], item.Err)
						select {
						case out <- item:
						case <-ctx.Done():
						}
						return
					}
					e := item.Value
					count++
					if e.Stage != lastStage {
						fmt.Fprintf(w, "--- %s ---\n", e.Stage)
						lastStage = e.Stage
					}
					fmt.Fprintf(w, "[%s] %s\n", invocationID[:8], emission.Render(e))
					select {
					case out <- item:
					case <-ctx.Done():
						return
					}
				}
			}()
			return out
		}
	}
	return stage.New[T, U](s.Name(), run)
}
