// Package emission defines the envelope that carries every value across a
// Stage boundary.
package emission

import "fmt"

// StageName identifies the Stage that produced an Emission. Composed stages
// build these compositionally, e.g. "Words@map@join".
type StageName string

// Emission is the universal unit crossing Stage boundaries. Data is carried
// as any because a single lazy sequence threads payloads from Stages of
// different concrete output types as it is re-emitted upstream; only the
// final-path payload is ever type-asserted back to a concrete Go type.
type Emission struct {
	Stage StageName
	Data  any
	Final bool
}

// Value wraps a value produced by the named stage with the given finality.
// Combinators pass true for their own outputs; on_error passes false for
// the error marker it emits before invoking its handler.
func Value(stage StageName, data any, final bool) Emission {
	return Emission{Stage: stage, Data: data, Final: final}
}

// Passthrough re-emits an Emission produced by a nested Stage. The producing
// stage's identity and payload are preserved verbatim; finality is always
// forced to false, since a passthrough is by definition not part of the
// receiving Stage's own logical output.
func Passthrough(e Emission) Emission {
	return Emission{Stage: e.Stage, Data: e.Data, Final: false}
}

// Render produces a human-readable representation of the Emission's payload.
// It dispatches to the payload's Render method when it implements Renderer,
// otherwise falls back to structural formatting.
func Render(e Emission) string {
	if r, ok := e.Data.(Renderer); ok {
		return r.Render()
	}
	return fmt.Sprintf("%v", e.Data)
}

// Renderer is implemented by payload types that want a custom debug
// rendering. Absence is tolerated; Render falls back to fmt formatting.
type Renderer interface {
	Render() string
}

func (e Emission) String() string {
	finality := "~"
	if e.Final {
		finality = "="
	}
	return fmt.Sprintf("%s%s%s", e.Stage, finality, Render(e))
}
