// Package pipelineerr defines the engine's error taxonomy: failures
// originating outside the engine (AdapterError), programmer errors inside
// it (InvariantViolation), and consumer-driven cancellation
// (ErrUpstreamCancelled).
package pipelineerr

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyOutput is returned when a SingleOutputStage's source sequence
	// ends without producing any final value, by a combinator that requires
	// one (map, and_then, pipe).
	ErrEmptyOutput = errors.New("pipelineerr: single-output stage produced no final value")

	// ErrUpstreamCancelled names consumer-driven cancellation in the
	// taxonomy. The combinators in this module do not return it: when the
	// consumer's context is cancelled they stop sending and close their
	// channel, and asyncseq.Collect reports ctx.Err().
	ErrUpstreamCancelled = errors.New("pipelineerr: upstream cancelled")

	// ErrSequenceExhausted is the same value as asyncseq.ErrSequenceExhausted
	// (what NextItem returns), for callers that only import pipelineerr.
	ErrSequenceExhausted = errors.New("pipelineerr: sequence exhausted")
)

// AdapterError wraps any failure originating in an external collaborator
// (transport, protocol, rate limit) so the stage that raised it can be
// recovered with errors.As.
type AdapterError struct {
	Stage string
	Err   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %q failed: %v", e.Stage, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError wraps err as an AdapterError raised by the named stage.
func NewAdapterError(stage string, err error) *AdapterError {
	return &AdapterError{Stage: stage, Err: err}
}

// InvariantViolation represents a programmer error detected at runtime: a
// SingleOutputStage observing two final values, gather receiving a
// non-sequence element, or similar contract breaches the type system
// cannot prevent.
type InvariantViolation struct {
	Stage string
	Msg   string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated in stage %q: %s", e.Stage, e.Msg)
}

// NewInvariantViolation builds an InvariantViolation raised by the named
// stage.
func NewInvariantViolation(stage, msg string) *InvariantViolation {
	return &InvariantViolation{Stage: stage, Msg: msg}
}
