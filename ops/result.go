package ops

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/backend/gpu"
	"github.com/gogpu/tilefx/internal/pool"
)

// Result kinds. Every dispatch entry point reports exactly one.
var (
	// ErrPrecondition marks caller errors: missing layers, mismatched
	// shapes, areas outside the destination, or no backend valid on every
	// operand.
	ErrPrecondition = errors.New("ops: precondition violated")

	// ErrUnsupportedFormat marks pixel formats a kernel cannot process.
	ErrUnsupportedFormat = errors.New("ops: unsupported pixel format")

	// ErrResourceExhausted marks pool, budget and queue exhaustion.
	ErrResourceExhausted = errors.New("ops: resource exhausted")

	// ErrDevice marks any other backend failure.
	ErrDevice = errors.New("ops: device failure")
)

// Kind classifies a Result.
type Kind uint8

const (
	OK Kind = iota
	Precondition
	UnsupportedFormat
	ResourceExhausted
	DeviceFailure
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case Precondition:
		return "precondition"
	case UnsupportedFormat:
		return "unsupported-format"
	case ResourceExhausted:
		return "resource-exhausted"
	case DeviceFailure:
		return "device-failure"
	}
	return fmt.Sprintf("kind(%d)", k)
}

func (k Kind) sentinel() error {
	switch k {
	case Precondition:
		return ErrPrecondition
	case UnsupportedFormat:
		return ErrUnsupportedFormat
	case ResourceExhausted:
		return ErrResourceExhausted
	case DeviceFailure:
		return ErrDevice
	}
	return nil
}

// Result is the outcome of one operation.
type Result struct {
	Kind Kind

	// Fired holds the backends whose kernel ran to completion.
	Fired backend.Set

	// Cause is the underlying error of a failed result.
	Cause error
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Kind == OK }

// Err returns nil for a successful result. Otherwise the error matches the
// kind sentinel (ErrPrecondition, ...) and the cause under errors.Is.
func (r Result) Err() error {
	if r.Kind == OK {
		return nil
	}
	cause := r.Cause
	if cause == nil {
		cause = errors.New(r.Kind.String())
	}
	return errors.Mark(cause, r.Kind.sentinel())
}

func (r Result) String() string {
	if r.Kind == OK {
		return "ok " + r.Fired.String()
	}
	return fmt.Sprintf("%s %s: %v", r.Kind, r.Fired, r.Cause)
}

func ok(fired backend.Set) Result { return Result{Kind: OK, Fired: fired} }

func failf(k Kind, format string, args ...any) Result {
	return Result{Kind: k, Cause: errors.Newf(format, args...)}
}

// fail classifies err by the sentinels of the backends and the layer.
func fail(err error, fired backend.Set) Result {
	return Result{Kind: classify(err), Fired: fired, Cause: err}
}

func classify(err error) Kind {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrPrecondition):
		return Precondition
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, backend.ErrUnsupportedFormat):
		return UnsupportedFormat
	case errors.Is(err, ErrResourceExhausted),
		errors.Is(err, pool.ErrNotFound),
		errors.Is(err, gpu.ErrMemoryBudgetExceeded),
		errors.Is(err, gpu.ErrGPUTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return ResourceExhausted
	case errors.Is(err, backend.ErrOutOfBounds),
		errors.Is(err, backend.ErrWrongBackend),
		errors.Is(err, backend.ErrEmpty),
		errors.Is(err, backend.ErrBufferSize),
		errors.Is(err, tilefx.ErrNotResident),
		errors.Is(err, tilefx.ErrStale),
		errors.Is(err, tilefx.ErrMismatch),
		errors.Is(err, tilefx.ErrNoDevice):
		return Precondition
	}
	return DeviceFailure
}

// Chain runs steps in order and returns the first failed result. The fired
// set of a successful chain is the intersection of every step.
func Chain(steps ...func() Result) Result {
	fired := backend.SetOf(backend.All...)
	for _, step := range steps {
		r := step()
		if !r.OK() {
			return r
		}
		fired = fired.Intersect(r.Fired)
	}
	return ok(fired)
}
