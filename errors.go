package rayknn

import (
	"errors"
	"fmt"

	"github.com/hupe1980/rayknn/internal/handle"
)

var (
	// ErrInvalidK is returned when k is negative.
	ErrInvalidK = errors.New("k must not be negative")

	// ErrInvalidRadius is returned when the search radius is negative or NaN.
	ErrInvalidRadius = errors.New("radius must be a non-negative number")

	// ErrInvalidPoint is returned when a point has a NaN or infinite coordinate.
	ErrInvalidPoint = errors.New("point must be finite")

	// ErrTooManyPrimitives is returned when primitive ids would overflow uint32.
	ErrTooManyPrimitives = errors.New("too many primitives")

	// ErrNotBuilt is returned when querying an accelerator before SetPoints or
	// a search before Build.
	ErrNotBuilt = errors.New("index not built")

	// ErrNotCommitted is returned when tracing a scene with pending changes.
	ErrNotCommitted = errors.New("scene not committed")

	// ErrReleased is returned when using or releasing an object that was
	// already released.
	ErrReleased = errors.New("already released")

	// ErrConcurrentRebuild is returned by SetPoints while queries are in flight.
	ErrConcurrentRebuild = errors.New("rebuild overlaps in-flight queries")

	// ErrCacheBusy is returned when a query cache is used by two queries at once.
	ErrCacheBusy = errors.New("query cache in use by another query")

	// ErrInvalidHandle is returned for handles that were never issued.
	ErrInvalidHandle = handle.ErrInvalid

	// ErrStaleHandle is returned for handles whose object was deleted.
	ErrStaleHandle = handle.ErrStale
)

// ErrorCode classifies diagnostics delivered to an ErrorHandler.
type ErrorCode int

const (
	// ErrorUnknown is an unclassified failure.
	ErrorUnknown ErrorCode = iota
	// ErrorInvalidArgument marks rejected caller input.
	ErrorInvalidArgument
	// ErrorInvalidOperation marks calls in the wrong state.
	ErrorInvalidOperation
	// ErrorOutOfMemory marks builds rejected by the memory limit.
	ErrorOutOfMemory
	// ErrorCanceled marks builds interrupted by their context.
	ErrorCanceled
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorInvalidArgument:
		return "invalid argument"
	case ErrorInvalidOperation:
		return "invalid operation"
	case ErrorOutOfMemory:
		return "out of memory"
	case ErrorCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ErrorHandler receives engine diagnostics.
type ErrorHandler func(code ErrorCode, msg string)

// ErrHandle reports a failed handle lookup on a Device.
//
// The registry error can be accessed via errors.Unwrap.
type ErrHandle struct {
	Kind   string
	Handle uint64
	cause  error
}

func (e *ErrHandle) Error() string {
	return fmt.Sprintf("%s handle %#x: %v", e.Kind, e.Handle, e.cause)
}

func (e *ErrHandle) Unwrap() error { return e.cause }

// ErrBuild reports a failed index or scene build.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrBuild struct {
	Primitives int
	cause      error
}

func (e *ErrBuild) Error() string {
	return fmt.Sprintf("build over %d primitives failed: %v", e.Primitives, e.cause)
}

func (e *ErrBuild) Unwrap() error { return e.cause }
