// Package errors defines the error taxonomy shared by the editor engine.
//
// Every failure surfaced by the engine is an *EditorError carrying a Kind, the
// operation that failed and the underlying cause. Each Kind has a sentinel so
// callers can branch with the standard library:
//
//	if errors.Is(err, apperrors.ErrInvalidRegion) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for targeted handling by the caller.
type Kind string

const (
	KindDecode                  Kind = "decode"
	KindNotReady                Kind = "not_ready"
	KindInvalidRegion           Kind = "invalid_region"
	KindInvalidDimensions       Kind = "invalid_dimensions"
	KindUnsupportedFormat       Kind = "unsupported_format"
	KindAccelerationUnavailable Kind = "acceleration_unavailable"
	KindEngineUnavailable       Kind = "engine_unavailable"
	KindInvalidArgument         Kind = "invalid_argument"
	KindOutOfBounds             Kind = "out_of_bounds"
	KindEncode                  Kind = "encode"
	KindCanceled                Kind = "canceled"
)

// Sentinel errors, one per Kind.
var (
	ErrDecode                  = errors.New("malformed or unsupported image data")
	ErrNotReady                = errors.New("session not ready")
	ErrInvalidRegion           = errors.New("invalid crop region")
	ErrInvalidDimensions       = errors.New("invalid dimensions")
	ErrUnsupportedFormat       = errors.New("unsupported image format")
	ErrAccelerationUnavailable = errors.New("accelerated rendering unavailable")
	ErrEngineUnavailable       = errors.New("engine unavailable")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrOutOfBounds             = errors.New("coordinates out of bounds")
	ErrEncode                  = errors.New("encoding failed")
	ErrCanceled                = errors.New("operation canceled")
)

var sentinels = map[Kind]error{
	KindDecode:                  ErrDecode,
	KindNotReady:                ErrNotReady,
	KindInvalidRegion:           ErrInvalidRegion,
	KindInvalidDimensions:       ErrInvalidDimensions,
	KindUnsupportedFormat:       ErrUnsupportedFormat,
	KindAccelerationUnavailable: ErrAccelerationUnavailable,
	KindEngineUnavailable:       ErrEngineUnavailable,
	KindInvalidArgument:         ErrInvalidArgument,
	KindOutOfBounds:             ErrOutOfBounds,
	KindEncode:                  ErrEncode,
	KindCanceled:                ErrCanceled,
}

// EditorError is the structured error type used throughout the module.
type EditorError struct {
	Kind Kind
	Op   string // operation name, e.g. "crop.set_region"
	Err  error
}

func (e *EditorError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
}

func (e *EditorError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's Kind, so errors.Is works even when
// the wrapped cause is a third-party error.
func (e *EditorError) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// New creates an EditorError wrapping err.
func New(kind Kind, op string, err error) *EditorError {
	return &EditorError{Kind: kind, Op: op, Err: err}
}

// Errorf creates an EditorError with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *EditorError {
	return &EditorError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap wraps an existing error with context. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(kind, op, err)
}

// IsKind reports whether err is an EditorError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ee *EditorError
	if errors.As(err, &ee) {
		return ee.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err, or "" when err is not an EditorError.
func KindOf(err error) Kind {
	var ee *EditorError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}
