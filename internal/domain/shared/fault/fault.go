// Package fault defines the error kinds shared by every layer of the engine.
//
// Domain and infrastructure errors wrap exactly one of the sentinels below so
// callers can branch with errors.Is and transports can map KindOf(err) to a
// status code without knowing the concrete error.
package fault

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrBusy         = errors.New("busy")
	ErrTransient    = errors.New("transient store error")
	ErrUnavailable  = errors.New("unavailable")
)

// Kind is the machine-readable error code exposed to callers.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindInvalidState Kind = "invalid_state"
	KindBusy         Kind = "busy"
	KindTransient    Kind = "transient"
	KindUnavailable  Kind = "unavailable"
	KindInternal     Kind = "internal"
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrInvalidInput, KindInvalidInput},
	{ErrNotFound, KindNotFound},
	{ErrForbidden, KindForbidden},
	{ErrConflict, KindConflict},
	{ErrInvalidState, KindInvalidState},
	{ErrBusy, KindBusy},
	{ErrUnavailable, KindUnavailable},
	{ErrTransient, KindTransient},
}

// KindOf classifies err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// Sentinel returns the error matching kind, or nil for internal and unknown kinds.
func Sentinel(kind Kind) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.sentinel
		}
	}
	return nil
}

// New builds an error of the given kind with a formatted message.
func New(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Transient marks cause as retryable.
func Transient(cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, cause)
}

// Retryable reports whether an operation failing with err may succeed when repeated.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Permanent reports whether err describes a request that will never succeed as issued.
func Permanent(err error) bool {
	switch KindOf(err) {
	case KindInvalidInput, KindNotFound, KindForbidden:
		return true
	default:
		return false
	}
}
