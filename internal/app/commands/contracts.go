// Package commands routes writes on bookings and properties to exactly one
// handler each.
package commands

import (
	"context"
	"errors"
	"fmt"
)

// Command is a write on reservation state. Key names the handler and must be a
// constant of the type: buses resolve it from the zero value at registration.
type Command interface {
	Key() string
}

type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

var (
	ErrHandlerNotFound = errors.New("commands: no handler registered")
	ErrInvalidCommand  = errors.New("commands: handler received a foreign command")
	ErrResultType      = errors.New("commands: unexpected result type")
)

// Dispatch sends cmd through bus and returns the handler's typed result.
// A nil result yields the zero R.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var out R
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil || res == nil {
		return out, err
	}
	typed, ok := res.(R)
	if !ok {
		return out, fmt.Errorf("%w: %s returned %T", ErrResultType, cmd.Key(), res)
	}
	return typed, nil
}
