package middleware

import (
	"context"
	"fmt"

	"bookingengine/internal/app/commands"
	"bookingengine/internal/app/queries"
	"bookingengine/internal/domain/booking"
	"bookingengine/internal/domain/shared/fault"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// Acting is implemented by messages issued on behalf of an authenticated caller.
type Acting interface {
	ActingAs() booking.Actor
}

// RequireActor rejects acting messages that arrive without an identified caller.
// Per-booking ownership rules stay with the aggregate.
type RequireActor struct{}

func (RequireActor) Authorize(_ context.Context, message any) error {
	acting, ok := message.(Acting)
	if !ok {
		return nil
	}
	actor := acting.ActingAs()
	if actor.IsZero() {
		return fmt.Errorf("%w: caller identity required", fault.ErrForbidden)
	}
	if _, err := booking.ParseRole(string(actor.Role)); err != nil {
		return fmt.Errorf("%w: unknown role %q", fault.ErrForbidden, actor.Role)
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
