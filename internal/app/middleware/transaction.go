package middleware

import (
	"context"
	"errors"

	"bookingengine/internal/app/commands"
	"bookingengine/internal/app/outbox"
	"bookingengine/internal/app/uow"
)

var ErrUnitOfWorkMissing = errors.New("middleware: unit of work not found")

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs each command in its own unit of work. Events recorded by
// the handler are held back and reach the outer outbox only after commit, so a
// rolled-back attempt publishes nothing. Callbacks registered with
// uow.AfterCommit run after the outbox hand-off.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			unit, err := factory.Begin(ctx, opts)
			if err != nil {
				return nil, err
			}
			pending := outbox.NewCollector()
			hooks := uow.NewCommitHooks()
			execCtx := outbox.ContextWithOutbox(uow.Bind(ctx, unit), pending)
			execCtx = uow.ContextWithCommitHooks(execCtx, hooks)
			committed := false
			defer func() {
				if !committed {
					_ = unit.Rollback(execCtx)
				}
			}()

			res, err := nextFn(execCtx, cmd)
			if err != nil {
				return nil, err
			}
			if err := unit.Commit(execCtx); err != nil {
				return nil, err
			}
			committed = true
			defer hooks.Run()
			if parent, ok := outbox.FromContext(ctx); ok {
				if err := pending.MoveTo(ctx, parent); err != nil {
					return nil, err
				}
			}
			return res, nil
		})
	}
}
