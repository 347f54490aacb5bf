package uow

import (
	"context"
	"errors"
	"sync"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

type ctxKey struct{}

// ContextWithUnitOfWork stores the provided unit of work in context.
func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext retrieves a unit of work from context if present.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok && unit != nil
}

// Injector is implemented by units that carry driver state (a live transaction) in context.
type Injector interface {
	InjectContext(ctx context.Context) context.Context
}

// Bind returns ctx carrying unit and any driver state it injects.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(Injector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}

// BeginReadOnly reuses the unit already in ctx or opens a read-only one.
// The returned cleanup is never nil.
func BeginReadOnly(ctx context.Context, factory UoWFactory) (UnitOfWork, context.Context, func(), error) {
	if unit, ok := FromContext(ctx); ok {
		return unit, ctx, func() {}, nil
	}
	if factory == nil {
		return nil, ctx, func() {}, ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, func() {}, err
	}
	execCtx := Bind(ctx, unit)
	cleanup := func() {
		_ = unit.Rollback(execCtx)
	}
	return unit, execCtx, cleanup, nil
}

type hooksKey struct{}

// CommitHooks holds callbacks that run once the surrounding unit commits.
type CommitHooks struct {
	mu  sync.Mutex
	fns []func()
}

func NewCommitHooks() *CommitHooks { return &CommitHooks{} }

// ContextWithCommitHooks stores hooks in ctx for AfterCommit.
func ContextWithCommitHooks(ctx context.Context, hooks *CommitHooks) context.Context {
	return context.WithValue(ctx, hooksKey{}, hooks)
}

// AfterCommit defers fn until the unit in ctx commits. A rolled-back unit
// never runs it. Without hooks in ctx fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	hooks, ok := ctx.Value(hooksKey{}).(*CommitHooks)
	if !ok || hooks == nil {
		fn()
		return
	}
	hooks.mu.Lock()
	hooks.fns = append(hooks.fns, fn)
	hooks.mu.Unlock()
}

// Run calls the registered callbacks in order and forgets them.
func (h *CommitHooks) Run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
