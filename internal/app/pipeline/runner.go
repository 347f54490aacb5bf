package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var ErrRunnerNotConfigured = errors.New("pipeline: runner missing subscriber")

type registration struct {
	topic   string
	group   string
	members int
	handler Handler
}

// Runner owns the long-lived consumer loops. Every registered handler is
// wrapped with inbox deduplication and retry-then-park before it subscribes.
type Runner struct {
	Subscriber Subscriber
	Inbox      Inbox
	DeadLetter DeadLetter
	Policy     RetryPolicy
	Logger     *slog.Logger

	mu      sync.Mutex
	regs    []registration
	running atomic.Int64
	want    atomic.Int64
}

// Register adds a consumer group on topic with the given number of members.
func (r *Runner) Register(topic, group string, members int, h Handler) {
	if members <= 0 {
		members = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs = append(r.regs, registration{topic: topic, group: group, members: members, handler: h})
}

func (r *Runner) Run(ctx context.Context) error {
	if r.Subscriber == nil {
		return ErrRunnerNotConfigured
	}
	r.mu.Lock()
	regs := append([]registration(nil), r.regs...)
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, reg := range regs {
		h := WithInbox(WithRetry(reg.handler, reg.group, r.Policy, r.DeadLetter, r.log()), reg.group, r.Inbox, r.log())
		for m := 0; m < reg.members; m++ {
			r.want.Add(1)
			g.Go(func() error {
				r.running.Add(1)
				defer r.running.Add(-1)
				r.log().Info("consumer started", "topic", reg.topic, "group", reg.group, "member", m)
				err := r.Subscriber.Subscribe(gctx, reg.topic, reg.group, h)
				if err != nil && gctx.Err() == nil {
					r.log().Error("consumer stopped", "topic", reg.topic, "group", reg.group, "member", m, "error", err)
					return err
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// Healthy reports whether every registered member is consuming.
func (r *Runner) Healthy() bool {
	want := r.want.Load()
	return want > 0 && r.running.Load() == want
}

func (r *Runner) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
