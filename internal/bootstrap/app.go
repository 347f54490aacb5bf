// Package bootstrap assembles the reservation engine from configuration:
// store, pipeline, support stores, the service façade and its workers.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bookingengine/internal/app/pipeline"
	"bookingengine/internal/app/reservation"
	"bookingengine/internal/app/workers"
	domainbooking "bookingengine/internal/domain/booking"
	"bookingengine/internal/infra/cache"
	"bookingengine/internal/infra/config"
	ginserver "bookingengine/internal/infra/http/gin"
	"bookingengine/internal/infra/obs"
)

// App is a fully wired engine. Background loops start with Run.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Service   *reservation.Service
	Runner    *pipeline.Runner
	Publisher *pipeline.AsyncPublisher
	Checks    map[string]obs.Check

	cache   *cache.PropertyCache
	closers []func(ctx context.Context) error
}

// Build connects every backend named by cfg. On failure, whatever was opened is closed.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	app := &App{Config: cfg, Logger: logger, Checks: map[string]obs.Check{}}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.track("store", store.check, store.close)

	broker, err := openBroker(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.track("", nil, broker.close)

	support, err := openSupport(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.track("mongo", support.check, support.close)

	tl, err := openTimeline(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.track("", nil, tl.close)

	if err := loadPropertyFixtures(ctx, cfg.PropertiesFixtures, store.seed, logger); err != nil {
		logger.Warn("property fixtures load failed", "error", err, "path", cfg.PropertiesFixtures)
	}

	app.cache = cache.NewPropertyCache(store, cfg.PropertyCacheTTL, 0)
	app.Publisher = pipeline.NewAsyncPublisher(broker.producer, pipeline.AsyncOptions{
		Buffer: cfg.PublishBuffer,
		Logger: logger.With("component", "publisher"),
	})

	topics := pipeline.Topics{Prefix: cfg.KafkaTopicPrefix}
	app.Service = reservation.New(reservation.Options{
		UoWFactory:   store.factory,
		Publisher:    app.Publisher,
		Topics:       topics,
		Source:       "reservations",
		Idempotency:  support.idempotency,
		RetryBackoff: cfg.StoreBackoff,
		LockTimeout:  cfg.LockTimeout,
		Properties:   app.cache,
		Cache:        app.cache,
		Timeline:     tl.store,
		Policy:       domainbooking.CancellationPolicy{LeadTime: cfg.CancellationLeadTime},
		Logger:       logger,
	})

	mode, err := workers.ParseDecisionMode(cfg.DecisionMode)
	if err != nil {
		return nil, err
	}
	app.Runner = &pipeline.Runner{
		Subscriber: broker.subscriber,
		Inbox:      support.inbox,
		DeadLetter: support.deadLetters,
		Policy: pipeline.RetryPolicy{
			Backoff:     cfg.ConsumerBackoff,
			MaxAttempts: cfg.ConsumerMaxAttempts,
		},
		Logger: logger.With("component", "runner"),
	}
	workers.Set{
		Decision: &workers.DecisionWorker{Bookings: app.Service, Mode: mode, Logger: logger},
		Notifications: &workers.NotificationWorker{
			Notifier: workers.PipelineNotifier{Producer: broker.producer, Topic: topics.Notifications()},
			Logger:   logger,
		},
		Timeline: &workers.TimelineWorker{Store: tl.store, Logger: logger},
		Members:  1,
	}.Register(app.Runner, topics)

	return app, nil
}

func (a *App) track(name string, check obs.Check, closer func(ctx context.Context) error) {
	if name != "" && check != nil {
		a.Checks[name] = check
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
}

// Run drives the publisher, and the consumer groups when workers is true,
// until ctx is done.
func (a *App) Run(ctx context.Context, runWorkers bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Publisher.Run(gctx) })
	if runWorkers {
		g.Go(func() error { return a.Runner.Run(gctx) })
	}
	return g.Wait()
}

// HTTPHandlers returns the gin handlers bound to the service.
func (a *App) HTTPHandlers() ginserver.Handlers {
	return ginserver.Handlers{
		Booking:  ginserver.BookingHandler{Service: a.Service, Logger: a.Logger},
		Property: ginserver.PropertyHandler{Service: a.Service, Logger: a.Logger},
		AuthMiddleware: ginserver.AuthMiddleware{
			Tokens: ginserver.Tokens{Secret: []byte(a.Config.JWTSecret)},
			Logger: a.Logger,
		}.Handle,
	}
}

// Close releases backends in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	if a.cache != nil {
		a.cache.Stop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
