package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gocql/gocql"

	"bookingengine/internal/app/middleware"
	"bookingengine/internal/app/pipeline"
	"bookingengine/internal/app/timeline"
	"bookingengine/internal/app/uow"
	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/infra/broker/amqp"
	"bookingengine/internal/infra/broker/kafka"
	brokermemory "bookingengine/internal/infra/broker/memory"
	"bookingengine/internal/infra/config"
	"bookingengine/internal/infra/db/mongo"
	"bookingengine/internal/infra/db/postgres"
	"bookingengine/internal/infra/db/scylla"
	"bookingengine/internal/infra/obs"
	"bookingengine/internal/infra/storage/memory"
)

// storeBackend is the reservation store plus the hooks the rest of the wiring needs.
type storeBackend struct {
	factory  uow.UoWFactory
	property func(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error)
	seed     func(ctx context.Context, props ...*domainproperty.Property) error
	check    obs.Check
	close    func(ctx context.Context) error
}

func (s storeBackend) Property(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error) {
	return s.property(ctx, id)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storeBackend, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.LockTimeout)
		if err != nil {
			return storeBackend{}, err
		}
		logger.Info("reservation store ready", "driver", cfg.StoreDriver)
		return storeBackend{
			factory:  store,
			property: store.Property,
			seed:     store.SeedProperties,
			check:    store.Ping,
			close: func(context.Context) error {
				store.Close()
				return nil
			},
		}, nil
	default:
		store := memory.NewStore(cfg.LockTimeout)
		logger.Info("reservation store ready", "driver", config.StoreMemory)
		return storeBackend{
			factory:  store,
			property: store.Property,
			seed: func(_ context.Context, props ...*domainproperty.Property) error {
				store.SeedProperties(props...)
				return nil
			},
		}, nil
	}
}

type brokerBackend struct {
	producer   pipeline.Producer
	subscriber pipeline.Subscriber
	close      func(ctx context.Context) error
}

func openBroker(cfg config.Config, logger *slog.Logger) (brokerBackend, error) {
	switch cfg.PipelineDriver {
	case config.PipelineKafka:
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig("bookingengine"))
		if err != nil {
			return brokerBackend{}, fmt.Errorf("kafka producer: %w", err)
		}
		return brokerBackend{
			producer:   producer,
			subscriber: &kafka.Subscriber{Brokers: cfg.KafkaBrokers, Logger: logger},
			close:      func(context.Context) error { return producer.Close() },
		}, nil
	case config.PipelineAMQP:
		broker, err := amqp.Dial(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return brokerBackend{}, fmt.Errorf("amqp: %w", err)
		}
		return brokerBackend{
			producer:   broker,
			subscriber: broker,
			close:      func(context.Context) error { return broker.Close() },
		}, nil
	default:
		broker := brokermemory.New(brokermemory.Options{Logger: logger})
		return brokerBackend{
			producer:   broker,
			subscriber: broker,
			close:      func(context.Context) error { return broker.Close() },
		}, nil
	}
}

// supportBackend holds the idempotency, inbox and dead-letter stores.
type supportBackend struct {
	idempotency middleware.IdempotencyStore
	inbox       pipeline.Inbox
	deadLetters pipeline.DeadLetter
	check       obs.Check
	close       func(ctx context.Context) error
}

func openSupport(ctx context.Context, cfg config.Config, logger *slog.Logger) (supportBackend, error) {
	if cfg.MongoURI == "" {
		logger.Info("support stores in memory", "reason", "MONGO_URI not set")
		return supportBackend{
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			inbox:       memory.NewInbox(),
			deadLetters: memory.NewDeadLetters(),
		}, nil
	}
	client, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return supportBackend{}, fmt.Errorf("mongo: %w", err)
	}
	idem, err := mongo.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		_ = client.Close(ctx)
		return supportBackend{}, err
	}
	inbox, err := mongo.NewInboxStore(ctx, client.DB)
	if err != nil {
		_ = client.Close(ctx)
		return supportBackend{}, err
	}
	dead, err := mongo.NewDeadLetterStore(ctx, client.DB)
	if err != nil {
		_ = client.Close(ctx)
		return supportBackend{}, err
	}
	logger.Info("support stores ready", "driver", "mongo", "database", cfg.MongoDB)
	return supportBackend{
		idempotency: idem,
		inbox:       inbox,
		deadLetters: dead,
		check:       client.Ping,
		close:       client.Close,
	}, nil
}

type timelineBackend struct {
	store timeline.Store
	close func(ctx context.Context) error
}

func openTimeline(ctx context.Context, cfg config.Config, logger *slog.Logger) (timelineBackend, error) {
	if len(cfg.ScyllaHosts) == 0 {
		return timelineBackend{store: memory.NewTimeline()}, nil
	}
	session, err := scylla.NewSession(ctx, scylla.SessionConfig{
		Hosts:       cfg.ScyllaHosts,
		Keyspace:    cfg.ScyllaKeyspace,
		Timeout:     cfg.ScyllaTimeout,
		Consistency: gocql.LocalQuorum,
	}, logger)
	if err != nil {
		return timelineBackend{}, fmt.Errorf("scylla: %w", err)
	}
	return timelineBackend{
		store: scylla.NewTimelineStore(session, logger),
		close: func(context.Context) error {
			session.Close()
			return nil
		},
	}, nil
}

