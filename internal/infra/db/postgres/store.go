// Package postgres stores properties and bookings in PostgreSQL. Admission is
// serialized per property by locking the property row (SELECT ... FOR UPDATE)
// for the rest of the transaction, bounded by lock_timeout.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookingengine/internal/app/uow"
	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/infra/db/postgres/migrations"
)

type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// Open connects to dsn and applies migrations.
func Open(ctx context.Context, dsn string, lockTimeout time.Duration) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewStore(pool, lockTimeout), nil
}

func NewStore(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
	}
	return &Store{pool: pool, lockTimeout: lockTimeout}
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, classify("begin", err)
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = s.lockTimeout
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, fmt.Sprintf("%dms", timeout.Milliseconds())); err != nil {
		_ = tx.Rollback(ctx)
		return nil, classify("set lock_timeout", err)
	}
	return &Unit{tx: tx}, nil
}

// Property reads a property outside any unit of work, or inside the one carried by ctx.
func (s *Store) Property(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error) {
	return propertyRepo{q: s.querier(ctx)}.ByID(ctx, id)
}

// SeedProperties upserts catalog entries.
func (s *Store) SeedProperties(ctx context.Context, props ...*domainproperty.Property) error {
	repo := propertyRepo{q: s.pool}
	for _, p := range props {
		if err := repo.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) querier(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

var _ uow.UoWFactory = (*Store)(nil)
