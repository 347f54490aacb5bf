package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/money"
)

const propertyColumns = `id, owner_id, nightly_rate, max_guests, available_from, available_until, active, updated_at`

type propertyRepo struct {
	q querier
}

func (r propertyRepo) ByID(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error) {
	return r.one(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id)
}

func (r propertyRepo) LockForUpdate(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error) {
	return r.one(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1 FOR UPDATE`, id)
}

func (r propertyRepo) one(ctx context.Context, query string, id domainproperty.ID) (*domainproperty.Property, error) {
	var (
		p           domainproperty.Property
		pid         string
		rate        int64
		from, until *time.Time
	)
	err := r.q.QueryRow(ctx, query, string(id)).Scan(&pid, &p.OwnerID, &rate, &p.MaxGuests, &from, &until, &p.Active, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainproperty.ErrNotFound
		}
		return nil, classify("load property", err)
	}
	p.ID = domainproperty.ID(pid)
	p.NightlyRate = money.Money(rate)
	if from != nil {
		p.Window.From = from.UTC()
	}
	if until != nil {
		p.Window.Until = until.UTC()
	}
	return &p, nil
}

func (r propertyRepo) Save(ctx context.Context, p *domainproperty.Property) error {
	const query = `
INSERT INTO properties (id, owner_id, nightly_rate, max_guests, available_from, available_until, active, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	owner_id = EXCLUDED.owner_id,
	nightly_rate = EXCLUDED.nightly_rate,
	max_guests = EXCLUDED.max_guests,
	available_from = EXCLUDED.available_from,
	available_until = EXCLUDED.available_until,
	active = EXCLUDED.active,
	updated_at = EXCLUDED.updated_at`
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := r.q.Exec(ctx, query, string(p.ID), p.OwnerID, p.NightlyRate.Int64(), p.MaxGuests,
		nullableDate(p.Window.From), nullableDate(p.Window.Until), p.Active, updated)
	return classify("save property", err)
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
