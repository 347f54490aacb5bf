package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	domainbooking "bookingengine/internal/domain/booking"
	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/daterange"
	"bookingengine/internal/domain/shared/fault"
	"bookingengine/internal/domain/shared/money"
)

const bookingColumns = `id, property_id, traveler_id, owner_id, check_in, check_out, guests, special_requests,
	total_price, status, reason, version, created_at, updated_at`

var errStaleBooking = fmt.Errorf("%w: booking was modified concurrently", fault.ErrConflict)

type bookingRepo struct {
	q querier
}

func (r bookingRepo) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	rows, err := r.q.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	if err != nil {
		return nil, classify("load booking", err)
	}
	items, err := collect(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domainbooking.ErrNotFound
	}
	return items[0], nil
}

// Save inserts b or updates it when the stored version is older, so a stale
// writer never overwrites a newer status.
func (r bookingRepo) Save(ctx context.Context, b *domainbooking.Booking) error {
	const query = `
INSERT INTO bookings (` + bookingColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	reason = EXCLUDED.reason,
	version = EXCLUDED.version,
	updated_at = EXCLUDED.updated_at
WHERE bookings.version < EXCLUDED.version`
	tag, err := r.q.Exec(ctx, query,
		string(b.ID), string(b.PropertyID), b.TravelerID, b.OwnerID,
		b.Range.CheckIn, b.Range.CheckOut, b.Guests, b.SpecialRequests,
		b.TotalPrice.Int64(), string(b.Status), b.Reason, b.Version, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return classify("save booking", err)
	}
	if tag.RowsAffected() == 0 {
		return errStaleBooking
	}
	return nil
}

func (r bookingRepo) ActiveByProperty(ctx context.Context, propertyID domainproperty.ID) ([]*domainbooking.Booking, error) {
	rows, err := r.q.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
WHERE property_id = $1 AND status IN ('pending', 'accepted')
ORDER BY check_in`, string(propertyID))
	if err != nil {
		return nil, classify("active bookings", err)
	}
	return collect(rows)
}

func (r bookingRepo) ListByTraveler(ctx context.Context, travelerID string, filter domainbooking.ListFilter) (domainbooking.Page, error) {
	return r.list(ctx, "traveler_id", travelerID, filter)
}

func (r bookingRepo) ListByOwner(ctx context.Context, ownerID string, filter domainbooking.ListFilter) (domainbooking.Page, error) {
	return r.list(ctx, "owner_id", ownerID, filter)
}

// list is only called with a fixed column name.
func (r bookingRepo) list(ctx context.Context, column, actorID string, filter domainbooking.ListFilter) (domainbooking.Page, error) {
	filter = filter.Normalized()
	where := column + ` = $1 AND ($2 = '' OR status = $2)`

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE `+where, actorID, string(filter.Status)).Scan(&total); err != nil {
		return domainbooking.Page{}, classify("count bookings", err)
	}
	rows, err := r.q.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+where+`
ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`, actorID, string(filter.Status), filter.Limit, filter.Offset())
	if err != nil {
		return domainbooking.Page{}, classify("list bookings", err)
	}
	items, err := collect(rows)
	if err != nil {
		return domainbooking.Page{}, err
	}
	return domainbooking.Page{Items: items, Total: total}, nil
}

func collect(rows pgx.Rows) ([]*domainbooking.Booking, error) {
	defer rows.Close()
	var out []*domainbooking.Booking
	for rows.Next() {
		var (
			b                 domainbooking.Booking
			id, propertyID    string
			status            string
			price             int64
			checkIn, checkOut time.Time
		)
		if err := rows.Scan(&id, &propertyID, &b.TravelerID, &b.OwnerID, &checkIn, &checkOut, &b.Guests,
			&b.SpecialRequests, &price, &status, &b.Reason, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, classify("scan booking", err)
		}
		dr, err := daterange.New(checkIn, checkOut)
		if err != nil {
			return nil, err
		}
		b.ID = domainbooking.ID(id)
		b.PropertyID = domainproperty.ID(propertyID)
		b.Range = dr
		b.TotalPrice = money.Money(price)
		b.Status = domainbooking.Status(status)
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("read bookings", err)
	}
	return out, nil
}
