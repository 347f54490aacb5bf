package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainbooking "bookingengine/internal/domain/booking"
	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/fault"
)

var (
	ErrUnitClosed = errors.New("memory: unit of work already finished")
	ErrReadOnly   = fmt.Errorf("%w: read-only unit of work", fault.ErrInvalidState)
)

// Unit is a uow.UnitOfWork over a Store. Reads see the unit's own pending writes.
type Unit struct {
	store       *Store
	readOnly    bool
	lockTimeout time.Duration

	mu         sync.Mutex
	done       bool
	held       map[domainproperty.ID]struct{}
	properties map[domainproperty.ID]*domainproperty.Property
	bookings   map[domainbooking.ID]*domainbooking.Booking
}

func (u *Unit) Properties() domainproperty.Repository { return propertyRepo{u} }
func (u *Unit) Bookings() domainbooking.Repository    { return bookingRepo{u} }

func (u *Unit) Commit(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	u.store.apply(u.properties, u.bookings)
	u.finish()
	return nil
}

func (u *Unit) Rollback(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.finish()
	return nil
}

func (u *Unit) finish() {
	u.done = true
	for id := range u.held {
		u.store.release(id)
	}
	u.held = nil
	u.properties = nil
	u.bookings = nil
}

func (u *Unit) checkOpen() error {
	if u.done {
		return ErrUnitClosed
	}
	return nil
}

type propertyRepo struct{ u *Unit }

func (r propertyRepo) ByID(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error) {
	r.u.mu.Lock()
	if err := r.u.checkOpen(); err != nil {
		r.u.mu.Unlock()
		return nil, err
	}
	if p, ok := r.u.properties[id]; ok {
		r.u.mu.Unlock()
		return p.Clone(), nil
	}
	r.u.mu.Unlock()
	return r.u.store.Property(ctx, id)
}

func (r propertyRepo) LockForUpdate(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error) {
	r.u.mu.Lock()
	if err := r.u.checkOpen(); err != nil {
		r.u.mu.Unlock()
		return nil, err
	}
	_, held := r.u.held[id]
	r.u.mu.Unlock()

	if !held {
		// existence is checked first so unknown ids never create lock entries
		if _, err := r.u.store.Property(ctx, id); err != nil {
			return nil, err
		}
		if err := r.u.store.acquire(ctx, id, r.u.lockTimeout); err != nil {
			return nil, err
		}
		r.u.mu.Lock()
		if r.u.done {
			r.u.mu.Unlock()
			r.u.store.release(id)
			return nil, ErrUnitClosed
		}
		r.u.held[id] = struct{}{}
		r.u.mu.Unlock()
	}
	return r.ByID(ctx, id)
}

func (r propertyRepo) Save(_ context.Context, p *domainproperty.Property) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if err := r.u.checkOpen(); err != nil {
		return err
	}
	if r.u.readOnly {
		return ErrReadOnly
	}
	r.u.properties[p.ID] = p.Clone()
	return nil
}

type bookingRepo struct{ u *Unit }

func (r bookingRepo) ByID(_ context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	r.u.mu.Lock()
	if err := r.u.checkOpen(); err != nil {
		r.u.mu.Unlock()
		return nil, err
	}
	if b, ok := r.u.bookings[id]; ok {
		r.u.mu.Unlock()
		return b.Clone(), nil
	}
	r.u.mu.Unlock()

	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	b, ok := r.u.store.bookings[id]
	if !ok {
		return nil, domainbooking.ErrNotFound
	}
	return b.Clone(), nil
}

func (r bookingRepo) Save(_ context.Context, b *domainbooking.Booking) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if err := r.u.checkOpen(); err != nil {
		return err
	}
	if r.u.readOnly {
		return ErrReadOnly
	}
	r.u.bookings[b.ID] = b.Clone()
	return nil
}

func (r bookingRepo) ActiveByProperty(_ context.Context, propertyID domainproperty.ID) ([]*domainbooking.Booking, error) {
	merged, err := r.merged(func(b *domainbooking.Booking) bool { return b.PropertyID == propertyID })
	if err != nil {
		return nil, err
	}
	out := merged[:0]
	for _, b := range merged {
		if b.Status.IsActive() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r bookingRepo) ListByTraveler(_ context.Context, travelerID string, filter domainbooking.ListFilter) (domainbooking.Page, error) {
	return r.list(filter, func(b *domainbooking.Booking) bool { return b.TravelerID == travelerID })
}

func (r bookingRepo) ListByOwner(_ context.Context, ownerID string, filter domainbooking.ListFilter) (domainbooking.Page, error) {
	return r.list(filter, func(b *domainbooking.Booking) bool { return b.OwnerID == ownerID })
}

func (r bookingRepo) list(filter domainbooking.ListFilter, match func(*domainbooking.Booking) bool) (domainbooking.Page, error) {
	items, err := r.merged(func(b *domainbooking.Booking) bool {
		return match(b) && (filter.Status == "" || b.Status == filter.Status)
	})
	if err != nil {
		return domainbooking.Page{}, err
	}
	newestFirst(items)
	return paginate(items, filter), nil
}

// merged returns committed bookings matching match, overlaid with this unit's pending writes.
func (r bookingRepo) merged(match func(*domainbooking.Booking) bool) ([]*domainbooking.Booking, error) {
	r.u.mu.Lock()
	if err := r.u.checkOpen(); err != nil {
		r.u.mu.Unlock()
		return nil, err
	}
	local := make(map[domainbooking.ID]*domainbooking.Booking, len(r.u.bookings))
	for id, b := range r.u.bookings {
		local[id] = b.Clone()
	}
	r.u.mu.Unlock()

	committed := r.u.store.bookingsWhere(func(b *domainbooking.Booking) bool {
		_, shadowed := local[b.ID]
		return !shadowed && match(b)
	})
	for _, b := range local {
		if match(b) {
			committed = append(committed, b)
		}
	}
	return committed, nil
}

var (
	_ domainproperty.Repository = propertyRepo{}
	_ domainbooking.Repository  = bookingRepo{}
)
