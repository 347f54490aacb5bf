package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bookingengine/internal/app/uow"
	domainbooking "bookingengine/internal/domain/booking"
	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/fault"
)

const defaultLockTimeout = 2 * time.Second

// Store keeps properties and bookings in memory. Units of work buffer their
// writes and apply them on commit; LockForUpdate serializes units per property
// the way a row lock would.
type Store struct {
	mu         sync.RWMutex
	properties map[domainproperty.ID]*domainproperty.Property
	bookings   map[domainbooking.ID]*domainbooking.Booking

	locksMu     sync.Mutex
	locks       map[domainproperty.ID]chan struct{}
	lockTimeout time.Duration
}

// NewStore returns an empty store. A non-positive lockTimeout uses two seconds.
func NewStore(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &Store{
		properties:  make(map[domainproperty.ID]*domainproperty.Property),
		bookings:    make(map[domainbooking.ID]*domainbooking.Booking),
		locks:       make(map[domainproperty.ID]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

// SeedProperties stores catalog entries outside any unit of work.
func (s *Store) SeedProperties(props ...*domainproperty.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range props {
		s.properties[p.ID] = p.Clone()
	}
}

// SeedBookings stores bookings as-is, bypassing admission. Used by fixtures and tests.
func (s *Store) SeedBookings(bookings ...*domainbooking.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bookings {
		s.bookings[b.ID] = b.Clone()
	}
}

// Property reads the committed state of a property.
func (s *Store) Property(_ context.Context, id domainproperty.ID) (*domainproperty.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok {
		return nil, domainproperty.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) Begin(_ context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = s.lockTimeout
	}
	return &Unit{
		store:       s,
		readOnly:    opts.ReadOnly,
		lockTimeout: timeout,
		held:        make(map[domainproperty.ID]struct{}),
		properties:  make(map[domainproperty.ID]*domainproperty.Property),
		bookings:    make(map[domainbooking.ID]*domainbooking.Booking),
	}, nil
}

func (s *Store) lockFor(id domainproperty.ID) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

func (s *Store) acquire(ctx context.Context, id domainproperty.ID, timeout time.Duration) error {
	l := s.lockFor(id)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case l <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: property %s is locked by another operation", fault.ErrBusy, id)
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for property %s: %w", fault.ErrBusy, id, ctx.Err())
	}
}

func (s *Store) release(id domainproperty.ID) {
	<-s.lockFor(id)
}

func (s *Store) apply(props map[domainproperty.ID]*domainproperty.Property, bookings map[domainbooking.ID]*domainbooking.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range props {
		s.properties[id] = p
	}
	for id, b := range bookings {
		s.bookings[id] = b
	}
}

func (s *Store) bookingsWhere(match func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range s.bookings {
		if match(b) {
			out = append(out, b.Clone())
		}
	}
	return out
}

// newestFirst orders bookings by creation time, latest first, with id as tiebreak.
func newestFirst(items []*domainbooking.Booking) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func paginate(items []*domainbooking.Booking, filter domainbooking.ListFilter) domainbooking.Page {
	filter = filter.Normalized()
	total := len(items)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return domainbooking.Page{Items: items[start:end], Total: total}
}

var _ uow.UoWFactory = (*Store)(nil)
