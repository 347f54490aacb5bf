package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookingengine/internal/app/middleware"
	"bookingengine/internal/app/pipeline"
	"bookingengine/internal/app/timeline"
)

// IdempotencyStore stores command outcomes in memory. Records older than ttl are ignored.
type IdempotencyStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]middleware.IdempotencyRecord
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{ttl: ttl, items: make(map[string]middleware.IdempotencyRecord)}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	if !ok || s.expired(rec) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

// Save keeps the first live record for a key unless rec is a success
// arriving after a failure.
func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.items[rec.Key]; ok && !s.expired(cur) && (cur.Error == "" || rec.Error != "") {
		return middleware.ErrIdempotencyKeyTaken
	}
	s.items[rec.Key] = rec
	return nil
}

func (s *IdempotencyStore) expired(rec middleware.IdempotencyRecord) bool {
	return s.ttl > 0 && time.Since(rec.OccurredAt) > s.ttl
}

// Inbox remembers processed message ids per consumer group.
type Inbox struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewInbox() *Inbox {
	return &Inbox{seen: make(map[string]struct{})}
}

func (i *Inbox) Processed(_ context.Context, group, messageID string) (bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.seen[group+"/"+messageID]
	return ok, nil
}

func (i *Inbox) MarkProcessed(_ context.Context, group, messageID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seen[group+"/"+messageID] = struct{}{}
	return nil
}

// DeadLetters keeps parked messages for inspection.
type DeadLetters struct {
	mu      sync.RWMutex
	records []pipeline.DeadLetterRecord
}

func NewDeadLetters() *DeadLetters { return &DeadLetters{} }

func (d *DeadLetters) Park(_ context.Context, rec pipeline.DeadLetterRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, rec)
	return nil
}

func (d *DeadLetters) List() []pipeline.DeadLetterRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]pipeline.DeadLetterRecord(nil), d.records...)
}

// Timeline is an in-memory timeline.Store.
type Timeline struct {
	mu      sync.RWMutex
	entries map[string][]timeline.Entry
}

func NewTimeline() *Timeline {
	return &Timeline{entries: make(map[string][]timeline.Entry)}
}

func (t *Timeline) Append(_ context.Context, e timeline.Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.entries[e.BookingID] {
		if existing.EventID == e.EventID {
			return nil
		}
	}
	list := append(t.entries[e.BookingID], e)
	sort.SliceStable(list, func(i, j int) bool { return list[i].At.Before(list[j].At) })
	t.entries[e.BookingID] = list
	return nil
}

func (t *Timeline) List(_ context.Context, bookingID string) ([]timeline.Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]timeline.Entry(nil), t.entries[bookingID]...), nil
}

var (
	_ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
	_ pipeline.Inbox              = (*Inbox)(nil)
	_ pipeline.DeadLetter         = (*DeadLetters)(nil)
	_ timeline.Store              = (*Timeline)(nil)
)
