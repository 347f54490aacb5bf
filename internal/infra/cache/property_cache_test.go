package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainproperty "bookingengine/internal/domain/property"
)

type countingSource struct {
	reads atomic.Int64
	props map[domainproperty.ID]*domainproperty.Property
}

func (s *countingSource) Property(_ context.Context, id domainproperty.ID) (*domainproperty.Property, error) {
	s.reads.Add(1)
	p, ok := s.props[id]
	if !ok {
		return nil, domainproperty.ErrNotFound
	}
	return p.Clone(), nil
}

func newSource(t *testing.T) *countingSource {
	t.Helper()
	p, err := domainproperty.New(domainproperty.Params{ID: "prop-1", OwnerID: "owner-1", NightlyRate: 100, MaxGuests: 4, Active: true, Now: time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	return &countingSource{props: map[domainproperty.ID]*domainproperty.Property{p.ID: p}}
}

func TestPropertyCacheHitMissInvalidate(t *testing.T) {
	ctx := context.Background()
	src := newSource(t)
	c := NewPropertyCache(src, time.Hour, 10)
	t.Cleanup(c.Stop)

	first, err := c.Property(ctx, "prop-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.reads.Load(), "miss reads the source")

	second, err := c.Property(ctx, "prop-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.reads.Load(), "hit is served from memory")
	assert.Equal(t, first.ID, second.ID)

	second.MaxGuests = 1
	third, err := c.Property(ctx, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, 4, third.MaxGuests, "callers get their own copy")

	src.props["prop-1"].MaxGuests = 6
	c.Invalidate("prop-1")
	fresh, err := c.Property(ctx, "prop-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.reads.Load())
	assert.Equal(t, 6, fresh.MaxGuests)
}

func TestPropertyCacheDoesNotRememberMisses(t *testing.T) {
	ctx := context.Background()
	src := newSource(t)
	c := NewPropertyCache(src, time.Hour, 10)
	t.Cleanup(c.Stop)

	for range 2 {
		_, err := c.Property(ctx, "missing")
		require.ErrorIs(t, err, domainproperty.ErrNotFound)
	}
	assert.EqualValues(t, 2, src.reads.Load())
}

func TestPropertyCacheExpires(t *testing.T) {
	ctx := context.Background()
	src := newSource(t)
	c := NewPropertyCache(src, 10*time.Millisecond, 10)
	t.Cleanup(c.Stop)

	_, err := c.Property(ctx, "prop-1")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = c.Property(ctx, "prop-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.reads.Load())
}
