// Package cache fronts property reads with an in-process ccache so read paths
// such as the availability preview avoid a store round trip per call.
package cache

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v3"

	domainproperty "bookingengine/internal/domain/property"
)

type Source interface {
	Property(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error)
}

// PropertyCache serves clones of cached properties. Admission never reads
// through it; the locked store read stays authoritative.
type PropertyCache struct {
	source Source
	ttl    time.Duration
	items  *ccache.Cache[*domainproperty.Property]
}

func NewPropertyCache(source Source, ttl time.Duration, maxSize int64) *PropertyCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 5000
	}
	return &PropertyCache{
		source: source,
		ttl:    ttl,
		items:  ccache.New(ccache.Configure[*domainproperty.Property]().MaxSize(maxSize)),
	}
}

func (c *PropertyCache) Property(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error) {
	key := string(id)
	if item := c.items.Get(key); item != nil && !item.Expired() {
		return item.Value().Clone(), nil
	}
	p, err := c.source.Property(ctx, id)
	if err != nil {
		return nil, err
	}
	c.items.Set(key, p.Clone(), c.ttl)
	return p, nil
}

func (c *PropertyCache) Invalidate(id domainproperty.ID) {
	c.items.Delete(string(id))
}

func (c *PropertyCache) Stop() {
	c.items.Stop()
}
