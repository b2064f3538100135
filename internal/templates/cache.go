package templates

import (
	"context"
	"time"

	"github.com/brunoga/deep"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"flight-status-sim/internal/metrics"
	"flight-status-sim/internal/model"
)

const allKey = "*"

// Cache is a TTL cache in front of a Source. Concurrent misses for the same
// key share one upstream call. Errors are not cached.
type Cache struct {
	src     Source
	list    *expirable.LRU[string, []model.FlightTemplate]
	byID    *expirable.LRU[string, model.FlightTemplate]
	group   singleflight.Group
	metrics *metrics.Metrics
}

func NewCache(src Source, size int, ttl time.Duration, m *metrics.Metrics) *Cache {
	if size < 1 {
		size = 1
	}
	return &Cache{
		src:     src,
		list:    expirable.NewLRU[string, []model.FlightTemplate](1, nil, ttl),
		byID:    expirable.NewLRU[string, model.FlightTemplate](size, nil, ttl),
		metrics: m,
	}
}

func (c *Cache) hit() {
	if c.metrics != nil {
		c.metrics.IncrementTemplateCacheHits()
	}
}

func (c *Cache) Templates(ctx context.Context) ([]model.FlightTemplate, error) {
	if all, ok := c.list.Get(allKey); ok {
		c.hit()
		return deep.MustCopy(all), nil
	}

	v, err, _ := c.group.Do(allKey, func() (interface{}, error) {
		all, err := c.src.Templates(ctx)
		if err != nil {
			return nil, err
		}
		c.list.Add(allKey, all)
		for _, t := range all {
			c.byID.Add(t.ID, t)
		}
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return deep.MustCopy(v.([]model.FlightTemplate)), nil
}

func (c *Cache) Template(ctx context.Context, id string) (*model.FlightTemplate, error) {
	if t, ok := c.byID.Get(id); ok {
		c.hit()
		return &t, nil
	}

	v, err, _ := c.group.Do("id:"+id, func() (interface{}, error) {
		t, err := c.src.Template(ctx, id)
		if err != nil {
			return nil, err
		}
		c.byID.Add(id, *t)
		return *t, nil
	})
	if err != nil {
		return nil, err
	}
	t := v.(model.FlightTemplate)
	return &t, nil
}

// Purge drops every cached entry.
func (c *Cache) Purge() {
	c.list.Purge()
	c.byID.Purge()
}
