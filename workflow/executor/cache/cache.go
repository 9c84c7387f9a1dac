package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/metrics"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/metrickeys"
	"github.com/usherflow/usher/workflow/executor"
)

type lruCache struct {
	mc metrics.Client
	c  *ttlcache.Cache[string, []*history.Event]
}

var _ executor.HistoryCache = (*lruCache)(nil)

func NewHistoryLRUCache(mc metrics.Client, size int, expiration time.Duration) *lruCache {
	c := ttlcache.New(
		ttlcache.WithCapacity[string, []*history.Event](uint64(size)),
		ttlcache.WithTTL[string, []*history.Event](expiration),
	)

	c.OnEviction(func(ctx context.Context, er ttlcache.EvictionReason, i *ttlcache.Item[string, []*history.Event]) {
		reason := ""
		switch er {
		case ttlcache.EvictionReasonExpired:
			reason = "expired"
		case ttlcache.EvictionReasonCapacityReached:
			reason = "capacity"
		case ttlcache.EvictionReasonDeleted:
			reason = "deleted"
		}

		mc.Counter(metrickeys.HistoryCacheEviction, metrics.Tags{metrickeys.EvictionReason: reason}, 1)
	})

	return &lruCache{
		mc: mc,
		c:  c,
	}
}

func (lc *lruCache) Get(ctx context.Context, instance *core.WorkflowInstance) ([]*history.Event, bool, error) {
	e := lc.c.Get(getKey(instance))
	if e != nil {
		return e.Value(), true, nil
	}

	return nil, false, nil
}

func (lc *lruCache) Store(ctx context.Context, instance *core.WorkflowInstance, events []*history.Event) error {
	lc.c.Set(getKey(instance), events, ttlcache.DefaultTTL)

	lc.mc.Gauge(metrickeys.HistoryCacheSize, metrics.Tags{}, int64(lc.c.Len()))

	return nil
}

func (lc *lruCache) Evict(ctx context.Context, instance *core.WorkflowInstance) error {
	lc.c.Delete(getKey(instance))

	lc.mc.Gauge(metrickeys.HistoryCacheSize, metrics.Tags{}, int64(lc.c.Len()))

	return nil
}

func (lc *lruCache) StartEviction(ctx context.Context) {
	go lc.c.Start()

	<-ctx.Done()

	lc.c.Stop()
}
