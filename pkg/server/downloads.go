package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/malbeclabs/budgetquery/pkg/metrics"
	"github.com/malbeclabs/budgetquery/pkg/pipeline"
)

// downloads keeps executed results for a while so they can be fetched as a spreadsheet by token
// without running the statement again.
type downloads struct {
	cache   *ttlcache.Cache[string, *pipeline.Execution]
	started atomic.Bool
}

func newDownloads(ttl time.Duration) *downloads {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *pipeline.Execution](ttl),
		ttlcache.WithDisableTouchOnHit[string, *pipeline.Execution](),
	)
	cache.OnInsertion(func(_ context.Context, _ *ttlcache.Item[string, *pipeline.Execution]) {
		metrics.DownloadsPending.Inc()
	})
	cache.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, _ *ttlcache.Item[string, *pipeline.Execution]) {
		metrics.DownloadsPending.Dec()
	})
	return &downloads{cache: cache}
}

func (d *downloads) put(exec *pipeline.Execution) string {
	token := uuid.NewString()
	d.cache.Set(token, exec, ttlcache.DefaultTTL)
	return token
}

func (d *downloads) get(token string) (*pipeline.Execution, bool) {
	item := d.cache.Get(token)
	if item == nil || item.IsExpired() {
		return nil, false
	}
	return item.Value(), true
}

// start runs expiry until stop is called.
func (d *downloads) start() {
	if d.started.CompareAndSwap(false, true) {
		go d.cache.Start()
	}
}

// stop ends expiry. Stop blocks unless the cache loop is running.
func (d *downloads) stop() {
	if d.started.CompareAndSwap(true, false) {
		d.cache.Stop()
	}
}
