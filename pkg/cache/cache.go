// Package cache implements the process-wide, TTL-bounded, single-flight
// response cache. It is in-memory only (sync.Map), matching spec.md
// §4.5's explicit scoping of ResponseCache as non-persistent.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
)

// cacheableConsensus is the set of terminal outcomes eligible for
// caching; PENDING_VALIDATION, FALLBACK and FAILED are never cached
// (spec.md §4.5).
var cacheableConsensus = map[models.Consensus]bool{
	models.ConsensusApproved:         true,
	models.ConsensusReformedApproved: true,
}

// ResponseCache memoizes FinalResponses by fingerprint and coalesces
// concurrent workflow starts for the same fingerprint into one in-flight
// computation (spec.md §4.5's single-flight protocol).
type ResponseCache struct {
	entries sync.Map // fingerprint -> models.CacheEntry
	flight  singleflight.Group
	ttl     time.Duration
	now     func() time.Time
}

// NewResponseCache builds a ResponseCache with the given default TTL.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{ttl: ttl, now: time.Now}
}

// Lookup returns a hit's FinalResponse, evicting it first if it has
// expired (lazy eviction on lookup, per spec.md §4.5).
func (c *ResponseCache) Lookup(fingerprint string) (models.FinalResponse, bool) {
	v, ok := c.entries.Load(fingerprint)
	if !ok {
		return models.FinalResponse{}, false
	}
	entry := v.(models.CacheEntry)
	if entry.Expired(c.now()) {
		c.entries.Delete(fingerprint)
		return models.FinalResponse{}, false
	}
	return entry.Response, true
}

// Put stores resp under fingerprint if its consensus is cacheable;
// otherwise it is a no-op.
func (c *ResponseCache) Put(fingerprint string, resp models.FinalResponse) {
	if !cacheableConsensus[resp.Consensus] {
		return
	}
	c.entries.Store(fingerprint, models.CacheEntry{
		Fingerprint: fingerprint,
		Response:    resp,
		ExpiresAt:   c.now().Add(c.ttl),
	})
}

// Compute coalesces concurrent calls with the same fingerprint: only one
// caller actually invokes fn; every other concurrent caller for the same
// fingerprint awaits and receives an exact copy of its result, success
// or failure, rather than starting a redundant workflow. Each returns
// independently once resolved: a waiter's own context cancellation does
// not abort fn for the others still listening (spec.md §5).
func (c *ResponseCache) Compute(ctx context.Context, fingerprint string, fn func(ctx context.Context) (models.FinalResponse, error)) (models.FinalResponse, error) {
	if resp, ok := c.Lookup(fingerprint); ok {
		return resp, nil
	}

	v, err, _ := c.flight.Do(fingerprint, func() (interface{}, error) {
		resp, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return models.FinalResponse{}, err
		}
		c.Put(fingerprint, resp)
		return resp, nil
	})
	if err != nil {
		return models.FinalResponse{}, err
	}
	return v.(models.FinalResponse), nil
}

// RunSweep starts a background ticker that evicts expired entries every
// interval, returning once ctx is cancelled. Grounded on the teacher's
// orphan-detection ticker loop (periodic reap of stale rows); here there
// is no "recovery" step, only eviction.
func (c *ResponseCache) RunSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *ResponseCache) sweepExpired() {
	now := c.now()
	reaped := 0
	c.entries.Range(func(key, value interface{}) bool {
		entry := value.(models.CacheEntry)
		if entry.Expired(now) {
			c.entries.Delete(key)
			reaped++
		}
		return true
	})
	if reaped > 0 {
		slog.Debug("response cache sweep reaped expired entries", "count", reaped)
	}
}
