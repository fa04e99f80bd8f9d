package tile

import (
	"github.com/jeycin/Graphite/cache"
)

// OCacheConfig groups the independent instruction- and data-cache
// configurations a tile is built with, plus the fixed hit/miss latencies
// charged against the performance model for each — the cache model itself
// has no notion of cycles, only hits and misses.
type OCacheConfig struct {
	ICacheModeling bool
	DCacheModeling bool
	ICache         cache.Config
	DCache         cache.Config

	ICacheThresholdHit  uint64
	ICacheThresholdMiss uint64
	DCacheThresholdHit  uint64
	DCacheThresholdMiss uint64
}

// OCache is the per-tile cache facade the core performance model talks to.
// It owns an instruction cache and a data cache and presents the narrow
// latency-lookup surface the performance model actually needs, keeping the
// model itself ignorant of cache internals (set layout, replacement,
// coherence state) the way the original core model's inline wrappers did.
type OCache struct {
	icache *cache.Cache
	dcache *cache.Cache

	icacheModeling bool
	dcacheModeling bool

	iThresholdHit  uint64
	iThresholdMiss uint64
	dThresholdHit  uint64
	dThresholdMiss uint64
}

func NewOCache(cfg OCacheConfig) (*OCache, error) {
	o := &OCache{
		icacheModeling: cfg.ICacheModeling,
		dcacheModeling: cfg.DCacheModeling,
		iThresholdHit:  cfg.ICacheThresholdHit,
		iThresholdMiss: cfg.ICacheThresholdMiss,
		dThresholdHit:  cfg.DCacheThresholdHit,
		dThresholdMiss: cfg.DCacheThresholdMiss,
	}

	if cfg.ICacheModeling {
		ic, err := cache.New(cfg.ICache)
		if err != nil {
			return nil, err
		}

		o.icache = ic
	}

	if cfg.DCacheModeling {
		dc, err := cache.New(cfg.DCache)
		if err != nil {
			return nil, err
		}

		o.dcache = dc
	}

	return o, nil
}

// ModelICache is the latency-lookup callback the performance model invokes
// for an instruction fetch: it fills the instruction cache on a miss and
// returns whether it hit plus the fixed cycle cost configured for that
// outcome. When instruction-cache modeling is disabled it reports a
// zero-latency hit unconditionally, so callers don't need to special-case
// it.
func (o *OCache) ModelICache(addr uint64) (hit bool, latency uint64) {
	if !o.icacheModeling {
		return true, 0
	}

	hit, _ = o.icache.AccessSingleLinePeek(addr)
	if !hit {
		o.icache.AccessSingleLine(addr, cache.Load, cache.AccessOptions{
			FillBuffer: make([]byte, o.icache.LineSize()),
			FillState:  cache.Shared,
		})

		return false, o.iThresholdMiss
	}

	return true, o.iThresholdHit
}

// ModelDCache performs a data access through the data cache, returning the
// raw access result (for eviction propagation) plus the fixed cycle cost
// configured for its hit/miss outcome. When data-cache modeling is
// disabled it reports a zero-latency hit unconditionally.
func (o *OCache) ModelDCache(addr uint64, accessType cache.AccessType, opts cache.AccessOptions) (cache.AccessResult, uint64) {
	if !o.dcacheModeling {
		return cache.AccessResult{Hit: true}, 0
	}

	res := o.dcache.AccessSingleLine(addr, accessType, opts)
	if res.Hit {
		return res, o.dThresholdHit
	}

	return res, o.dThresholdMiss
}

func (o *OCache) ICache() *cache.Cache { return o.icache }
func (o *OCache) DCache() *cache.Cache { return o.dcache }
