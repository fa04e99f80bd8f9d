// Package tile binds one simulated core's performance model, caches, and
// network endpoint into a single facade, mirroring the original
// simulator's Core class: a thin object other code holds onto, whose
// methods are mostly one-line forwards into the three subsystems it owns.
package tile

import (
	"context"

	"github.com/jeycin/Graphite/cache"
	"github.com/jeycin/Graphite/network"
	"github.com/jeycin/Graphite/perfmodel"
)

// dynamicInfoQueueCapacity bounds how many memory operands' worth of
// dynamic info a tile can have buffered ahead of the instruction that
// consumes them. Instructions carry at most a handful of memory operands,
// so this comfortably covers back-to-back cache accesses issued before
// HandleInstruction drains them.
const dynamicInfoQueueCapacity = 16

// MemoryHome is the narrow coherence surface a Tile consults when a data
// cache miss needs cross-tile coordination. It is defined here, not in the
// coherence package, so that Tile depends only on an interface its caller
// supplies — the same header-avoiding split used between Tile and network.
type MemoryHome interface {
	AddSharer(addr uint64, rank int) bool
	AddExclusiveSharer(addr uint64, rank int)
	RemoveSharer(addr uint64, rank int)
	Sharers(addr uint64) []int
}

// Config bundles everything needed to build one Tile.
type Config struct {
	ID              int
	PerfModelActive bool
	PerfModel       perfmodel.Config
	Cache           OCacheConfig
	Net             network.Endpoint
	Home            MemoryHome
}

// Tile is one simulated core: a rank, a performance model, a pair of
// caches, and a network endpoint for sending and receiving messages.
type Tile struct {
	id int

	perfModelActive bool
	perf            *perfmodel.CoreModel
	dyn             *perfmodel.DynamicInfoQueue
	ocache          *OCache
	net             network.Endpoint
	home            MemoryHome

	summary Summary
}

func New(cfg Config) (*Tile, error) {
	oc, err := NewOCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	t := &Tile{
		id:              cfg.ID,
		perfModelActive: cfg.PerfModelActive,
		ocache:          oc,
		net:             cfg.Net,
		home:            cfg.Home,
	}

	if cfg.PerfModelActive {
		t.dyn = perfmodel.NewDynamicInfoQueue(dynamicInfoQueueCapacity)
		t.perf = perfmodel.NewCoreModel(cfg.PerfModel, func(addr uint64) uint64 {
			hit, latency := t.ocache.ModelICache(addr)
			t.summary.recordICache(hit)

			return latency
		})
	}

	return t, nil
}

func (t *Tile) ID() int { return t.id }

// HandleInstruction runs one instruction through the performance model,
// drawing dynamic memory-operand info from the accesses this tile's
// ModelDCacheAccess has already recorded for it, or is a no-op returning 0
// when performance modeling is disabled for this tile — matching the
// original core's behavior of skipping the model entirely rather than
// running it with zero latencies.
func (t *Tile) HandleInstruction(instr *perfmodel.Instruction) uint64 {
	if !t.perfModelActive {
		return 0
	}

	t.summary.Instructions++

	return t.perf.HandleInstruction(instr, t.dyn)
}

// ModelDCacheAccess runs a data access through the data cache, charges the
// resulting hit or miss latency against the performance model's dynamic
// info queue for the instruction that will follow, and notifies the tile's
// memory home so directory state stays consistent, propagating any
// eviction.
func (t *Tile) ModelDCacheAccess(addr uint64, accessType cache.AccessType, opts cache.AccessOptions) cache.AccessResult {
	opts.CaptureEviction = true

	res, latency := t.ocache.ModelDCache(addr, accessType, opts)
	t.summary.recordDCache(accessType, res.Hit)

	if t.perfModelActive {
		kind := perfmodel.MemoryRead
		if accessType == cache.Store {
			kind = perfmodel.MemoryWrite
		}

		t.dyn.Push(perfmodel.DynamicInstructionInfo{Kind: kind, Addr: addr, Latency: latency})
	}

	if t.home == nil {
		return res
	}

	lineAddr := addr
	if dc := t.ocache.DCache(); dc != nil {
		lineAddr = addr &^ uint64(dc.LineSize()-1)
	}

	if accessType == cache.Store {
		// AddExclusiveSharer is fatal on a line that is still SHARED or
		// EXCLUSIVE to another rank, so invalidate every existing sharer
		// first — including this rank, if it already holds a shared
		// copy, since the protocol offers no "upgrade in place" path.
		for _, sharer := range t.home.Sharers(lineAddr) {
			t.home.RemoveSharer(lineAddr, sharer)
		}

		t.home.AddExclusiveSharer(lineAddr, t.id)
	} else {
		t.home.AddSharer(lineAddr, t.id)
	}

	if res.Evicted {
		t.home.RemoveSharer(res.EvictedAddr, t.id)
	}

	return res
}

// SendW blocks until a message has been handed off to rank to.
func (t *Tile) SendW(ctx context.Context, to int, payload []byte) error {
	return t.net.SendW(ctx, to, payload)
}

// RecvW blocks until a message from rank from is available.
func (t *Tile) RecvW(ctx context.Context, from int) ([]byte, error) {
	return t.net.RecvW(ctx, from)
}

// NumRanks reports the total number of ranks reachable from this tile,
// tiles plus the spawner.
func (t *Tile) NumRanks() int {
	return t.net.NumRanks()
}

// Summary returns a snapshot of this tile's accumulated statistics.
func (t *Tile) Summary() Summary { return t.summary }
