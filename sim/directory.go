package sim

import (
	"sync"

	"github.com/jeycin/Graphite/coherence"
)

// DirectoryTable is the process-wide home for every memory line's
// coherence entry, lazily creating one coherence.Entry per line on first
// touch. It implements tile.MemoryHome, letting tiles report sharing and
// eviction without importing the coherence package directly.
type DirectoryTable struct {
	mu       sync.Mutex
	numTiles int
	entries  map[uint64]*coherence.Entry
	trace    *TraceDB
}

// NewDirectoryTable builds a directory table for numTiles ranks. trace may
// be nil, in which case every sharer mutation is untraced — the zero-cost
// default when a run is started without --trace-db.
func NewDirectoryTable(numTiles int, trace *TraceDB) *DirectoryTable {
	return &DirectoryTable{
		numTiles: numTiles,
		entries:  make(map[uint64]*coherence.Entry),
		trace:    trace,
	}
}

// record emits ev to the trace if one is attached.
func (d *DirectoryTable) record(lineAddr uint64, rank int, op string, state coherence.State) {
	if d.trace == nil {
		return
	}

	d.trace.Record(CoherenceEvent{LineAddr: lineAddr, Rank: rank, Op: op, State: state.String()})
}

func (d *DirectoryTable) entry(lineAddr uint64) *coherence.Entry {
	e, ok := d.entries[lineAddr]
	if !ok {
		e = coherence.NewEntry(lineAddr, d.numTiles)
		d.entries[lineAddr] = e
	}

	return e
}

func (d *DirectoryTable) AddSharer(lineAddr uint64, rank int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.entry(lineAddr)
	ok := e.AddSharer(rank)
	if ok {
		d.record(lineAddr, rank, "add_sharer", e.State())
	}

	return ok
}

func (d *DirectoryTable) AddExclusiveSharer(lineAddr uint64, rank int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.entry(lineAddr)
	e.AddExclusiveSharer(rank)
	d.record(lineAddr, rank, "add_exclusive_sharer", e.State())
}

func (d *DirectoryTable) RemoveSharer(lineAddr uint64, rank int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[lineAddr]
	if !ok {
		return
	}

	e.RemoveSharer(rank)
	d.record(lineAddr, rank, "remove_sharer", e.State())

	if e.State() == coherence.Uncached {
		delete(d.entries, lineAddr)
	}
}

// Sharers returns the ranks currently sharing lineAddr, for a caller that
// must invalidate existing sharers before requesting exclusive ownership.
// A line with no entry yet (never touched, or already evicted back to
// UNCACHED) reports no sharers.
func (d *DirectoryTable) Sharers(lineAddr uint64) []int {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[lineAddr]
	if !ok {
		return nil
	}

	return e.GetSharersList()
}

// Snapshot returns the coherence state of every line currently tracked,
// for diagnostics and the monitoring endpoint.
func (d *DirectoryTable) Snapshot() map[uint64]coherence.State {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[uint64]coherence.State, len(d.entries))
	for addr, e := range d.entries {
		out[addr] = e.State()
	}

	return out
}
