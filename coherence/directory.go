// Package coherence implements the distributed directory-based coherence
// entry: the per-memory-line sharer bookkeeping that lives at a line's home
// tile and tracks which tiles currently hold a copy.
package coherence

import (
	"fmt"

	"github.com/jeycin/Graphite/bitvec"
)

// State is the coherence state of a directory entry.
type State int

// Directory entry states.
const (
	Uncached State = iota
	Shared
	Exclusive
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Uncached:
		return "UNCACHED"
	case Shared:
		return "SHARED"
	case Exclusive:
		return "EXCLUSIVE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// InvariantError reports a directory transition that should never be
// reachable given a correctly behaving coherence protocol. It is fatal: the
// caller is expected to crash the simulation rather than limp along with
// directory state it can no longer trust.
type InvariantError struct {
	MemLineAddress uint64
	Op             string
	Detail         string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("coherence: illegal %s on line 0x%x: %s",
		e.Op, e.MemLineAddress, e.Detail)
}

// Entry is the directory state for a single memory line, kept at the line's
// home tile. The zero value is not usable; construct with NewEntry.
type Entry struct {
	memLineAddress      uint64
	numTiles            int
	state               State
	sharers             *bitvec.BitVector
	numSharers          int
	exclusiveSharerRank int
}

// NewEntry returns a new, UNCACHED directory entry for the line at
// memLineAddress, able to track sharers among numTiles tiles.
func NewEntry(memLineAddress uint64, numTiles int) *Entry {
	return &Entry{
		memLineAddress:      memLineAddress,
		numTiles:            numTiles,
		state:               Uncached,
		sharers:             bitvec.New(numTiles),
		exclusiveSharerRank: -1,
	}
}

// MemLineAddress returns the line-aligned address this entry tracks. It is
// stored for diagnostics only; the directory map is keyed by the canonical
// owner, not by this field.
func (e *Entry) MemLineAddress() uint64 {
	return e.memLineAddress
}

// State returns the current coherence state.
func (e *Entry) State() State {
	return e.state
}

// NumSharers returns the number of tiles currently sharing the line.
func (e *Entry) NumSharers() int {
	return e.numSharers
}

// GetSharersList returns the ranks of every tile currently sharing the line.
func (e *Entry) GetSharersList() []int {
	return e.sharers.ToSlice()
}

// GetExclusiveSharerRank returns the rank of the sole sharer while in the
// EXCLUSIVE state. It panics if the entry is not EXCLUSIVE.
func (e *Entry) GetExclusiveSharerRank() int {
	if e.state != Exclusive {
		panic("coherence: GetExclusiveSharerRank called outside EXCLUSIVE state")
	}

	return e.exclusiveSharerRank
}

// AddSharer adds rank as a sharer of the line. It returns false, without
// mutating state, when adding the sharer would exceed the directory's
// bit-vector capacity; callers must evict an existing sharer first and
// retry. A false return is a resource limit, not a fatal error.
//
// AddSharer is a no-op success from EXCLUSIVE when rank already is the sole
// exclusive sharer.
func (e *Entry) AddSharer(rank int) bool {
	switch e.state {
	case Uncached:
		e.sharers.Set(rank)
		e.numSharers = 1
		e.state = Shared

		return true

	case Shared:
		if e.sharers.Test(rank) {
			return true
		}

		if e.numSharers >= e.sharers.Capacity() {
			return false
		}

		e.sharers.Set(rank)
		e.numSharers++

		return true

	case Exclusive:
		// Adding a second sharer demotes the line to SHARED; the existing
		// exclusive holder is still a sharer afterwards.
		if rank == e.exclusiveSharerRank {
			return true
		}

		if e.numSharers >= e.sharers.Capacity() {
			return false
		}

		e.sharers.Set(rank)
		e.numSharers++
		e.exclusiveSharerRank = -1
		e.state = Shared

		return true

	default:
		panic("coherence: unreachable state in AddSharer")
	}
}

// AddExclusiveSharer grants rank exclusive ownership of the line. It is
// fatal to request exclusive ownership while the line is SHARED, or while it
// is EXCLUSIVE for a different rank: the requester's cache protocol is
// expected to invalidate other sharers (via remove_sharer) before asking for
// exclusive ownership.
func (e *Entry) AddExclusiveSharer(rank int) {
	switch e.state {
	case Uncached:
		e.sharers.ClearAll()
		e.sharers.Set(rank)
		e.numSharers = 1
		e.exclusiveSharerRank = rank
		e.state = Exclusive

	case Exclusive:
		if rank != e.exclusiveSharerRank {
			panic(&InvariantError{
				MemLineAddress: e.memLineAddress,
				Op:             "add_exclusive",
				Detail: fmt.Sprintf(
					"line already exclusive to rank %d, requested by rank %d",
					e.exclusiveSharerRank, rank),
			})
		}
		// idempotent: rank already holds the line exclusively

	case Shared:
		panic(&InvariantError{
			MemLineAddress: e.memLineAddress,
			Op:             "add_exclusive",
			Detail:         "line is SHARED; sharers must be invalidated first",
		})

	default:
		panic("coherence: unreachable state in AddExclusiveSharer")
	}
}

// RemoveSharer removes rank from the sharer set. Removing a rank that is not
// currently a sharer is a no-op. Removing the last sharer transitions the
// entry back to UNCACHED.
func (e *Entry) RemoveSharer(rank int) {
	switch e.state {
	case Uncached:
		// no-op: nothing to remove

	case Shared:
		if !e.sharers.Test(rank) {
			return
		}

		e.sharers.Clear(rank)
		e.numSharers--

		if e.numSharers == 0 {
			e.state = Uncached
		}

	case Exclusive:
		if rank != e.exclusiveSharerRank {
			panic(&InvariantError{
				MemLineAddress: e.memLineAddress,
				Op:             "remove_sharer",
				Detail: fmt.Sprintf(
					"line is exclusive to rank %d, rank %d asked to be removed",
					e.exclusiveSharerRank, rank),
			})
		}

		e.sharers.Clear(rank)
		e.numSharers = 0
		e.exclusiveSharerRank = -1
		e.state = Uncached

	default:
		panic("coherence: unreachable state in RemoveSharer")
	}
}
