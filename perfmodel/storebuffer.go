package perfmodel

// storeLookup is the result of probing the store buffer for a prior store
// to the same address.
type storeLookup int

const (
	storeNotFound storeLookup = iota
	storeValid
)

type storeEntry struct {
	valid        bool
	addr         uint64
	availability uint64
}

// storeBuffer models a fixed number of in-flight store entries used for
// write coalescing (a second store to the same address refreshes the
// existing entry rather than taking a new slot) and for store-to-load
// forwarding (bypassing the cache for a load that reads an address this
// core just wrote).
type storeBuffer struct {
	entries []storeEntry
}

func newStoreBuffer(numEntries uint32) *storeBuffer {
	if numEntries == 0 {
		numEntries = 1
	}

	return &storeBuffer{entries: make([]storeEntry, numEntries)}
}

// executeStore records a store to addr arriving at cycle t with the given
// occupancy, and returns the cycle at which it begins. A store to an
// address already resident refreshes that entry and begins at t
// (coalescing: occupancy never compounds for repeated stores to the same
// address). Otherwise it follows the same slot-selection rule as
// loadUnit.execute, recording addr at whichever slot it lands in.
func (b *storeBuffer) executeStore(t uint64, occupancy uint64, addr uint64) uint64 {
	for i, e := range b.entries {
		if e.valid && e.addr == addr {
			b.entries[i].availability = t + occupancy
			return t
		}
	}

	for i, e := range b.entries {
		if !e.valid || e.availability <= t {
			b.entries[i] = storeEntry{valid: true, addr: addr, availability: t + occupancy}
			return t
		}
	}

	minIdx := 0

	for i, e := range b.entries {
		if e.availability < b.entries[minIdx].availability {
			minIdx = i
		}
	}

	old := b.entries[minIdx].availability
	b.entries[minIdx] = storeEntry{valid: true, addr: addr, availability: old + occupancy}

	return old
}

// isAddressAvailable reports whether a pending store to addr can forward
// its data as of cycle t: an entry for addr whose availability is still
// at or beyond t is still "in flight" and forwardable.
func (b *storeBuffer) isAddressAvailable(t uint64, addr uint64) storeLookup {
	for _, e := range b.entries {
		if e.valid && e.addr == addr && e.availability >= t {
			return storeValid
		}
	}

	return storeNotFound
}
