package perfmodel

// loadUnit models a fixed number of outstanding-load tracking slots, each
// remembering the cycle at which it next becomes free. Grounded on the
// original core model's load-tracking table.
type loadUnit struct {
	availability []uint64
}

func newLoadUnit(numSlots uint32) *loadUnit {
	if numSlots == 0 {
		numSlots = 1
	}

	return &loadUnit{availability: make([]uint64, numSlots)}
}

// execute issues a load arriving at cycle t with the given occupancy and
// returns the cycle at which it begins. If any slot is already free
// (availability <= t), it grabs the first such slot immediately and the
// load begins at t. Otherwise every slot is busy: the slot with the
// soonest availability is extended by occupancy, and the load begins at
// that slot's old availability — i.e. it queues behind the load
// currently occupying that slot.
func (u *loadUnit) execute(t uint64, occupancy uint64) uint64 {
	for i, avail := range u.availability {
		if avail <= t {
			u.availability[i] = t + occupancy
			return t
		}
	}

	minIdx := 0

	for i, avail := range u.availability {
		if avail < u.availability[minIdx] {
			minIdx = i
		}
	}

	old := u.availability[minIdx]
	u.availability[minIdx] = old + occupancy

	return old
}

func (u *loadUnit) numOutstanding(atCycle uint64) int {
	n := 0

	for _, avail := range u.availability {
		if avail > atCycle {
			n++
		}
	}

	return n
}
