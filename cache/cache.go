// Package cache implements a parameterizable set-associative cache: a data
// store with pluggable replacement (round-robin within a skewed-associative
// probe chain), bounded inter-set search, and invalidation. It is the
// storage component every tile's instruction and data cache slices are
// built from.
package cache

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/jeycin/Graphite/randsrc"
)

// AccessType distinguishes loads from stores for statistics and for the
// store-allocation policy.
type AccessType int

// Access types.
const (
	Load AccessType = iota
	Store
	numAccessTypes
)

// String implements fmt.Stringer.
func (a AccessType) String() string {
	switch a {
	case Load:
		return "LOAD"
	case Store:
		return "STORE"
	default:
		return fmt.Sprintf("AccessType(%d)", int(a))
	}
}

// Kind labels a cache instance for reporting purposes (icache vs dcache).
// It has no effect on behavior.
type Kind int

// Cache kinds.
const (
	DCache Kind = iota
	ICache
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == ICache {
		return "icache"
	}

	return "dcache"
}

// StoreAllocPolicy controls whether a store that misses allocates a line.
type StoreAllocPolicy int

// Store allocation policies.
const (
	StoreAllocate StoreAllocPolicy = iota
	StoreNoAllocate
)

// noneLink is the sentinel overflow-pointer value meaning "no further set to
// probe in the chain".
const noneLink = -1

// ConfigError reports an invalid cache configuration. Cache construction is
// part of simulator bootstrap, so these are startup-fatal: callers should
// report and exit rather than try to continue with a half-built cache.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cache: invalid %s: %s", e.Field, e.Detail)
}

// InvariantError reports a violation of a cache invariant during operation:
// a probe depth beyond what the cache was built for, or a shrink attempted
// while shared-memory simulation is active. These are programming errors in
// the caller, not data the cache can route around, so they are fatal.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cache: invariant violated in %s: %s", e.Op, e.Detail)
}

// Config parameterizes a Cache.
type Config struct {
	// Name identifies the cache in statistics output.
	Name string

	// Size is the total cache capacity in bytes.
	Size uint32

	// LineSize is the block size in bytes. Must be a power of two.
	LineSize uint32

	// Associativity is the number of ways per set.
	Associativity uint32

	// MaxSearchDepth bounds how many sets a lookup probes via the overflow
	// chain before giving up. Must be >= 1.
	MaxSearchDepth uint32

	// StorePolicy controls whether a missed store allocates a line.
	StorePolicy StoreAllocPolicy
}

// AccessOptions configures a single AccessSingleLine call.
type AccessOptions struct {
	// WantFillNotice, when the lookup misses and FillBuffer is nil, makes
	// the call return immediately with NeedFill set and no state change,
	// instead of allocating with zeroed data.
	WantFillNotice bool

	// FillBuffer supplies the line's contents on a miss that allocates. It
	// must be exactly the cache's line size, or nil.
	FillBuffer []byte

	// Buffer is the load destination or store source, offset within the
	// line by the address's low bits. Its length is the access size.
	Buffer []byte

	// FillState is the cache-side coherence state assigned to a newly
	// filled line. It is used as given: left at the zero value, the line
	// is filled with state Invalid.
	FillState LineState

	// CaptureEviction requests the evicted tag's address and data be
	// returned when a miss causes a replacement.
	CaptureEviction bool
}

// AccessResult is returned by AccessSingleLine.
type AccessResult struct {
	Hit bool

	// Tag is the slot's tag after the access. It is only valid until the
	// next mutating call on this cache: a fill can relocate the tag that a
	// previous peek observed.
	Tag Tag

	// NeedFill is set when WantFillNotice was requested, the lookup
	// missed, and no FillBuffer was supplied. No other field is
	// meaningful in that case.
	NeedFill bool

	Evicted     bool
	EvictedAddr uint64
	EvictedData []byte
}

// Cache is a parameterizable set-associative cache.
type Cache struct {
	name           string
	lineSize       uint32
	lineShift      uint
	numSets        uint32
	setMask        uint32
	maxSearchDepth uint32
	storePolicy    StoreAllocPolicy

	sets   []*set
	setPtr []int

	rng *randsrc.Source

	hits   [numAccessTypes]uint64
	misses [numAccessTypes]uint64

	setAccesses []uint64
	setMisses   []uint64

	sharedMemoryActive bool
}

func log2PowerOfTwo(x uint32) (uint, bool) {
	if x == 0 || x&(x-1) != 0 {
		return 0, false
	}

	return uint(bits.TrailingZeros32(x)), true
}

// New constructs a Cache from cfg. The returned seed-derived PRNG is seeded
// deterministically from cfg's position in construction order via
// randsrc.NextSeed; constructing caches in the same order across runs
// reproduces the same replacement decisions.
func New(cfg Config) (*Cache, error) {
	if cfg.LineSize == 0 {
		return nil, &ConfigError{Field: "LineSize", Detail: "must be nonzero"}
	}

	if _, ok := log2PowerOfTwo(cfg.LineSize); !ok {
		return nil, &ConfigError{Field: "LineSize", Detail: "must be a power of two"}
	}

	if cfg.Associativity == 0 {
		return nil, &ConfigError{Field: "Associativity", Detail: "must be nonzero"}
	}

	if cfg.MaxSearchDepth == 0 {
		return nil, &ConfigError{Field: "MaxSearchDepth", Detail: "must be at least 1"}
	}

	denom := uint64(cfg.LineSize) * uint64(cfg.Associativity)
	if denom == 0 || uint64(cfg.Size)%denom != 0 {
		return nil, &ConfigError{
			Field:  "Size",
			Detail: "must be a multiple of LineSize * Associativity",
		}
	}

	numSets64 := uint64(cfg.Size) / denom
	if numSets64 == 0 || numSets64 > uint64(^uint32(0)) {
		return nil, &ConfigError{Field: "Size", Detail: "computes to zero or too many sets"}
	}

	numSets := uint32(numSets64)

	lineShift, ok := log2PowerOfTwo(cfg.LineSize)
	if !ok {
		return nil, &ConfigError{Field: "LineSize", Detail: "must be a power of two"}
	}

	if _, ok := log2PowerOfTwo(numSets); !ok {
		return nil, &ConfigError{
			Field:  "Size",
			Detail: "derived set count must be a power of two",
		}
	}

	c := &Cache{
		name:           cfg.Name,
		lineSize:       cfg.LineSize,
		lineShift:      lineShift,
		numSets:        numSets,
		setMask:        numSets - 1,
		maxSearchDepth: cfg.MaxSearchDepth,
		storePolicy:    cfg.StorePolicy,
		sets:           make([]*set, numSets),
		setPtr:         make([]int, numSets),
		rng:            randsrc.NewSource(randsrc.NextSeed()),
		setAccesses:    make([]uint64, numSets),
		setMisses:      make([]uint64, numSets),
	}

	for i := range c.sets {
		c.sets[i] = newSet(int(cfg.Associativity), int(cfg.LineSize))
		c.setPtr[i] = noneLink
	}

	return c, nil
}

// SetProbeLink chains set `from`'s overflow pointer to set `to`, enabling
// skewed-associative-style probing beyond the home set. Use ClearProbeLink
// to break a chain.
func (c *Cache) SetProbeLink(from, to int) {
	c.setPtr[from] = to
}

// ClearProbeLink removes set `from`'s overflow pointer.
func (c *Cache) ClearProbeLink(from int) {
	c.setPtr[from] = noneLink
}

// SetSharedMemoryActive controls whether Resize permits shrinking
// associativity. It must be called by the simulator whenever shared-memory
// simulation is enabled or disabled for the run.
func (c *Cache) SetSharedMemoryActive(active bool) {
	c.sharedMemoryActive = active
}

func (c *Cache) splitAddress(addr uint64) (tagBits uint64, setIndex uint32) {
	tagBits = addr >> c.lineShift
	setIndex = uint32(tagBits) & c.setMask

	return tagBits, setIndex
}

func (c *Cache) lineOffset(addr uint64) uint32 {
	return uint32(addr) & (c.lineSize - 1)
}

func (c *Cache) tagToAddress(tagBits uint64) uint64 {
	return tagBits << c.lineShift
}

// probe walks the probe chain starting at homeSet looking for tagBits,
// recording every visited set index in history. It stops on a hit, once
// depth reaches maxSearchDepth, or when the chain runs out (noneLink).
func (c *Cache) probe(tagBits uint64, homeSet uint32) (hit bool, setIdx uint32, slotIdx int, history []uint32) {
	history = make([]uint32, 0, c.maxSearchDepth)

	current := homeSet
	depth := uint32(0)

	for {
		history = append(history, current)

		if idx, ok := c.sets[current].find(tagBits); ok {
			return true, current, idx, history
		}

		depth++
		if depth >= c.maxSearchDepth {
			return false, current, -1, history
		}

		next := c.setPtr[current]
		if next == noneLink {
			return false, current, -1, history
		}

		current = uint32(next)
	}
}

// AccessSingleLine looks up addr, applying the access's side effects
// according to opts. See AccessOptions and AccessResult for the contract.
func (c *Cache) AccessSingleLine(addr uint64, accessType AccessType, opts AccessOptions) AccessResult {
	tagBits, homeSet := c.splitAddress(addr)
	offset := c.lineOffset(addr)

	hit, setIdx, slotIdx, history := c.probe(tagBits, homeSet)

	if opts.WantFillNotice && !hit && opts.FillBuffer == nil {
		return AccessResult{NeedFill: true}
	}

	for _, s := range history {
		c.setAccesses[s]++
	}

	if hit {
		c.applyBuffer(setIdx, slotIdx, offset, accessType, opts.Buffer)
		c.hits[accessType]++

		return AccessResult{Hit: true, Tag: c.sets[setIdx].tags[slotIdx]}
	}

	c.setMisses[history[len(history)-1]]++

	shouldAllocate := accessType == Load || c.storePolicy == StoreAllocate
	if !shouldAllocate {
		c.misses[accessType]++
		return AccessResult{Hit: false}
	}

	victimSet := history[c.rng.Next(len(history))]

	newTag := Tag{bits: tagBits, state: opts.FillState}

	idx, evicted, evictedTag, evictedData := c.sets[victimSet].replace(newTag, opts.FillBuffer)
	c.applyBuffer(victimSet, idx, offset, accessType, opts.Buffer)
	c.misses[accessType]++

	result := AccessResult{Hit: false, Tag: c.sets[victimSet].tags[idx]}

	if opts.CaptureEviction && evicted {
		result.Evicted = true
		result.EvictedAddr = c.tagToAddress(evictedTag.bits)
		result.EvictedData = evictedData
	}

	return result
}

func (c *Cache) applyBuffer(setIdx uint32, slotIdx int, offset uint32, accessType AccessType, buffer []byte) {
	if buffer == nil {
		return
	}

	if accessType == Load {
		c.sets[setIdx].readLine(slotIdx, int(offset), buffer)
	} else {
		c.sets[setIdx].writeLine(slotIdx, int(offset), buffer)
	}
}

// AccessSingleLinePeek performs the same lookup as AccessSingleLine with
// zero side effects: no replacement, no statistics, no data movement.
func (c *Cache) AccessSingleLinePeek(addr uint64) (hit bool, tag Tag) {
	tagBits, homeSet := c.splitAddress(addr)

	h, setIdx, slotIdx, _ := c.probe(tagBits, homeSet)
	if !h {
		return false, Tag{}
	}

	return true, c.sets[setIdx].tags[slotIdx]
}

// InvalidateLine clears the matching tag in its set-chain. It returns
// whether a matching line was found.
func (c *Cache) InvalidateLine(addr uint64) bool {
	tagBits, homeSet := c.splitAddress(addr)

	current := homeSet
	for depth := uint32(0); depth < c.maxSearchDepth; depth++ {
		if c.sets[current].invalidate(tagBits) {
			return true
		}

		next := c.setPtr[current]
		if next == noneLink {
			break
		}

		current = uint32(next)
	}

	return false
}

// Resize grows or shrinks every set's associativity to newAssociativity.
// Growth preserves every existing line and appends empty slots. Shrinking
// is only permitted when shared-memory simulation is inactive; calling it
// otherwise is a fatal invariant violation, since the lines it would drop
// could still be relied on for coherence.
func (c *Cache) Resize(newAssociativity uint32) {
	current := uint32(c.sets[0].associativity())

	if newAssociativity < current && c.sharedMemoryActive {
		panic(&InvariantError{
			Op:     "resize",
			Detail: "cannot shrink associativity while shared-memory simulation is active",
		})
	}

	for _, s := range c.sets {
		switch {
		case newAssociativity > current:
			s.grow(int(newAssociativity - current))
		case newAssociativity < current:
			s.shrink(int(newAssociativity))
		}
	}
}

// ResetCounters zeros every statistics counter without touching cache
// contents.
func (c *Cache) ResetCounters() {
	for i := range c.hits {
		c.hits[i] = 0
		c.misses[i] = 0
	}

	for i := range c.setAccesses {
		c.setAccesses[i] = 0
		c.setMisses[i] = 0
	}
}

// Hits returns the hit count for accessType.
func (c *Cache) Hits(accessType AccessType) uint64 {
	return c.hits[accessType]
}

// Misses returns the miss count for accessType.
func (c *Cache) Misses(accessType AccessType) uint64 {
	return c.misses[accessType]
}

// NumSets returns the number of sets in the cache.
func (c *Cache) NumSets() uint32 {
	return c.numSets
}

// Associativity returns the current per-set associativity.
func (c *Cache) Associativity() uint32 {
	return uint32(c.sets[0].associativity())
}

// LineSize returns the cache's line size in bytes.
func (c *Cache) LineSize() uint32 {
	return c.lineSize
}

// StatsLong renders a human-readable statistics report, each line prefixed
// with prefix, labeled with kind.
func (c *Cache) StatsLong(prefix string, kind Kind) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s%s (%s) statistics:\n", prefix, c.name, kind)
	fmt.Fprintf(&b, "%s  sets: %d, associativity: %d, line size: %d\n",
		prefix, c.numSets, c.Associativity(), c.lineSize)

	for at := AccessType(0); at < numAccessTypes; at++ {
		fmt.Fprintf(&b, "%s  %s: hits=%d misses=%d\n",
			prefix, at, c.hits[at], c.misses[at])
	}

	return b.String()
}
