package cache_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jeycin/Graphite/cache"
)

func newTestCache() *cache.Cache {
	c, err := cache.New(cache.Config{
		Name:           "test",
		Size:           64,
		LineSize:       16,
		Associativity:  1,
		MaxSearchDepth: 1,
		StorePolicy:    cache.StoreAllocate,
	})
	Expect(err).NotTo(HaveOccurred())

	return c
}

var _ = Describe("Cache", func() {
	var c *cache.Cache

	BeforeEach(func() {
		c = newTestCache()
	})

	It("hits on a load after the line has been filled", func() {
		fill := bytes.Repeat([]byte{0}, 16)
		c.AccessSingleLine(0x100, cache.Load, cache.AccessOptions{
			FillBuffer: fill,
			FillState:  cache.Shared,
		})

		hit, _ := c.AccessSingleLinePeek(0x100)
		Expect(hit).To(BeTrue())

		res := c.AccessSingleLine(0x108, cache.Load, cache.AccessOptions{})
		Expect(res.Hit).To(BeTrue())
		Expect(c.Hits(cache.Load)).To(Equal(uint64(1)))
	})

	It("captures the evicted line and data on a capacity miss", func() {
		original := bytes.Repeat([]byte{0x11}, 16)
		c.AccessSingleLine(0x000, cache.Load, cache.AccessOptions{
			FillBuffer: original,
			FillState:  cache.Shared,
		})

		fill := bytes.Repeat([]byte{0xAA}, 16)
		res := c.AccessSingleLine(0x040, cache.Load, cache.AccessOptions{
			FillBuffer:      fill,
			FillState:       cache.Shared,
			CaptureEviction: true,
		})

		Expect(res.Hit).To(BeFalse())
		Expect(res.Evicted).To(BeTrue())
		Expect(res.EvictedAddr).To(Equal(uint64(0x000)))
		Expect(res.EvictedData).To(Equal(original))
	})

	It("reports need-fill without mutating state when no fill buffer is given", func() {
		before := c.Misses(cache.Load)

		res := c.AccessSingleLine(0x200, cache.Load, cache.AccessOptions{
			WantFillNotice: true,
		})

		Expect(res.NeedFill).To(BeTrue())
		Expect(c.Misses(cache.Load)).To(Equal(before))

		hit, _ := c.AccessSingleLinePeek(0x200)
		Expect(hit).To(BeFalse())
	})

	It("round-trips a store then a load at the same offset", func() {
		fillZero := make([]byte, 16)
		c.AccessSingleLine(0x300, cache.Store, cache.AccessOptions{
			FillBuffer: fillZero,
			FillState:  cache.Modified,
		})

		payload := []byte{1, 2, 3, 4}
		c.AccessSingleLine(0x304, cache.Store, cache.AccessOptions{
			Buffer: payload,
		})

		out := make([]byte, 4)
		res := c.AccessSingleLine(0x304, cache.Load, cache.AccessOptions{
			Buffer: out,
		})

		Expect(res.Hit).To(BeTrue())
		Expect(out).To(Equal(payload))
	})

	It("invalidates a present line and reports absence afterwards", func() {
		c.AccessSingleLine(0x400, cache.Load, cache.AccessOptions{
			FillBuffer: make([]byte, 16),
		})

		ok := c.InvalidateLine(0x400)
		Expect(ok).To(BeTrue())

		hit, _ := c.AccessSingleLinePeek(0x400)
		Expect(hit).To(BeFalse())

		ok = c.InvalidateLine(0x400)
		Expect(ok).To(BeFalse())
	})

	It("grows associativity without disturbing existing lines", func() {
		c.AccessSingleLine(0x500, cache.Load, cache.AccessOptions{
			FillBuffer: bytes.Repeat([]byte{0x7}, 16),
		})

		c.Resize(2)

		hit, _ := c.AccessSingleLinePeek(0x500)
		Expect(hit).To(BeTrue())
		Expect(c.Associativity()).To(Equal(uint32(2)))
	})

	It("forbids shrinking while shared-memory simulation is active", func() {
		c.Resize(2)
		c.SetSharedMemoryActive(true)

		Expect(func() { c.Resize(1) }).To(Panic())
	})

	It("rejects a non-power-of-two line size at construction", func() {
		_, err := cache.New(cache.Config{
			Size:           64,
			LineSize:       10,
			Associativity:  1,
			MaxSearchDepth: 1,
		})

		Expect(err).To(HaveOccurred())
	})
})
