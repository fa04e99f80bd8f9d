package tile_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jeycin/Graphite/cache"
	"github.com/jeycin/Graphite/perfmodel"
	"github.com/jeycin/Graphite/tile"
)

func newTestTile(net *stubEndpoint, home tile.MemoryHome) *tile.Tile {
	t, err := tile.New(tile.Config{
		ID:              0,
		PerfModelActive: true,
		PerfModel:       perfmodel.Config{NumOutstandingLoads: 2, NumStoreBufferEntries: 1},
		Cache: tile.OCacheConfig{
			ICacheModeling: true,
			DCacheModeling: true,
			ICache: cache.Config{
				Name: "icache", Size: 64, LineSize: 16, Associativity: 1, MaxSearchDepth: 1,
			},
			DCache: cache.Config{
				Name: "dcache", Size: 64, LineSize: 16, Associativity: 1, MaxSearchDepth: 1,
				StorePolicy: cache.StoreAllocate,
			},
		},
		Net:  net,
		Home: home,
	})
	Expect(err).NotTo(HaveOccurred())

	return t
}

var _ = Describe("Tile", func() {
	It("runs an instruction through the performance model and counts it", func() {
		tl := newTestTile(newStubEndpoint(0), nil)

		nop := &perfmodel.Instruction{Cost: 3}
		done := tl.HandleInstruction(nop)

		Expect(done).To(Equal(uint64(3)))
		Expect(tl.Summary().Instructions).To(Equal(uint64(1)))
	})

	It("skips the performance model entirely when it is disabled", func() {
		tl, err := tile.New(tile.Config{
			ID:              1,
			PerfModelActive: false,
			Cache: tile.OCacheConfig{
				ICacheModeling: false,
				DCacheModeling: false,
			},
			Net: newStubEndpoint(1),
		})
		Expect(err).NotTo(HaveOccurred())

		done := tl.HandleInstruction(&perfmodel.Instruction{Cost: 99})
		Expect(done).To(Equal(uint64(0)))
		Expect(tl.Summary().Instructions).To(Equal(uint64(0)))
	})

	It("notifies the memory home on a data cache store and counts it in the summary", func() {
		home := &fakeHome{}
		tl := newTestTile(newStubEndpoint(0), home)

		res := tl.ModelDCacheAccess(0x200, cache.Store, cache.AccessOptions{
			FillBuffer: make([]byte, 16),
			FillState:  cache.Modified,
		})

		Expect(res.Hit).To(BeFalse())
		Expect(home.exclusiveAdds).To(ContainElement(uint64(0x200)))
		Expect(tl.Summary().DCacheStores).To(Equal(uint64(1)))
	})

	It("invalidates every existing sharer before requesting exclusive ownership", func() {
		home := &fakeHome{sharers: map[uint64][]int{0x200: {1, 2}}}
		tl := newTestTile(newStubEndpoint(0), home)

		tl.ModelDCacheAccess(0x200, cache.Store, cache.AccessOptions{
			FillBuffer: make([]byte, 16),
			FillState:  cache.Modified,
		})

		Expect(home.removals).To(ContainElement(removal{addr: 0x200, rank: 1}))
		Expect(home.removals).To(ContainElement(removal{addr: 0x200, rank: 2}))
		Expect(home.exclusiveAdds).To(ContainElement(uint64(0x200)))
		Expect(home.Sharers(0x200)).To(Equal([]int{0}))
	})

	It("queues a data cache access's dynamic info for the following instruction", func() {
		tl := newTestTile(newStubEndpoint(0), nil)

		res := tl.ModelDCacheAccess(0x100, cache.Load, cache.AccessOptions{
			FillBuffer: make([]byte, 16),
			FillState:  cache.Shared,
		})
		Expect(res.Hit).To(BeFalse())

		load := &perfmodel.Instruction{
			Operands: []perfmodel.Operand{{Kind: perfmodel.OperandMemory, Direction: perfmodel.OperandRead}},
		}
		done := tl.HandleInstruction(load)

		Expect(done).To(BeNumerically(">=", uint64(0)))
	})

	It("forwards SendW and RecvW to the underlying network endpoint", func() {
		net := newStubEndpoint(0, []byte("payload"))
		tl := newTestTile(net, nil)

		Expect(tl.SendW(context.Background(), 1, []byte("hi"))).To(Succeed())
		Expect(net.sent).To(HaveLen(1))

		payload, err := tl.RecvW(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload).To(Equal([]byte("payload")))
	})
})
