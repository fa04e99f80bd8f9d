package coherence_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jeycin/Graphite/coherence"
)

var _ = Describe("Entry", func() {
	var entry *coherence.Entry

	BeforeEach(func() {
		entry = coherence.NewEntry(0x1000, 8)
	})

	It("starts UNCACHED with no sharers", func() {
		Expect(entry.State()).To(Equal(coherence.Uncached))
		Expect(entry.NumSharers()).To(Equal(0))
	})

	It("transitions UNCACHED -> SHARED on AddSharer", func() {
		ok := entry.AddSharer(2)

		Expect(ok).To(BeTrue())
		Expect(entry.State()).To(Equal(coherence.Shared))
		Expect(entry.GetSharersList()).To(Equal([]int{2}))
	})

	It("transitions UNCACHED -> EXCLUSIVE on AddExclusiveSharer", func() {
		entry.AddExclusiveSharer(3)

		Expect(entry.State()).To(Equal(coherence.Exclusive))
		Expect(entry.GetExclusiveSharerRank()).To(Equal(3))
		Expect(entry.NumSharers()).To(Equal(1))
	})

	It("accumulates sharers while SHARED", func() {
		entry.AddSharer(1)
		entry.AddSharer(3)

		Expect(entry.State()).To(Equal(coherence.Shared))
		Expect(entry.GetSharersList()).To(Equal([]int{1, 3}))
	})

	It("still accepts an existing sharer once the sharer set is full", func() {
		small := coherence.NewEntry(0x2000, 2)
		Expect(small.AddSharer(0)).To(BeTrue())
		Expect(small.AddSharer(1)).To(BeTrue())

		ok := small.AddSharer(0) // already present: succeeds
		Expect(ok).To(BeTrue())
	})

	It("demotes EXCLUSIVE to SHARED when a second sharer is added", func() {
		entry.AddExclusiveSharer(4)

		ok := entry.AddSharer(5)

		Expect(ok).To(BeTrue())
		Expect(entry.State()).To(Equal(coherence.Shared))
		Expect(entry.GetSharersList()).To(Equal([]int{4, 5}))
	})

	It("forbids AddExclusiveSharer while SHARED", func() {
		entry.AddSharer(1)
		entry.AddSharer(2)

		Expect(func() { entry.AddExclusiveSharer(1) }).To(Panic())
	})

	It("forbids AddExclusiveSharer for a different rank while EXCLUSIVE", func() {
		entry.AddExclusiveSharer(1)

		Expect(func() { entry.AddExclusiveSharer(2) }).To(Panic())
	})

	It("allows an idempotent AddExclusiveSharer for the current owner", func() {
		entry.AddExclusiveSharer(1)

		Expect(func() { entry.AddExclusiveSharer(1) }).ToNot(Panic())
		Expect(entry.State()).To(Equal(coherence.Exclusive))
	})

	It("walks SHARED {1,3} down to UNCACHED via RemoveSharer", func() {
		entry.AddSharer(1)
		entry.AddSharer(3)

		entry.RemoveSharer(1)
		Expect(entry.State()).To(Equal(coherence.Shared))
		Expect(entry.GetSharersList()).To(Equal([]int{3}))

		entry.RemoveSharer(3)
		Expect(entry.State()).To(Equal(coherence.Uncached))
		Expect(entry.NumSharers()).To(Equal(0))
	})

	It("transitions EXCLUSIVE -> UNCACHED when the owner is removed", func() {
		entry.AddExclusiveSharer(6)

		entry.RemoveSharer(6)

		Expect(entry.State()).To(Equal(coherence.Uncached))
	})

	It("forbids removing a non-owner rank while EXCLUSIVE", func() {
		entry.AddExclusiveSharer(6)

		Expect(func() { entry.RemoveSharer(7) }).To(Panic())
	})

	It("no-ops RemoveSharer while UNCACHED", func() {
		Expect(func() { entry.RemoveSharer(0) }).ToNot(Panic())
		Expect(entry.State()).To(Equal(coherence.Uncached))
	})

	It("keeps num_sharers equal to the sharer bit-vector's population count", func() {
		entry.AddSharer(0)
		entry.AddSharer(1)
		entry.AddSharer(2)
		entry.RemoveSharer(1)

		Expect(entry.NumSharers()).To(Equal(len(entry.GetSharersList())))
	})

	It("reports MemLineAddress for diagnostics", func() {
		Expect(entry.MemLineAddress()).To(Equal(uint64(0x1000)))
	})
})
