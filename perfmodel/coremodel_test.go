package perfmodel_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jeycin/Graphite/perfmodel"
)

func noICache(uint64) uint64 { return 0 }

var _ = Describe("CoreModel", func() {
	var m *perfmodel.CoreModel

	BeforeEach(func() {
		m = perfmodel.NewCoreModel(perfmodel.Config{
			NumOutstandingLoads:   3,
			NumStoreBufferEntries: 1,
		}, noICache)
	})

	It("implements the scoreboard-chain scenario exactly", func() {
		// I1 writes r5, cost 7, no memory operands.
		i1 := &perfmodel.Instruction{
			Cost:     7,
			Operands: []perfmodel.Operand{{Kind: perfmodel.OperandRegister, Direction: perfmodel.OperandWrite, Register: 5}},
		}
		c1 := m.HandleInstruction(i1, perfmodel.NewDynamicInfoQueue(1))
		Expect(c1).To(Equal(uint64(7)))

		// I1 has no memory write, so the cursor advances from its read
		// completion cycle (0, since I1 has no read operands), not from
		// its own execution finishing: cycleCount = 0 + 1 = 1.
		Expect(m.CurrentCycle()).To(Equal(uint64(1)))

		// I2 reads r5, cost 2, no memory operands. It issues at I1's
		// advanced cycle cursor (1), so its read completion waits on the
		// scoreboard entry I1 left behind (7), and execution finishes at
		// 7 + 2 = 9. The cursor then advances again from that same
		// read-completion value: 7 + 1 = 8.
		i2 := &perfmodel.Instruction{
			Cost:     2,
			Operands: []perfmodel.Operand{{Kind: perfmodel.OperandRegister, Direction: perfmodel.OperandRead, Register: 5}},
		}
		c2 := m.HandleInstruction(i2, perfmodel.NewDynamicInfoQueue(1))
		Expect(c2).To(Equal(uint64(9)))
		Expect(m.CurrentCycle()).To(Equal(uint64(8)))
	})

	It("charges instruction fetch latency before computing read readiness", func() {
		mWithFetch := perfmodel.NewCoreModel(perfmodel.Config{NumOutstandingLoads: 1, NumStoreBufferEntries: 1},
			func(uint64) uint64 { return 4 })

		nop := &perfmodel.Instruction{Cost: 1}
		done := mWithFetch.HandleInstruction(nop, perfmodel.NewDynamicInfoQueue(1))

		Expect(done).To(Equal(uint64(5)))
	})

	It("forwards a store's data to a dependent load with zero extra latency", func() {
		store := &perfmodel.Instruction{
			Operands: []perfmodel.Operand{{Kind: perfmodel.OperandMemory, Direction: perfmodel.OperandWrite}},
		}
		load := &perfmodel.Instruction{
			Operands: []perfmodel.Operand{{Kind: perfmodel.OperandMemory, Direction: perfmodel.OperandRead}},
		}

		storeQ := perfmodel.NewDynamicInfoQueue(1)
		storeQ.Push(perfmodel.DynamicInstructionInfo{Kind: perfmodel.MemoryWrite, Addr: 0x40, Latency: 6})
		m.HandleInstruction(store, storeQ)

		loadQ := perfmodel.NewDynamicInfoQueue(1)
		loadQ.Push(perfmodel.DynamicInstructionInfo{Kind: perfmodel.MemoryRead, Addr: 0x40, Latency: 50})
		loadDone := m.HandleInstruction(load, loadQ)

		Expect(loadDone).To(BeNumerically("<", 50))
	})

	It("panics when the dynamic-info kind does not match the operand direction", func() {
		store := &perfmodel.Instruction{
			Operands: []perfmodel.Operand{{Kind: perfmodel.OperandMemory, Direction: perfmodel.OperandWrite}},
		}

		q := perfmodel.NewDynamicInfoQueue(1)
		q.Push(perfmodel.DynamicInstructionInfo{Kind: perfmodel.MemoryRead, Addr: 0x10, Latency: 1})

		Expect(func() { m.HandleInstruction(store, q) }).To(Panic())
	})

	It("keeps the cycle cursor strictly monotone across instructions", func() {
		q := func() *perfmodel.DynamicInfoQueue { return perfmodel.NewDynamicInfoQueue(1) }

		prev := uint64(0)
		for i := 0; i < 5; i++ {
			instr := &perfmodel.Instruction{Cost: uint64(i + 1)}
			m.HandleInstruction(instr, q())
			Expect(m.CurrentCycle()).To(BeNumerically(">", prev))
			prev = m.CurrentCycle()
		}
	})
})
