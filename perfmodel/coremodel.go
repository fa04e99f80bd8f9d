// Package perfmodel implements the in-order-issue, out-of-order-completion
// (IOCOOM) per-core timing model: instructions issue in program order but
// their effects — and the scoreboard updates that follow from them — may
// complete out of order, bounded by a fixed number of outstanding loads and
// store-buffer entries.
package perfmodel

import "fmt"

// Config holds the IOCOOM model's sizing knobs.
type Config struct {
	NumOutstandingLoads   uint32
	NumStoreBufferEntries uint32
}

// ICacheModel is the narrow pipe the core model uses to charge an
// instruction fetch's latency, keeping the model itself ignorant of cache
// internals (set layout, replacement, coherence state).
type ICacheModel func(addr uint64) uint64

// InvariantError reports a core-model protocol violation: instrumentation
// handed the model something its dynamic-info queue and its static
// instruction disagree about.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return "perfmodel: invariant violation: " + e.Detail
}

// CoreModel is the per-tile IOCOOM timing model. It is not safe for
// concurrent use; each tile owns exactly one.
type CoreModel struct {
	scoreboard registerScoreboard
	loads      *loadUnit
	stores     *storeBuffer
	icache     ICacheModel

	// cycleCount is the model's program-order cycle cursor, advanced once
	// per handled instruction per the three-way rule in step 8.
	cycleCount uint64

	instructionCount uint64
}

// NewCoreModel builds an IOCOOM model from cfg. icache is consulted once
// per instruction for its fetch latency; a nil icache is treated as
// zero-latency (instruction-cache modeling disabled).
func NewCoreModel(cfg Config, icache ICacheModel) *CoreModel {
	numLoads := cfg.NumOutstandingLoads
	if numLoads == 0 {
		numLoads = 1
	}

	numStores := cfg.NumStoreBufferEntries
	if numStores == 0 {
		numStores = 1
	}

	if icache == nil {
		icache = func(uint64) uint64 { return 0 }
	}

	return &CoreModel{
		loads:  newLoadUnit(numLoads),
		stores: newStoreBuffer(numStores),
		icache: icache,
	}
}

// HandleInstruction runs one instruction through the model and returns the
// cycle at which its execution completes. dyn supplies one
// DynamicInstructionInfo per MEMORY operand in instr, consumed off that
// queue in operand order; a missing entry or a kind mismatch is an
// invariant violation.
func (m *CoreModel) HandleInstruction(instr *Instruction, dyn *DynamicInfoQueue) uint64 {
	// Step 2: instruction fetch latency.
	m.cycleCount += m.icache(instr.Address)
	t := m.cycleCount

	// Step 3: read-operand readiness.
	readReady := t
	for _, reg := range instr.readRegisters() {
		if ready := m.scoreboard.readyCycle(reg); ready > readReady {
			readReady = ready
		}
	}

	readComplete := readReady

	// Step 4: memory reads and writes, in operand order.
	var pendingWrites []DynamicInstructionInfo

	for _, op := range instr.memoryOperands() {
		info, ok := dyn.Pop()
		if !ok {
			panic(&InvariantError{Detail: "dynamic-info queue exhausted before a memory operand"})
		}

		wantWrite := op.Direction == OperandWrite
		gotWrite := info.Kind == MemoryWrite

		if wantWrite != gotWrite {
			panic(&InvariantError{Detail: fmt.Sprintf("operand direction %v does not match dynamic info kind %v", op.Direction, info.Kind)})
		}

		if gotWrite {
			pendingWrites = append(pendingWrites, info)
			continue
		}

		loadReady, loadLatency := m.executeLoad(t, info)
		if loadReady > readReady {
			readReady = loadReady
		}

		if c := loadReady + loadLatency; c > readComplete {
			readComplete = c
		}
	}

	// Step 5: execution.
	execComplete := readComplete + instr.Cost

	// Step 6: register writes.
	writeReady := execComplete
	for _, reg := range instr.writeRegisters() {
		m.scoreboard.markWritten(reg, execComplete)
	}

	// Step 7: memory writes.
	for _, info := range pendingWrites {
		storeTime := m.stores.executeStore(execComplete, info.Latency, info.Addr)
		if storeTime > writeReady {
			writeReady = storeTime
		}
	}

	// Step 8: next-instruction cycle. A simple memory load only occupies
	// the load unit, so the next instruction may issue as soon as this
	// one's read operands are ready, without waiting for either the load
	// or this instruction's own execution to complete. An instruction
	// with no memory write advances the cursor from when its read
	// operands finished arriving, not from when its own execution unit
	// finishes — the next instruction can be fetched and start hunting
	// for its own operands while this one is still executing. Only a
	// memory-writing instruction holds the cursor until its store
	// retires.
	switch {
	case instr.IsSimpleMemoryLoad:
		m.cycleCount = readReady + 1
	case !instr.hasMemoryWrite():
		m.cycleCount = readComplete + 1
	default:
		m.cycleCount = writeReady + 1
	}

	m.instructionCount++

	return execComplete
}

// executeLoad resolves one memory-read operand: a store still in flight
// for the same address forwards its data with zero additional latency;
// otherwise the load unit's structural-hazard rule applies.
func (m *CoreModel) executeLoad(t uint64, info DynamicInstructionInfo) (loadReady uint64, loadLatency uint64) {
	if m.stores.isAddressAvailable(t, info.Addr) == storeValid {
		return t, 0
	}

	return m.loads.execute(t, info.Latency), info.Latency
}

// Reset zeros the instruction count, the scoreboard, and both the load
// unit and the store buffer, matching the original model's reset().
func (m *CoreModel) Reset(cfg Config) {
	numLoads := cfg.NumOutstandingLoads
	if numLoads == 0 {
		numLoads = 1
	}

	numStores := cfg.NumStoreBufferEntries
	if numStores == 0 {
		numStores = 1
	}

	m.scoreboard.reset()
	m.loads = newLoadUnit(numLoads)
	m.stores = newStoreBuffer(numStores)
	m.instructionCount = 0
	m.cycleCount = 0
}

// InstructionCount reports how many instructions have been handled so far.
func (m *CoreModel) InstructionCount() uint64 {
	return m.instructionCount
}

// CurrentCycle reports the model's current program-order cycle cursor.
func (m *CoreModel) CurrentCycle() uint64 {
	return m.cycleCount
}

// OutstandingLoads reports how many load-unit slots are still waiting to
// retire as of atCycle.
func (m *CoreModel) OutstandingLoads(atCycle uint64) int {
	return m.loads.numOutstanding(atCycle)
}
