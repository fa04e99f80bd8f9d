package perfmodel

// OperandDirection says whether an instruction operand is read before
// execution or written as a result.
type OperandDirection int

const (
	OperandRead OperandDirection = iota
	OperandWrite
)

// OperandKind distinguishes an architectural register operand from a
// memory operand; only register operands participate in scoreboarding,
// memory operands instead consume one DynamicInstructionInfo apiece, in
// operand order.
type OperandKind int

const (
	OperandRegister OperandKind = iota
	OperandMemory
)

// Operand is one source or destination of an Instruction.
type Operand struct {
	Kind      OperandKind
	Direction OperandDirection
	Register  uint32 // meaningful when Kind == OperandRegister
}

// MemoryOpKind distinguishes the two dynamic memory accesses the core model
// cares about for timing purposes.
type MemoryOpKind int

const (
	MemoryRead MemoryOpKind = iota
	MemoryWrite
)

func (k MemoryOpKind) String() string {
	if k == MemoryWrite {
		return "MEMORY_WRITE"
	}

	return "MEMORY_READ"
}

// DynamicInstructionInfo carries the per-execution facts the core model
// needs beyond the static Instruction: which of its memory operands this
// is, the address it actually touched, and the latency the cache model
// already charged for it. Instrumentation produces these in program order;
// the core model consumes exactly one per MEMORY operand.
type DynamicInstructionInfo struct {
	Kind    MemoryOpKind
	Addr    uint64
	Latency uint64
}

// Instruction is one static instruction as the performance model sees it:
// just enough to compute issue timing, not to execute semantics.
type Instruction struct {
	Address  uint64
	Cost     uint64
	Operands []Operand

	// IsSimpleMemoryLoad instructions only block the load unit, not the
	// rest of the pipeline: the next instruction may issue as soon as this
	// one's read operands are ready, without waiting for the load itself
	// to complete.
	IsSimpleMemoryLoad bool
}

func (i *Instruction) readRegisters() []uint32 {
	var regs []uint32

	for _, op := range i.Operands {
		if op.Kind == OperandRegister && op.Direction == OperandRead {
			regs = append(regs, op.Register)
		}
	}

	return regs
}

func (i *Instruction) writeRegisters() []uint32 {
	var regs []uint32

	for _, op := range i.Operands {
		if op.Kind == OperandRegister && op.Direction == OperandWrite {
			regs = append(regs, op.Register)
		}
	}

	return regs
}

func (i *Instruction) memoryOperands() []Operand {
	var ops []Operand

	for _, op := range i.Operands {
		if op.Kind == OperandMemory {
			ops = append(ops, op)
		}
	}

	return ops
}

func (i *Instruction) hasMemoryWrite() bool {
	for _, op := range i.Operands {
		if op.Kind == OperandMemory && op.Direction == OperandWrite {
			return true
		}
	}

	return false
}

// DynamicInfoQueue is the single-producer/single-consumer FIFO of
// DynamicInstructionInfo records a tile feeds its core model from,
// produced by instrumentation in program order and consumed exactly once
// per MEMORY operand.
type DynamicInfoQueue struct {
	ch chan DynamicInstructionInfo
}

func NewDynamicInfoQueue(capacity int) *DynamicInfoQueue {
	if capacity <= 0 {
		capacity = 1
	}

	return &DynamicInfoQueue{ch: make(chan DynamicInstructionInfo, capacity)}
}

// Push enqueues info, blocking if the queue is momentarily full.
func (q *DynamicInfoQueue) Push(info DynamicInstructionInfo) {
	q.ch <- info
}

// Pop dequeues the next info, reporting false if none is available yet.
func (q *DynamicInfoQueue) Pop() (DynamicInstructionInfo, bool) {
	select {
	case info := <-q.ch:
		return info, true
	default:
		return DynamicInstructionInfo{}, false
	}
}
