package vm

// ExecutionContext is one invocation-stack frame: a cursor over a
// shared Script plus its own evaluation and alt stacks. Two contexts
// may point at the same *Script (e.g. a script CALLing into itself)
// but never share a stack or an instruction cache — grounded on
// original_source/neo/VM/ExecutionContext.py, which rebuilds a fresh
// context (including its own _instructionCache dict) on every
// LoadScript even when the Script object itself is reused.
type ExecutionContext struct {
	script *Script

	instructionPointer int
	instructionCache    map[int]*Instruction

	evaluationStack *RandomAccessStack
	altStack        *RandomAccessStack

	// RVCount is the number of return values the caller expects back
	// on its evaluation stack when this frame's RET executes. -1 means
	// "all remaining items", matching spec.md's RVCount convention.
	RVCount int

	// BreakPoints are byte offsets that set VMState BREAK when the
	// instruction pointer reaches them, used by the STEP/debug hooks on
	// the engine rather than by any opcode itself.
	BreakPoints map[int]struct{}
}

func newExecutionContext(script *Script, rvcount int, counter *itemCounter) *ExecutionContext {
	return &ExecutionContext{
		script:           script,
		instructionCache: make(map[int]*Instruction),
		evaluationStack:  newRandomAccessStack(counter),
		altStack:         newRandomAccessStack(counter),
		RVCount:          rvcount,
	}
}

// Script returns the bytecode this frame is executing.
func (c *ExecutionContext) Script() *Script { return c.script }

// InstructionPointer is the byte offset of the instruction about to
// execute.
func (c *ExecutionContext) InstructionPointer() int { return c.instructionPointer }

// SetInstructionPointer relocates the cursor, used by a taken JMP/
// JMPIF/JMPIFNOT.
func (c *ExecutionContext) SetInstructionPointer(offset int) {
	c.instructionPointer = offset
}

// EvaluationStack is this frame's working stack.
func (c *ExecutionContext) EvaluationStack() *RandomAccessStack { return c.evaluationStack }

// AltStack is this frame's auxiliary stack, used by TOALTSTACK/
// FROMALTSTACK/DUPFROMALTSTACK.
func (c *ExecutionContext) AltStack() *RandomAccessStack { return c.altStack }

// CurrentInstruction decodes (or returns the cached decoding of) the
// instruction at the current instruction pointer. Reading past the
// end of the script yields a synthetic RET, so a script falling off
// its own end behaves exactly like one ending in an explicit RET.
func (c *ExecutionContext) CurrentInstruction() (*Instruction, error) {
	return c.GetInstruction(c.instructionPointer)
}

// GetInstruction decodes (or returns the cached decoding of) the
// instruction at offset.
func (c *ExecutionContext) GetInstruction(offset int) (*Instruction, error) {
	if offset >= c.script.Length() {
		return &Instruction{OpCode: RET, Offset: offset, Size: 1}, nil
	}
	if cached, ok := c.instructionCache[offset]; ok {
		return cached, nil
	}
	ins, err := decodeInstruction(c.script, offset)
	if err != nil {
		return nil, err
	}
	c.instructionCache[offset] = ins
	return ins, nil
}

// MoveNext advances the instruction pointer past the instruction that
// just executed.
func (c *ExecutionContext) MoveNext() error {
	ins, err := c.CurrentInstruction()
	if err != nil {
		return err
	}
	c.instructionPointer += ins.Size
	return nil
}

// clone returns a new frame over the same Script, positioned at
// offset, with fresh empty stacks — the shape execCall/execCallI give
// a callee.
func (c *ExecutionContext) clone(offset, rvcount int, counter *itemCounter) *ExecutionContext {
	nc := newExecutionContext(c.script, rvcount, counter)
	nc.instructionPointer = offset
	return nc
}
