// Package vm implements a stack-based bytecode execution engine for
// smart-contract scripts, grounded on original_source/neo/VM and
// reshaped into the idiomatic-Go texture of mass-core/txscript.Engine.
package vm

import (
	"fmt"
	"math/big"

	"github.com/wangxinyu2018/mass-vm/config"
	"github.com/wangxinyu2018/mass-vm/internal/logging"
)

// VMState is a bitfield describing why the engine stopped stepping.
// HALT and FAULT are terminal: once set neither clears during the
// lifetime of an Engine. BREAK is transient, set when a StepInto call
// lands on a context breakpoint, and cleared by the next Execute call.
type VMState uint8

const (
	StateNone  VMState = 0
	StateHalt  VMState = 1 << 0
	StateFault VMState = 1 << 1
	StateBreak VMState = 1 << 2
)

// Engine is one script execution: an invocation stack of frames plus
// the terminal result stack every HALTed run leaves its outputs on.
// It has no notion of persistence or consensus rules — those are the
// host's job via the Crypto/ScriptTable/ScriptContainer/InteropService
// collaborators (vm/interop.go), the same separation
// original_source/neo/VM/ExecutionEngine.py draws between the VM core
// and its container/service/table constructor arguments.
type Engine struct {
	invocationStack []*ExecutionContext
	resultStack     *RandomAccessStack
	counter         *itemCounter

	state VMState

	fault_       Fault
	faultMessage string

	crypto          Crypto
	scriptTable     ScriptTable
	scriptContainer ScriptContainer
	interopService  InteropService

	// exitOnError governs what a recovered panic from an opcode handler
	// does: true latches FAULT (the default), false treats the step as
	// a no-op. Handlers themselves never panic deliberately — this only
	// catches an unexpected collaborator panic (e.g. a buggy
	// InteropService callback), mirroring the original engine's
	// exit_on_error constructor flag.
	exitOnError bool

	// ExecutedScriptHashes accumulates every script hash LoadScript has
	// ever pushed, append-only across every frame for the lifetime of
	// the engine — it is never rolled back when a frame RETs, per
	// SPEC_FULL.md §4's resolution of how original_source threads
	// _ExecutedScriptHashes through _LoadScriptInternal.
	ExecutedScriptHashes [][]byte
}

// NewEngine constructs an Engine ready to load an entry script. crypto
// must not be nil; scriptTable, scriptContainer and interopService may
// be nil when the script under test never needs them (APPCALL,
// CHECKSIG and SYSCALL will fault if it turns out they do).
func NewEngine(crypto Crypto, scriptTable ScriptTable, scriptContainer ScriptContainer, interopService InteropService) *Engine {
	e := &Engine{
		crypto:          crypto,
		scriptTable:     scriptTable,
		scriptContainer: scriptContainer,
		interopService:  interopService,
		exitOnError:     true,
		counter:         &itemCounter{limit: config.MaxStackSize},
	}
	e.resultStack = newRandomAccessStack(e.counter)
	return e
}

// SetExitOnError controls whether a recovered opcode-handler panic
// latches FAULT (the default) or is swallowed as a no-op step.
func (e *Engine) SetExitOnError(exitOnError bool) { e.exitOnError = exitOnError }

// State reports the engine's current VMState bitfield.
func (e *Engine) State() VMState { return e.state }

// FaultCode and FaultMessage describe why the engine is in FAULT
// state; both are zero-valued otherwise.
func (e *Engine) FaultCode() Fault       { return e.fault_ }
func (e *Engine) FaultMessage() string   { return e.faultMessage }

// ResultStack holds whatever the entry script left behind when it
// HALTed.
func (e *Engine) ResultStack() *RandomAccessStack { return e.resultStack }

// CurrentContext is the frame about to execute, or nil if the
// invocation stack is empty.
func (e *Engine) CurrentContext() *ExecutionContext {
	if len(e.invocationStack) == 0 {
		return nil
	}
	return e.invocationStack[len(e.invocationStack)-1]
}

// CallingContext is the frame that CALLed/APPCALLed into
// CurrentContext, or nil at the entry frame.
func (e *Engine) CallingContext() *ExecutionContext {
	if len(e.invocationStack) < 2 {
		return nil
	}
	return e.invocationStack[len(e.invocationStack)-2]
}

// EntryContext is the outermost frame, the one LoadScript first
// pushed.
func (e *Engine) EntryContext() *ExecutionContext {
	if len(e.invocationStack) == 0 {
		return nil
	}
	return e.invocationStack[0]
}

// InvocationStackSize reports the current call depth.
func (e *Engine) InvocationStackSize() int { return len(e.invocationStack) }

// LoadScript pushes a new frame executing script, with rvcount return
// values expected back by the caller (-1 for "all remaining"). It
// faults the engine instead of pushing when doing so would exceed
// config.MaxInvocationStackSize, per spec.md §7's
// CALL_EXCEED_MAX_INVOCATIONSTACK_SIZE.
func (e *Engine) LoadScript(script *Script, rvcount int) bool {
	if len(e.invocationStack) >= config.MaxInvocationStackSize {
		return e.fault(FaultCallExceedMaxInvocationStackSize, "invocation stack would exceed %d frames", config.MaxInvocationStackSize)
	}
	ctx := newExecutionContext(script, rvcount, e.counter)
	e.invocationStack = append(e.invocationStack, ctx)
	e.ExecutedScriptHashes = append(e.ExecutedScriptHashes, script.ScriptHash())
	return true
}

// fault latches the engine into FAULT state with the given code and a
// formatted message, and always returns false so opcode handlers can
// write `return e.fault(...)`. Message formatting is skipped unless
// debug logging is enabled, mirroring VM_FAULT_and_report's level
// gate.
func (e *Engine) fault(code Fault, format string, args ...interface{}) bool {
	e.fault_ = code
	e.state |= StateFault
	if logging.IsDebugEnabled() {
		e.faultMessage = fmt.Sprintf(format, args...)
		logging.CPrint(logging.DEBUG, "vm fault", logging.LogFormat{
			"fault": code.String(),
			"msg":   e.faultMessage,
		})
	} else {
		e.faultMessage = code.String()
	}
	return false
}

// Execute runs until the engine HALTs, FAULTs, or BREAKs on a
// breakpoint, and reports whether it stopped in a non-FAULT state.
func (e *Engine) Execute() bool {
	e.state &^= StateBreak
	for e.state&(StateHalt|StateFault|StateBreak) == 0 {
		e.StepInto()
	}
	return e.state&StateFault == 0
}

// StepInto executes exactly one instruction in CurrentContext. If the
// invocation stack is already empty it HALTs the engine, matching the
// original's ExecuteNext returning without stepping once the stack
// drains after the outermost frame's RET pops it.
func (e *Engine) StepInto() {
	ctx := e.CurrentContext()
	if ctx == nil {
		e.state |= StateHalt
		return
	}
	ins, err := ctx.CurrentInstruction()
	if err != nil {
		e.fault(FaultInvalidJump, "%v", err)
		return
	}

	logging.CPrint(logging.TRACE, "step", logging.LogFormat{
		"offset": ins.Offset,
		"opcode": fmt.Sprintf("%#x", ins.OpCode),
	})

	fn := opcodeTable[ins.OpCode]
	if fn == nil {
		e.fault(FaultUnknownOpcode, "unknown opcode %#x at offset %d", ins.OpCode, ins.Offset)
		return
	}

	branched := e.dispatch(fn, ctx, ins)
	if e.state&StateFault != 0 {
		return
	}
	if branched || e.state&StateHalt != 0 {
		return
	}
	if err := ctx.MoveNext(); err != nil {
		e.fault(FaultInvalidJump, "%v", err)
		return
	}
	if _, atBreak := ctx.BreakPoints[ctx.InstructionPointer()]; atBreak {
		e.state |= StateBreak
	}
}

// dispatch runs fn, recovering an unexpected handler panic rather than
// letting it escape Execute. A recovered panic latches FAULT only when
// exitOnError is set; otherwise the step is treated as a no-op and the
// instruction pointer still advances past it.
func (e *Engine) dispatch(fn opcodeFunc, ctx *ExecutionContext, ins *Instruction) (branched bool) {
	defer func() {
		if r := recover(); r != nil {
			if e.exitOnError {
				e.fault(FaultUnhandledException, "opcode %#x panicked: %v", ins.OpCode, r)
			}
			branched = false
		}
	}()
	return fn(e, ctx, ins)
}

// ---- stack helpers shared by opcode handlers ----

func (e *Engine) pop(ctx *ExecutionContext) (StackItem, bool) {
	item, err := ctx.EvaluationStack().Pop()
	if err != nil {
		return nil, e.fault(FaultInvalidStackSize, "%v", err)
	}
	return item, true
}

func (e *Engine) peek(ctx *ExecutionContext, n int) (StackItem, bool) {
	item, err := ctx.EvaluationStack().Peek(n)
	if err != nil {
		return nil, e.fault(FaultInvalidStackSize, "%v", err)
	}
	return item, true
}

func (e *Engine) push(ctx *ExecutionContext, item StackItem) bool {
	if err := ctx.EvaluationStack().Push(item); err != nil {
		return e.fault(FaultInvalidStackSize, "%v", err)
	}
	return true
}

func (e *Engine) popInt(ctx *ExecutionContext) (*big.Int, bool) {
	item, ok := e.pop(ctx)
	if !ok {
		return nil, false
	}
	v, err := item.GetBigInteger()
	if err != nil {
		return nil, e.fault(FaultBigIntegerExceedLimit, "%v", err)
	}
	if !fitsBigIntegerLimit(v) {
		return nil, e.fault(FaultBigIntegerExceedLimit, "integer exceeds %d bytes", config.MaxSizeForBigInteger)
	}
	return v, true
}

func (e *Engine) popBytes(ctx *ExecutionContext) ([]byte, bool) {
	item, ok := e.pop(ctx)
	if !ok {
		return nil, false
	}
	b, err := item.GetByteArray()
	if err != nil {
		return nil, e.fault(FaultPickItemInvalidType, "%v", err)
	}
	return b, true
}

func (e *Engine) popBool(ctx *ExecutionContext) (bool, bool) {
	item, ok := e.pop(ctx)
	if !ok {
		return false, false
	}
	return item.GetBoolean(), true
}

func fitsBigIntegerLimit(v *big.Int) bool {
	return len(bigIntToBytesBE(v)) <= config.MaxSizeForBigInteger
}

func guardItemSize(e *Engine, b []byte) bool {
	if len(b) > config.MaxItemSize {
		return e.fault(FaultCatExceedMaxItemSize, "item of %d bytes exceeds %d", len(b), config.MaxItemSize)
	}
	return true
}

// ---- constants & push ----

func execPushBytes(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	if !guardItemSize(e, ins.Operand) {
		return false
	}
	e.push(ctx, ByteArray(ins.Operand))
	return false
}

func execPushNumber(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	var v int64
	switch {
	case ins.OpCode == PUSHM1:
		v = -1
	default:
		v = int64(ins.OpCode) - int64(PUSH1) + 1
	}
	e.push(ctx, NewIntegerFromInt64(v))
	return false
}

func execPushT(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	e.push(ctx, Boolean(true))
	return false
}

// ---- flow control ----

func execNop(e *Engine, ctx *ExecutionContext, ins *Instruction) bool { return false }

func execJmp(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	offset := ins.Offset + int(ins.TokenI16())
	take := true
	if ins.OpCode != JMP {
		v, ok := e.popBool(ctx)
		if !ok {
			return false
		}
		take = v
		if ins.OpCode == JMPIFNOT {
			take = !take
		}
	}
	if take {
		if offset < 0 || offset > ctx.Script().Length() {
			e.fault(FaultInvalidJump, "jump target %d out of range", offset)
			return true
		}
		ctx.SetInstructionPointer(offset)
		return true
	}
	return false
}

func execCall(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	target := ins.Offset + int(ins.TokenI16())
	// Plain CALL shares the whole stack rather than isolating a fixed
	// argument count, so its callee returns everything back (RVCount
	// -1), unlike CALL_I/CALL_E's explicit rvcount.
	callee := ctx.clone(target, -1, e.counter)
	if len(e.invocationStack) >= config.MaxInvocationStackSize {
		e.fault(FaultCallExceedMaxInvocationStackSize, "invocation stack would exceed %d frames", config.MaxInvocationStackSize)
		return true
	}
	if err := ctx.EvaluationStack().CopyTo(callee.EvaluationStack(), -1); err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return true
	}
	ctx.EvaluationStack().Clear()
	e.invocationStack = append(e.invocationStack, callee)
	e.ExecutedScriptHashes = append(e.ExecutedScriptHashes, callee.Script().ScriptHash())
	// Not branched: the caller frame (still ctx here, underneath the
	// newly pushed callee) must have its own instruction pointer
	// advanced past this CALL so execution resumes there once the
	// callee RETs, matching original_source's execCALL falling through
	// to the generic MoveNext rather than returning True.
	return false
}

func execRet(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	e.invocationStack = e.invocationStack[:len(e.invocationStack)-1]
	caller := e.CurrentContext()
	var dstStack, dstAlt *RandomAccessStack
	if caller != nil {
		dstStack = caller.EvaluationStack()
		dstAlt = caller.AltStack()
	} else {
		dstStack = e.resultStack
	}
	rv := ctx.RVCount
	if rv >= 0 && ctx.EvaluationStack().Count() < rv {
		e.fault(FaultInvalidStackSize, "RET wants %d return values, only %d on the stack", rv, ctx.EvaluationStack().Count())
		return true
	}
	if err := ctx.EvaluationStack().CopyTo(dstStack, rv); err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return true
	}
	if dstAlt != nil && ctx.RVCount < 0 {
		if err := ctx.AltStack().CopyTo(dstAlt, -1); err != nil {
			e.fault(FaultInvalidStackSize, "%v", err)
			return true
		}
	}
	ctx.EvaluationStack().Clear()
	ctx.AltStack().Clear()
	if caller == nil {
		e.state |= StateHalt
	}
	return true
}

// isZeroHash reports whether every byte of hash is zero, the
// original engine's "dynamic invocation" marker: an APPCALL/TAILCALL
// operand of all zero bytes means the real 20-byte script hash is
// popped off the evaluation stack instead, mirroring
// original_source's execAPPTAILCALL `is_normal_call` scan.
func isZeroHash(hash []byte) bool {
	for _, b := range hash {
		if b != 0 {
			return false
		}
	}
	return true
}

func execAppCall(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	hash := ins.Operand
	if isZeroHash(hash) {
		h, ok := e.popBytes(ctx)
		if !ok {
			return true
		}
		hash = h
	}
	if e.scriptTable == nil {
		e.fault(FaultInvalidContract, "no script table configured")
		return true
	}
	code := e.scriptTable.GetScript(hash)
	if code == nil {
		e.fault(FaultInvalidContract, "unknown contract %x", hash)
		return true
	}
	script := NewScript(e.crypto, code)
	callee := newExecutionContext(script, -1, e.counter)
	if err := ctx.EvaluationStack().CopyTo(callee.EvaluationStack(), -1); err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return true
	}
	ctx.EvaluationStack().Clear()
	if ins.OpCode == TAILCALL {
		ctx.AltStack().Clear()
		e.invocationStack = e.invocationStack[:len(e.invocationStack)-1]
	}
	if len(e.invocationStack) >= config.MaxInvocationStackSize {
		e.fault(FaultCallExceedMaxInvocationStackSize, "invocation stack would exceed %d frames", config.MaxInvocationStackSize)
		return true
	}
	e.invocationStack = append(e.invocationStack, callee)
	e.ExecutedScriptHashes = append(e.ExecutedScriptHashes, script.ScriptHash())
	// Not branched, same reasoning as execCall: the caller's instruction
	// pointer (ctx here, even when TAILCALL already dropped its frame
	// from the invocation stack) must still move past this instruction.
	return false
}

func execSysCall(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	if e.interopService == nil {
		e.fault(FaultSyscallError, "no interop service configured")
		return false
	}
	name := string(ins.Operand)
	if !e.interopService.Invoke(name, e) {
		e.fault(FaultSyscallError, "syscall %q failed", name)
	}
	return false
}

// CALL_I: operand is [rvcount, pcount, relative-offset(2)]. The jump
// target is measured from the instruction's own start, the same
// convention spec.md §4.1 gives JMP/CALL, rather than the
// TokenI16_1-plus-2 arithmetic original_source's CALL_I handler used.
func execCallI(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	rvcount := int(int8(ins.TokenU8(0)))
	pcount := int(ins.TokenU8(1))
	rel := int16(ins.Operand[2]) | int16(ins.Operand[3])<<8
	target := ins.Offset + int(rel)

	callee := ctx.clone(target, rvcount, e.counter)
	if len(e.invocationStack) >= config.MaxInvocationStackSize {
		e.fault(FaultCallExceedMaxInvocationStackSize, "invocation stack would exceed %d frames", config.MaxInvocationStackSize)
		return true
	}
	if !movePCount(e, ctx, callee, pcount) {
		return true
	}
	e.invocationStack = append(e.invocationStack, callee)
	e.ExecutedScriptHashes = append(e.ExecutedScriptHashes, callee.Script().ScriptHash())
	// Not branched: advance the caller (ctx) past CALL_I, same reasoning
	// as execCall.
	return false
}

// CALL_E family: operand is [rvcount, pcount] and, for the non-dynamic
// variants (CALL_E/CALL_ET), a further static 20-byte script hash; the
// dynamic variants (CALL_ED/CALL_EDT) pop the hash off the stack
// instead. *T variants tail-call (pop the current frame first).
func execCallE(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	rvcount := int(int8(ins.TokenU8(0)))
	pcount := int(ins.TokenU8(1))

	var hash []byte
	switch ins.OpCode {
	case CALL_ED, CALL_EDT:
		h, ok := e.popBytes(ctx)
		if !ok {
			return true
		}
		if len(h) != 20 {
			e.fault(FaultUnknownStackIsolation, "dynamic call hash must be 20 bytes, got %d", len(h))
			return true
		}
		hash = h
	default:
		hash = ins.TokenHash160()
	}

	if e.scriptTable == nil {
		e.fault(FaultInvalidContract, "no script table configured")
		return true
	}
	code := e.scriptTable.GetScript(hash)
	if code == nil {
		e.fault(FaultInvalidContract, "unknown contract %x", hash)
		return true
	}
	script := NewScript(e.crypto, code)
	callee := newExecutionContext(script, rvcount, e.counter)
	if !movePCount(e, ctx, callee, pcount) {
		return true
	}

	if ins.OpCode == CALL_ET || ins.OpCode == CALL_EDT {
		ctx.EvaluationStack().Clear()
		ctx.AltStack().Clear()
		e.invocationStack = e.invocationStack[:len(e.invocationStack)-1]
	}
	if len(e.invocationStack) >= config.MaxInvocationStackSize {
		e.fault(FaultCallExceedMaxInvocationStackSize, "invocation stack would exceed %d frames", config.MaxInvocationStackSize)
		return true
	}
	e.invocationStack = append(e.invocationStack, callee)
	e.ExecutedScriptHashes = append(e.ExecutedScriptHashes, script.ScriptHash())
	// Not branched, same reasoning as execCall/execAppCall.
	return false
}

// movePCount transfers exactly pcount arguments from caller's
// evaluation stack onto callee's, deepest-argument-first, used by the
// stack-isolated CALL_I/CALL_E families (plain CALL/APPCALL instead
// share the whole stack via CopyTo(-1)).
func movePCount(e *Engine, caller, callee *ExecutionContext, pcount int) bool {
	if pcount < 0 || pcount > caller.EvaluationStack().Count() {
		e.fault(FaultUnknownStackIsolationTokenU8One, "invalid argument count %d", pcount)
		return false
	}
	args := make([]StackItem, pcount)
	for i := 0; i < pcount; i++ {
		item, err := caller.EvaluationStack().Remove(0)
		if err != nil {
			e.fault(FaultInvalidStackSize, "%v", err)
			return false
		}
		args[i] = item
	}
	for i := len(args) - 1; i >= 0; i-- {
		if err := callee.EvaluationStack().Push(args[i]); err != nil {
			e.fault(FaultInvalidStackSize, "%v", err)
			return false
		}
	}
	return true
}

func execThrow(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	e.fault(FaultThrow, "THROW")
	return false
}

func execThrowIfNot(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	v, ok := e.popBool(ctx)
	if !ok {
		return false
	}
	if !v {
		e.fault(FaultThrowIfNot, "THROWIFNOT")
	}
	return false
}

// ---- stack mechanics ----

func execToAltStack(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, ok := e.pop(ctx)
	if !ok {
		return false
	}
	if err := ctx.AltStack().Push(item); err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
	}
	return false
}

func execFromAltStack(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, err := ctx.AltStack().Pop()
	if err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return false
	}
	e.push(ctx, item)
	return false
}

func execDupFromAltStack(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, err := ctx.AltStack().Peek(0)
	if err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return false
	}
	e.push(ctx, item)
	return false
}

func execXDrop(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	n, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	if _, err := ctx.EvaluationStack().Remove(int(n.Int64())); err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
	}
	return false
}

func execXSwap(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	n, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	idx := int(n.Int64())
	top, err1 := ctx.EvaluationStack().Peek(0)
	other, err2 := ctx.EvaluationStack().Peek(idx)
	if err1 != nil || err2 != nil {
		e.fault(FaultInvalidStackSize, "xswap index %d out of range", idx)
		return false
	}
	if err := ctx.EvaluationStack().Set(0, other); err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return false
	}
	if err := ctx.EvaluationStack().Set(idx, top); err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
	}
	return false
}

func execXTuck(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	n, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	idx := int(n.Int64())
	top, err := ctx.EvaluationStack().Peek(0)
	if err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return false
	}
	if err := ctx.EvaluationStack().Insert(idx, top); err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
	}
	return false
}

func execDepth(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	e.push(ctx, NewIntegerFromInt64(int64(ctx.EvaluationStack().Count())))
	return false
}

func execDrop(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	_, _ = e.pop(ctx)
	return false
}

func execDup(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, ok := e.peek(ctx, 0)
	if !ok {
		return false
	}
	e.push(ctx, item)
	return false
}

func execNip(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	top, ok := e.pop(ctx)
	if !ok {
		return false
	}
	if _, err := ctx.EvaluationStack().Pop(); err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return false
	}
	e.push(ctx, top)
	return false
}

func execOver(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, ok := e.peek(ctx, 1)
	if !ok {
		return false
	}
	e.push(ctx, item)
	return false
}

func execPick(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	n, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	item, err := ctx.EvaluationStack().Peek(int(n.Int64()))
	if err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return false
	}
	e.push(ctx, item)
	return false
}

func execRoll(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	n, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	idx := int(n.Int64())
	if idx == 0 {
		return false
	}
	item, err := ctx.EvaluationStack().Remove(idx)
	if err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return false
	}
	e.push(ctx, item)
	return false
}

func execRot(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, err := ctx.EvaluationStack().Remove(2)
	if err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return false
	}
	e.push(ctx, item)
	return false
}

func execSwap(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, err := ctx.EvaluationStack().Remove(1)
	if err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return false
	}
	e.push(ctx, item)
	return false
}

func execTuck(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, ok := e.peek(ctx, 0)
	if !ok {
		return false
	}
	if err := ctx.EvaluationStack().Insert(2, item); err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
	}
	return false
}

// ---- byte-string ops ----

func execCat(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	b2, ok := e.popBytes(ctx)
	if !ok {
		return false
	}
	b1, ok := e.popBytes(ctx)
	if !ok {
		return false
	}
	result := append(append([]byte{}, b1...), b2...)
	if !guardItemSize(e, result) {
		return false
	}
	e.push(ctx, ByteArray(result))
	return false
}

func execSubstr(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	length, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	index, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	b, ok := e.popBytes(ctx)
	if !ok {
		return false
	}
	l := length.Int64()
	i := index.Int64()
	if l < 0 {
		e.fault(FaultSubstrInvalidLength, "negative length %d", l)
		return false
	}
	if i < 0 || i > int64(len(b)) {
		e.fault(FaultSubstrInvalidIndex, "index %d out of range for %d bytes", i, len(b))
		return false
	}
	end := i + l
	if end > int64(len(b)) {
		e.fault(FaultSubstrInvalidLength, "index+length %d exceeds %d bytes", end, len(b))
		return false
	}
	e.push(ctx, ByteArray(append([]byte{}, b[i:end]...)))
	return false
}

func execLeft(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	count, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	b, ok := e.popBytes(ctx)
	if !ok {
		return false
	}
	n := count.Int64()
	if n < 0 || n > int64(len(b)) {
		e.fault(FaultLeftInvalidCount, "count %d out of range for %d bytes", n, len(b))
		return false
	}
	e.push(ctx, ByteArray(append([]byte{}, b[:n]...)))
	return false
}

func execRight(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	count, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	b, ok := e.popBytes(ctx)
	if !ok {
		return false
	}
	n := count.Int64()
	if n < 0 || n > int64(len(b)) {
		e.fault(FaultRightInvalidCount, "count %d out of range for %d bytes", n, len(b))
		return false
	}
	e.push(ctx, ByteArray(append([]byte{}, b[int64(len(b))-n:]...)))
	return false
}

func execSize(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, ok := e.peek(ctx, 0)
	if !ok {
		return false
	}
	if _, err := ctx.EvaluationStack().Pop(); err != nil {
		e.fault(FaultInvalidStackSize, "%v", err)
		return false
	}
	e.push(ctx, NewIntegerFromInt64(int64(item.GetByteLength())))
	return false
}

// ---- bitwise & equality ----

func execInvert(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	v, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	e.push(ctx, NewInteger(new(big.Int).Not(v)))
	return false
}

func execBitwise(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	b, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	a, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	result := new(big.Int)
	switch ins.OpCode {
	case AND:
		result.And(a, b)
	case OR:
		result.Or(a, b)
	case XOR:
		result.Xor(a, b)
	}
	e.push(ctx, NewInteger(result))
	return false
}

func execEqual(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	b, ok := e.pop(ctx)
	if !ok {
		return false
	}
	a, ok := e.pop(ctx)
	if !ok {
		return false
	}
	e.push(ctx, Boolean(a.Equals(b)))
	return false
}

// ---- arithmetic ----

func execUnaryArith(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	v, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	result := new(big.Int)
	switch ins.OpCode {
	case INC:
		result.Add(v, big.NewInt(1))
	case DEC:
		result.Sub(v, big.NewInt(1))
	case NEGATE:
		result.Neg(v)
	case ABS:
		result.Abs(v)
	}
	if !fitsBigIntegerLimit(result) {
		e.fault(FaultBigIntegerExceedLimit, "result exceeds %d bytes", config.MaxSizeForBigInteger)
		return false
	}
	e.push(ctx, NewInteger(result))
	return false
}

func execSign(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	v, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	e.push(ctx, NewIntegerFromInt64(int64(v.Sign())))
	return false
}

func execNot(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	v, ok := e.popBool(ctx)
	if !ok {
		return false
	}
	e.push(ctx, Boolean(!v))
	return false
}

// execNZ pushes whether the popped integer is nonzero, comparing its
// *value* against zero rather than doing a pointer/identity check —
// the bug SPEC_FULL.md §4 documents original_source as having, and
// this module's deliberate fix for it.
func execNZ(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	v, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	e.push(ctx, Boolean(v.Sign() != 0))
	return false
}

func execBinaryArith(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	b, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	a, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	result := new(big.Int)
	switch ins.OpCode {
	case ADD:
		result.Add(a, b)
	case SUB:
		result.Sub(a, b)
	case MUL:
		result.Mul(a, b)
	case DIV:
		if b.Sign() == 0 {
			e.fault(FaultDivideByZero, "division by zero")
			return false
		}
		result.Quo(a, b)
	case MOD:
		if b.Sign() == 0 {
			e.fault(FaultDivideByZero, "modulo by zero")
			return false
		}
		result.Rem(a, b)
	}
	if !fitsBigIntegerLimit(result) {
		e.fault(FaultBigIntegerExceedLimit, "result exceeds %d bytes", config.MaxSizeForBigInteger)
		return false
	}
	e.push(ctx, NewInteger(result))
	return false
}

func execShift(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	shift, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	n := shift.Int64()
	if n < config.MinShift || n > config.MaxShift {
		e.fault(FaultInvalidShift, "shift %d out of [%d, %d]", n, config.MinShift, config.MaxShift)
		return false
	}
	v, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	result := new(big.Int)
	if ins.OpCode == SHL {
		result.Lsh(v, uint(n))
	} else {
		result.Rsh(v, uint(n))
	}
	if !fitsBigIntegerLimit(result) {
		e.fault(FaultBigIntegerExceedLimit, "result exceeds %d bytes", config.MaxSizeForBigInteger)
		return false
	}
	e.push(ctx, NewInteger(result))
	return false
}

func execBoolCombine(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	b, ok := e.popBool(ctx)
	if !ok {
		return false
	}
	a, ok := e.popBool(ctx)
	if !ok {
		return false
	}
	var result bool
	if ins.OpCode == BOOLAND {
		result = a && b
	} else {
		result = a || b
	}
	e.push(ctx, Boolean(result))
	return false
}

func execNumCompare(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	b, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	a, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	cmp := a.Cmp(b)
	var result bool
	switch ins.OpCode {
	case NUMEQUAL:
		result = cmp == 0
	case NUMNOTEQUAL:
		result = cmp != 0
	case LT:
		result = cmp < 0
	case GT:
		result = cmp > 0
	case LTE:
		result = cmp <= 0
	case GTE:
		result = cmp >= 0
	}
	e.push(ctx, Boolean(result))
	return false
}

func execMinMax(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	b, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	a, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	result := a
	if ins.OpCode == MIN {
		if b.Cmp(a) < 0 {
			result = b
		}
	} else {
		if b.Cmp(a) > 0 {
			result = b
		}
	}
	e.push(ctx, NewInteger(new(big.Int).Set(result)))
	return false
}

func execWithin(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	upper, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	lower, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	x, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	result := x.Cmp(lower) >= 0 && x.Cmp(upper) < 0
	e.push(ctx, Boolean(result))
	return false
}

// ---- crypto ----

func execHash(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	b, ok := e.popBytes(ctx)
	if !ok {
		return false
	}
	var result []byte
	switch ins.OpCode {
	case SHA1:
		result = sha1Sum(b)
	case SHA256:
		result = sha256Sum(b)
	case HASH160:
		result = e.crypto.Hash160(b)
	case HASH256:
		result = e.crypto.Hash256(b)
	}
	e.push(ctx, ByteArray(result))
	return false
}

func execCheckSig(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	pubkey, ok := e.popBytes(ctx)
	if !ok {
		return false
	}
	signature, ok := e.popBytes(ctx)
	if !ok {
		return false
	}
	if e.scriptContainer == nil {
		e.fault(FaultSyscallError, "no script container configured")
		return false
	}
	ok2 := e.crypto.VerifySignature(e.scriptContainer.GetMessage(), signature, pubkey)
	e.push(ctx, Boolean(ok2))
	return false
}

func execVerify(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	pubkey, ok := e.popBytes(ctx)
	if !ok {
		return false
	}
	signature, ok := e.popBytes(ctx)
	if !ok {
		return false
	}
	message, ok := e.popBytes(ctx)
	if !ok {
		return false
	}
	e.push(ctx, Boolean(e.crypto.VerifySignature(message, signature, pubkey)))
	return false
}

func execCheckMultisig(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	pubkeysItem, ok := e.pop(ctx)
	if !ok {
		return false
	}
	pubkeys, ok := e.collectMultisigItems(ctx, pubkeysItem, FaultCheckMultisigInvalidPubkeyCount, -1)
	if !ok {
		return false
	}
	sigsItem, ok := e.pop(ctx)
	if !ok {
		return false
	}
	sigs, ok := e.collectMultisigItems(ctx, sigsItem, FaultCheckMultisigInvalidSignatureCount, len(pubkeys))
	if !ok {
		return false
	}
	if e.scriptContainer == nil {
		e.fault(FaultSyscallError, "no script container configured")
		return false
	}
	message := e.scriptContainer.GetMessage()

	ok3 := true
	pi, si := 0, 0
	for si < len(sigs) && ok3 {
		sigBytes, err := sigs[si].GetByteArray()
		if err != nil {
			e.fault(FaultCheckMultisigInvalidSignatureCount, "%v", err)
			return false
		}
		matched := false
		for pi < len(pubkeys) {
			pkBytes, err := pubkeys[pi].GetByteArray()
			pi++
			if err != nil {
				continue
			}
			if e.crypto.VerifySignature(message, sigBytes, pkBytes) {
				matched = true
				si++
				break
			}
			if len(pubkeys)-pi < len(sigs)-si {
				break
			}
		}
		if !matched {
			ok3 = false
		}
	}
	e.push(ctx, Boolean(ok3))
	return false
}

// collectMultisigItems implements CHECKMULTISIG's dual calling
// convention: item is either a collection (Array/Struct) of raw
// ByteArray items, or an Integer giving a count of raw items to pop
// directly off the evaluation stack. maxAllowed caps the count against
// the sibling half already read (-1 means uncapped, used for the
// pubkeys half read first). Ported from original_source's
// execCHECKMULTISIG, which branches on isinstance(item, Array) the
// same way for both the pubkeys and signatures halves.
func (e *Engine) collectMultisigItems(ctx *ExecutionContext, item StackItem, faultCode Fault, maxAllowed int) ([]StackItem, bool) {
	if _, isCollection := item.(Collection); isCollection {
		items, err := stackItemsOf(item)
		if err != nil {
			e.fault(faultCode, "%v", err)
			return nil, false
		}
		if len(items) == 0 || (maxAllowed >= 0 && len(items) > maxAllowed) {
			e.fault(faultCode, "%d items exceeds limit of %d", len(items), maxAllowed)
			return nil, false
		}
		return items, true
	}
	n, err := item.GetBigInteger()
	if err != nil {
		e.fault(faultCode, "%v", err)
		return nil, false
	}
	count := n.Int64()
	if count < 1 || (maxAllowed >= 0 && count > int64(maxAllowed)) || count > int64(ctx.EvaluationStack().Count()) {
		e.fault(faultCode, "invalid count %d", count)
		return nil, false
	}
	items := make([]StackItem, count)
	for i := int64(0); i < count; i++ {
		v, err := ctx.EvaluationStack().Pop()
		if err != nil {
			e.fault(FaultInvalidStackSize, "%v", err)
			return nil, false
		}
		items[i] = v
	}
	return items, true
}

// cloneIfStruct deep-clones item when it is a *Struct, so SETITEM/
// APPEND never let an assigned Struct alias the slot it was copied
// from — the value semantics spec.md §3 gives Struct, ported from
// execSETITEM/execAPPEND's `if isinstance(value, Struct): value =
// value.Clone()` in original_source.
func cloneIfStruct(item StackItem) StackItem {
	if s, ok := item.(*Struct); ok {
		return s.Clone()
	}
	return item
}

func stackItemsOf(item StackItem) ([]StackItem, error) {
	col, ok := item.(Collection)
	if !ok {
		return nil, fmt.Errorf("expected a collection, got %T", item)
	}
	switch v := col.(type) {
	case *Array:
		return v.Items(), nil
	case *Struct:
		return v.Items(), nil
	default:
		return nil, fmt.Errorf("expected array or struct, got %T", item)
	}
}

// ---- collections ----

func execArraySize(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, ok := e.pop(ctx)
	if !ok {
		return false
	}
	switch v := item.(type) {
	case Collection:
		e.push(ctx, NewIntegerFromInt64(int64(v.Count())))
	default:
		b, err := item.GetByteArray()
		if err != nil {
			e.fault(FaultUnpackInvalidType, "%v", err)
			return false
		}
		e.push(ctx, NewIntegerFromInt64(int64(len(b))))
	}
	return false
}

func execPack(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	n, ok := e.popInt(ctx)
	if !ok {
		return false
	}
	count := int(n.Int64())
	if count < 0 || count > config.MaxArraySize || count > ctx.EvaluationStack().Count() {
		e.fault(FaultNewArrayExceedMaxArraySize, "pack count %d invalid", count)
		return false
	}
	items := make([]StackItem, count)
	for i := 0; i < count; i++ {
		item, err := ctx.EvaluationStack().Pop()
		if err != nil {
			e.fault(FaultInvalidStackSize, "%v", err)
			return false
		}
		items[i] = item
	}
	e.push(ctx, NewArray(items))
	return false
}

func execUnpack(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, ok := e.pop(ctx)
	if !ok {
		return false
	}
	items, err := stackItemsOf(item)
	if err != nil {
		e.fault(FaultUnpackInvalidType, "%v", err)
		return false
	}
	// Push deepest-element-last so items[0] lands nearest the top (just
	// under the count), the same order PACK consumes the stack in, so
	// PACK then UNPACK round-trips to the original stack arrangement.
	for i := len(items) - 1; i >= 0; i-- {
		if !e.push(ctx, items[i]) {
			return false
		}
	}
	e.push(ctx, NewIntegerFromInt64(int64(len(items))))
	return false
}

func execPickItem(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	keyItem, ok := e.pop(ctx)
	if !ok {
		return false
	}
	if _, isCollection := keyItem.(Collection); isCollection {
		e.fault(FaultPickItemInvalidType, "pickitem key may not be a collection")
		return false
	}
	colItem, ok := e.pop(ctx)
	if !ok {
		return false
	}
	switch c := colItem.(type) {
	case *Map:
		v, found := c.TryGetValue(keyItem)
		if !found {
			e.fault(FaultDictKeyError, "key not found")
			return false
		}
		e.push(ctx, v)
	case *Array:
		idx, err := keyItem.GetBigInteger()
		if err != nil {
			e.fault(FaultPickItemInvalidType, "%v", err)
			return false
		}
		i := idx.Int64()
		if i < 0 {
			e.fault(FaultPickItemNegativeIndex, "negative index %d", i)
			return false
		}
		if i >= int64(c.Count()) {
			e.fault(FaultPickItemInvalidIndex, "index %d out of range for %d items", i, c.Count())
			return false
		}
		e.push(ctx, c.Items()[i])
	case *Struct:
		idx, err := keyItem.GetBigInteger()
		if err != nil {
			e.fault(FaultPickItemInvalidType, "%v", err)
			return false
		}
		i := idx.Int64()
		if i < 0 {
			e.fault(FaultPickItemNegativeIndex, "negative index %d", i)
			return false
		}
		if i >= int64(c.Count()) {
			e.fault(FaultPickItemInvalidIndex, "index %d out of range for %d items", i, c.Count())
			return false
		}
		e.push(ctx, c.Items()[i])
	default:
		e.fault(FaultPickItemInvalidType, "cannot PICKITEM on %T", colItem)
	}
	return false
}

func execSetItem(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	value, ok := e.pop(ctx)
	if !ok {
		return false
	}
	value = cloneIfStruct(value)
	keyItem, ok := e.pop(ctx)
	if !ok {
		return false
	}
	if _, isCollection := keyItem.(Collection); isCollection {
		e.fault(FaultKeyIsCollection, "setitem key may not be a collection")
		return false
	}
	colItem, ok := e.pop(ctx)
	if !ok {
		return false
	}
	switch c := colItem.(type) {
	case *Map:
		if !c.ContainsKey(keyItem) && c.Count() >= config.MaxArraySize {
			e.fault(FaultNewArrayExceedMaxArraySize, "map already has %d entries", c.Count())
			return false
		}
		c.SetItem(keyItem, value)
	case *Array:
		idx, err := keyItem.GetBigInteger()
		if err != nil {
			e.fault(FaultSetItemInvalidType, "%v", err)
			return false
		}
		i := idx.Int64()
		if i < 0 {
			e.fault(FaultSetItemNegativeIndex, "negative index %d", i)
			return false
		}
		if i >= int64(c.Count()) {
			e.fault(FaultSetItemInvalidIndex, "index %d out of range for %d items", i, c.Count())
			return false
		}
		items := c.Items()
		items[i] = value
		c.SetItems(items)
	case *Struct:
		idx, err := keyItem.GetBigInteger()
		if err != nil {
			e.fault(FaultSetItemInvalidType, "%v", err)
			return false
		}
		i := idx.Int64()
		if i < 0 {
			e.fault(FaultSetItemNegativeIndex, "negative index %d", i)
			return false
		}
		if i >= int64(c.Count()) {
			e.fault(FaultSetItemInvalidIndex, "index %d out of range for %d items", i, c.Count())
			return false
		}
		items := c.Items()
		items[i] = value
		c.SetItems(items)
	default:
		e.fault(FaultSetItemInvalidType, "cannot SETITEM on %T", colItem)
	}
	return false
}

func execNewArray(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, ok := e.pop(ctx)
	if !ok {
		return false
	}
	var items []StackItem
	switch v := item.(type) {
	case *Array:
		items = append([]StackItem{}, v.Items()...)
	case *Struct:
		items = append([]StackItem{}, v.Items()...)
	default:
		n, err := item.GetBigInteger()
		if err != nil {
			e.fault(FaultNewArrayInvalidType, "%v", err)
			return false
		}
		count := n.Int64()
		if count < 0 || count > config.MaxArraySize {
			e.fault(FaultNewArrayExceedMaxArraySize, "count %d invalid", count)
			return false
		}
		items = make([]StackItem, count)
		for i := range items {
			items[i] = Boolean(false)
		}
	}
	if len(items) > config.MaxArraySize {
		e.fault(FaultNewArrayExceedMaxArraySize, "count %d exceeds %d", len(items), config.MaxArraySize)
		return false
	}
	if ins.OpCode == NEWSTRUCT {
		e.push(ctx, NewStruct(items))
	} else {
		e.push(ctx, NewArray(items))
	}
	return false
}

func execNewMap(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	e.push(ctx, NewMap())
	return false
}

func execAppend(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	value, ok := e.pop(ctx)
	if !ok {
		return false
	}
	value = cloneIfStruct(value)
	colItem, ok := e.pop(ctx)
	if !ok {
		return false
	}
	var items []StackItem
	switch c := colItem.(type) {
	case *Array:
		items = c.Items()
	case *Struct:
		items = c.Items()
	default:
		e.fault(FaultAppendInvalidType, "cannot APPEND to %T", colItem)
		return false
	}
	if len(items) >= config.MaxArraySize {
		e.fault(FaultAppendArrayExceedMaxArraySize, "array already has %d items", len(items))
		return false
	}
	items = append(items, value)
	switch c := colItem.(type) {
	case *Array:
		c.SetItems(items)
	case *Struct:
		c.SetItems(items)
	}
	return false
}

func execReverse(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	colItem, ok := e.pop(ctx)
	if !ok {
		return false
	}
	var items []StackItem
	switch c := colItem.(type) {
	case *Array:
		items = c.Items()
	case *Struct:
		items = c.Items()
	default:
		e.fault(FaultReverseInvalidType, "cannot REVERSE %T", colItem)
		return false
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	switch c := colItem.(type) {
	case *Array:
		c.SetItems(items)
	case *Struct:
		c.SetItems(items)
	}
	return false
}

func execRemove(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	keyItem, ok := e.pop(ctx)
	if !ok {
		return false
	}
	if _, isCollection := keyItem.(Collection); isCollection {
		e.fault(FaultKeyIsCollection, "remove key may not be a collection")
		return false
	}
	colItem, ok := e.pop(ctx)
	if !ok {
		return false
	}
	switch c := colItem.(type) {
	case *Map:
		c.Remove(keyItem)
	case *Array:
		idx, err := keyItem.GetBigInteger()
		if err != nil {
			e.fault(FaultRemoveInvalidType, "%v", err)
			return false
		}
		i := idx.Int64()
		items := c.Items()
		if i < 0 || i >= int64(len(items)) {
			e.fault(FaultRemoveInvalidIndex, "index %d out of range for %d items", i, len(items))
			return false
		}
		c.SetItems(append(items[:i:i], items[i+1:]...))
	case *Struct:
		idx, err := keyItem.GetBigInteger()
		if err != nil {
			e.fault(FaultRemoveInvalidType, "%v", err)
			return false
		}
		i := idx.Int64()
		items := c.Items()
		if i < 0 || i >= int64(len(items)) {
			e.fault(FaultRemoveInvalidIndex, "index %d out of range for %d items", i, len(items))
			return false
		}
		c.SetItems(append(items[:i:i], items[i+1:]...))
	default:
		e.fault(FaultRemoveInvalidType, "cannot REMOVE from %T", colItem)
	}
	return false
}

func execHasKey(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	keyItem, ok := e.pop(ctx)
	if !ok {
		return false
	}
	if _, isCollection := keyItem.(Collection); isCollection {
		e.fault(FaultDictKeyError, "haskey key may not be a collection")
		return false
	}
	colItem, ok := e.pop(ctx)
	if !ok {
		return false
	}
	switch c := colItem.(type) {
	case *Map:
		e.push(ctx, Boolean(c.ContainsKey(keyItem)))
	case *Array:
		idx, err := keyItem.GetBigInteger()
		if err != nil {
			e.fault(FaultPickItemInvalidType, "%v", err)
			return false
		}
		i := idx.Int64()
		if i < 0 {
			e.fault(FaultDictKeyError, "negative index %d", i)
			return false
		}
		e.push(ctx, Boolean(i < int64(c.Count())))
	case *Struct:
		idx, err := keyItem.GetBigInteger()
		if err != nil {
			e.fault(FaultPickItemInvalidType, "%v", err)
			return false
		}
		i := idx.Int64()
		if i < 0 {
			e.fault(FaultDictKeyError, "negative index %d", i)
			return false
		}
		e.push(ctx, Boolean(i < int64(c.Count())))
	default:
		e.fault(FaultPickItemInvalidType, "cannot HASKEY on %T", colItem)
	}
	return false
}

func execKeys(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, ok := e.pop(ctx)
	if !ok {
		return false
	}
	m, isMap := item.(*Map)
	if !isMap {
		e.fault(FaultUnpackInvalidType, "KEYS requires a map, got %T", item)
		return false
	}
	e.push(ctx, NewArray(append([]StackItem{}, m.Keys()...)))
	return false
}

func execValues(e *Engine, ctx *ExecutionContext, ins *Instruction) bool {
	item, ok := e.pop(ctx)
	if !ok {
		return false
	}
	var values []StackItem
	switch v := item.(type) {
	case *Map:
		values = v.Values()
	case *Array:
		values = v.Items()
	case *Struct:
		values = v.Items()
	default:
		e.fault(FaultUnpackInvalidType, "VALUES requires a map or array, got %T", item)
		return false
	}
	out := make([]StackItem, len(values))
	for i, v := range values {
		if s, isStruct := v.(*Struct); isStruct {
			out[i] = s.Clone()
		} else {
			out[i] = v
		}
	}
	e.push(ctx, NewArray(out))
	return false
}
