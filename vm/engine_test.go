package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wangxinyu2018/mass-vm/internal/vmcrypto"
	"github.com/wangxinyu2018/mass-vm/vm"
)

func runScript(t *testing.T, code []byte) *vm.Engine {
	t.Helper()
	e := vm.NewEngine(vmcrypto.Default{}, nil, nil, nil)
	require.True(t, e.LoadScript(vm.NewScript(vmcrypto.Default{}, code), -1))
	e.Execute()
	return e
}

func topInt(t *testing.T, s *vm.RandomAccessStack) int64 {
	t.Helper()
	item, err := s.Peek(0)
	require.NoError(t, err)
	v, err := item.GetBigInteger()
	require.NoError(t, err)
	return v.Int64()
}

func TestEngineArithmetic(t *testing.T) {
	e := runScript(t, []byte{vm.PUSH1, vm.PUSH2, vm.ADD})
	require.Equal(t, vm.StateHalt, e.State())
	require.Equal(t, 1, e.ResultStack().Count())
	require.Equal(t, int64(3), topInt(t, e.ResultStack()))
}

func TestEngineBranchTaken(t *testing.T) {
	// PUSHT; JMPIF +4 (skip the PUSHM1); PUSHM1; PUSH2
	code := []byte{vm.PUSHT, vm.JMPIF, 0x04, 0x00, vm.PUSHM1, vm.PUSH2}
	e := runScript(t, code)
	require.Equal(t, vm.StateHalt, e.State())
	require.Equal(t, int64(2), topInt(t, e.ResultStack()))
}

func TestEngineBranchNotTaken(t *testing.T) {
	code := []byte{vm.PUSH0, vm.JMPIF, 0x04, 0x00, vm.PUSHM1, vm.PUSH2}
	e := runScript(t, code)
	require.Equal(t, vm.StateHalt, e.State())
	// PUSH0 pushes an empty ByteArray (falsy), so JMPIF falls through to
	// PUSHM1 and then PUSH2 runs too: the result stack holds PUSH2's
	// value on top.
	require.Equal(t, int64(2), topInt(t, e.ResultStack()))
}

func TestEngineBigIntegerExceedsLimit(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = 0x01
	}
	code := []byte{vm.PUSHDATA1, byte(len(data))}
	code = append(code, data...)
	code = append(code, vm.SIGN)

	e := runScript(t, code)
	require.Equal(t, vm.StateFault, e.State())
	require.Equal(t, vm.FaultBigIntegerExceedLimit, e.FaultCode())
}

func TestEngineCatExceedsMaxItemSize(t *testing.T) {
	e := vm.NewEngine(vmcrypto.Default{}, nil, nil, nil)
	require.True(t, e.LoadScript(vm.NewScript(vmcrypto.Default{}, []byte{vm.CAT}), -1))

	big1 := make([]byte, 600*1024)
	big2 := make([]byte, 600*1024)
	ctx := e.CurrentContext()
	require.NoError(t, ctx.EvaluationStack().Push(vm.ByteArray(big1)))
	require.NoError(t, ctx.EvaluationStack().Push(vm.ByteArray(big2)))

	e.Execute()
	require.Equal(t, vm.StateFault, e.State())
	require.Equal(t, vm.FaultCatExceedMaxItemSize, e.FaultCode())
}

func TestEngineMapOperations(t *testing.T) {
	// NEWMAP; DUP; PUSH1 (key); PUSH2 (value); SETITEM; DUP; PUSH1; HASKEY
	code := []byte{
		vm.NEWMAP,
		vm.DUP, vm.PUSH1, vm.PUSH2, vm.SETITEM,
		vm.DUP, vm.PUSH1, vm.HASKEY,
	}
	e := runScript(t, code)
	require.Equal(t, vm.StateHalt, e.State())
	require.Equal(t, 2, e.ResultStack().Count())

	hasKey, err := e.ResultStack().Peek(0)
	require.NoError(t, err)
	require.True(t, hasKey.GetBoolean())
}

func TestEngineCheckMultisig(t *testing.T) {
	e := vm.NewEngine(fixedVerifyCrypto{}, nil, stubContainer{}, nil)
	require.True(t, e.LoadScript(vm.NewScript(fixedVerifyCrypto{}, []byte{vm.CHECKMULTISIG}), -1))

	ctx := e.CurrentContext()
	sigs := vm.NewArray([]vm.StackItem{vm.ByteArray([]byte("good-sig"))})
	pubkeys := vm.NewArray([]vm.StackItem{vm.ByteArray([]byte("good-pub"))})
	require.NoError(t, ctx.EvaluationStack().Push(sigs))
	require.NoError(t, ctx.EvaluationStack().Push(pubkeys))

	e.Execute()
	require.Equal(t, vm.StateHalt, e.State())
	require.Equal(t, 1, e.ResultStack().Count(), "the implicit RET at end of script copies CHECKMULTISIG's result onto the result stack")
	result, err := e.ResultStack().Peek(0)
	require.NoError(t, err)
	require.True(t, result.GetBoolean())
}

func TestEngineInvocationDepthFault(t *testing.T) {
	// CALL back to offset 0 forever.
	code := []byte{vm.CALL, 0x00, 0x00}
	e := runScript(t, code)
	require.Equal(t, vm.StateFault, e.State())
	require.Equal(t, vm.FaultCallExceedMaxInvocationStackSize, e.FaultCode())
}

func TestEngineSetItemClonesStruct(t *testing.T) {
	e := vm.NewEngine(vmcrypto.Default{}, nil, nil, nil)
	require.True(t, e.LoadScript(vm.NewScript(vmcrypto.Default{}, []byte{vm.SETITEM}), -1))

	inner := vm.NewStruct([]vm.StackItem{vm.NewIntegerFromInt64(1)})
	arr := vm.NewArray([]vm.StackItem{vm.Boolean(false)})

	ctx := e.CurrentContext()
	require.NoError(t, ctx.EvaluationStack().Push(arr))
	require.NoError(t, ctx.EvaluationStack().Push(vm.NewIntegerFromInt64(0)))
	require.NoError(t, ctx.EvaluationStack().Push(inner))

	e.Execute()
	require.Equal(t, vm.StateHalt, e.State())

	stored, ok := arr.Items()[0].(*vm.Struct)
	require.True(t, ok)
	require.NotSame(t, inner, stored, "SETITEM must clone a Struct value rather than alias it")
}

func TestEngineUnpackRoundTripsPack(t *testing.T) {
	// PUSH3; PUSH2; PUSH1; PACK 3 -> packs [1,2,3] (PUSH1 was on top);
	// UNPACK should restore that same top-to-bottom arrangement.
	code := []byte{vm.PUSH3, vm.PUSH2, vm.PUSH1, vm.PUSH3, vm.PACK, vm.UNPACK}
	e := runScript(t, code)
	require.Equal(t, vm.StateHalt, e.State())

	rs := e.ResultStack()
	require.Equal(t, 4, rs.Count())
	require.Equal(t, int64(3), topInt(t, rs)) // count pushed by UNPACK

	item, err := rs.Peek(1)
	require.NoError(t, err)
	v, err := item.GetBigInteger()
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Int64(), "element 0 (originally on top before PACK) must land nearest the top again")
}

func TestEngineExitOnErrorSwallowsPanic(t *testing.T) {
	e := vm.NewEngine(vmcrypto.Default{}, nil, nil, panickingInterop{})
	e.SetExitOnError(false)
	code := []byte{vm.SYSCALL, 0x01, 'x', vm.PUSH1}
	require.True(t, e.LoadScript(vm.NewScript(vmcrypto.Default{}, code), -1))

	e.Execute()
	require.Equal(t, vm.StateHalt, e.State(), "a swallowed panic must not fault the engine")
	require.Equal(t, int64(1), topInt(t, e.ResultStack()))
}

func TestEngineExitOnErrorFaultsByDefault(t *testing.T) {
	e := vm.NewEngine(vmcrypto.Default{}, nil, nil, panickingInterop{})
	code := []byte{vm.SYSCALL, 0x01, 'x'}
	require.True(t, e.LoadScript(vm.NewScript(vmcrypto.Default{}, code), -1))

	e.Execute()
	require.Equal(t, vm.StateFault, e.State())
	require.Equal(t, vm.FaultUnhandledException, e.FaultCode())
}

type panickingInterop struct{}

func (panickingInterop) Invoke(name string, engine *vm.Engine) bool {
	panic("boom: " + name)
}

func TestEngineRetInsufficientReturnValuesFaults(t *testing.T) {
	// CALL_I rvcount=1, pcount=0, relative offset 5 (the instruction
	// right after CALL_I's own 5-byte encoding): the callee RETs
	// immediately with an empty evaluation stack, promising 1 return
	// value it doesn't have.
	code := []byte{vm.CALL_I, 0x01, 0x00, 0x05, 0x00, vm.RET}
	e := runScript(t, code)
	require.Equal(t, vm.StateFault, e.State())
	require.Equal(t, vm.FaultInvalidStackSize, e.FaultCode())
}

func TestEngineAppCallStatic(t *testing.T) {
	hash := make([]byte, 20)
	hash[0] = 0x01
	table := stubScriptTable{hash: hash, code: []byte{vm.PUSH1, vm.RET}}

	code := append([]byte{vm.APPCALL}, hash...)
	e := vm.NewEngine(vmcrypto.Default{}, table, nil, nil)
	require.True(t, e.LoadScript(vm.NewScript(vmcrypto.Default{}, code), -1))
	e.Execute()
	require.Equal(t, vm.StateHalt, e.State())
	require.Equal(t, int64(1), topInt(t, e.ResultStack()))
}

func TestEngineAppCallDynamic(t *testing.T) {
	hash := make([]byte, 20)
	hash[5] = 0x09
	table := stubScriptTable{hash: hash, code: []byte{vm.PUSH2, vm.RET}}

	zero := make([]byte, 20)
	code := []byte{vm.PUSHDATA1, 20}
	code = append(code, hash...)
	code = append(code, vm.APPCALL)
	code = append(code, zero...)

	e := vm.NewEngine(vmcrypto.Default{}, table, nil, nil)
	require.True(t, e.LoadScript(vm.NewScript(vmcrypto.Default{}, code), -1))
	e.Execute()
	require.Equal(t, vm.StateHalt, e.State())
	require.Equal(t, int64(2), topInt(t, e.ResultStack()))
}

func TestEngineCheckMultisigIntegerCountConvention(t *testing.T) {
	e := vm.NewEngine(fixedVerifyCrypto{}, nil, stubContainer{}, nil)
	require.True(t, e.LoadScript(vm.NewScript(fixedVerifyCrypto{}, []byte{vm.CHECKMULTISIG}), -1))

	ctx := e.CurrentContext()
	// CHECKMULTISIG pops pubkeys first, so the pubkeys count/item sits
	// above the sigs count/item: push sigs half, then pubkeys half.
	require.NoError(t, ctx.EvaluationStack().Push(vm.ByteArray([]byte("good-sig"))))
	require.NoError(t, ctx.EvaluationStack().Push(vm.NewIntegerFromInt64(1)))
	require.NoError(t, ctx.EvaluationStack().Push(vm.ByteArray([]byte("good-pub"))))
	require.NoError(t, ctx.EvaluationStack().Push(vm.NewIntegerFromInt64(1)))

	e.Execute()
	require.Equal(t, vm.StateHalt, e.State())
	require.Equal(t, 1, e.ResultStack().Count())

	result, err := e.ResultStack().Peek(0)
	require.NoError(t, err)
	require.True(t, result.GetBoolean())
}

func TestEngineValuesOnArray(t *testing.T) {
	// PACK a 1-element array, call VALUES on it (previously faulted on
	// anything but a Map), then PICKITEM to confirm the element survived.
	code := []byte{vm.PUSH5, vm.PUSH1, vm.PACK, vm.VALUES, vm.PUSH0, vm.PICKITEM}
	e := runScript(t, code)
	require.Equal(t, vm.StateHalt, e.State())
	require.Equal(t, int64(5), topInt(t, e.ResultStack()))
}

func TestEngineDivideByZeroFaults(t *testing.T) {
	e := runScript(t, []byte{vm.PUSH1, vm.PUSH0, vm.DIV})
	require.Equal(t, vm.StateFault, e.State())
	require.Equal(t, vm.FaultDivideByZero, e.FaultCode())
}

type stubScriptTable struct {
	hash []byte
	code []byte
}

func (s stubScriptTable) GetScript(scriptHash []byte) []byte {
	if string(scriptHash) == string(s.hash) {
		return s.code
	}
	return nil
}

type fixedVerifyCrypto struct{}

func (fixedVerifyCrypto) Hash160(b []byte) []byte { return vmcrypto.Default{}.Hash160(b) }
func (fixedVerifyCrypto) Hash256(b []byte) []byte { return vmcrypto.Default{}.Hash256(b) }
func (fixedVerifyCrypto) VerifySignature(message, signature, pubkey []byte) bool {
	return string(signature) == "good-sig" && string(pubkey) == "good-pub"
}

type stubContainer struct{}

func (stubContainer) GetMessage() []byte { return []byte("msg") }
