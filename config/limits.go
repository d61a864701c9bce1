// Package config holds the resource bounds and small enumerations that
// parameterize the VM, the same way mass-core/config carries network
// parameters consumed by the rest of that library.
package config

// Resource bounds enforced by vm.Engine. All are fatal if violated: the
// step that would exceed one of them faults the engine instead of
// completing.
const (
	// MaxSizeForBigInteger is the largest two's-complement
	// representation, in bytes, an Integer stack item may serialize to.
	MaxSizeForBigInteger = 32

	// MaxItemSize is the largest a ByteArray stack item (or the result
	// of a CAT) may be, in bytes.
	MaxItemSize = 1024 * 1024

	// MaxArraySize is the largest number of elements a single
	// Array/Struct/Map may hold.
	MaxArraySize = 1024

	// MaxInvocationStackSize is the deepest the invocation (call) stack
	// may grow.
	MaxInvocationStackSize = 1024

	// MaxStackSize is the largest sum of recursive item counts across
	// every evaluation/alt stack live in the engine, plus its result
	// stack. An item is counted when it is pushed, inserted or set onto
	// a stack; elements later added to a collection that is already on
	// a stack (SETITEM, APPEND) are not counted.
	MaxStackSize = 2048

	// MaxShift and MinShift bound the shift amount accepted by SHL/SHR.
	MaxShift = 256
	MinShift = -256
)
