package vm

import (
	"fmt"
	"math/big"

	"github.com/davecgh/go-spew/spew"
)

// Type identifies which StackItem variant a value is.
type Type int

const (
	TypeBoolean Type = iota
	TypeInteger
	TypeByteArray
	TypeArray
	TypeStruct
	TypeMap
	TypeInteropInterface
)

func (t Type) String() string {
	switch t {
	case TypeBoolean:
		return "Boolean"
	case TypeInteger:
		return "Integer"
	case TypeByteArray:
		return "ByteArray"
	case TypeArray:
		return "Array"
	case TypeStruct:
		return "Struct"
	case TypeMap:
		return "Map"
	case TypeInteropInterface:
		return "InteropInterface"
	default:
		return "Unknown"
	}
}

// errNotConvertible is returned by GetBigInteger/GetByteArray when a
// collection item (Array/Struct/Map/InteropInterface) is asked to
// produce a scalar view it cannot support.
type errNotConvertible struct {
	from, to string
}

func (e *errNotConvertible) Error() string {
	return fmt.Sprintf("cannot convert %s to %s", e.from, e.to)
}

// StackItem is any value that may sit on an evaluation/alt stack.
// Scalars (Boolean, Integer, ByteArray) convert totally between one
// another; Array, Struct, Map and InteropInterface do not convert to
// Integer or ByteArray. Array, Struct and Map compare by reference and
// report an element count; InteropInterface compares its wrapped value.
type StackItem interface {
	Type() Type
	GetBoolean() bool
	GetBigInteger() (*big.Int, error)
	GetByteArray() ([]byte, error)
	GetByteLength() int
	Equals(other StackItem) bool
	String() string
}

// ---- Boolean ----

// Boolean is a one-bit StackItem. It coerces to Integer (0/1) and to
// ByteArray (empty for false, 0x01 for true).
type Boolean bool

func (b Boolean) Type() Type        { return TypeBoolean }
func (b Boolean) GetBoolean() bool  { return bool(b) }
func (b Boolean) GetByteLength() int {
	if b {
		return 1
	}
	return 0
}

func (b Boolean) GetBigInteger() (*big.Int, error) {
	if b {
		return big.NewInt(1), nil
	}
	return big.NewInt(0), nil
}

func (b Boolean) GetByteArray() ([]byte, error) {
	if b {
		return []byte{1}, nil
	}
	return []byte{}, nil
}

func (b Boolean) Equals(other StackItem) bool {
	ob, ok := other.(Boolean)
	if !ok {
		return false
	}
	return b == ob
}

func (b Boolean) String() string {
	return fmt.Sprintf("Boolean(%t)", bool(b))
}

// ---- Integer ----

// Integer is an arbitrary-precision signed integer. fitsBigIntegerLimit
// (engine.go) bounds its two's-complement serialization to
// config.MaxSizeForBigInteger bytes when an opcode pops it as an integer
// operand and when arithmetic or shift opcodes produce a new value; the
// type itself places no bound on construction.
type Integer struct {
	Value *big.Int
}

// NewInteger wraps v. v is not copied; callers that continue to
// mutate it after construction will corrupt the stack item.
func NewInteger(v *big.Int) Integer {
	return Integer{Value: v}
}

// NewIntegerFromInt64 is a convenience constructor for small literals
// (PUSHM1..PUSH16, DEPTH, ARRAYSIZE, SIZE, UNPACK's count, ...).
func NewIntegerFromInt64(v int64) Integer {
	return Integer{Value: big.NewInt(v)}
}

func (i Integer) Type() Type { return TypeInteger }

func (i Integer) GetBoolean() bool {
	return i.Value.Sign() != 0
}

func (i Integer) GetBigInteger() (*big.Int, error) {
	return i.Value, nil
}

func (i Integer) GetByteArray() ([]byte, error) {
	return bigIntToBytesLE(i.Value), nil
}

func (i Integer) GetByteLength() int {
	return len(bigIntToBytesLE(i.Value))
}

func (i Integer) Equals(other StackItem) bool {
	oi, ok := other.(Integer)
	if !ok {
		return false
	}
	return i.Value.Cmp(oi.Value) == 0
}

func (i Integer) String() string {
	return fmt.Sprintf("Integer(%s)", i.Value.String())
}

// ---- ByteArray ----

// ByteArray is an immutable byte sequence.
type ByteArray []byte

func (b ByteArray) Type() Type { return TypeByteArray }

func (b ByteArray) GetBoolean() bool {
	for _, c := range b {
		if c != 0 {
			return true
		}
	}
	return false
}

func (b ByteArray) GetBigInteger() (*big.Int, error) {
	return bytesLEToBigInt(b), nil
}

func (b ByteArray) GetByteArray() ([]byte, error) {
	return []byte(b), nil
}

func (b ByteArray) GetByteLength() int {
	return len(b)
}

func (b ByteArray) Equals(other StackItem) bool {
	ob, ok := other.(ByteArray)
	if !ok {
		return false
	}
	if len(b) != len(ob) {
		return false
	}
	for i := range b {
		if b[i] != ob[i] {
			return false
		}
	}
	return true
}

func (b ByteArray) String() string {
	return fmt.Sprintf("ByteArray(%x)", []byte(b))
}

// ---- Array / Struct ----

// Array is an ordered, mutable sequence of StackItems. It is stored
// behind a pointer so copies made by pushing the same Array value onto
// multiple stack slots alias the same backing slice, as spec.md
// requires ("Mutable in-place").
type Array struct {
	items []StackItem
}

// NewArray builds an Array over items (not copied).
func NewArray(items []StackItem) *Array {
	if items == nil {
		items = []StackItem{}
	}
	return &Array{items: items}
}

func (a *Array) Type() Type       { return TypeArray }
func (a *Array) GetBoolean() bool { return true }

func (a *Array) GetBigInteger() (*big.Int, error) {
	return nil, &errNotConvertible{"Array", "Integer"}
}

func (a *Array) GetByteArray() ([]byte, error) {
	return nil, &errNotConvertible{"Array", "ByteArray"}
}

func (a *Array) GetByteLength() int { return 0 }

// Equals uses reference equality for collections, per spec.md §3.
func (a *Array) Equals(other StackItem) bool {
	oa, ok := other.(*Array)
	if !ok {
		return false
	}
	return a == oa
}

func (a *Array) String() string {
	return fmt.Sprintf("Array%s", spew.Sdump(a.items))
}

// Count is the number of direct elements (used by ARRAYSIZE).
func (a *Array) Count() int { return len(a.items) }

// Items exposes the backing slice for in-place mutation (SETITEM,
// APPEND, REVERSE, REMOVE).
func (a *Array) Items() []StackItem { return a.items }

func (a *Array) SetItems(items []StackItem) { a.items = items }

// Struct is an Array variant with value (clone-on-assign) semantics:
// SETITEM, APPEND and VALUES deep-clone a Struct before storing or
// returning it, so a Struct assigned into a collection never aliases its
// source. Opcodes that copy a stack item (DUP, OVER, PICK, PICKITEM, ...)
// push the same *Struct, so two stack slots may refer to one Struct.
type Struct struct {
	items []StackItem
}

func NewStruct(items []StackItem) *Struct {
	if items == nil {
		items = []StackItem{}
	}
	return &Struct{items: items}
}

func (s *Struct) Type() Type       { return TypeStruct }
func (s *Struct) GetBoolean() bool { return true }

func (s *Struct) GetBigInteger() (*big.Int, error) {
	return nil, &errNotConvertible{"Struct", "Integer"}
}

func (s *Struct) GetByteArray() ([]byte, error) {
	return nil, &errNotConvertible{"Struct", "ByteArray"}
}

func (s *Struct) GetByteLength() int { return 0 }

func (s *Struct) Equals(other StackItem) bool {
	os, ok := other.(*Struct)
	if !ok {
		return false
	}
	return s == os
}

func (s *Struct) String() string {
	return fmt.Sprintf("Struct%s", spew.Sdump(s.items))
}

func (s *Struct) Count() int           { return len(s.items) }
func (s *Struct) Items() []StackItem   { return s.items }
func (s *Struct) SetItems(i []StackItem) { s.items = i }

// Clone deep-copies the Struct (and, recursively, any nested Structs)
// so the copy never aliases the source. visited breaks reference
// cycles: a Struct already being cloned in the current recursion is
// substituted with the clone already made for it rather than recursed
// into again, capping
// traversal at each distinct pointer once (spec.md §9: "cap traversal
// depth and fault on cycles" — here, break instead of fault, since a
// cycle can only be formed by a host bug, not untrusted script input:
// structs are acyclic by construction from NEWSTRUCT/APPEND/SETITEM).
func (s *Struct) Clone() *Struct {
	return s.cloneWith(map[*Struct]*Struct{})
}

func (s *Struct) cloneWith(visited map[*Struct]*Struct) *Struct {
	if existing, ok := visited[s]; ok {
		return existing
	}
	clone := &Struct{items: make([]StackItem, len(s.items))}
	visited[s] = clone
	for i, item := range s.items {
		if sub, ok := item.(*Struct); ok {
			clone.items[i] = sub.cloneWith(visited)
		} else {
			clone.items[i] = item
		}
	}
	return clone
}

// ---- Map ----

// Map is an association from scalar StackItem keys (Boolean, Integer,
// ByteArray — never a collection) to StackItem values. Lookup is by
// Equals, not Go map identity, since keys are StackItem interfaces.
type Map struct {
	keys   []StackItem
	values []StackItem
}

func NewMap() *Map {
	return &Map{}
}

func (m *Map) Type() Type       { return TypeMap }
func (m *Map) GetBoolean() bool { return true }

func (m *Map) GetBigInteger() (*big.Int, error) {
	return nil, &errNotConvertible{"Map", "Integer"}
}

func (m *Map) GetByteArray() ([]byte, error) {
	return nil, &errNotConvertible{"Map", "ByteArray"}
}

func (m *Map) GetByteLength() int { return 0 }

func (m *Map) Equals(other StackItem) bool {
	om, ok := other.(*Map)
	if !ok {
		return false
	}
	return m == om
}

func (m *Map) String() string {
	return fmt.Sprintf("Map%s", spew.Sdump(m.keys, m.values))
}

func (m *Map) Count() int { return len(m.keys) }

func (m *Map) indexOf(key StackItem) int {
	for i, k := range m.keys {
		if k.Equals(key) {
			return i
		}
	}
	return -1
}

// TryGetValue returns (value, true) if key is present.
func (m *Map) TryGetValue(key StackItem) (StackItem, bool) {
	idx := m.indexOf(key)
	if idx < 0 {
		return nil, false
	}
	return m.values[idx], true
}

// ContainsKey reports whether key is present.
func (m *Map) ContainsKey(key StackItem) bool {
	return m.indexOf(key) >= 0
}

// SetItem inserts or overwrites key's value.
func (m *Map) SetItem(key, value StackItem) {
	if idx := m.indexOf(key); idx >= 0 {
		m.values[idx] = value
		return
	}
	m.keys = append(m.keys, key)
	m.values = append(m.values, value)
}

// Remove deletes key, if present.
func (m *Map) Remove(key StackItem) {
	idx := m.indexOf(key)
	if idx < 0 {
		return
	}
	m.keys = append(m.keys[:idx], m.keys[idx+1:]...)
	m.values = append(m.values[:idx], m.values[idx+1:]...)
}

// Keys returns the live key slice, bottom-to-top insertion order.
func (m *Map) Keys() []StackItem { return m.keys }

// Values returns the live value slice, matching Keys()'s order.
func (m *Map) Values() []StackItem { return m.values }

// ---- InteropInterface ----

// InteropInterface wraps an opaque host handle. It is only
// equality-comparable (by the wrapped value's own == operator, when
// that value's type supports it).
type InteropInterface struct {
	Value interface{}
}

func NewInteropInterface(v interface{}) InteropInterface {
	return InteropInterface{Value: v}
}

func (i InteropInterface) Type() Type       { return TypeInteropInterface }
func (i InteropInterface) GetBoolean() bool { return i.Value != nil }

func (i InteropInterface) GetBigInteger() (*big.Int, error) {
	return nil, &errNotConvertible{"InteropInterface", "Integer"}
}

func (i InteropInterface) GetByteArray() ([]byte, error) {
	return nil, &errNotConvertible{"InteropInterface", "ByteArray"}
}

func (i InteropInterface) GetByteLength() int { return 0 }

func (i InteropInterface) Equals(other StackItem) bool {
	oi, ok := other.(InteropInterface)
	if !ok {
		return false
	}
	return safeEqual(i.Value, oi.Value)
}

func (i InteropInterface) String() string {
	return fmt.Sprintf("InteropInterface(%v)", i.Value)
}

func safeEqual(a, b interface{}) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// ---- collection helpers shared by the engine ----

// Collection is implemented by Array, Struct and Map: the things
// ARRAYSIZE, HASKEY, KEYS, VALUES and friends treat generically.
type Collection interface {
	StackItem
	Count() int
}

// ---- BigInteger serialization ----

// bigIntToBytesLE returns v's minimal two's-complement representation,
// little-endian, matching the source's canonical BigInteger.ToByteArray.
func bigIntToBytesLE(v *big.Int) []byte {
	be := bigIntToBytesBE(v)
	reverseBytes(be)
	return be
}

func bigIntToBytesBE(v *big.Int) []byte {
	if v.Sign() == 0 {
		return []byte{}
	}
	if v.Sign() > 0 {
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0x00}, b...)
		}
		return b
	}

	abs := new(big.Int).Abs(v)
	absBytes := abs.Bytes()
	ext := make([]byte, len(absBytes)+1)
	copy(ext[1:], absBytes)
	for i := range ext {
		ext[i] = ^ext[i]
	}
	for i := len(ext) - 1; i >= 0; i-- {
		ext[i]++
		if ext[i] != 0 {
			break
		}
	}
	for len(ext) > 1 && ext[0] == 0xFF && ext[1]&0x80 != 0 {
		ext = ext[1:]
	}
	return ext
}

// bytesLEToBigInt decodes a little-endian two's-complement byte
// sequence, the inverse of bigIntToBytesLE.
func bytesLEToBigInt(le []byte) *big.Int {
	if len(le) == 0 {
		return big.NewInt(0)
	}
	be := make([]byte, len(le))
	copy(be, le)
	reverseBytes(be)

	if be[0]&0x80 == 0 {
		return new(big.Int).SetBytes(be)
	}
	u := new(big.Int).SetBytes(be)
	mod := new(big.Int).Lsh(big.NewInt(1), uint(8*len(be)))
	return new(big.Int).Sub(u, mod)
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
