package vm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBigIntegerRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 127, 128, -128, -129, 255, 256, -256, 1 << 20, -(1 << 20)}
	for _, v := range cases {
		i := NewIntegerFromInt64(v)
		b, err := i.GetByteArray()
		require.NoError(t, err)
		got := bytesLEToBigInt(b)
		require.Equalf(t, v, got.Int64(), "round trip of %d via %x", v, b)
	}
}

func TestBigIntegerCanonicalBytes(t *testing.T) {
	cases := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{}},
		{1, []byte{0x01}},
		{-1, []byte{0xFF}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x00}},
		{-128, []byte{0x80}},
		{-129, []byte{0x7F, 0xFF}},
	}
	for _, c := range cases {
		got := bigIntToBytesLE(big.NewInt(c.v))
		require.Equalf(t, c.want, got, "bigIntToBytesLE(%d)", c.v)
	}
}

func TestBooleanConversions(t *testing.T) {
	require.True(t, Boolean(true).GetBoolean())
	require.False(t, Boolean(false).GetBoolean())

	v, err := Boolean(true).GetBigInteger()
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Int64())

	b, err := Boolean(false).GetByteArray()
	require.NoError(t, err)
	require.Empty(t, b)
}

func TestByteArrayEquals(t *testing.T) {
	a := ByteArray([]byte{1, 2, 3})
	b := ByteArray([]byte{1, 2, 3})
	c := ByteArray([]byte{1, 2, 4})
	require.True(t, a.Equals(b))
	require.False(t, a.Equals(c))
	require.False(t, a.Equals(Boolean(true)))
}

func TestArrayReferenceSemantics(t *testing.T) {
	arr := NewArray([]StackItem{Boolean(true)})
	alias := arr
	alias.SetItems(append(alias.Items(), NewIntegerFromInt64(5)))
	require.Equal(t, 2, arr.Count(), "mutation through alias is visible through the original pointer")
	require.True(t, arr.Equals(alias))
	require.False(t, arr.Equals(NewArray(nil)))
}

func TestStructCloneBreaksAliasing(t *testing.T) {
	inner := NewStruct([]StackItem{NewIntegerFromInt64(1)})
	outer := NewStruct([]StackItem{inner})

	clone := outer.Clone()
	require.False(t, clone == outer)

	clonedInner, ok := clone.Items()[0].(*Struct)
	require.True(t, ok)
	require.False(t, clonedInner == inner)

	clonedInner.SetItems([]StackItem{NewIntegerFromInt64(99)})
	v, err := inner.Items()[0].GetBigInteger()
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Int64(), "mutating the clone must not affect the original")
}

func TestStructCloneBreaksCycles(t *testing.T) {
	s := NewStruct(nil)
	s.SetItems([]StackItem{s})

	clone := s.Clone()
	require.NotPanics(t, func() {
		_ = clone.Items()[0].(*Struct)
	})
}

func TestMapOperations(t *testing.T) {
	m := NewMap()
	key := ByteArray([]byte("k"))
	m.SetItem(key, NewIntegerFromInt64(10))
	require.True(t, m.ContainsKey(key))

	v, ok := m.TryGetValue(key)
	require.True(t, ok)
	got, err := v.GetBigInteger()
	require.NoError(t, err)
	require.Equal(t, int64(10), got.Int64())

	m.SetItem(key, NewIntegerFromInt64(20))
	require.Equal(t, 1, m.Count(), "overwriting an existing key must not grow the map")

	m.Remove(key)
	require.False(t, m.ContainsKey(key))
}

func TestInteropInterfaceEqualsNeverPanics(t *testing.T) {
	a := NewInteropInterface([]int{1, 2, 3})
	b := NewInteropInterface([]int{1, 2, 3})
	require.NotPanics(t, func() {
		require.False(t, a.Equals(b), "slices are not comparable; safeEqual must recover and report false")
	})
}
