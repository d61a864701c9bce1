package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStack(limit int) *RandomAccessStack {
	return newRandomAccessStack(&itemCounter{limit: limit})
}

func TestRandomAccessStackPushPeekPop(t *testing.T) {
	s := newTestStack(100)
	require.NoError(t, s.Push(NewIntegerFromInt64(1)))
	require.NoError(t, s.Push(NewIntegerFromInt64(2)))
	require.NoError(t, s.Push(NewIntegerFromInt64(3)))

	top, err := s.Peek(0)
	require.NoError(t, err)
	v, _ := top.GetBigInteger()
	require.Equal(t, int64(3), v.Int64())

	item, err := s.Pop()
	require.NoError(t, err)
	v, _ = item.GetBigInteger()
	require.Equal(t, int64(3), v.Int64())
	require.Equal(t, 2, s.Count())
}

func TestRandomAccessStackInsertRemove(t *testing.T) {
	s := newTestStack(100)
	require.NoError(t, s.Push(NewIntegerFromInt64(1)))
	require.NoError(t, s.Push(NewIntegerFromInt64(2)))
	require.NoError(t, s.Insert(1, NewIntegerFromInt64(99)))

	mid, err := s.Peek(1)
	require.NoError(t, err)
	v, _ := mid.GetBigInteger()
	require.Equal(t, int64(99), v.Int64())

	removed, err := s.Remove(1)
	require.NoError(t, err)
	v, _ = removed.GetBigInteger()
	require.Equal(t, int64(99), v.Int64())
	require.Equal(t, 2, s.Count())
}

func TestRandomAccessStackSetRebalancesCounter(t *testing.T) {
	counter := &itemCounter{limit: 3}
	s := newRandomAccessStack(counter)
	require.NoError(t, s.Push(NewIntegerFromInt64(1)))
	require.Equal(t, 1, counter.count)

	require.NoError(t, s.Set(0, NewArray([]StackItem{Boolean(true), Boolean(false)})))
	require.Equal(t, 3, counter.count, "array of 2 elements costs 3 slots: itself + 2 children")

	require.Error(t, s.Set(0, NewArray([]StackItem{Boolean(true), Boolean(false), Boolean(true)})), "growing past the shared limit must fail")
}

func TestRandomAccessStackOverflowFaultsAtMutation(t *testing.T) {
	s := newTestStack(2)
	require.NoError(t, s.Push(Boolean(true)))
	require.NoError(t, s.Push(Boolean(true)))
	require.ErrorIs(t, s.Push(Boolean(true)), errInvalidStackSize)
}

func TestRandomAccessStackCopyToPreservesOrder(t *testing.T) {
	src := newTestStack(100)
	dst := newTestStack(100)
	require.NoError(t, src.Push(NewIntegerFromInt64(1)))
	require.NoError(t, src.Push(NewIntegerFromInt64(2)))
	require.NoError(t, src.Push(NewIntegerFromInt64(3)))

	require.NoError(t, src.CopyTo(dst, -1))
	require.Equal(t, 3, dst.Count())

	top, err := dst.Peek(0)
	require.NoError(t, err)
	v, _ := top.GetBigInteger()
	require.Equal(t, int64(3), v.Int64())
}

func TestRandomAccessStackCopyToPartial(t *testing.T) {
	src := newTestStack(100)
	dst := newTestStack(100)
	for i := int64(1); i <= 4; i++ {
		require.NoError(t, src.Push(NewIntegerFromInt64(i)))
	}
	require.NoError(t, src.CopyTo(dst, 2))
	require.Equal(t, 2, dst.Count())

	top, err := dst.Peek(0)
	require.NoError(t, err)
	v, _ := top.GetBigInteger()
	require.Equal(t, int64(4), v.Int64())
}

func TestRandomAccessStackClearReleasesCount(t *testing.T) {
	counter := &itemCounter{limit: 10}
	s := newRandomAccessStack(counter)
	require.NoError(t, s.Push(NewIntegerFromInt64(1)))
	require.NoError(t, s.Push(NewIntegerFromInt64(2)))
	s.Clear()
	require.Equal(t, 0, counter.count)
	require.Equal(t, 0, s.Count())
}

func TestRecursiveCountNestedCollections(t *testing.T) {
	m := NewMap()
	m.SetItem(ByteArray([]byte("a")), NewIntegerFromInt64(1))
	arr := NewArray([]StackItem{Boolean(true), m})
	require.Equal(t, 1+1+(1+1+1), recursiveCount(arr))
}
