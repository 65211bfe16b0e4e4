package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleKeyedOperation(t *testing.T) {
	r := New()
	f, err := Register[bool](r, Op{Kind: KindUpload, Key: "a.txt", Target: "a.txt", Command: "put a.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.Settle(KindUpload, "a.txt", true))
	assert.Equal(t, 0, r.Len(), "settled operation must be removed")

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, v)

	// A second confirmation for the same key has nothing to settle.
	err = r.Settle(KindUpload, "a.txt", true)
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestSameKeyCanBeTrackedAgainAfterSettle(t *testing.T) {
	r := New()
	first, err := Register[bool](r, Op{Kind: KindUpload, Key: "a.txt"})
	require.NoError(t, err)
	require.NoError(t, r.Settle(KindUpload, "a.txt", true))

	second, err := Register[bool](r, Op{Kind: KindUpload, Key: "a.txt"})
	require.NoError(t, err)
	assert.False(t, second.Settled())
	assert.True(t, first.Settled())

	require.NoError(t, r.Settle(KindUpload, "a.txt", true))
	assert.True(t, second.Settled())
}

func TestKeyedReplacementOrphansPrevious(t *testing.T) {
	r := New()
	first, err := Register[bool](r, Op{Kind: KindUpload, Key: "a.txt"})
	require.NoError(t, err)
	second, err := Register[bool](r, Op{Kind: KindUpload, Key: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.Settle(KindUpload, "a.txt", true))
	assert.True(t, second.Settled())
	assert.False(t, first.Settled())
}

func TestDuplicateSingleSlot(t *testing.T) {
	r := New()
	first, err := Register[string](r, Op{Kind: KindPwd, Command: "pwd"})
	require.NoError(t, err)

	_, err = Register[string](r, Op{Kind: KindPwd, Command: "pwd"})
	require.ErrorIs(t, err, ErrDuplicateOperation)

	// The rejected registration must not disturb the pending one.
	require.NoError(t, r.Settle(KindPwd, "", "/home/x"))
	v, err := first.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/home/x", v)

	_, err = Register[string](r, Op{Kind: KindPwd, Command: "pwd"})
	assert.NoError(t, err, "slot is free again after settlement")
}

func TestSingleSlotIgnoresKey(t *testing.T) {
	r := New()
	_, err := Register[struct{}](r, Op{Kind: KindCd, Key: "ignored", Target: "/tmp"})
	require.NoError(t, err)

	op, ok := r.Peek(KindCd, "")
	require.True(t, ok)
	assert.Equal(t, "/tmp", op.Target)
	assert.Equal(t, StateIssued, op.State)
}

func TestFail(t *testing.T) {
	r := New()
	f, err := Register[struct{}](r, Op{Kind: KindCd, Target: "missing"})
	require.NoError(t, err)

	reason := &OperationError{Op: "cd", Target: "missing", Reason: "No such file or directory"}
	require.NoError(t, r.Fail(KindCd, "", reason))

	_, err = f.Await(context.Background())
	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "cd into 'missing' failed: No such file or directory", err.Error())

	assert.ErrorIs(t, r.Fail(KindCd, "", reason), ErrStateMismatch)
}

func TestPeekDoesNotMutate(t *testing.T) {
	r := New()
	_, ok := r.Peek(KindCd, "")
	assert.False(t, ok)

	_, err := Register[struct{}](r, Op{Kind: KindCd, Target: "/srv"})
	require.NoError(t, err)

	op, ok := r.Peek(KindCd, "")
	require.True(t, ok)
	op.Target = "changed"

	again, _ := r.Peek(KindCd, "")
	assert.Equal(t, "/srv", again.Target)
	assert.Equal(t, 1, r.Len())
}

func TestFindReturnsOldest(t *testing.T) {
	r := New()
	for _, key := range []string{"g3", "g1", "g2"} {
		_, err := Register[[]string](r, Op{Kind: KindGeneric, Key: key, Command: "ls"})
		require.NoError(t, err)
	}

	op, ok := r.Find(KindGeneric, func(o Op) bool { return o.Command == "ls" })
	require.True(t, ok)
	assert.Equal(t, "g3", op.Key, "first registered wins regardless of key order")

	_, ok = r.Find(KindGeneric, func(o Op) bool { return o.Command == "lls" })
	assert.False(t, ok)
}

func TestKeys(t *testing.T) {
	r := New()
	for _, key := range []string{"sub/a.txt", "a.txt"} {
		_, err := Register[bool](r, Op{Kind: KindUpload, Key: key})
		require.NoError(t, err)
	}
	_, err := Register[bool](r, Op{Kind: KindDownload, Key: "b.txt"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "sub/a.txt"}, r.Keys(KindUpload))
	assert.Equal(t, []string{"b.txt"}, r.Keys(KindDownload))
	assert.Empty(t, r.Keys(KindGeneric))
}

func TestAdvanceAndAppend(t *testing.T) {
	r := New()
	f, err := Register[[]string](r, Op{Kind: KindGeneric, Key: "g1", Command: "ls"})
	require.NoError(t, err)

	require.NoError(t, r.Advance(KindGeneric, "g1", StateAwaiting))
	require.NoError(t, r.Append(KindGeneric, "g1", "a.txt"))
	require.NoError(t, r.Append(KindGeneric, "g1", "b.txt"))

	op, _ := r.Peek(KindGeneric, "g1")
	assert.Equal(t, StateAwaiting, op.State)
	require.NoError(t, r.Settle(KindGeneric, "g1", op.Output))

	lines, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, lines)

	assert.ErrorIs(t, r.Advance(KindGeneric, "g1", StateAwaiting), ErrStateMismatch)
	assert.ErrorIs(t, r.Append(KindGeneric, "g1", "x"), ErrStateMismatch)
}

func TestSettleWithWrongTypeRejects(t *testing.T) {
	r := New()
	f, err := Register[string](r, Op{Kind: KindPwd})
	require.NoError(t, err)

	require.NoError(t, r.Settle(KindPwd, "", 42))
	_, err = f.Await(context.Background())
	assert.Error(t, err)
}

func TestDrain(t *testing.T) {
	r := New()
	cd, _ := Register[struct{}](r, Op{Kind: KindCd})
	up, _ := Register[bool](r, Op{Kind: KindUpload, Key: "a"})

	closed := errors.New("closed")
	assert.Equal(t, 2, r.Drain(closed))
	assert.Equal(t, 0, r.Len())

	_, err := cd.Await(context.Background())
	assert.ErrorIs(t, err, closed)
	_, err = up.Await(context.Background())
	assert.ErrorIs(t, err, closed)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "upload", KindUpload.String())
	assert.True(t, KindConnect.SingleSlot())
	assert.False(t, KindDownload.SingleSlot())
	assert.Equal(t, "awaiting", StateAwaiting.String())
}
