package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pointyflow/internal/ast"
)

func TestParse_SingleTask(t *testing.T) {
	n, err := Parse("downloader")
	require.NoError(t, err)
	ref, ok := n.(*ast.TaskRef)
	require.True(t, ok, "expected *ast.TaskRef, got %T", n)
	assert.Equal(t, "downloader", ref.Name)
}

func TestParse_Seq(t *testing.T) {
	n, err := Parse("a -> b")
	require.NoError(t, err)
	seq, ok := n.(*ast.Seq)
	require.True(t, ok, "expected *ast.Seq, got %T", n)
	assert.Equal(t, "a", seq.Left.(*ast.TaskRef).Name)
	assert.Equal(t, "b", seq.Right.(*ast.TaskRef).Name)
}

func TestParse_SeqLeftAssociative(t *testing.T) {
	// a -> b -> c should parse as (a -> b) -> c.
	n, err := Parse("a -> b -> c")
	require.NoError(t, err)
	outer, ok := n.(*ast.Seq)
	require.True(t, ok)
	assert.Equal(t, "c", outer.Right.(*ast.TaskRef).Name)
	inner, ok := outer.Left.(*ast.Seq)
	require.True(t, ok)
	assert.Equal(t, "a", inner.Left.(*ast.TaskRef).Name)
	assert.Equal(t, "b", inner.Right.(*ast.TaskRef).Name)
}

func TestParse_ParallelBindsTighterThanSeq(t *testing.T) {
	// The worked broadcast example from SPEC_FULL.md §6, minus the leading
	// descriptor: downloader -> 5*parser || notifier -> router(success, failure)
	// must group as:
	//   downloader -> (5*parser || notifier) -> router(success, failure)
	n, err := Parse("downloader -> 5 * parser || notifier -> router(success, failure)")
	require.NoError(t, err)

	outer, ok := n.(*ast.Seq)
	require.True(t, ok, "expected outer *ast.Seq, got %T", n)

	call, ok := outer.Right.(*ast.Call)
	require.True(t, ok, "expected router call on the right, got %T", outer.Right)
	assert.Equal(t, "router", call.Task.(*ast.TaskRef).Name)
	require.Len(t, call.Group, 2)
	assert.Equal(t, "success", call.Group[0].(*ast.TaskRef).Name)
	assert.Equal(t, "failure", call.Group[1].(*ast.TaskRef).Name)

	middle, ok := outer.Left.(*ast.Seq)
	require.True(t, ok, "expected middle *ast.Seq, got %T", outer.Left)
	assert.Equal(t, "downloader", middle.Left.(*ast.TaskRef).Name)

	par, ok := middle.Right.(*ast.Parallel)
	require.True(t, ok, "expected *ast.Parallel, got %T", middle.Right)
	retry, ok := par.Left.(*ast.RetryInverse)
	require.True(t, ok, "expected *ast.RetryInverse, got %T", par.Left)
	assert.Equal(t, 5, retry.N)
	assert.Equal(t, "parser", retry.Task.(*ast.TaskRef).Name)
	assert.Equal(t, "notifier", par.Right.(*ast.TaskRef).Name)
}

func TestParse_DescriptorBroadcast(t *testing.T) {
	// The POINTER/PPOINTER right after NUMBER only disambiguates descriptor
	// from factor — it names no edge of its own. With nothing following,
	// "3 |-> downloader" is just a bare descriptor wrapping one task.
	n, err := Parse("3 |-> downloader")
	require.NoError(t, err)
	desc, ok := n.(*ast.Descriptor)
	require.True(t, ok, "expected *ast.Descriptor, got %T", n)
	assert.Equal(t, 3, desc.N)
	assert.Equal(t, "downloader", desc.Child.(*ast.TaskRef).Name)
}

func TestParse_FullBroadcastExample(t *testing.T) {
	n, err := Parse("3 |-> downloader -> 5 * parser || notifier -> router(success, failure)")
	require.NoError(t, err)

	top, ok := n.(*ast.Seq)
	require.True(t, ok, "expected top-level *ast.Seq, got %T", n)

	call, ok := top.Right.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "router", call.Task.(*ast.TaskRef).Name)

	mid, ok := top.Left.(*ast.Seq)
	require.True(t, ok, "expected *ast.Seq, got %T", top.Left)

	desc, ok := mid.Left.(*ast.Descriptor)
	require.True(t, ok, "expected *ast.Descriptor, got %T", mid.Left)
	assert.Equal(t, 3, desc.N)
	assert.Equal(t, "downloader", desc.Child.(*ast.TaskRef).Name)

	par, ok := mid.Right.(*ast.Parallel)
	require.True(t, ok)
	assert.Equal(t, "notifier", par.Right.(*ast.TaskRef).Name)
}

func TestParse_RetryBothOrders(t *testing.T) {
	n1, err := Parse("parser * 5")
	require.NoError(t, err)
	r1, ok := n1.(*ast.Retry)
	require.True(t, ok, "expected *ast.Retry, got %T", n1)
	assert.Equal(t, 5, r1.N)
	assert.Equal(t, "parser", r1.Task.(*ast.TaskRef).Name)

	n2, err := Parse("5 * parser")
	require.NoError(t, err)
	r2, ok := n2.(*ast.RetryInverse)
	require.True(t, ok, "expected *ast.RetryInverse, got %T", n2)
	assert.Equal(t, 5, r2.N)
	assert.Equal(t, "parser", r2.Task.(*ast.TaskRef).Name)
}

func TestParse_ConditionalCall(t *testing.T) {
	n, err := Parse("router(success, failure)")
	require.NoError(t, err)
	call, ok := n.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "router", call.Task.(*ast.TaskRef).Name)
	require.Len(t, call.Group, 2)
}

func TestParse_ChainedConditionalCall(t *testing.T) {
	n, err := Parse("router(a, b)(c, d)")
	require.NoError(t, err)
	outer, ok := n.(*ast.Call)
	require.True(t, ok)
	require.Len(t, outer.Group, 2)
	assert.Equal(t, "c", outer.Group[0].(*ast.TaskRef).Name)
	inner, ok := outer.Task.(*ast.Call)
	require.True(t, ok, "expected nested *ast.Call, got %T", outer.Task)
	assert.Equal(t, "router", inner.Task.(*ast.TaskRef).Name)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
	}{
		{"empty input", ""},
		{"bare number", "3 || a"},
		{"dangling pointer", "a ->"},
		{"single-member call", "router(a)"},
		{"trailing garbage", "a -> b c"},
		{"unterminated call", "router(a, b"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src)
			assert.Error(t, err)
		})
	}
}
