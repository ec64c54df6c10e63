package conftree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/confpath"
	"github.com/vk/pybuildgo/internal/conftree"
)

func TestSetGet(t *testing.T) {
	tree := conftree.Empty()
	tree = conftree.Set(tree, confpath.New("a", "b", "c"), cty.StringVal("v"))

	got, ok := conftree.Get(tree, confpath.New("a", "b", "c"))
	require.True(t, ok)
	assert.Equal(t, cty.StringVal("v"), got)

	// Intermediate sections were created.
	mid, ok := conftree.Get(tree, confpath.New("a", "b"))
	require.True(t, ok)
	assert.True(t, conftree.IsObject(mid))

	_, ok = conftree.Get(tree, confpath.New("a", "x"))
	assert.False(t, ok)

	// Descending through a leaf fails rather than panicking.
	_, ok = conftree.Get(tree, confpath.New("a", "b", "c", "d"))
	assert.False(t, ok)
}

func TestSetDoesNotMutateInput(t *testing.T) {
	base := conftree.Set(conftree.Empty(), confpath.New("a", "b"), cty.StringVal("old"))
	modified := conftree.Set(base, confpath.New("a", "b"), cty.StringVal("new"))

	got, _ := conftree.Get(base, confpath.New("a", "b"))
	assert.Equal(t, cty.StringVal("old"), got)
	got, _ = conftree.Get(modified, confpath.New("a", "b"))
	assert.Equal(t, cty.StringVal("new"), got)
}

func TestDelete(t *testing.T) {
	tree := conftree.Set(conftree.Empty(), confpath.New("a", "b"), cty.StringVal("v"))
	tree = conftree.Set(tree, confpath.New("a", "c"), cty.StringVal("w"))

	tree = conftree.Delete(tree, confpath.New("a", "b"))
	assert.False(t, conftree.Has(tree, confpath.New("a", "b")))
	assert.True(t, conftree.Has(tree, confpath.New("a", "c")))

	// Deleting the last child removes the now-empty parent.
	tree = conftree.Delete(tree, confpath.New("a", "c"))
	assert.False(t, conftree.Has(tree, confpath.New("a")))

	// Deleting an absent path is a no-op.
	same := conftree.Delete(tree, confpath.New("nope"))
	assert.Equal(t, tree, same)
}

func TestWalkLeavesSortedWithEmptySections(t *testing.T) {
	tree := conftree.Empty()
	tree = conftree.Set(tree, confpath.New("b", "y"), cty.StringVal("2"))
	tree = conftree.Set(tree, confpath.New("a"), cty.StringVal("1"))
	tree = conftree.Set(tree, confpath.New("b", "empty"), cty.EmptyObjectVal)

	var paths []string
	conftree.WalkLeaves(tree, confpath.Path{}, func(p confpath.Path, v cty.Value) {
		paths = append(paths, p.String())
	})
	assert.Equal(t, []string{"a", "b.empty", "b.y"}, paths)
}

func TestKeysAndAttrs(t *testing.T) {
	tree := cty.ObjectVal(map[string]cty.Value{
		"z": cty.StringVal("1"),
		"a": cty.StringVal("2"),
	})
	assert.Equal(t, []string{"a", "z"}, conftree.Keys(tree))
	assert.Nil(t, conftree.Keys(cty.StringVal("not a tree")))

	attrs := conftree.Attrs(tree)
	attrs["a"] = cty.StringVal("changed")
	assert.Equal(t, cty.StringVal("2"), tree.GetAttr("a"))
}
