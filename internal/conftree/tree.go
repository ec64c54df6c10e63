// Package conftree provides path-indexed access to configuration trees.
//
// A tree is a cty.Value whose sections are object values; leaves are
// strings, bools, numbers, tuples or nested objects. All functions are
// non-mutating: Set and Delete return new trees sharing unchanged
// subtrees with the input, so a defaults subtree can safely seed several
// sections without aliasing.
package conftree

import (
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/confpath"
)

// Empty returns an empty tree.
func Empty() cty.Value { return cty.EmptyObjectVal }

// IsObject reports whether v is an object (section or dict) value.
func IsObject(v cty.Value) bool {
	return v != cty.NilVal && v.Type().IsObjectType()
}

// Get returns the value at path, or cty.NilVal and false when any
// segment along the way is absent or not a section.
func Get(root cty.Value, path confpath.Path) (cty.Value, bool) {
	cur := root
	for !path.IsEmpty() {
		var seg string
		seg, path = path.SplitFront()
		if !IsObject(cur) || !cur.Type().HasAttribute(seg) {
			return cty.NilVal, false
		}
		cur = cur.GetAttr(seg)
	}
	if cur == cty.NilVal {
		return cty.NilVal, false
	}
	return cur, true
}

// Has reports whether a value is present at path.
func Has(root cty.Value, path confpath.Path) bool {
	_, ok := Get(root, path)
	return ok
}

// Set returns a new tree with val stored at path. Missing intermediate
// sections are created; an intermediate that is not a section is
// replaced by one.
func Set(root cty.Value, path confpath.Path, val cty.Value) cty.Value {
	if path.IsEmpty() {
		return val
	}
	seg, rest := path.SplitFront()
	attrs := attrMap(root)
	attrs[seg] = Set(attrs[seg], rest, val)
	return objectVal(attrs)
}

// Delete returns a new tree with the value at path removed. Deleting an
// absent path returns the tree unchanged.
func Delete(root cty.Value, path confpath.Path) cty.Value {
	if path.IsEmpty() {
		return cty.NilVal
	}
	seg, rest := path.SplitFront()
	if !IsObject(root) || !root.Type().HasAttribute(seg) {
		return root
	}
	attrs := attrMap(root)
	if rest.IsEmpty() {
		delete(attrs, seg)
	} else {
		sub := Delete(attrs[seg], rest)
		if sub == cty.NilVal {
			delete(attrs, seg)
		} else {
			attrs[seg] = sub
		}
	}
	return objectVal(attrs)
}

// Keys returns the sorted attribute names of an object value, or nil for
// any other value.
func Keys(v cty.Value) []string {
	if !IsObject(v) {
		return nil
	}
	t := v.Type().AttributeTypes()
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Attrs returns the attribute map of an object value. The map is a fresh
// copy; mutating it does not affect v.
func Attrs(v cty.Value) map[string]cty.Value {
	return attrMap(v)
}

// WalkLeaves visits every non-object leaf of the tree in sorted key
// order, calling fn with the leaf's path and value. Empty objects are
// visited as leaves so that explicitly-set empty sections survive
// flattening.
func WalkLeaves(root cty.Value, base confpath.Path, fn func(path confpath.Path, val cty.Value)) {
	if IsObject(root) {
		keys := Keys(root)
		if len(keys) == 0 && !base.IsEmpty() {
			fn(base, root)
			return
		}
		for _, k := range keys {
			WalkLeaves(root.GetAttr(k), base.Join(k), fn)
		}
		return
	}
	fn(base, root)
}

func attrMap(v cty.Value) map[string]cty.Value {
	attrs := map[string]cty.Value{}
	if !IsObject(v) {
		return attrs
	}
	for k := range v.Type().AttributeTypes() {
		attrs[k] = v.GetAttr(k)
	}
	return attrs
}

func objectVal(attrs map[string]cty.Value) cty.Value {
	if len(attrs) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(attrs)
}
