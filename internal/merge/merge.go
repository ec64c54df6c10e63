// Package merge implements the type-aware combination of configuration
// values: given an existing value, an incoming value and an operator, it
// produces the merged value according to the option's declared kind.
package merge

import (
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/conferr"
	"github.com/vk/pybuildgo/internal/confpath"
	"github.com/vk/pybuildgo/internal/conftree"
	"github.com/vk/pybuildgo/internal/override"
	"github.com/vk/pybuildgo/internal/schema"
)

// Apply merges incoming into old under the given operator. old is
// cty.NilVal when the key has no prior value; the result is cty.NilVal
// when the key becomes unset (Clear). sep is the platform path list
// separator used by the AppendPath/PrependPath operators. path and
// source only feed error messages.
func Apply(opt *schema.Option, path confpath.Path, old cty.Value,
	op override.Operator, incoming cty.Value, sep, source string) (cty.Value, error) {

	if op == override.Clear {
		// Clearing an unset key is a no-op by definition.
		return cty.NilVal, nil
	}

	switch opt.Kind {
	case schema.Any:
		if op != override.Assign {
			return cty.NilVal, opError(opt, path, op, source)
		}
		return incoming, nil

	case schema.Bool, schema.Int:
		if op != override.Assign {
			return cty.NilVal, opError(opt, path, op, source)
		}
		return incoming, nil

	case schema.Enum:
		if op != override.Assign {
			return cty.NilVal, opError(opt, path, op, source)
		}
		return incoming, nil

	case schema.String, schema.Path, schema.FilePath:
		return applyString(opt, path, old, op, incoming, sep, source)

	case schema.StringList, schema.DirPatterns:
		return applyList(opt, path, old, op, incoming, source)

	case schema.Dict:
		return applyDict(opt, path, old, op, incoming, source)

	case schema.Section:
		if op != override.Assign {
			return cty.NilVal, opError(opt, path, op, source)
		}
		// Assigning a table onto a section unions it with what earlier
		// layers put there, so an empty [tool.pybuild.cmake] header marks
		// the section as present without discarding its contents.
		if conftree.IsObject(old) && conftree.IsObject(incoming) {
			return Overlay(old, incoming), nil
		}
		return incoming, nil

	default:
		return cty.NilVal, opError(opt, path, op, source)
	}
}

func applyString(opt *schema.Option, path confpath.Path, old cty.Value,
	op override.Operator, incoming cty.Value, sep, source string) (cty.Value, error) {

	switch op {
	case override.Assign:
		return incoming, nil

	case override.AppendPath, override.PrependPath:
		in, ok := stringOf(incoming)
		if !ok {
			return cty.NilVal, conferr.New(conferr.MergeError, path, source,
				"operator %s needs a string value for a %s option", op, opt.Kind)
		}
		prev, hadPrev := stringOf(old)
		if !hadPrev || prev == "" {
			return cty.StringVal(in), nil
		}
		if in == "" {
			return cty.StringVal(prev), nil
		}
		if op == override.AppendPath {
			return cty.StringVal(prev + sep + in), nil
		}
		return cty.StringVal(in + sep + prev), nil

	case override.Remove:
		// Substring removal; removing from an unset value is a no-op.
		prev, hadPrev := stringOf(old)
		if !hadPrev {
			return old, nil
		}
		for _, el := range elementsOf(incoming) {
			if s, ok := stringOf(el); ok {
				prev = strings.ReplaceAll(prev, s, "")
			}
		}
		return cty.StringVal(prev), nil

	default:
		return cty.NilVal, opError(opt, path, op, source)
	}
}

func applyList(opt *schema.Option, path confpath.Path, old cty.Value,
	op override.Operator, incoming cty.Value, source string) (cty.Value, error) {

	switch op {
	case override.Assign:
		return incoming, nil

	case override.Append, override.AppendPath:
		return listVal(append(elementsOf(old), elementsOf(incoming)...)), nil

	case override.Prepend, override.PrependPath:
		return listVal(append(elementsOf(incoming), elementsOf(old)...)), nil

	case override.Remove:
		if old == cty.NilVal {
			return old, nil
		}
		remove := elementsOf(incoming)
		var kept []cty.Value
		for _, el := range elementsOf(old) {
			if !containsValue(remove, el) {
				kept = append(kept, el)
			}
		}
		return listVal(kept), nil

	default:
		return cty.NilVal, opError(opt, path, op, source)
	}
}

func applyDict(opt *schema.Option, path confpath.Path, old cty.Value,
	op override.Operator, incoming cty.Value, source string) (cty.Value, error) {

	switch op {
	case override.Assign:
		return incoming, nil

	case override.Append:
		if old == cty.NilVal {
			return incoming, nil
		}
		if !conftree.IsObject(old) || !conftree.IsObject(incoming) {
			return cty.NilVal, conferr.New(conferr.MergeError, path, source,
				"operator %s needs table values for a %s option", op, opt.Kind)
		}
		return Overlay(old, incoming), nil

	case override.Remove:
		if old == cty.NilVal || !conftree.IsObject(old) {
			return old, nil
		}
		attrs := conftree.Attrs(old)
		if conftree.IsObject(incoming) {
			for _, k := range conftree.Keys(incoming) {
				delete(attrs, k)
			}
		} else {
			for _, el := range elementsOf(incoming) {
				if s, ok := stringOf(el); ok {
					delete(attrs, s)
				}
			}
		}
		return objectVal(attrs), nil

	default:
		return cty.NilVal, opError(opt, path, op, source)
	}
}

// Overlay deep-merges overlay onto base: object values union key by key
// with overlay winning on conflicts, everything else is replaced by the
// overlay's value. Both inputs are left untouched.
func Overlay(base, overlay cty.Value) cty.Value {
	if !conftree.IsObject(base) || !conftree.IsObject(overlay) {
		if overlay == cty.NilVal {
			return base
		}
		return overlay
	}
	attrs := conftree.Attrs(base)
	for _, k := range conftree.Keys(overlay) {
		if existing, ok := attrs[k]; ok {
			attrs[k] = Overlay(existing, overlay.GetAttr(k))
		} else {
			attrs[k] = overlay.GetAttr(k)
		}
	}
	return objectVal(attrs)
}

func opError(opt *schema.Option, path confpath.Path, op override.Operator, source string) error {
	return conferr.New(conferr.MergeError, path, source,
		"operator %s cannot be applied to an option of kind %s", op, opt.Kind)
}

// elementsOf flattens a value into its list elements; scalars become a
// single-element addition and NilVal contributes nothing.
func elementsOf(v cty.Value) []cty.Value {
	if v == cty.NilVal {
		return nil
	}
	t := v.Type()
	if t.IsTupleType() || t.IsListType() || t.IsSetType() {
		if v.LengthInt() == 0 {
			return nil
		}
		return v.AsValueSlice()
	}
	return []cty.Value{v}
}

func containsValue(haystack []cty.Value, needle cty.Value) bool {
	for _, v := range haystack {
		if v.RawEquals(needle) {
			return true
		}
	}
	return false
}

func stringOf(v cty.Value) (string, bool) {
	if v == cty.NilVal || !v.Type().Equals(cty.String) {
		return "", false
	}
	return v.AsString(), true
}

func listVal(vals []cty.Value) cty.Value {
	if len(vals) == 0 {
		return cty.EmptyTupleVal
	}
	return cty.TupleVal(vals)
}

func objectVal(attrs map[string]cty.Value) cty.Value {
	if len(attrs) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(attrs)
}
