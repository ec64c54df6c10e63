// Package validate checks a resolved configuration tree against the
// schema: value kinds, enum membership, unknown keys (with spelling
// suggestions), required options and cross-key constraints. Validation
// also performs the one sanctioned coercion, turning a plain string into
// a singleton list where the schema declares it.
package validate

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/conferr"
	"github.com/vk/pybuildgo/internal/confpath"
	"github.com/vk/pybuildgo/internal/conftree"
	"github.com/vk/pybuildgo/internal/schema"
)

// maxSuggestDistance bounds how far a misspelling may be from a known
// key before the suggestion is dropped as noise.
const maxSuggestDistance = 3

// Validate checks resolved against the schema rooted at root. explicit
// is the tree before defaults were applied; constraint checks use it to
// tell explicitly-set values from defaulted ones. sources maps key paths
// to the layer that wrote them, so every reported error names the file
// or flag the offending value came from; nil is allowed. The returned
// tree is resolved with string-to-singleton coercions applied.
func Validate(root *schema.Option, resolved, explicit cty.Value, crossCompiling bool, sources map[string]string) (cty.Value, error) {
	v := &validator{root: root, crossCompiling: crossCompiling, sources: sources}

	checked, err := v.checkValue(root, confpath.Path{}, resolved)
	if err != nil {
		return cty.NilVal, err
	}
	if err := v.checkRequired(root, confpath.Path{}, checked); err != nil {
		return cty.NilVal, err
	}
	for _, c := range schema.Constraints() {
		if err := c.Check(checked, explicit, v.sourceOf); err != nil {
			return cty.NilVal, err
		}
	}
	return checked, nil
}

type validator struct {
	root           *schema.Option
	crossCompiling bool
	sources        map[string]string
}

// sourceOf returns the layer that wrote path, falling back to the
// nearest recorded ancestor (a section assigned as a whole covers its
// leaves), or "" when the value was never set by a layer.
func (v *validator) sourceOf(path confpath.Path) string {
	for {
		if s, ok := v.sources[path.String()]; ok {
			return s
		}
		if path.IsEmpty() {
			return ""
		}
		path, _ = path.SplitBack()
	}
}

func (v *validator) checkValue(opt *schema.Option, path confpath.Path, val cty.Value) (cty.Value, error) {
	switch opt.Kind {
	case schema.Any:
		return val, nil

	case schema.Section:
		return v.checkSection(opt, path, val)

	case schema.Dict:
		return v.checkDict(opt, path, val)

	case schema.String, schema.Path, schema.FilePath:
		if !val.Type().Equals(cty.String) {
			return cty.NilVal, v.typeError(opt, path, val)
		}
		return val, nil

	case schema.Bool:
		if !val.Type().Equals(cty.Bool) {
			return cty.NilVal, v.typeError(opt, path, val)
		}
		return val, nil

	case schema.Int:
		if !val.Type().Equals(cty.Number) {
			return cty.NilVal, v.typeError(opt, path, val)
		}
		if bf := val.AsBigFloat(); !bf.IsInt() {
			return cty.NilVal, conferr.New(conferr.TypeError, path, v.sourceOf(path),
				"expected an integer, got %s", bf.String())
		}
		return val, nil

	case schema.Enum:
		if !val.Type().Equals(cty.String) {
			return cty.NilVal, v.typeError(opt, path, val)
		}
		s := val.AsString()
		for _, allowed := range opt.EnumValues {
			if s == allowed {
				return val, nil
			}
		}
		return cty.NilVal, conferr.New(conferr.InvalidValue, path, v.sourceOf(path),
			"invalid value %q (expected one of %s)", s, strings.Join(opt.EnumValues, ", "))

	case schema.StringList, schema.DirPatterns:
		return v.checkList(opt, path, val)

	default:
		return cty.NilVal, v.typeError(opt, path, val)
	}
}

func (v *validator) checkSection(opt *schema.Option, path confpath.Path, val cty.Value) (cty.Value, error) {
	if !conftree.IsObject(val) {
		return cty.NilVal, v.typeError(opt, path, val)
	}
	shape := opt.Shape(v.root)
	attrs := conftree.Attrs(val)
	for _, key := range conftree.Keys(val) {
		child, ok := shape.Sub[key]
		if !ok {
			if shape.AllowUnknown || opt.AllowUnknown {
				continue
			}
			return cty.NilVal, v.unknownKeyError(shape, path, key)
		}
		checked, err := v.checkValue(child, path.Join(key), attrs[key])
		if err != nil {
			return cty.NilVal, err
		}
		attrs[key] = checked
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(attrs), nil
}

func (v *validator) checkDict(opt *schema.Option, path confpath.Path, val cty.Value) (cty.Value, error) {
	if !conftree.IsObject(val) {
		return cty.NilVal, v.typeError(opt, path, val)
	}
	for _, key := range conftree.Keys(val) {
		entry := val.GetAttr(key)
		if !entry.Type().Equals(cty.String) {
			return cty.NilVal, conferr.New(conferr.TypeError, path.Join(key), v.sourceOf(path.Join(key)),
				"expected a string value, got %s", describeValue(entry))
		}
	}
	return val, nil
}

func (v *validator) checkList(opt *schema.Option, path confpath.Path, val cty.Value) (cty.Value, error) {
	if val.Type().Equals(cty.String) && opt.StrToSingleton {
		return cty.TupleVal([]cty.Value{val}), nil
	}
	t := val.Type()
	if !t.IsTupleType() && !t.IsListType() {
		return cty.NilVal, v.typeError(opt, path, val)
	}
	if val.LengthInt() == 0 {
		return val, nil
	}
	for i, el := range val.AsValueSlice() {
		if !el.Type().Equals(cty.String) {
			return cty.NilVal, conferr.New(conferr.TypeError, path, v.sourceOf(path),
				"expected a string at index %d, got %s", i, describeValue(el))
		}
	}
	return val, nil
}

// checkRequired walks the schema for options marked Required that no
// layer or default filled in. Requirements inside the cross section only
// apply when cross-compiling.
func (v *validator) checkRequired(opt *schema.Option, path confpath.Path, tree cty.Value) error {
	if !v.crossCompiling && path.HasPrefix(schema.CrossPath()) {
		return nil
	}
	if _, required := opt.Default.(schema.Required); required {
		if !conftree.Has(tree, path) {
			return conferr.New(conferr.MissingRequired, path, "",
				"required option is not set")
		}
	}
	for _, name := range sortedNames(opt.Sub) {
		child := opt.Sub[name]
		if child.InheritFrom != nil {
			continue
		}
		if err := v.checkRequired(child, path.Join(name), tree); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) unknownKeyError(shape *schema.Option, path confpath.Path, key string) error {
	src := v.sourceOf(path.Join(key))
	if hint := closestKey(key, shape.Sub); hint != "" {
		return conferr.New(conferr.InvalidValue, path.Join(key), src,
			"unknown option (did you mean %q?)", hint)
	}
	return conferr.New(conferr.InvalidValue, path.Join(key), src,
		"unknown option")
}

// closestKey finds the known sibling closest to key by edit distance, or
// "" when everything is too far off to be a plausible misspelling.
func closestKey(key string, known map[string]*schema.Option) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, name := range sortedNames(known) {
		if d := levenshtein.Distance(key, name, nil); d < bestDist {
			best, bestDist = name, d
		}
	}
	return best
}

func (v *validator) typeError(opt *schema.Option, path confpath.Path, val cty.Value) error {
	return conferr.New(conferr.TypeError, path, v.sourceOf(path),
		"expected %s, got %s", opt.Kind, describeValue(val))
}

func describeValue(val cty.Value) string {
	if val == cty.NilVal {
		return "nothing"
	}
	t := val.Type()
	switch {
	case t.Equals(cty.String):
		return "a string"
	case t.Equals(cty.Bool):
		return "a bool"
	case t.Equals(cty.Number):
		return "a number"
	case t.IsTupleType() || t.IsListType():
		return "a list"
	case t.IsObjectType():
		return "a table"
	default:
		return t.FriendlyName()
	}
}

func sortedNames(m map[string]*schema.Option) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
