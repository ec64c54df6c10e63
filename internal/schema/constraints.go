package schema

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/conferr"
	"github.com/vk/pybuildgo/internal/confpath"
	"github.com/vk/pybuildgo/internal/conftree"
)

// Constraint is a cross-key invariant checked after all layers are
// merged. Check receives the fully-resolved tree, the tree as it was
// before defaults were applied (so it can distinguish explicitly-set
// values from defaulted ones), and a lookup naming the layer that wrote
// a key; it returns nil or a ConstraintError.
type Constraint struct {
	Name  string
	Check func(resolved, explicit cty.Value, sourceOf func(confpath.Path) string) error
}

// Constraints returns the cross-key invariants of the option tree.
func Constraints() []Constraint {
	return []Constraint{
		{
			Name:  "generated module excludes explicit name/directory",
			Check: checkGeneratedModule,
		},
		{
			Name:  "namespace packages cannot use editable mode wrapper",
			Check: checkNamespaceWrapper,
		},
		{
			Name:  "generated modules cannot use editable mode wrapper",
			Check: checkGeneratedWrapper,
		},
	}
}

func checkGeneratedModule(_, explicit cty.Value, sourceOf func(confpath.Path) string) error {
	modulePath := ToolPath().Join("module")
	if !conftree.Has(explicit, modulePath.Join("generated")) {
		return nil
	}
	for _, key := range []string{"name", "directory"} {
		if conftree.Has(explicit, modulePath.Join(key)) {
			return conferr.New(conferr.ConstraintError, modulePath.Join(key), sourceOf(modulePath.Join(key)),
				"%s may not be set explicitly when %s is set",
				modulePath.Join(key), modulePath.Join("generated"))
		}
	}
	return nil
}

func checkNamespaceWrapper(resolved, _ cty.Value, sourceOf func(confpath.Path) string) error {
	ns, ok := conftree.Get(resolved, ToolPath().Join("module", "namespace"))
	if !ok || !ns.RawEquals(cty.True) {
		return nil
	}
	return rejectWrapperMode(resolved, "namespace packages", sourceOf)
}

func checkGeneratedWrapper(resolved, _ cty.Value, sourceOf func(confpath.Path) string) error {
	if !conftree.Has(resolved, ToolPath().Join("module", "generated")) {
		return nil
	}
	return rejectWrapperMode(resolved, "generated modules", sourceOf)
}

// rejectWrapperMode scans the generic, OS-specific and cross editable
// sections for mode = "wrapper".
func rejectWrapperMode(resolved cty.Value, subject string, sourceOf func(confpath.Path) string) error {
	paths := []string{""}
	paths = append(paths, OSNames...)
	paths = append(paths, "cross")
	for _, section := range paths {
		p := ToolPath()
		if section != "" {
			p = p.Join(section)
		}
		p = p.Join("editable", "mode")
		mode, ok := conftree.Get(resolved, p)
		if ok && mode.Type().Equals(cty.String) && mode.AsString() == "wrapper" {
			return conferr.New(conferr.ConstraintError, p, sourceOf(p),
				"%s cannot use editable mode \"wrapper\" (set via %s)",
				subject, ToolPath().Join("module"))
		}
	}
	return nil
}
