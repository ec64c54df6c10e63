package app

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/cmakecmd"
	"github.com/vk/pybuildgo/internal/conftree"
	"github.com/vk/pybuildgo/internal/schema"
)

// WriteResolved prints the resolved tool table as TOML, which is how
// users inspect what their layers amount to.
func (a *App) WriteResolved(w io.Writer, res *Resolution) error {
	tool, ok := conftree.Get(res.Raw.Resolved, schema.ToolPath())
	if !ok {
		tool = conftree.Empty()
	}
	enc := toml.NewEncoder(w)
	return enc.Encode(toGo(tool))
}

// WriteCMakePlan prints the cmake invocations the resolved configuration
// produces, one per line, in execution order. Pure Python builds (no
// cmake section) print nothing.
func (a *App) WriteCMakePlan(w io.Writer, res *Resolution) error {
	cm := res.Build.CMake
	if cm == nil {
		return nil
	}
	sourceDir := filepath.Join(a.config.ProjectDir, cm.SourcePath)
	configs := cm.Config
	if len(configs) == 0 {
		configs = []string{cm.BuildType}
	}
	for _, config := range configs {
		p := cmakecmd.New(cm, res.Build.Cross, sourceDir, cm.BuildDir(config))
		if _, err := fmt.Fprintln(w, "cmake "+strings.Join(p.ConfigureArgs(), " ")); err != nil {
			return err
		}
		fmt.Fprintln(w, "cmake "+strings.Join(p.BuildArgs(config), " "))
		components := cm.InstallComponents
		if len(components) == 0 {
			components = []string{""}
		}
		for _, component := range components {
			fmt.Fprintln(w, "cmake "+strings.Join(p.InstallArgs(config, component, ""), " "))
		}
	}
	return nil
}

// toGo converts a configuration tree into the plain Go values the TOML
// encoder understands.
func toGo(v cty.Value) any {
	if v == cty.NilVal {
		return nil
	}
	t := v.Type()
	switch {
	case t.Equals(cty.String):
		return v.AsString()
	case t.Equals(cty.Bool):
		return v.True()
	case t.Equals(cty.Number):
		bf := v.AsBigFloat()
		if bf.IsInt() {
			n, _ := bf.Int64()
			return n
		}
		f, _ := bf.Float64()
		return f
	case t.IsTupleType() || t.IsListType():
		out := []any{}
		if v.LengthInt() > 0 {
			for _, el := range v.AsValueSlice() {
				out = append(out, toGo(el))
			}
		}
		return out
	case t.IsObjectType():
		out := map[string]any{}
		for _, k := range conftree.Keys(v) {
			out[k] = toGo(v.GetAttr(k))
		}
		return out
	default:
		return nil
	}
}
