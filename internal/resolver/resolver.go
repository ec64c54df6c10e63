// Package resolver assembles the configuration layers of a build and
// merges them into one resolved tree. Layers apply in a fixed order:
// schema defaults, the pyproject document, OS-specific sections,
// cross-compilation sections, project-adjacent override files, override
// files and expressions from the command line, and finally override
// files named by environment variables. Later layers win.
package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/conferr"
	"github.com/vk/pybuildgo/internal/confpath"
	"github.com/vk/pybuildgo/internal/conftree"
	"github.com/vk/pybuildgo/internal/ctxlog"
	"github.com/vk/pybuildgo/internal/document"
	"github.com/vk/pybuildgo/internal/merge"
	"github.com/vk/pybuildgo/internal/override"
	"github.com/vk/pybuildgo/internal/platform"
	"github.com/vk/pybuildgo/internal/schema"
)

// Project-adjacent override files, picked up automatically when present
// next to pyproject.toml.
const (
	LocalFileName = "pybuild.local.toml"
	CrossFileName = "pybuild.cross.toml"
)

// Environment variables holding extra override files, separated by the
// platform path list separator. They apply after all command-line
// overrides.
const (
	EnvLocalFiles = "PYBUILD_LOCAL"
	EnvCrossFiles = "PYBUILD_CROSS"
)

// Inputs collects everything a resolution run depends on.
type Inputs struct {
	// Pyproject is the decoded pyproject.toml document.
	Pyproject cty.Value
	// ProjectDir is the directory containing pyproject.toml; it is
	// searched for project-adjacent override files.
	ProjectDir string
	// LocalFiles and CrossFiles are override files given on the command
	// line, in order. Local files target the tool table, cross files the
	// cross section.
	LocalFiles []string
	CrossFiles []string
	// LocalExprs and CrossExprs are override expressions given on the
	// command line, in order. Paths are relative to the tool table and
	// the cross section respectively.
	LocalExprs []string
	CrossExprs []string
	// EnvLocal and EnvCross are the raw values of the environment
	// variables naming extra override files.
	EnvLocal string
	EnvCross string
	// Platform describes the machine running the build. Its
	// CrossCompiling flag forces cross-compilation tiers even when no
	// layer configures a cross section.
	Platform platform.Platform
}

// Result is the outcome of a resolution run.
type Result struct {
	// Resolved is the fully merged and defaulted configuration tree.
	Resolved cty.Value
	// Explicit is the tree before defaults were applied: a key present
	// here was set by some layer rather than defaulted.
	Explicit cty.Value
	// Sources maps each set key (canonical path string) to the identity
	// of the layer that last wrote it, e.g. "pyproject.toml" or
	// "<cli:2>". Defaulted keys have no entry.
	Sources map[string]string
	// CrossCompiling reports whether a cross-compilation section was
	// configured by any layer.
	CrossCompiling bool
}

// Resolve merges all configuration layers for the given inputs. The
// returned tree is merged and defaulted but not yet validated; callers
// pass the Result to the validator next.
func Resolve(ctx context.Context, in Inputs) (*Result, error) {
	log := ctxlog.FromContext(ctx)
	root := schema.Options()
	sep := in.Platform.PathListSeparator

	ops, err := assembleLayers(ctx, root, in)
	if err != nil {
		return nil, err
	}

	tree := conftree.Empty()
	sources := map[string]string{}
	for _, op := range ops {
		tree, err = applyOperation(root, tree, op, sep)
		if err != nil {
			return nil, err
		}
		recordSource(sources, op)
	}

	crossCompiling := in.Platform.CrossCompiling || conftree.Has(tree, schema.CrossPath())

	tree, err = applyInheritance(root, tree, sources, in.Platform.OS, crossCompiling, sep)
	if err != nil {
		return nil, err
	}

	explicit := tree

	tree, err = applyDefaults(root, tree)
	if err != nil {
		return nil, err
	}

	log.DebugContext(ctx, "configuration resolved",
		"operations", len(ops),
		"cross_compiling", crossCompiling,
		"os", in.Platform.OS)

	return &Result{
		Resolved:       tree,
		Explicit:       explicit,
		Sources:        sources,
		CrossCompiling: crossCompiling,
	}, nil
}

// recordSource notes which layer wrote the operation's target. Section
// assigns record every leaf they carry, so a later error deep inside the
// assigned table still names the layer.
func recordSource(sources map[string]string, op override.Operation) {
	if op.Op == override.Clear {
		delete(sources, op.Path.String())
		return
	}
	sources[op.Path.String()] = op.Source
	if conftree.IsObject(op.Value) {
		conftree.WalkLeaves(op.Value, op.Path, func(p confpath.Path, _ cty.Value) {
			sources[p.String()] = op.Source
		})
	}
}

// sourceFor returns the recorded source of path, falling back to the
// nearest recorded ancestor, or "" when no layer wrote it.
func sourceFor(sources map[string]string, path confpath.Path) string {
	for {
		if s, ok := sources[path.String()]; ok {
			return s
		}
		if path.IsEmpty() {
			return ""
		}
		path, _ = path.SplitBack()
	}
}

// assembleLayers builds the ordered operation stream for all layers
// above the defaults.
func assembleLayers(ctx context.Context, root *schema.Option, in Inputs) ([]override.Operation, error) {
	log := ctxlog.FromContext(ctx)
	var ops []override.Operation

	if in.Pyproject != cty.NilVal {
		docOps, err := document.Flatten(root, confpath.Path{}, in.Pyproject, "pyproject.toml")
		if err != nil {
			return nil, err
		}
		ops = append(ops, docOps...)
	}

	// Project-adjacent override files.
	if in.ProjectDir != "" {
		for _, f := range []struct {
			name string
			base confpath.Path
		}{
			{LocalFileName, schema.ToolPath()},
			{CrossFileName, schema.CrossPath()},
		} {
			full := filepath.Join(in.ProjectDir, f.name)
			if _, err := os.Stat(full); err != nil {
				continue
			}
			log.DebugContext(ctx, "loading project override file", "file", full)
			fileOps, err := document.LoadOverrideFile(full, "the project directory", root, f.base)
			if err != nil {
				return nil, err
			}
			ops = append(ops, fileOps...)
		}
	}

	// Override files from the command line, then files named by the
	// matching environment variable (same tier, after the flags).
	localFiles := append(append([]string{}, in.LocalFiles...),
		document.SplitFileList(in.EnvLocal, in.Platform.PathListSeparator)...)
	for i, f := range localFiles {
		origin := "--local"
		if i >= len(in.LocalFiles) {
			origin = EnvLocalFiles
		}
		fileOps, err := document.LoadOverrideFile(f, origin, root, schema.ToolPath())
		if err != nil {
			return nil, err
		}
		ops = append(ops, fileOps...)
	}
	crossFiles := append(append([]string{}, in.CrossFiles...),
		document.SplitFileList(in.EnvCross, in.Platform.PathListSeparator)...)
	for i, f := range crossFiles {
		origin := "--cross"
		if i >= len(in.CrossFiles) {
			origin = EnvCrossFiles
		}
		fileOps, err := document.LoadOverrideFile(f, origin, root, schema.CrossPath())
		if err != nil {
			return nil, err
		}
		ops = append(ops, fileOps...)
	}

	// Override expressions apply last, local-style before cross-style.
	exprOps, err := parseExprs(in.LocalExprs, "cli", schema.ToolPath())
	if err != nil {
		return nil, err
	}
	ops = append(ops, exprOps...)
	exprOps, err = parseExprs(in.CrossExprs, "cli-cross", schema.CrossPath())
	if err != nil {
		return nil, err
	}
	ops = append(ops, exprOps...)

	return ops, nil
}

func parseExprs(exprs []string, label string, base confpath.Path) ([]override.Operation, error) {
	var ops []override.Operation
	for i, expr := range exprs {
		op, err := override.Parse(expr, fmt.Sprintf("<%s:%d>", label, i+1))
		if err != nil {
			return nil, err
		}
		op.Path = base.Concat(op.Path)
		ops = append(ops, op)
	}
	return ops, nil
}

// applyOperation merges one operation into the tree, consulting the
// schema for the target's kind. Operations on unknown keys still merge
// (list operators get list semantics), so the validator can report the
// unknown key itself rather than a secondary merge failure.
func applyOperation(root *schema.Option, tree cty.Value, op override.Operation, sep string) (cty.Value, error) {
	opt, known := root.Lookup(root, op.Path)
	if !known {
		switch op.Op {
		case override.Assign, override.Clear:
			opt = &schema.Option{Kind: schema.Any}
		default:
			opt = &schema.Option{Kind: schema.StringList}
		}
	}
	old, _ := conftree.Get(tree, op.Path)
	merged, err := merge.Apply(opt, op.Path, old, op.Op, op.Value, sep, op.Source)
	if err != nil {
		return cty.NilVal, err
	}
	if merged == cty.NilVal {
		return conftree.Delete(tree, op.Path), nil
	}
	return conftree.Set(tree, op.Path, merged), nil
}

// applyInheritance folds OS-specific and cross sections into the generic
// sections they override. Native builds take the build OS's sections;
// cross builds take the target OS's sections (selected by cross.os) and
// then the cross overrides on top.
func applyInheritance(root *schema.Option, tree cty.Value, sources map[string]string, buildOS string, crossCompiling bool, sep string) (cty.Value, error) {
	toolPath := schema.ToolPath()

	osName := buildOS
	if crossCompiling {
		osName = ""
		if v, ok := conftree.Get(tree, schema.CrossPath().Join("os")); ok && v.Type().Equals(cty.String) {
			osName = v.AsString()
		}
	}
	// An unrecognized selector inherits nothing; the validator reports
	// the bad enum value itself.
	if !platform.Valid(osName) {
		osName = ""
	}

	var err error
	if osName != "" {
		for _, section := range schema.InheritingSections {
			tree, err = inheritSection(root, tree, sources,
				toolPath.Join(osName, section), toolPath.Join(section), sep)
			if err != nil {
				return cty.NilVal, err
			}
		}
	}
	if crossCompiling {
		for _, section := range schema.InheritingSections {
			tree, err = inheritSection(root, tree, sources,
				schema.CrossPath().Join(section), toolPath.Join(section), sep)
			if err != nil {
				return cty.NilVal, err
			}
		}
	}
	return tree, nil
}

// inheritSection re-flattens the subtree at from into operations against
// to and merges them, so OS-specific values go through the same
// append-by-default and dict-union machinery as any other layer.
func inheritSection(root *schema.Option, tree cty.Value, sources map[string]string, from, to confpath.Path, sep string) (cty.Value, error) {
	sub, ok := conftree.Get(tree, from)
	if !ok {
		return tree, nil
	}
	ops, err := document.Flatten(root, to, sub, "<"+from.String()+">")
	if err != nil {
		return cty.NilVal, err
	}
	for _, op := range ops {
		// The inherited value keeps the identity of the layer that set
		// it in the OS or cross section.
		fromPath := from.Join(op.Path.Segments()[to.Len():]...)
		if src := sourceFor(sources, fromPath); src != "" {
			op.Source = src
		}
		tree, err = applyOperation(root, tree, op, sep)
		if err != nil {
			return cty.NilVal, err
		}
		recordSource(sources, op)
	}
	return tree, nil
}

// applyDefaults walks the schema and fills in every absent option that
// has a default. Reference defaults resolve against the final value of
// their target, which may itself be a default.
func applyDefaults(root *schema.Option, tree cty.Value) (cty.Value, error) {
	d := &defaulter{root: root, tree: tree, resolving: map[string]bool{}}
	if err := d.fillSection(root, confpath.Path{}, true); err != nil {
		return cty.NilVal, err
	}
	return d.tree, nil
}

type defaulter struct {
	root      *schema.Option
	tree      cty.Value
	resolving map[string]bool
}

func (d *defaulter) fillSection(opt *schema.Option, path confpath.Path, present bool) error {
	if !present {
		switch opt.Default.(type) {
		case schema.DefaultValue:
			// Sections defaulting to an empty table materialize so their
			// children's defaults apply.
		default:
			return nil
		}
	}
	shape := opt.Shape(d.root)
	for _, name := range sortedKeys(shape.Sub) {
		child := shape.Sub[name]
		if child.InheritFrom != nil {
			// Inherited sections were folded into their targets already.
			continue
		}
		childPath := path.Join(name)
		childPresent := conftree.Has(d.tree, childPath)
		if child.Kind == schema.Section {
			if err := d.fillSection(child, childPath, childPresent); err != nil {
				return err
			}
			continue
		}
		if childPresent {
			continue
		}
		val, ok, err := d.defaultFor(child, childPath)
		if err != nil {
			return err
		}
		if ok {
			d.tree = conftree.Set(d.tree, childPath, val)
		}
	}
	return nil
}

// defaultFor computes the default value of a leaf option, following
// reference defaults recursively.
func (d *defaulter) defaultFor(opt *schema.Option, path confpath.Path) (cty.Value, bool, error) {
	switch def := opt.Default.(type) {
	case schema.DefaultValue:
		return def.Value, true, nil
	case schema.DefaultRef:
		key := path.String()
		if d.resolving[key] {
			return cty.NilVal, false, conferr.New(conferr.InvalidValue, path, "",
				"default reference cycle")
		}
		d.resolving[key] = true
		defer delete(d.resolving, key)

		refPath := def.Path
		if def.Relative {
			parent, _ := path.SplitBack()
			refPath = parent.Concat(def.Path)
		}
		if v, ok := conftree.Get(d.tree, refPath); ok {
			return v, true, nil
		}
		refOpt, known := d.root.Lookup(d.root, refPath)
		if !known {
			return cty.NilVal, false, nil
		}
		return d.defaultFor(refOpt, refPath)
	default:
		// NoDefault and Required leave the option unset.
		return cty.NilVal, false, nil
	}
}

func sortedKeys(m map[string]*schema.Option) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
