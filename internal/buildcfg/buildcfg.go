// Package buildcfg turns a resolved and validated configuration tree
// into plain Go structs for the build steps to consume. Extraction never
// fails on shape: the validator has already guaranteed every kind, so
// the accessors here just convert.
package buildcfg

import (
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/confpath"
	"github.com/vk/pybuildgo/internal/conftree"
	"github.com/vk/pybuildgo/internal/schema"
)

// Config is the typed view of the resolved tool table.
type Config struct {
	ProjectName string
	Module      Module
	Editable    Editable
	Sdist       Sdist
	Wheel       Wheel
	// CMake is nil for pure Python builds (no [tool.pybuild.cmake]).
	CMake *CMake
	// Stubgen is nil unless stub generation was configured.
	Stubgen *Stubgen
	// Cross is nil unless cross-compiling.
	Cross *Cross
}

// Module describes where the Python module lives.
type Module struct {
	Name      string
	Directory string
	Namespace bool
	// Generated is "", "module" or "package".
	Generated string
}

// Editable describes how editable installs are performed.
type Editable struct {
	Mode      string
	BuildHook bool
}

// Sdist lists the source distribution contents.
type Sdist struct {
	Include []string
	Exclude []string
}

// CMake describes the native build.
type CMake struct {
	MinimumVersion    string
	BuildType         string
	Config            []string
	Preset            string
	BuildPresets      []string
	Generator         string
	SourcePath        string
	BuildPath         string
	Options           map[string]string
	Args              []string
	FindPython        bool
	FindPython3       bool
	BuildArgs         []string
	BuildToolArgs     []string
	InstallConfig     []string
	InstallArgs       []string
	InstallComponents []string
	Env               map[string]string
}

// BuildDir returns the build directory for one configuration, expanding
// the {build_config} placeholder in the configured build path.
func (c *CMake) BuildDir(config string) string {
	return strings.ReplaceAll(c.BuildPath, "{build_config}", config)
}

// Wheel describes wheel tagging.
type Wheel struct {
	PurePython                bool
	PythonTag                 []string
	PythonABI                 string
	ABI3MinimumCPythonVersion int64
	ABITag                    []string
	PlatformTag               []string
	BuildTag                  string
}

// Stubgen describes typed stub generation.
type Stubgen struct {
	Packages []string
	Modules  []string
	Files    []string
	Args     []string
}

// Cross describes the cross-compilation target.
type Cross struct {
	OS                string
	Implementation    string
	Version           string
	ABI               string
	Arch              string
	Prefix            string
	Library           string
	IncludeDir        string
	ToolchainFile     string
	GeneratorPlatform string
}

// FromTree extracts the typed configuration from a validated tree.
func FromTree(tree cty.Value, crossCompiling bool) *Config {
	tool := schema.ToolPath()
	cfg := &Config{
		ProjectName: getString(tree, confpath.New("project", "name")),
		Module: Module{
			Name:      getString(tree, tool.Join("module", "name")),
			Directory: getString(tree, tool.Join("module", "directory")),
			Namespace: getBool(tree, tool.Join("module", "namespace")),
			Generated: getString(tree, tool.Join("module", "generated")),
		},
		Editable: Editable{
			Mode:      getString(tree, tool.Join("editable", "mode")),
			BuildHook: getBool(tree, tool.Join("editable", "build_hook")),
		},
		Sdist: Sdist{
			Include: getStrings(tree, tool.Join("sdist", "include")),
			Exclude: getStrings(tree, tool.Join("sdist", "exclude")),
		},
		Wheel: Wheel{
			PurePython:                getBool(tree, tool.Join("wheel", "pure_python")),
			PythonTag:                 getStrings(tree, tool.Join("wheel", "python_tag")),
			PythonABI:                 getString(tree, tool.Join("wheel", "python_abi")),
			ABI3MinimumCPythonVersion: getInt(tree, tool.Join("wheel", "abi3_minimum_cpython_version")),
			ABITag:                    getStrings(tree, tool.Join("wheel", "abi_tag")),
			PlatformTag:               getStrings(tree, tool.Join("wheel", "platform_tag")),
			BuildTag:                  getString(tree, tool.Join("wheel", "build_tag")),
		},
	}

	if conftree.Has(tree, tool.Join("cmake")) {
		cm := tool.Join("cmake")
		cfg.CMake = &CMake{
			MinimumVersion:    getString(tree, cm.Join("minimum_version")),
			BuildType:         getString(tree, cm.Join("build_type")),
			Config:            getStrings(tree, cm.Join("config")),
			Preset:            getString(tree, cm.Join("preset")),
			BuildPresets:      getStrings(tree, cm.Join("build_presets")),
			Generator:         getString(tree, cm.Join("generator")),
			SourcePath:        getString(tree, cm.Join("source_path")),
			BuildPath:         getString(tree, cm.Join("build_path")),
			Options:           getDict(tree, cm.Join("options")),
			Args:              getStrings(tree, cm.Join("args")),
			FindPython:        getBool(tree, cm.Join("find_python")),
			FindPython3:       getBool(tree, cm.Join("find_python3")),
			BuildArgs:         getStrings(tree, cm.Join("build_args")),
			BuildToolArgs:     getStrings(tree, cm.Join("build_tool_args")),
			InstallConfig:     getStrings(tree, cm.Join("install_config")),
			InstallArgs:       getStrings(tree, cm.Join("install_args")),
			InstallComponents: getStrings(tree, cm.Join("install_components")),
			Env:               getDict(tree, cm.Join("env")),
		}
	}

	if conftree.Has(tree, tool.Join("stubgen")) {
		sg := tool.Join("stubgen")
		cfg.Stubgen = &Stubgen{
			Packages: getStrings(tree, sg.Join("packages")),
			Modules:  getStrings(tree, sg.Join("modules")),
			Files:    getStrings(tree, sg.Join("files")),
			Args:     getStrings(tree, sg.Join("args")),
		}
	}

	if crossCompiling {
		cr := schema.CrossPath()
		cfg.Cross = &Cross{
			OS:                getString(tree, cr.Join("os")),
			Implementation:    getString(tree, cr.Join("implementation")),
			Version:           getString(tree, cr.Join("version")),
			ABI:               getString(tree, cr.Join("abi")),
			Arch:              getString(tree, cr.Join("arch")),
			Prefix:            getString(tree, cr.Join("prefix")),
			Library:           getString(tree, cr.Join("library")),
			IncludeDir:        getString(tree, cr.Join("include_dir")),
			ToolchainFile:     getString(tree, cr.Join("toolchain_file")),
			GeneratorPlatform: getString(tree, cr.Join("generator_platform")),
		}
	}

	return cfg
}

func getString(tree cty.Value, path confpath.Path) string {
	v, ok := conftree.Get(tree, path)
	if !ok || !v.Type().Equals(cty.String) {
		return ""
	}
	return v.AsString()
}

func getBool(tree cty.Value, path confpath.Path) bool {
	v, ok := conftree.Get(tree, path)
	return ok && v.RawEquals(cty.True)
}

func getInt(tree cty.Value, path confpath.Path) int64 {
	v, ok := conftree.Get(tree, path)
	if !ok || !v.Type().Equals(cty.Number) {
		return 0
	}
	n, _ := v.AsBigFloat().Int64()
	return n
}

func getStrings(tree cty.Value, path confpath.Path) []string {
	v, ok := conftree.Get(tree, path)
	if !ok {
		return nil
	}
	t := v.Type()
	if t.Equals(cty.String) {
		return []string{v.AsString()}
	}
	if !t.IsTupleType() && !t.IsListType() {
		return nil
	}
	if v.LengthInt() == 0 {
		return nil
	}
	out := make([]string, 0, v.LengthInt())
	for _, el := range v.AsValueSlice() {
		if el.Type().Equals(cty.String) {
			out = append(out, el.AsString())
		}
	}
	return out
}

func getDict(tree cty.Value, path confpath.Path) map[string]string {
	v, ok := conftree.Get(tree, path)
	if !ok || !conftree.IsObject(v) {
		return nil
	}
	out := map[string]string{}
	for _, k := range conftree.Keys(v) {
		if e := v.GetAttr(k); e.Type().Equals(cty.String) {
			out[k] = e.AsString()
		}
	}
	return out
}
