package resolver_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/confpath"
	"github.com/vk/pybuildgo/internal/conftree"
	"github.com/vk/pybuildgo/internal/document"
	"github.com/vk/pybuildgo/internal/platform"
	"github.com/vk/pybuildgo/internal/resolver"
)

func linuxPlatform() platform.Platform {
	return platform.Platform{OS: "linux", PathListSeparator: ":"}
}

func resolve(t *testing.T, pyproject string, mutate func(*resolver.Inputs)) *resolver.Result {
	t.Helper()
	doc, err := document.Decode([]byte(pyproject), "pyproject.toml")
	require.NoError(t, err)
	in := resolver.Inputs{
		Pyproject: doc,
		Platform:  linuxPlatform(),
	}
	if mutate != nil {
		mutate(&in)
	}
	res, err := resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	return res
}

func get(t *testing.T, tree cty.Value, path string) cty.Value {
	t.Helper()
	p, err := confpath.Parse(path)
	require.NoError(t, err)
	v, ok := conftree.Get(tree, p)
	require.True(t, ok, "missing %s", path)
	return v
}

func has(t *testing.T, tree cty.Value, path string) bool {
	t.Helper()
	p, err := confpath.Parse(path)
	require.NoError(t, err)
	return conftree.Has(tree, p)
}

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	full := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	return full
}

const minimalProject = `
[project]
name = "example"
`

func TestDefaultsApplied(t *testing.T) {
	res := resolve(t, minimalProject, nil)

	assert.Equal(t, cty.StringVal("example"), get(t, res.Resolved, "tool.pybuild.module.name"))
	assert.Equal(t, cty.StringVal("."), get(t, res.Resolved, "tool.pybuild.module.directory"))
	assert.Equal(t, cty.False, get(t, res.Resolved, "tool.pybuild.module.namespace"))
	assert.Equal(t, cty.StringVal("symlink"), get(t, res.Resolved, "tool.pybuild.editable.mode"))
	assert.Equal(t, cty.EmptyTupleVal, get(t, res.Resolved, "tool.pybuild.sdist.include"))

	// No [tool.pybuild.cmake] means a pure Python build: the section
	// must not be materialized by defaulting.
	assert.False(t, has(t, res.Resolved, "tool.pybuild.cmake"))

	// Nothing was set explicitly except the project table.
	assert.False(t, has(t, res.Explicit, "tool.pybuild.module.name"))
	assert.False(t, res.CrossCompiling)
}

func TestDocumentOverridesDefaults(t *testing.T) {
	res := resolve(t, minimalProject+`
[tool.pybuild.module]
name = "example_ext"
`, nil)
	assert.Equal(t, cty.StringVal("example_ext"), get(t, res.Resolved, "tool.pybuild.module.name"))
	assert.True(t, has(t, res.Explicit, "tool.pybuild.module.name"))
}

func TestCMakeSectionDefaultsWhenPresent(t *testing.T) {
	res := resolve(t, minimalProject+`
[tool.pybuild.cmake]
build_type = "Release"
`, nil)
	assert.Equal(t, cty.StringVal("3.15"), get(t, res.Resolved, "tool.pybuild.cmake.minimum_version"))
	assert.Equal(t, cty.StringVal(".pybuild-cache/{build_config}"), get(t, res.Resolved, "tool.pybuild.cmake.build_path"))
	assert.Equal(t, cty.True, get(t, res.Resolved, "tool.pybuild.cmake.find_python"))
}

func TestReferenceDefaultChain(t *testing.T) {
	res := resolve(t, minimalProject+`
[tool.pybuild.cmake]
build_type = "Release"
`, nil)
	// config defaults to build_type, install_config to config.
	assert.Equal(t, cty.StringVal("Release"), get(t, res.Resolved, "tool.pybuild.cmake.config"))
	assert.Equal(t, cty.StringVal("Release"), get(t, res.Resolved, "tool.pybuild.cmake.install_config"))
}

func TestReferenceDefaultUnsetTarget(t *testing.T) {
	res := resolve(t, minimalProject+`
[tool.pybuild.cmake]
generator = "Ninja"
`, nil)
	// build_type has no default, so the reference chain stays unset.
	assert.False(t, has(t, res.Resolved, "tool.pybuild.cmake.config"))
	assert.False(t, has(t, res.Resolved, "tool.pybuild.cmake.install_config"))
}

func TestOSSpecificSectionAppliesOnMatchingOS(t *testing.T) {
	doc := minimalProject + `
[tool.pybuild.cmake]
build_type = "Release"
args = ["--fresh"]

[tool.pybuild.linux.cmake]
build_type = "RelWithDebInfo"
args = ["--log-level=DEBUG"]

[tool.pybuild.windows.cmake]
build_type = "Debug"
`
	res := resolve(t, doc, nil)
	assert.Equal(t, cty.StringVal("RelWithDebInfo"), get(t, res.Resolved, "tool.pybuild.cmake.build_type"))
	// args append by default, so the OS layer extends the generic one.
	assert.Equal(t, cty.TupleVal([]cty.Value{
		cty.StringVal("--fresh"), cty.StringVal("--log-level=DEBUG"),
	}), get(t, res.Resolved, "tool.pybuild.cmake.args"))

	winRes := resolve(t, doc, func(in *resolver.Inputs) {
		in.Platform = platform.Platform{OS: "windows", PathListSeparator: ";"}
	})
	assert.Equal(t, cty.StringVal("Debug"), get(t, winRes.Resolved, "tool.pybuild.cmake.build_type"))
	assert.Equal(t, cty.TupleVal([]cty.Value{cty.StringVal("--fresh")}),
		get(t, winRes.Resolved, "tool.pybuild.cmake.args"))
}

func TestCrossInheritsFromTargetOS(t *testing.T) {
	res := resolve(t, minimalProject+`
[tool.pybuild.cmake]
build_type = "Release"

[tool.pybuild.sdist]
include = ["generic/*"]

[tool.pybuild.linux.sdist]
include = ["linux-only/*"]

[tool.pybuild.cross]
os = "linux"
arch = "aarch64"
toolchain_file = "aarch64.cmake"

[tool.pybuild.cross.cmake]
build_type = "Debug"
`, func(in *resolver.Inputs) {
		// Cross builds run on some build machine; its own OS sections
		// must not apply.
		in.Platform = platform.Platform{OS: "windows", PathListSeparator: ";"}
	})

	require.True(t, res.CrossCompiling)
	// Target-OS sdist settings flow in via cross.os.
	assert.Equal(t, cty.TupleVal([]cty.Value{cty.StringVal("linux-only/*")}),
		get(t, res.Resolved, "tool.pybuild.sdist.include"))
	// Cross overrides apply on top of the target-OS layer.
	assert.Equal(t, cty.StringVal("Debug"), get(t, res.Resolved, "tool.pybuild.cmake.build_type"))
	// Cross facts stay available to consumers.
	assert.Equal(t, cty.StringVal("aarch64"), get(t, res.Resolved, "tool.pybuild.cross.arch"))
}

func TestProjectAdjacentLocalFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, resolver.LocalFileName, `
[cmake]
build_type = "Debug"
`)
	res := resolve(t, minimalProject+`
[tool.pybuild.cmake]
build_type = "Release"
`, func(in *resolver.Inputs) {
		in.ProjectDir = dir
	})
	assert.Equal(t, cty.StringVal("Debug"), get(t, res.Resolved, "tool.pybuild.cmake.build_type"))
}

func TestLaterLocalFileWins(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "a.toml", "[cmake]\nbuild_type = \"A\"\n")
	second := writeFile(t, dir, "b.toml", "[cmake]\nbuild_type = \"B\"\n")
	res := resolve(t, minimalProject+"[tool.pybuild.cmake]\n", func(in *resolver.Inputs) {
		in.LocalFiles = []string{first, second}
	})
	assert.Equal(t, cty.StringVal("B"), get(t, res.Resolved, "tool.pybuild.cmake.build_type"))
}

func TestCLIExpressionsAfterFiles(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "local.toml", "[cmake]\nbuild_type = \"FromFile\"\n")
	res := resolve(t, minimalProject+"[tool.pybuild.cmake]\n", func(in *resolver.Inputs) {
		in.LocalFiles = []string{file}
		in.LocalExprs = []string{`cmake.build_type="FromCLI"`}
	})
	assert.Equal(t, cty.StringVal("FromCLI"), get(t, res.Resolved, "tool.pybuild.cmake.build_type"))
}

func TestEnvFilesAfterCLIFiles(t *testing.T) {
	dir := t.TempDir()
	cliFile := writeFile(t, dir, "cli.toml", "[cmake]\nbuild_type = \"FromFlag\"\n")
	envFile := writeFile(t, dir, "env.toml", "[cmake]\nbuild_type = \"FromEnv\"\n")
	res := resolve(t, minimalProject+"[tool.pybuild.cmake]\n", func(in *resolver.Inputs) {
		in.LocalFiles = []string{cliFile}
		in.EnvLocal = envFile
	})
	// Env-named files sit in the same tier as --local files, after them.
	assert.Equal(t, cty.StringVal("FromEnv"), get(t, res.Resolved, "tool.pybuild.cmake.build_type"))
}

func TestExpressionsBeatEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, "env.toml", "[cmake]\nbuild_type = \"FromEnv\"\n")
	res := resolve(t, minimalProject+"[tool.pybuild.cmake]\n", func(in *resolver.Inputs) {
		in.LocalExprs = []string{`cmake.build_type="FromCLI"`}
		in.EnvLocal = envFile
	})
	assert.Equal(t, cty.StringVal("FromCLI"), get(t, res.Resolved, "tool.pybuild.cmake.build_type"))
}

func TestMissingOverrideFileNamesOrigin(t *testing.T) {
	doc, err := document.Decode([]byte(minimalProject), "pyproject.toml")
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), resolver.Inputs{
		Pyproject:  doc,
		LocalFiles: []string{"/nonexistent/overrides.toml"},
		Platform:   linuxPlatform(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--local")
	assert.Contains(t, err.Error(), "/nonexistent/overrides.toml")
}

func TestCrossFlagWithoutCrossSection(t *testing.T) {
	res := resolve(t, minimalProject, func(in *resolver.Inputs) {
		in.Platform = platform.Platform{OS: "linux", CrossCompiling: true, PathListSeparator: ":"}
	})
	assert.True(t, res.CrossCompiling)
}

func TestOverrideExpressionOperators(t *testing.T) {
	res := resolve(t, minimalProject+`
[tool.pybuild.cmake]
build_args = ["--target", "a"]
`, func(in *resolver.Inputs) {
		in.LocalExprs = []string{
			`cmake.build_args+=["--target", "b"]`,
			`cmake.build_args-=["--target"]`,
		}
	})
	// Remove drops every occurrence.
	assert.Equal(t, cty.TupleVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")}),
		get(t, res.Resolved, "tool.pybuild.cmake.build_args"))
}

func TestPathAppendOperator(t *testing.T) {
	res := resolve(t, minimalProject+`
[tool.pybuild.cmake.env]
PATH = "/usr/bin"
`, func(in *resolver.Inputs) {
		in.LocalExprs = []string{`cmake.env.PATH+=(path)/opt/bin`}
	})
	assert.Equal(t, cty.StringVal("/usr/bin:/opt/bin"),
		get(t, res.Resolved, "tool.pybuild.cmake.env.PATH"))
}

func TestClearRestoresDefault(t *testing.T) {
	res := resolve(t, minimalProject+`
[tool.pybuild.module]
directory = "src"
`, func(in *resolver.Inputs) {
		in.LocalExprs = []string{`module.directory=!`}
	})
	assert.Equal(t, cty.StringVal("."), get(t, res.Resolved, "tool.pybuild.module.directory"))
	assert.False(t, has(t, res.Explicit, "tool.pybuild.module.directory"))
}

func TestOverrideFileExpressions(t *testing.T) {
	dir := t.TempDir()
	ovr := writeFile(t, dir, "extra.ovr", `
# raise the verbosity and pin the generator
cmake.generator="Ninja"
cmake.build_args+=["--verbose"]
`)
	res := resolve(t, minimalProject+"[tool.pybuild.cmake]\n", func(in *resolver.Inputs) {
		in.LocalFiles = []string{ovr}
	})
	assert.Equal(t, cty.StringVal("Ninja"), get(t, res.Resolved, "tool.pybuild.cmake.generator"))
	assert.Equal(t, cty.TupleVal([]cty.Value{cty.StringVal("--verbose")}),
		get(t, res.Resolved, "tool.pybuild.cmake.build_args"))
}

func TestCrossFileTargetsCrossSection(t *testing.T) {
	dir := t.TempDir()
	cross := writeFile(t, dir, "cross.toml", `
os = "linux"
arch = "aarch64"
toolchain_file = "aarch64.cmake"
`)
	res := resolve(t, minimalProject, func(in *resolver.Inputs) {
		in.CrossFiles = []string{cross}
	})
	require.True(t, res.CrossCompiling)
	assert.Equal(t, cty.StringVal("aarch64"), get(t, res.Resolved, "tool.pybuild.cross.arch"))
	assert.Equal(t, cty.StringVal("aarch64.cmake"), get(t, res.Resolved, "tool.pybuild.cross.toolchain_file"))
}

func TestSourcesTrackWritingLayer(t *testing.T) {
	dir := t.TempDir()
	local := writeFile(t, dir, "dev.toml", `
[cmake]
generator = "Ninja"

[linux.cmake]
build_type = "Debug"
`)
	res := resolve(t, `
[project]
name = "example"

[tool.pybuild.cmake]
build_type = "Release"
`, func(in *resolver.Inputs) {
		in.LocalFiles = []string{local}
		in.LocalExprs = []string{`sdist.include=["extra"]`}
	})

	assert.Equal(t, local, res.Sources["tool.pybuild.cmake.generator"])
	assert.Equal(t, "<cli:1>", res.Sources["tool.pybuild.sdist.include"])
	// The inherited OS-specific value keeps the identity of the layer
	// that wrote it, not the section it was folded from.
	assert.Equal(t, cty.StringVal("Debug"), get(t, res.Resolved, "tool.pybuild.cmake.build_type"))
	assert.Equal(t, local, res.Sources["tool.pybuild.cmake.build_type"])
	// Defaulted keys have no source.
	_, ok := res.Sources["tool.pybuild.module.name"]
	assert.False(t, ok)
}
