package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/conferr"
	"github.com/vk/pybuildgo/internal/confpath"
	"github.com/vk/pybuildgo/internal/conftree"
	"github.com/vk/pybuildgo/internal/schema"
	"github.com/vk/pybuildgo/internal/validate"
)

func set(t *testing.T, tree cty.Value, path string, val cty.Value) cty.Value {
	t.Helper()
	p, err := confpath.Parse(path)
	require.NoError(t, err)
	return conftree.Set(tree, p, val)
}

func baseTree(t *testing.T) cty.Value {
	tree := conftree.Empty()
	return set(t, tree, "project.name", cty.StringVal("example"))
}

func expectKind(t *testing.T, err error, want conferr.Kind) {
	t.Helper()
	require.Error(t, err)
	kind, ok := conferr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, want, kind)
}

func TestValidateAcceptsMinimalProject(t *testing.T) {
	tree := baseTree(t)
	got, err := validate.Validate(schema.Options(), tree, tree, false, nil)
	require.NoError(t, err)
	assert.True(t, conftree.IsObject(got))
}

func TestValidateMissingProjectName(t *testing.T) {
	tree := conftree.Empty()
	_, err := validate.Validate(schema.Options(), tree, tree, false, nil)
	expectKind(t, err, conferr.MissingRequired)
}

func TestValidateTypeErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		val  cty.Value
	}{
		{"bool as string", "tool.pybuild.module.namespace", cty.StringVal("yes")},
		{"string as number", "tool.pybuild.cmake.build_type", cty.NumberIntVal(1)},
		{"int as string", "tool.pybuild.wheel.abi3_minimum_cpython_version", cty.StringVal("32")},
		{"list with non-string element", "tool.pybuild.cmake.build_args",
			cty.TupleVal([]cty.Value{cty.StringVal("ok"), cty.True})},
		{"dict with non-string value", "tool.pybuild.cmake.options",
			cty.ObjectVal(map[string]cty.Value{"FOO": cty.True})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := set(t, baseTree(t), tt.path, tt.val)
			_, err := validate.Validate(schema.Options(), tree, tree, false, nil)
			expectKind(t, err, conferr.TypeError)
		})
	}
}

func TestValidateEnumMembership(t *testing.T) {
	tree := set(t, baseTree(t), "tool.pybuild.editable.mode", cty.StringVal("sym-link"))
	_, err := validate.Validate(schema.Options(), tree, tree, false, nil)
	expectKind(t, err, conferr.InvalidValue)
	assert.Contains(t, err.Error(), "wrapper, hook, symlink")
}

func TestValidateUnknownKeySuggestion(t *testing.T) {
	tree := set(t, baseTree(t), "tool.pybuild.cmake.build_typ", cty.StringVal("Release"))
	_, err := validate.Validate(schema.Options(), tree, tree, false, nil)
	expectKind(t, err, conferr.InvalidValue)
	assert.Contains(t, err.Error(), `did you mean "build_type"`)
}

func TestValidateUnknownKeyWithoutSuggestion(t *testing.T) {
	tree := set(t, baseTree(t), "tool.pybuild.cmake.zzzzzzzzzz", cty.StringVal("x"))
	_, err := validate.Validate(schema.Options(), tree, tree, false, nil)
	expectKind(t, err, conferr.InvalidValue)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestValidateForeignTablesIgnored(t *testing.T) {
	tree := baseTree(t)
	tree = set(t, tree, "build-system.build-backend", cty.StringVal("pybuild"))
	tree = set(t, tree, "tool.black.line-length", cty.NumberIntVal(100))
	tree = set(t, tree, "project.version", cty.StringVal("1.0.0"))
	_, err := validate.Validate(schema.Options(), tree, tree, false, nil)
	require.NoError(t, err)
}

func TestValidateStrToSingleton(t *testing.T) {
	tree := set(t, baseTree(t), "tool.pybuild.cmake.config", cty.StringVal("Release"))
	got, err := validate.Validate(schema.Options(), tree, tree, false, nil)
	require.NoError(t, err)
	p, _ := confpath.Parse("tool.pybuild.cmake.config")
	val, ok := conftree.Get(got, p)
	require.True(t, ok)
	assert.Equal(t, cty.TupleVal([]cty.Value{cty.StringVal("Release")}), val)
}

func TestValidateCrossRequirements(t *testing.T) {
	tree := set(t, baseTree(t), "tool.pybuild.cross.arch", cty.StringVal("aarch64"))

	// Not cross-compiling: cross requirements do not apply.
	_, err := validate.Validate(schema.Options(), tree, tree, false, nil)
	require.NoError(t, err)

	// Cross-compiling without a toolchain file is an error.
	_, err = validate.Validate(schema.Options(), tree, tree, true, nil)
	expectKind(t, err, conferr.MissingRequired)
	assert.Contains(t, err.Error(), "toolchain_file")

	tree = set(t, tree, "tool.pybuild.cross.toolchain_file", cty.StringVal("aarch64.cmake"))
	_, err = validate.Validate(schema.Options(), tree, tree, true, nil)
	require.NoError(t, err)
}

func TestValidateErrorsNameSourceLayer(t *testing.T) {
	tree := set(t, baseTree(t), "tool.pybuild.cmake.build_type", cty.NumberIntVal(42))
	sources := map[string]string{
		"tool.pybuild.cmake.build_type": "pyproject.toml",
	}
	_, err := validate.Validate(schema.Options(), tree, tree, false, sources)
	expectKind(t, err, conferr.TypeError)
	assert.Contains(t, err.Error(), "pyproject.toml")
}

func TestValidateSourceFallsBackToAncestor(t *testing.T) {
	// A section assigned as a whole covers keys it carried.
	tree := set(t, baseTree(t), "tool.pybuild.cmake.build_typ", cty.StringVal("Release"))
	sources := map[string]string{
		"tool.pybuild.cmake": "<cli:1>",
	}
	_, err := validate.Validate(schema.Options(), tree, tree, false, sources)
	expectKind(t, err, conferr.InvalidValue)
	assert.Contains(t, err.Error(), "<cli:1>")
}

func TestValidateConstraintGeneratedModuleName(t *testing.T) {
	explicit := baseTree(t)
	explicit = set(t, explicit, "tool.pybuild.module.generated", cty.StringVal("module"))
	explicit = set(t, explicit, "tool.pybuild.module.name", cty.StringVal("mymod"))
	_, err := validate.Validate(schema.Options(), explicit, explicit, false, nil)
	expectKind(t, err, conferr.ConstraintError)
}

func TestValidateConstraintNamespaceWrapper(t *testing.T) {
	tree := baseTree(t)
	tree = set(t, tree, "tool.pybuild.module.namespace", cty.True)
	tree = set(t, tree, "tool.pybuild.editable.mode", cty.StringVal("wrapper"))
	_, err := validate.Validate(schema.Options(), tree, tree, false, nil)
	expectKind(t, err, conferr.ConstraintError)
}
