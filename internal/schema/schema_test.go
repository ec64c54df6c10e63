package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pybuildgo/internal/confpath"
	"github.com/vk/pybuildgo/internal/schema"
)

func lookup(t *testing.T, path string) (*schema.Option, bool) {
	t.Helper()
	p, err := confpath.Parse(path)
	require.NoError(t, err)
	root := schema.Options()
	return root.Lookup(root, p)
}

func TestLookupKnownOptions(t *testing.T) {
	tests := []struct {
		path string
		kind schema.Kind
	}{
		{"project.name", schema.String},
		{"tool.pybuild.module.directory", schema.Path},
		{"tool.pybuild.module.generated", schema.Enum},
		{"tool.pybuild.cmake.args", schema.StringList},
		{"tool.pybuild.cmake.options", schema.Dict},
		{"tool.pybuild.sdist.include", schema.DirPatterns},
		{"tool.pybuild.wheel.abi3_minimum_cpython_version", schema.Int},
		{"tool.pybuild.cross.toolchain_file", schema.FilePath},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			opt, ok := lookup(t, tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.kind, opt.Kind)
		})
	}
}

func TestLookupUnknownOption(t *testing.T) {
	_, ok := lookup(t, "tool.pybuild.cmake.build_typ")
	assert.False(t, ok)
}

func TestLookupInheritedSectionShape(t *testing.T) {
	// OS-specific and cross sections expose the generic section's shape.
	for _, path := range []string{
		"tool.pybuild.linux.cmake.build_type",
		"tool.pybuild.windows.cmake.build_type",
		"tool.pybuild.cross.cmake.build_type",
		"tool.pybuild.mac.sdist.include",
	} {
		opt, ok := lookup(t, path)
		require.True(t, ok, path)
		assert.NotEqual(t, schema.Section, opt.Kind, path)
	}

	// Unknown keys stay unknown through inheritance.
	_, ok := lookup(t, "tool.pybuild.linux.cmake.build_typ")
	assert.False(t, ok)
}

func TestLookupDictEntries(t *testing.T) {
	opt, ok := lookup(t, "tool.pybuild.cmake.options.CMAKE_PREFIX_PATH")
	require.True(t, ok)
	assert.Equal(t, schema.String, opt.Kind)

	// Dict entries are one level deep only.
	_, ok = lookup(t, "tool.pybuild.cmake.options.a.b")
	assert.False(t, ok)
}

func TestLookupAllowUnknownSections(t *testing.T) {
	opt, ok := lookup(t, "project.version")
	require.True(t, ok)
	assert.Equal(t, schema.Any, opt.Kind)

	opt, ok = lookup(t, "tool.black.line-length")
	require.True(t, ok)
	assert.Equal(t, schema.Any, opt.Kind)
}

func TestListLikeAndStringLike(t *testing.T) {
	assert.True(t, schema.StringList.IsListLike())
	assert.True(t, schema.DirPatterns.IsListLike())
	assert.False(t, schema.Dict.IsListLike())
	assert.True(t, schema.Enum.IsStringLike())
	assert.False(t, schema.Bool.IsStringLike())
}
