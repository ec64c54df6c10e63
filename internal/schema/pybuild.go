package schema

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/confpath"
)

// CMakeMinimumRequired is the fallback minimum CMake version, used for
// policies in generated cache pre-load files.
const CMakeMinimumRequired = "3.15"

// ToolPath is the location of the tool's option table within a project
// configuration document.
func ToolPath() confpath.Path { return confpath.New("tool", "pybuild") }

// CrossPath is the location of the cross-compilation section.
func CrossPath() confpath.Path { return ToolPath().Join("cross") }

// OSNames lists the recognized OS-specific section names.
var OSNames = []string{"linux", "windows", "mac"}

// InheritingSections lists the section names that OS-specific and cross
// sections inherit from the generic tool table.
var InheritingSections = []string{"editable", "sdist", "cmake", "wheel"}

func inherit(segments ...string) *confpath.Path {
	p := ToolPath().Join(segments...)
	return &p
}

func emptySection() Default { return DefaultValue{Value: cty.EmptyObjectVal} }

func emptyList() Default { return DefaultValue{Value: cty.EmptyTupleVal} }

// Options builds the full static option tree for a project document.
// The returned tree is shared, read-only data; callers must not mutate it.
func Options() *Option {
	project := &Option{
		Name:         "project",
		Kind:         Section,
		Description:  "Standard project metadata table.",
		AllowUnknown: true,
		Sub: map[string]*Option{
			"name": {
				Name:        "name",
				Kind:        String,
				Description: "Distribution name of the package.",
				Default:     Required{},
			},
		},
	}

	module := NewSection("module",
		"Defines the import name of the module or package, and the directory where it can be found.",
		&Option{
			Name:        "name",
			Kind:        String,
			Description: "Import name in Python (can be different from the name on PyPI).",
			Default:     DefaultRef{Path: confpath.New("project", "name")},
		},
		&Option{
			Name:        "directory",
			Kind:        Path,
			Description: "Directory containing the Python module/package.",
			Default:     DefaultValue{Value: cty.StringVal(".")},
		},
		&Option{
			Name:        "namespace",
			Kind:        Bool,
			Description: "Set to true for PEP 420 namespace packages.",
			Default:     DefaultValue{Value: cty.False},
		},
		&Option{
			Name:        "generated",
			Kind:        Enum,
			Description: "Assume the main module is generated by the native build instead of locating it in the source directory.",
			EnumValues:  []string{"module", "package"},
		},
	)
	module.Default = emptySection()

	editable := NewSection("editable",
		"Defines how to perform an editable install (PEP 660).",
		&Option{
			Name:        "mode",
			Kind:        Enum,
			Description: "Mechanism to use for editable installations.",
			EnumValues:  []string{"wrapper", "hook", "symlink"},
			Default:     DefaultValue{Value: cty.StringVal("symlink")},
		},
		&Option{
			Name:        "build_hook",
			Kind:        Bool,
			Description: "Re-build changed files when the package is first imported.",
			Default:     DefaultValue{Value: cty.False},
		},
	)
	editable.Default = emptySection()

	sdist := NewSection("sdist",
		"Specifies the files that should be included in the source distribution.",
		&Option{
			Name:        "include",
			Kind:        DirPatterns,
			Description: "Files and folders to include in the source distribution.",
			Default:     emptyList(),
		},
		&Option{
			Name:        "exclude",
			Kind:        DirPatterns,
			Description: "Files and folders to exclude from the source distribution.",
			Default:     emptyList(),
		},
	)
	sdist.Default = emptySection()

	cmake := NewSection("cmake",
		"Defines how to build the project to package. If omitted, a pure Python package is produced.",
		&Option{
			Name:        "minimum_version",
			Kind:        String,
			Description: "Minimum required CMake version.",
			Default:     DefaultValue{Value: cty.StringVal(CMakeMinimumRequired)},
		},
		&Option{
			Name:        "build_type",
			Kind:        String,
			Description: "Build type passed to the configuration step, as -DCMAKE_BUILD_TYPE=<?>.",
		},
		&Option{
			Name:           "config",
			Kind:           StringList,
			Description:    "Configuration type passed to the build step, as --config <?>.",
			Default:        DefaultRef{Path: confpath.New("build_type"), Relative: true},
			StrToSingleton: true,
		},
		&Option{
			Name:        "preset",
			Kind:        String,
			Description: "CMake preset to use for configuration.",
		},
		&Option{
			Name:           "build_presets",
			Kind:           StringList,
			Description:    "CMake presets to use for building.",
			StrToSingleton: true,
		},
		&Option{
			Name:        "generator",
			Kind:        String,
			Description: "CMake generator to use, passed to the configuration step as -G <?>.",
		},
		&Option{
			Name:        "source_path",
			Kind:        Path,
			Description: "Folder containing CMakeLists.txt.",
			Default:     DefaultValue{Value: cty.StringVal(".")},
		},
		&Option{
			Name:        "build_path",
			Kind:        Path,
			Description: "CMake build and cache folder.",
			Default:     DefaultValue{Value: cty.StringVal(".pybuild-cache/{build_config}")},
		},
		&Option{
			Name:        "options",
			Kind:        Dict,
			Description: "Extra options passed to the configuration step, as -D<option>=<value>.",
			Default:     emptySection(),
		},
		&Option{
			Name:            "args",
			Kind:            StringList,
			Description:     "Extra arguments passed to the configuration step.",
			Default:         emptyList(),
			AppendByDefault: true,
		},
		&Option{
			Name:        "find_python",
			Kind:        Bool,
			Description: "Specify hints for CMake's FindPython module.",
			Default:     DefaultValue{Value: cty.True},
		},
		&Option{
			Name:        "find_python3",
			Kind:        Bool,
			Description: "Specify hints for CMake's FindPython3 module.",
			Default:     DefaultValue{Value: cty.True},
		},
		&Option{
			Name:            "build_args",
			Kind:            StringList,
			Description:     "Extra arguments passed to the build step.",
			Default:         emptyList(),
			AppendByDefault: true,
		},
		&Option{
			Name:            "build_tool_args",
			Kind:            StringList,
			Description:     "Extra arguments passed to the underlying build tool (e.g. Make or Ninja).",
			Default:         emptyList(),
			AppendByDefault: true,
		},
		&Option{
			Name:           "install_config",
			Kind:           StringList,
			Description:    "Configuration types passed to the install step, as --config <?>.",
			Default:        DefaultRef{Path: confpath.New("config"), Relative: true},
			StrToSingleton: true,
		},
		&Option{
			Name:            "install_args",
			Kind:            StringList,
			Description:     "Extra arguments passed to the install step.",
			Default:         emptyList(),
			AppendByDefault: true,
		},
		&Option{
			Name:        "install_components",
			Kind:        StringList,
			Description: "Components to install; the install step runs once per component. An empty string selects the default component.",
			Default:     DefaultValue{Value: cty.TupleVal([]cty.Value{cty.StringVal("")})},
		},
		&Option{
			Name:        "env",
			Kind:        Dict,
			Description: "Environment variables to set when running CMake.",
			Default:     emptySection(),
		},
	)

	wheel := NewSection("wheel",
		"Defines how to create the Wheel package.",
		&Option{
			Name:        "pure_python",
			Kind:        Bool,
			Description: "Indicate that this package contains no platform-specific binaries.",
		},
		&Option{
			Name:           "python_tag",
			Kind:           StringList,
			Description:    "Override the default Python tag for the Wheel package.",
			Default:        DefaultValue{Value: cty.TupleVal([]cty.Value{cty.StringVal("auto")})},
			StrToSingleton: true,
		},
		&Option{
			Name:        "python_abi",
			Kind:        Enum,
			Description: "Override the default ABI tag for the Wheel package.",
			EnumValues:  []string{"auto", "none", "abi3"},
			Default:     DefaultValue{Value: cty.StringVal("auto")},
		},
		&Option{
			Name:        "abi3_minimum_cpython_version",
			Kind:        Int,
			Description: "Only use the stable CPython API for versions newer than this (major and minor, no dot).",
			Default:     DefaultValue{Value: cty.NumberIntVal(32)},
		},
		&Option{
			Name:           "abi_tag",
			Kind:           StringList,
			Description:    "Override the ABI tag for the Wheel package.",
			StrToSingleton: true,
		},
		&Option{
			Name:           "platform_tag",
			Kind:           StringList,
			Description:    "Override the platform tag for the Wheel package.",
			StrToSingleton: true,
		},
		&Option{
			Name:        "build_tag",
			Kind:        String,
			Description: "Optional build number for the Wheel package.",
		},
	)
	wheel.Default = emptySection()

	stubgen := NewSection("stubgen",
		"If specified, generate typed stubs for the Python files in the package.",
		&Option{
			Name:        "packages",
			Kind:        StringList,
			Description: "Packages to generate stubs for, passed as -p <?>.",
		},
		&Option{
			Name:        "modules",
			Kind:        StringList,
			Description: "Modules to generate stubs for, passed as -m <?>.",
		},
		&Option{
			Name:        "files",
			Kind:        StringList,
			Description: "Files to generate stubs for.",
		},
		&Option{
			Name:            "args",
			Kind:            StringList,
			Description:     "Extra arguments passed to stubgen.",
			Default:         emptyList(),
			AppendByDefault: true,
		},
	)

	cross := NewSection("cross",
		"Causes the project to be cross-compiled for a different target system.",
		&Option{
			Name:        "os",
			Kind:        Enum,
			Description: "Operating system configuration to inherit from.",
			EnumValues:  []string{"linux", "mac", "windows"},
		},
		&Option{
			Name:        "implementation",
			Kind:        String,
			Description: "Identifier for the target Python implementation.",
		},
		&Option{
			Name:        "version",
			Kind:        String,
			Description: "Target Python version, major and minor, without dots.",
		},
		&Option{
			Name:        "abi",
			Kind:        String,
			Description: "Target Python ABI.",
		},
		&Option{
			Name:        "arch",
			Kind:        String,
			Description: "Target platform tag (OS and architecture, underscores only).",
		},
		&Option{
			Name:        "prefix",
			Kind:        Path,
			Description: "Root path of the target Python installation.",
		},
		&Option{
			Name:        "library",
			Kind:        FilePath,
			Description: "Target Python library file.",
		},
		&Option{
			Name:        "include_dir",
			Kind:        Path,
			Description: "Target Python include directory (containing Python.h).",
		},
		&Option{
			Name:        "toolchain_file",
			Kind:        FilePath,
			Description: "CMake toolchain file describing the cross-compilation target.",
			Default:     Required{},
		},
		&Option{
			Name:        "generator_platform",
			Kind:        String,
			Description: "Value for CMAKE_GENERATOR_PLATFORM (Visual Studio generators only).",
		},
		&Option{Name: "editable", Kind: Section, Sub: map[string]*Option{}, InheritFrom: inherit("editable"),
			Description: "Override editable options when cross-compiling."},
		&Option{Name: "sdist", Kind: Section, Sub: map[string]*Option{}, InheritFrom: inherit("sdist"),
			Description: "Override sdist options when cross-compiling."},
		&Option{Name: "cmake", Kind: Section, Sub: map[string]*Option{}, InheritFrom: inherit("cmake"),
			Description: "Override CMake options when cross-compiling."},
		&Option{Name: "wheel", Kind: Section, Sub: map[string]*Option{}, InheritFrom: inherit("wheel"),
			Description: "Override Wheel options when cross-compiling."},
	)

	tool := NewSection("pybuild", "Build backend options.",
		module, editable, sdist, cmake, wheel, stubgen, cross)
	tool.Default = emptySection()

	for _, osName := range OSNames {
		osSection := NewSection(osName, "Options specific to "+osName+".")
		for _, name := range InheritingSections {
			osSection.Sub[name] = &Option{
				Name:        name,
				Kind:        Section,
				Sub:         map[string]*Option{},
				InheritFrom: inherit(name),
				Description: osName + "-specific " + name + " options.",
			}
		}
		tool.Sub[osName] = osSection
	}

	toolTable := &Option{
		Name:         "tool",
		Kind:         Section,
		Description:  "Tool tables; tables of other tools are ignored.",
		AllowUnknown: true,
		Sub:          map[string]*Option{"pybuild": tool},
	}
	toolTable.Default = emptySection()

	root := NewSection("", "", project, toolTable)
	// Other top-level tables such as [build-system] are not ours to check.
	root.AllowUnknown = true
	return root
}
