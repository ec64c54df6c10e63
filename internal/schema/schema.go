// Package schema declares the static option tree for the build backend's
// configuration: every recognized key, its value kind, its default, and
// its inheritance relationships. The tree is built once at startup and
// never mutated afterwards; all other packages treat it as read-only.
package schema

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/confpath"
)

// Kind is the closed set of value kinds an option can have. Merge and
// validation behavior is selected by exhaustive switches on this type, so
// adding a kind is a compile-time-checked change.
type Kind int

const (
	// Section is a nested tree of sub-options.
	Section Kind = iota
	// String is a free-form string scalar.
	String
	// Path is a directory path string.
	Path
	// FilePath is a file path string.
	FilePath
	// StringList is a list of strings.
	StringList
	// DirPatterns is a list of relative glob patterns.
	DirPatterns
	// Dict is a string-to-string mapping with dynamic keys.
	Dict
	// Bool is a boolean scalar.
	Bool
	// Int is an integer scalar.
	Int
	// Enum is a string restricted to a fixed set of literals.
	Enum
	// Any accepts any shape without validation. It is the kind of keys
	// inside AllowUnknown sections, such as [project] metadata fields.
	Any
)

// String returns the kind's user-facing type name.
func (k Kind) String() string {
	switch k {
	case Section:
		return "section"
	case String:
		return "string"
	case Path:
		return "path"
	case FilePath:
		return "filepath"
	case StringList:
		return "list of strings"
	case DirPatterns:
		return "list of patterns"
	case Dict:
		return "dict of strings"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Enum:
		return "enum"
	case Any:
		return "any"
	default:
		return "unknown"
	}
}

// IsListLike reports whether append/prepend/remove operators apply.
func (k Kind) IsListLike() bool {
	return k == StringList || k == DirPatterns
}

// IsStringLike reports whether the kind is represented by a cty string.
func (k Kind) IsStringLike() bool {
	switch k {
	case String, Path, FilePath, Enum:
		return true
	default:
		return false
	}
}

// Default describes where an option's value comes from when no layer
// sets it.
type Default interface {
	defaultMarker()
}

// NoDefault marks an option that simply stays unset.
type NoDefault struct{}

// DefaultValue supplies a literal default.
type DefaultValue struct {
	Value cty.Value
}

// DefaultRef derives the default from another option's resolved value.
// A relative ref is resolved against the option's parent section, so that
// OS-specific copies of a section refer to their own siblings.
type DefaultRef struct {
	Path     confpath.Path
	Relative bool
}

// Required marks an option whose absence after all layers is an error.
// Requirements inside the cross section only apply when cross-compiling.
type Required struct{}

func (NoDefault) defaultMarker()    {}
func (DefaultValue) defaultMarker() {}
func (DefaultRef) defaultMarker()   {}
func (Required) defaultMarker()     {}

// Option is one node of the schema tree.
type Option struct {
	// Name is the key segment of this option within its parent.
	Name string
	// Kind selects merge and validation behavior.
	Kind Kind
	// Description is the user-facing help text.
	Description string
	// Default is the value source when no layer sets the option.
	// A nil Default means NoDefault.
	Default Default
	// EnumValues lists the allowed literals for Enum options.
	EnumValues []string
	// InheritFrom names another Section whose shape and values this
	// section falls back to (OS-specific and cross sections). The path
	// is absolute within the tool table.
	InheritFrom *confpath.Path
	// Sub holds the child options of a Section.
	Sub map[string]*Option
	// AllowUnknown permits keys not declared in Sub (used for foreign
	// tables such as [project] metadata and other tools' tables).
	AllowUnknown bool
	// AppendByDefault makes document-sourced list values concatenate
	// onto lower layers instead of replacing them.
	AppendByDefault bool
	// StrToSingleton coerces a plain string value into a one-element
	// list during validation.
	StrToSingleton bool
}

// NewSection builds a Section option and registers its children.
func NewSection(name, description string, children ...*Option) *Option {
	opt := &Option{
		Name:        name,
		Kind:        Section,
		Description: description,
		Sub:         map[string]*Option{},
	}
	for _, c := range children {
		opt.Sub[c.Name] = c
	}
	return opt
}

// Lookup resolves a path relative to this option, following inheritance
// links for shape (an OS-specific cmake section exposes the generic cmake
// section's sub-options). Entries below a Dict option resolve to a
// synthetic String option, since dict keys are dynamic.
//
// The boolean result is false when the path names an unknown option.
func (o *Option) Lookup(root *Option, path confpath.Path) (*Option, bool) {
	cur := o
	for !path.IsEmpty() {
		var seg string
		seg, path = path.SplitFront()
		cur = cur.shape(root)
		if cur.Kind == Dict {
			// One level of dynamic keys; anything deeper is unknown.
			if !path.IsEmpty() {
				return nil, false
			}
			return dictEntryOption(seg), true
		}
		if cur.Kind == Any {
			return anyOption(seg), true
		}
		if cur.Kind != Section {
			return nil, false
		}
		next, ok := cur.Sub[seg]
		if !ok {
			if cur.AllowUnknown {
				return anyOption(seg), true
			}
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// shape returns the option whose sub-options define this option's shape,
// following InheritFrom links to their end.
func (o *Option) shape(root *Option) *Option {
	cur := o
	for cur.InheritFrom != nil && len(cur.Sub) == 0 {
		target, ok := root.Lookup(root, *cur.InheritFrom)
		if !ok {
			return cur
		}
		cur = target
	}
	return cur
}

// Shape exposes the inheritance-resolved shape of the option.
func (o *Option) Shape(root *Option) *Option { return o.shape(root) }

func dictEntryOption(name string) *Option {
	return &Option{Name: name, Kind: String}
}

// anyOption is the schema node for keys inside AllowUnknown sections:
// any shape is accepted and nothing is validated below it.
func anyOption(name string) *Option {
	return &Option{Name: name, Kind: Any}
}
