// Package override implements the command-line override expression
// language: a key path, an operator, and an optional value literal, e.g.
//
//	cmake.build_args+=["--target", "foo"]
//	cmake.env.PATH=+(path)/opt/bin
//	module.generated=!
//
// Expressions are parsed by a small hand-written recursive-descent parser
// into Operation values consumed by the layer resolver.
package override

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/confpath"
)

// Operator identifies one of the seven override operators.
type Operator int

const (
	// Assign replaces the previous value wholly. Spelled "=".
	Assign Operator = iota
	// Append adds to the end of a list. Spelled "+=".
	Append
	// AppendPath appends, joining strings with the path list separator.
	// Spelled "+=(path)".
	AppendPath
	// Prepend adds to the start of a list. Spelled "=+".
	Prepend
	// PrependPath prepends, joining strings with the path list separator.
	// Spelled "=+(path)".
	PrependPath
	// Remove deletes matching elements from a list or keys from a dict.
	// Removing an absent value is a no-op. Spelled "-=".
	Remove
	// Clear resets a key to unset, reverting it to its schema default.
	// Spelled "=!" and takes no value.
	Clear
)

// String returns the operator's surface spelling.
func (op Operator) String() string {
	switch op {
	case Assign:
		return "="
	case Append:
		return "+="
	case AppendPath:
		return "+=(path)"
	case Prepend:
		return "=+"
	case PrependPath:
		return "=+(path)"
	case Remove:
		return "-="
	case Clear:
		return "=!"
	default:
		return "<invalid>"
	}
}

// operatorTokens is ordered longest spelling first so the lexer prefers
// the longest match: "+=(path)" must never tokenize as "+=" + "(path)".
var operatorTokens = []struct {
	text string
	op   Operator
}{
	{"+=(path)", AppendPath},
	{"=+(path)", PrependPath},
	{"+=", Append},
	{"=+", Prepend},
	{"-=", Remove},
	{"=!", Clear},
	{"=", Assign},
}

// Operation is the parsed form of one override expression.
type Operation struct {
	// Path is the non-empty dotted key path the operation targets.
	Path confpath.Path
	// Op is the operator.
	Op Operator
	// Value is the parsed literal. It is cty.NilVal for Clear and only
	// for Clear.
	Value cty.Value
	// Source identifies where the expression came from, for error
	// messages, e.g. "<cli:1>" or "overrides.ovr:3".
	Source string
}
