// Package document loads TOML configuration documents and override files
// and turns them into the operation streams consumed by the layer
// resolver. A whole document becomes a flat list of leaf assignments so
// that every layer, whatever its surface syntax, merges through the same
// operator machinery.
package document

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/conferr"
	"github.com/vk/pybuildgo/internal/confpath"
	"github.com/vk/pybuildgo/internal/conftree"
	"github.com/vk/pybuildgo/internal/override"
	"github.com/vk/pybuildgo/internal/schema"
)

// Load reads and decodes a TOML document into a configuration tree.
func Load(filename string) (cty.Value, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return cty.NilVal, conferr.Wrap(err, conferr.IOError, confpath.Path{}, filename,
			"cannot read configuration file")
	}
	return Decode(data, filename)
}

// Decode decodes TOML bytes into a configuration tree. The source label
// feeds error messages.
func Decode(data []byte, source string) (cty.Value, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cty.NilVal, conferr.Wrap(err, conferr.ParseError, confpath.Path{}, source,
			"invalid TOML")
	}
	return fromGo(raw, confpath.Path{}, source)
}

func fromGo(v any, path confpath.Path, source string) (cty.Value, error) {
	switch val := v.(type) {
	case string:
		return cty.StringVal(val), nil
	case bool:
		return cty.BoolVal(val), nil
	case int64:
		return cty.NumberIntVal(val), nil
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case float64:
		return cty.NumberFloatVal(val), nil
	case []any:
		if len(val) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(val))
		for i, el := range val {
			cv, err := fromGo(el, path, source)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = cv
		}
		return cty.TupleVal(elems), nil
	case []map[string]any:
		if len(val) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(val))
		for i, el := range val {
			cv, err := fromGo(el, path, source)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = cv
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		if len(val) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(val))
		for k, el := range val {
			cv, err := fromGo(el, path.Join(k), source)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, conferr.New(conferr.ParseError, path, source,
			"unsupported TOML value of type %T", v)
	}
}

// listOpKeys is the table shorthand for list options in documents:
//
//	args = { "-" = ["--verbose"], "+" = ["--target", "foo"] }
//
// "value" and "append" are long spellings of "=" and "+".
var listOpKeys = map[string]override.Operator{
	"=":       override.Assign,
	"value":   override.Assign,
	"-":       override.Remove,
	"prepend": override.Prepend,
	"+":       override.Append,
	"append":  override.Append,
}

// listOpOrder fixes the application order when several shorthand keys
// appear in one table: replace first, then remove, then grow.
var listOpOrder = []string{"=", "value", "-", "prepend", "+", "append"}

// Flatten converts a document subtree rooted at base into leaf
// operations. The schema guides the walk: sections recurse, dicts merge
// as a whole, list options honor the table shorthand and append by
// default where declared. Unknown keys still produce assignments so the
// validator can report them with their source attached.
func Flatten(root *schema.Option, base confpath.Path, tree cty.Value, source string) ([]override.Operation, error) {
	var ops []override.Operation
	err := flatten(root, base, tree, source, &ops)
	return ops, err
}

func flatten(root *schema.Option, path confpath.Path, val cty.Value, source string, ops *[]override.Operation) error {
	opt, known := root.Lookup(root, path)
	if !known {
		*ops = append(*ops, override.Operation{Path: path, Op: override.Assign, Value: val, Source: source})
		return nil
	}

	switch {
	case opt.Kind == schema.Section:
		if !conftree.IsObject(val) {
			*ops = append(*ops, override.Operation{Path: path, Op: override.Assign, Value: val, Source: source})
			return nil
		}
		keys := conftree.Keys(val)
		if len(keys) == 0 {
			// An explicitly empty table still marks its section as present.
			*ops = append(*ops, override.Operation{Path: path, Op: override.Assign, Value: cty.EmptyObjectVal, Source: source})
			return nil
		}
		for _, k := range keys {
			if err := flatten(root, path.Join(k), val.GetAttr(k), source, ops); err != nil {
				return err
			}
		}
		return nil

	case opt.Kind == schema.Dict:
		op := override.Assign
		if conftree.IsObject(val) {
			op = override.Append
		}
		*ops = append(*ops, override.Operation{Path: path, Op: op, Value: val, Source: source})
		return nil

	case opt.Kind.IsListLike() && conftree.IsObject(val):
		return flattenListOps(path, val, source, ops)

	case opt.Kind.IsListLike() && opt.AppendByDefault:
		*ops = append(*ops, override.Operation{Path: path, Op: override.Append, Value: val, Source: source})
		return nil

	default:
		*ops = append(*ops, override.Operation{Path: path, Op: override.Assign, Value: val, Source: source})
		return nil
	}
}

func flattenListOps(path confpath.Path, val cty.Value, source string, ops *[]override.Operation) error {
	for _, k := range conftree.Keys(val) {
		if _, ok := listOpKeys[k]; !ok {
			return conferr.New(conferr.ParseError, path, source,
				"unknown key %q in list operation table (expected one of =, value, -, prepend, +, append)", k)
		}
	}
	seen := map[override.Operator]bool{}
	for _, k := range listOpOrder {
		if !val.Type().HasAttribute(k) {
			continue
		}
		op := listOpKeys[k]
		if seen[op] {
			return conferr.New(conferr.ParseError, path, source,
				"list operation table repeats operation %q", k)
		}
		seen[op] = true
		*ops = append(*ops, override.Operation{Path: path, Op: op, Value: val.GetAttr(k), Source: source})
	}
	return nil
}

// LoadOverrideFile reads a file of overrides and returns its operations,
// with paths prefixed by base. TOML files are flattened documents;
// ".ovr" files hold one override expression per line. origin names the
// flag or environment variable that referenced the file, so a missing
// file can be traced back to whoever asked for it.
func LoadOverrideFile(filename, origin string, root *schema.Option, base confpath.Path) ([]override.Operation, error) {
	if !strings.HasSuffix(filename, ".toml") && !strings.HasSuffix(filename, ".ovr") {
		return nil, conferr.New(conferr.InvalidValue, confpath.Path{}, filename,
			"unsupported override file extension (expected .toml or .ovr)")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, conferr.Wrap(err, conferr.IOError, confpath.Path{}, filename,
			"cannot read override file named by %s", origin)
	}

	if strings.HasSuffix(filename, ".toml") {
		tree, err := Decode(data, filename)
		if err != nil {
			return nil, err
		}
		if len(conftree.Keys(tree)) == 0 {
			return nil, nil
		}
		return Flatten(root, base, tree, filename)
	}

	ops, err := override.ParseFile(string(data), filename)
	if err != nil {
		return nil, err
	}
	for i := range ops {
		ops[i].Path = base.Concat(ops[i].Path)
	}
	return ops, nil
}

// SplitFileList splits an environment-variable list of file names on the
// platform path list separator, dropping empty entries.
func SplitFileList(list, sep string) []string {
	var files []string
	for _, f := range strings.Split(list, sep) {
		f = strings.TrimSpace(f)
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}
