package override

import (
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pybuildgo/internal/conferr"
	"github.com/vk/pybuildgo/internal/confpath"
)

// Parse parses a single override expression, such as one given on the
// command line. The source label is attached to the resulting Operation
// and to any error.
func Parse(expr, source string) (Operation, error) {
	if strings.ContainsAny(expr, "\r\n") {
		return Operation{}, conferr.New(conferr.ParseError, confpath.Path{}, source,
			"override expression must be a single line: %q", expr)
	}
	p := &parser{src: expr, source: source, line: 1}
	return p.parseExpression()
}

// ParseFile parses a whole override file: one expression per line, blank
// lines and comment-only lines ignored.
func ParseFile(contents, source string) ([]Operation, error) {
	var ops []Operation
	for i, line := range strings.Split(contents, "\n") {
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		p := &parser{src: line, source: source, line: i + 1}
		op, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

type parser struct {
	src    string
	pos    int
	source string
	line   int
}

func (p *parser) errorf(format string, args ...any) error {
	err := conferr.New(conferr.ParseError, confpath.Path{}, p.source, format, args...)
	err.Msg += " (line " + strconv.Itoa(p.line) + ", column " + strconv.Itoa(p.pos+1) + ")"
	return err
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) skipSpaces() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t') {
		p.pos++
	}
}

// atEnd reports whether only whitespace or a comment remains.
func (p *parser) atEnd() bool {
	p.skipSpaces()
	return p.eof() || p.peek() == '#'
}

func (p *parser) parseExpression() (Operation, error) {
	p.skipSpaces()
	path, err := p.parseKeyPath()
	if err != nil {
		return Operation{}, err
	}
	p.skipSpaces()
	op, ok := p.parseOperator()
	if !ok {
		return Operation{}, p.errorf("expected an operator (=, +=, +=(path), =+, =+(path), -=, =!)")
	}
	if op == Clear {
		if !p.atEnd() {
			return Operation{}, p.errorf("operator =! does not take a value")
		}
		return Operation{Path: path, Op: Clear, Value: cty.NilVal, Source: p.source}, nil
	}
	val, err := p.parseTopLevelValue()
	if err != nil {
		return Operation{}, err
	}
	return Operation{Path: path, Op: op, Value: val, Source: p.source}, nil
}

func (p *parser) parseKeyPath() (confpath.Path, error) {
	var segments []string
	for {
		seg, err := p.parseKeySegment()
		if err != nil {
			return confpath.Path{}, err
		}
		segments = append(segments, seg)
		if !p.eof() && p.peek() == '.' {
			p.pos++
			continue
		}
		return confpath.New(segments...), nil
	}
}

func isKeyByte(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// parseKeySegment parses either a quoted key (which may contain dots) or a
// bare identifier. Bare identifiers cannot end in '-', so that a trailing
// "-=" always reads as the remove operator.
func (p *parser) parseKeySegment() (string, error) {
	if p.eof() {
		return "", p.errorf("empty key segment")
	}
	if p.peek() == '"' {
		return p.parseQuotedString()
	}
	start := p.pos
	for !p.eof() && isKeyByte(p.peek()) {
		p.pos++
	}
	for p.pos > start && p.src[p.pos-1] == '-' {
		p.pos--
	}
	if p.pos == start {
		return "", p.errorf("empty key segment")
	}
	return p.src[start:p.pos], nil
}

// parseOperator matches the longest operator token at the current position.
func (p *parser) parseOperator() (Operator, bool) {
	rest := p.src[p.pos:]
	for _, tok := range operatorTokens {
		if strings.HasPrefix(rest, tok.text) {
			p.pos += len(tok.text)
			return tok.op, true
		}
	}
	return 0, false
}

// parseTopLevelValue parses the value following an operator. Bare strings
// run to the end of the line (up to a comment) and are whitespace-trimmed;
// quoted strings, arrays and objects must be followed by nothing but
// whitespace or a comment.
func (p *parser) parseTopLevelValue() (cty.Value, error) {
	p.skipSpaces()
	if p.eof() || p.peek() == '#' {
		return cty.StringVal(""), nil
	}
	switch p.peek() {
	case '[', '{', '"':
		val, err := p.parseStructuredValue()
		if err != nil {
			return cty.NilVal, err
		}
		if !p.atEnd() {
			return cty.NilVal, p.errorf("trailing characters after value")
		}
		return val, nil
	}
	rest := p.src[p.pos:]
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	p.pos = len(p.src)
	return classifyBare(strings.TrimSpace(rest)), nil
}

// parseStructuredValue parses a quoted string, array or object, or a bare
// no-whitespace string terminated by a structural character. Used for
// top-level structured values and for all nested values.
func (p *parser) parseStructuredValue() (cty.Value, error) {
	switch p.peek() {
	case '[':
		return p.parseArray()
	case '{':
		return p.parseObject()
	case '"':
		s, err := p.parseQuotedString()
		if err != nil {
			return cty.NilVal, err
		}
		return cty.StringVal(s), nil
	default:
		return p.parseBareElement()
	}
}

func (p *parser) parseArray() (cty.Value, error) {
	p.pos++ // consume '['
	var vals []cty.Value
	for {
		p.skipSpaces()
		if p.eof() || p.peek() == '#' {
			return cty.NilVal, p.errorf("unmatched '[' in array")
		}
		if p.peek() == ']' {
			p.pos++
			break
		}
		val, err := p.parseStructuredValue()
		if err != nil {
			return cty.NilVal, err
		}
		vals = append(vals, val)
		p.skipSpaces()
		if p.eof() || p.peek() == '#' {
			return cty.NilVal, p.errorf("unmatched '[' in array")
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
		default:
			return cty.NilVal, p.errorf("expected ',' or ']' in array")
		}
		if p.src[p.pos-1] == ']' {
			break
		}
	}
	if len(vals) == 0 {
		return cty.EmptyTupleVal, nil
	}
	return cty.TupleVal(vals), nil
}

func (p *parser) parseObject() (cty.Value, error) {
	p.pos++ // consume '{'
	attrs := map[string]cty.Value{}
	for {
		p.skipSpaces()
		if p.eof() || p.peek() == '#' {
			return cty.NilVal, p.errorf("unmatched '{' in object")
		}
		if p.peek() == '}' {
			p.pos++
			break
		}
		key, err := p.parseObjectKey()
		if err != nil {
			return cty.NilVal, err
		}
		p.skipSpaces()
		if p.eof() || p.peek() != '=' {
			return cty.NilVal, p.errorf("expected '=' after object key %q", key)
		}
		p.pos++
		p.skipSpaces()
		if p.eof() || p.peek() == '#' {
			return cty.NilVal, p.errorf("unmatched '{' in object")
		}
		val, err := p.parseStructuredValue()
		if err != nil {
			return cty.NilVal, err
		}
		attrs[key] = val
		p.skipSpaces()
		if p.eof() || p.peek() == '#' {
			return cty.NilVal, p.errorf("unmatched '{' in object")
		}
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
		default:
			return cty.NilVal, p.errorf("expected ',' or '}' in object")
		}
		if p.src[p.pos-1] == '}' {
			break
		}
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(attrs), nil
}

func (p *parser) parseObjectKey() (string, error) {
	if p.peek() == '"' {
		return p.parseQuotedString()
	}
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == '=' || c == ' ' || c == '\t' || c == ',' || c == '}' || c == '#' {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("empty object key")
	}
	return p.src[start:p.pos], nil
}

// parseBareElement reads an unquoted value inside an array or object. It
// stops at the enclosing delimiter and must not contain whitespace after
// trimming, so that comma-delimited parsing stays unambiguous.
func (p *parser) parseBareElement() (cty.Value, error) {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == ',' || c == ']' || c == '}' || c == '#' {
			break
		}
		p.pos++
	}
	raw := strings.TrimSpace(p.src[start:p.pos])
	if raw == "" {
		return cty.NilVal, p.errorf("empty value")
	}
	if strings.ContainsAny(raw, " \t") {
		return cty.NilVal, p.errorf("unquoted string %q may not contain whitespace; use quotes", raw)
	}
	return classifyBare(raw), nil
}

func (p *parser) parseQuotedString() (string, error) {
	p.pos++ // consume opening quote
	var sb strings.Builder
	for !p.eof() {
		c := p.peek()
		switch c {
		case '\\':
			p.pos++
			if p.eof() {
				return "", p.errorf("dangling escape in quoted string")
			}
			switch p.peek() {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(p.peek())
			}
			p.pos++
		case '"':
			p.pos++
			return sb.String(), nil
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated quoted string")
}

// classifyBare interprets a trimmed unquoted token as an integer, a
// boolean, or a plain string.
func classifyBare(raw string) cty.Value {
	switch raw {
	case "true", "True":
		return cty.True
	case "false", "False":
		return cty.False
	}
	// ParseInt would also take a leading '+', which the grammar does not.
	if raw != "" && raw[0] != '+' {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return cty.NumberIntVal(n)
		}
	}
	return cty.StringVal(raw)
}
