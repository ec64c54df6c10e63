// Package confpath provides the dotted key path type used to address
// options and values inside a configuration tree.
package confpath

import (
	"fmt"
	"strings"
)

// Path is an ordered sequence of key segments, e.g. ["cmake", "build_args"].
// The zero value is the empty path, which addresses the tree root.
type Path struct {
	segments []string
}

// New builds a Path from the given segments.
func New(segments ...string) Path {
	return Path{segments: append([]string(nil), segments...)}
}

// Parse interprets a canonical dotted path string. Segments containing
// dots or quotes must be double-quoted; Parse accepts the same quoting
// that String produces.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	var segments []string
	i := 0
	for {
		if i >= len(s) {
			return Path{}, fmt.Errorf("confpath: empty trailing segment in %q", s)
		}
		if s[i] == '"' {
			seg, rest, err := unquoteSegment(s[i:])
			if err != nil {
				return Path{}, fmt.Errorf("confpath: %w in %q", err, s)
			}
			segments = append(segments, seg)
			i = len(s) - len(rest)
		} else {
			j := strings.IndexByte(s[i:], '.')
			if j == 0 {
				return Path{}, fmt.Errorf("confpath: empty segment in %q", s)
			}
			if j < 0 {
				segments = append(segments, s[i:])
				i = len(s)
			} else {
				segments = append(segments, s[i:i+j])
				i += j
			}
		}
		if i == len(s) {
			return Path{segments: segments}, nil
		}
		if s[i] != '.' {
			return Path{}, fmt.Errorf("confpath: unexpected character %q in %q", s[i], s)
		}
		i++
	}
}

func unquoteSegment(s string) (string, string, error) {
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return "", "", fmt.Errorf("dangling escape")
			}
			i++
			sb.WriteByte(s[i])
		case '"':
			return sb.String(), s[i+1:], nil
		default:
			sb.WriteByte(s[i])
		}
	}
	return "", "", fmt.Errorf("unterminated quoted segment")
}

// String serializes the path into its canonical dotted representation.
// Segments containing structural characters are quoted so that the
// output round-trips through Parse.
func (p Path) String() string {
	var sb strings.Builder
	for i, seg := range p.segments {
		if i > 0 {
			sb.WriteByte('.')
		}
		if strings.ContainsAny(seg, ".\"\\ ") || seg == "" {
			sb.WriteByte('"')
			for j := 0; j < len(seg); j++ {
				if seg[j] == '"' || seg[j] == '\\' {
					sb.WriteByte('\\')
				}
				sb.WriteByte(seg[j])
			}
			sb.WriteByte('"')
		} else {
			sb.WriteString(seg)
		}
	}
	return sb.String()
}

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segments) }

// IsEmpty reports whether the path addresses the root.
func (p Path) IsEmpty() bool { return len(p.segments) == 0 }

// Segments returns a copy of the path's segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Join returns a new path with the given segments appended.
func (p Path) Join(segments ...string) Path {
	joined := make([]string, 0, len(p.segments)+len(segments))
	joined = append(joined, p.segments...)
	joined = append(joined, segments...)
	return Path{segments: joined}
}

// Concat returns a new path with all of other's segments appended.
func (p Path) Concat(other Path) Path {
	return p.Join(other.segments...)
}

// SplitFront splits off the first segment, returning it and the remainder.
// Calling SplitFront on the empty path panics.
func (p Path) SplitFront() (string, Path) {
	if len(p.segments) == 0 {
		panic("confpath: SplitFront on empty path")
	}
	return p.segments[0], Path{segments: p.segments[1:]}
}

// SplitBack splits off the last segment, returning the prefix and the segment.
// Calling SplitBack on the empty path panics.
func (p Path) SplitBack() (Path, string) {
	if len(p.segments) == 0 {
		panic("confpath: SplitBack on empty path")
	}
	n := len(p.segments)
	return Path{segments: p.segments[:n-1]}, p.segments[n-1]
}

// Equal reports whether two paths have identical segments.
func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a leading sub-path of p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.segments) > len(p.segments) {
		return false
	}
	for i := range prefix.segments {
		if p.segments[i] != prefix.segments[i] {
			return false
		}
	}
	return true
}
