package pathquery

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidPath reports a path expression the compiler cannot represent.
var ErrInvalidPath = errors.New("invalid path")

const wildcardSuffix = "[*]"

// Segment is one dotted component of a path.
type Segment struct {
	Name     string
	Wildcard bool
}

// Path is a parsed path expression.
type Path struct {
	raw      string
	Segments []Segment
}

// Parse validates raw and splits it into segments.
func Parse(raw string) (Path, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Path{}, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	parts := strings.Split(trimmed, ".")
	segments := make([]Segment, 0, len(parts))
	wildcards := 0
	for i, part := range parts {
		seg := Segment{Name: part}
		if strings.HasSuffix(part, wildcardSuffix) {
			seg.Name = strings.TrimSuffix(part, wildcardSuffix)
			seg.Wildcard = true
			wildcards++
		}
		if err := validateName(seg.Name); err != nil {
			return Path{}, fmt.Errorf("%w: %q segment %d: %v", ErrInvalidPath, raw, i+1, err)
		}
		segments = append(segments, seg)
	}
	if wildcards > 1 {
		return Path{}, fmt.Errorf("%w: %q has %d wildcard segments, at most one is supported", ErrInvalidPath, raw, wildcards)
	}
	return Path{raw: trimmed, Segments: segments}, nil
}

func validateName(name string) error {
	if name == "" {
		return errors.New("empty key")
	}
	for _, r := range name {
		switch {
		case r == '"', r == '[', r == ']', r == '$', r == '*', r == '\\':
			return fmt.Errorf("reserved character %q", r)
		case unicode.IsControl(r):
			return errors.New("control character")
		}
	}
	return nil
}

// String returns the path as written, minus surrounding whitespace.
func (p Path) String() string { return p.raw }

// HasWildcard reports whether one segment iterates an array.
func (p Path) HasWildcard() bool {
	_, ok := p.wildcardIndex()
	return ok
}

func (p Path) wildcardIndex() (int, bool) {
	for i, seg := range p.Segments {
		if seg.Wildcard {
			return i, true
		}
	}
	return -1, false
}

// split returns the SQLite JSON path to the value, or for wildcard paths the
// path to the array and the path inside each element ("" for the element itself).
func (p Path) split() (outer, inner string) {
	idx, ok := p.wildcardIndex()
	if !ok {
		return jsonPath(p.Segments), ""
	}
	outer = jsonPath(p.Segments[:idx+1])
	if rest := p.Segments[idx+1:]; len(rest) > 0 {
		inner = jsonPath(rest)
	}
	return outer, inner
}

func jsonPath(segments []Segment) string {
	var b strings.Builder
	b.WriteByte('$')
	for _, seg := range segments {
		b.WriteString(`."`)
		b.WriteString(seg.Name)
		b.WriteByte('"')
	}
	return b.String()
}
