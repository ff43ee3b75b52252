package lint

import (
	"fmt"
	"iter"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const parameterPrefix = "input.parameters."

// parameterRefPattern matches `input.parameters.<name>` with an optional
// trailing `[`. Only the prefix is case-insensitive, and only over ASCII:
// `(?i)` would also let `ſ` stand in for `s`.
var parameterRefPattern = regexp.MustCompile(asciiFold(parameterPrefix) + `([a-zA-Z][a-zA-Z0-9_]*)(\[)?`)

// asciiFold quotes literal so that its ASCII letters match either case.
func asciiFold(literal string) string {
	var b strings.Builder
	for _, r := range literal {
		lower, upper := unicode.ToLower(r), unicode.ToUpper(r)
		if r < utf8.RuneSelf && lower != upper {
			fmt.Fprintf(&b, "[%c%c]", lower, upper)
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
	}
	return b.String()
}

// ParameterReference is a single `input.parameters.<name>` occurrence.
// Offset and Length locate the identifier only, not the prefix.
type ParameterReference struct {
	Name    string
	IsArray bool
	Offset  int
	Length  int
}

// End is the offset just past the identifier.
func (r ParameterReference) End() int {
	return r.Offset + r.Length
}

// Range returns the identifier span.
func (r ParameterReference) Range() Range {
	return Range{Start: r.Offset, End: r.End()}
}

// Scanner walks a text for parameter references, left to right, without
// overlaps. The position is held by the scanner, not the pattern.
type Scanner struct {
	text   string
	cursor int
}

func NewScanner(text string) *Scanner {
	return &Scanner{text: text}
}

// Next returns the next reference and true, or false once the text is
// exhausted.
func (s *Scanner) Next() (ParameterReference, bool) {
	if s.cursor > len(s.text) {
		return ParameterReference{}, false
	}

	loc := parameterRefPattern.FindStringSubmatchIndex(s.text[s.cursor:])
	if loc == nil {
		s.cursor = len(s.text) + 1
		return ParameterReference{}, false
	}

	base := s.cursor
	ref := ParameterReference{
		Name:    s.text[base+loc[2] : base+loc[3]],
		IsArray: loc[4] >= 0,
		Offset:  base + loc[2],
		Length:  loc[3] - loc[2],
	}

	// loc[1] > loc[0] always holds since the pattern cannot match empty.
	s.cursor = base + loc[1]
	return ref, true
}

// References yields every parameter reference in text. Each range over the
// sequence starts a fresh scan.
func References(text string) iter.Seq[ParameterReference] {
	return func(yield func(ParameterReference) bool) {
		s := NewScanner(text)
		for {
			ref, ok := s.Next()
			if !ok || !yield(ref) {
				return
			}
		}
	}
}

// Extract collects every parameter reference in text.
func Extract(text string) []ParameterReference {
	var refs []ParameterReference
	for ref := range References(text) {
		refs = append(refs, ref)
	}
	return refs
}
