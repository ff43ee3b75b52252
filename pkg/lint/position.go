package lint

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Position is a 1-based line and column. Columns count runes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// LineIndex maps byte offsets of a text to positions.
type LineIndex struct {
	text  string
	lines []int // byte offset of each line start
}

func NewLineIndex(text string) *LineIndex {
	lines := []int{0}
	for i := 0; i < len(text); {
		j := strings.IndexByte(text[i:], '\n')
		if j < 0 {
			break
		}
		i += j + 1
		lines = append(lines, i)
	}
	return &LineIndex{text: text, lines: lines}
}

// PositionAt returns the position of offset, clamped to the text.
func (x *LineIndex) PositionAt(offset int) Position {
	offset = max(0, min(offset, len(x.text)))
	line := sort.Search(len(x.lines), func(i int) bool { return x.lines[i] > offset }) - 1
	column := utf8.RuneCountInString(x.text[x.lines[line]:offset])
	return Position{Line: line + 1, Column: column + 1}
}

// Span returns the start and end positions of r.
func (x *LineIndex) Span(r Range) (Position, Position) {
	return x.PositionAt(r.Start), x.PositionAt(r.End)
}
