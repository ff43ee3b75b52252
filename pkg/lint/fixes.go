package lint

import (
	"fmt"
	"slices"
	"sort"

	"github.com/agnivade/levenshtein"
)

const (
	// MaxFixDistance is the largest edit distance still offered as a fix.
	MaxFixDistance = 10
	// MaxFixes caps the number of suggestions per diagnostic.
	MaxFixes = 5
)

// FixSuggestion replaces a diagnostic's range with a declared property name.
type FixSuggestion struct {
	Replacement string `json:"replacement"`
	Range       Range  `json:"range"`
	Distance    int    `json:"distance"`
}

// Title is the label shown for the quick fix.
func (f FixSuggestion) Title() string {
	return fmt.Sprintf("Change to '%s'", f.Replacement)
}

type candidate struct {
	name     string
	distance int
}

// Propose ranks the schema's property names by edit distance to the text
// under d and returns the closest ones, best first. Ties keep the order the
// properties are declared in.
func Propose(d Diagnostic, text string, schema *Schema) []FixSuggestion {
	if d.Code != CodeNoDefinition || !schema.HasProperties() {
		return nil
	}
	if !d.Range.Within(len(text)) {
		return nil
	}

	faulty := text[d.Range.Start:d.Range.End]

	candidates := make([]candidate, 0, schema.Properties.Len())
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		candidates = append(candidates, candidate{
			name:     pair.Key,
			distance: levenshtein.ComputeDistance(pair.Key, faulty),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	var fixes []FixSuggestion
	for _, c := range candidates {
		if c.distance > MaxFixDistance || len(fixes) == MaxFixes {
			break
		}
		fixes = append(fixes, FixSuggestion{
			Replacement: c.name,
			Range:       d.Range,
			Distance:    c.distance,
		})
	}
	return fixes
}

// Apply replaces the fix's range in text.
func Apply(text string, fix FixSuggestion) (string, error) {
	if !fix.Range.Within(len(text)) {
		return "", fmt.Errorf("fix range %d-%d is outside the text (length %d)", fix.Range.Start, fix.Range.End, len(text))
	}
	return text[:fix.Range.Start] + fix.Replacement + text[fix.Range.End:], nil
}

// ApplyAll applies several fixes at once. Fixes must not overlap.
func ApplyAll(text string, fixes []FixSuggestion) (string, error) {
	ordered := slices.Clone(fixes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Range.Start > ordered[j].Range.Start
	})

	for i := 1; i < len(ordered); i++ {
		if ordered[i].Range.Overlaps(ordered[i-1].Range) {
			return "", fmt.Errorf("fixes %q and %q overlap", ordered[i].Replacement, ordered[i-1].Replacement)
		}
	}

	var err error
	for _, fix := range ordered {
		if text, err = Apply(text, fix); err != nil {
			return "", err
		}
	}
	return text, nil
}
