package lint

import "fmt"

// CodeNoDefinition marks a parameter reference the schema does not declare.
const CodeNoDefinition = "no_definition"

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInformation
	SeverityHint
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	for _, candidate := range []Severity{SeverityError, SeverityWarning, SeverityInformation, SeverityHint} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// Range is a half-open byte span of the source text.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Len() int {
	return r.End - r.Start
}

// Within reports whether the range lies inside a text of length n.
func (r Range) Within(n int) bool {
	return r.Start >= 0 && r.Start <= r.End && r.End <= n
}

func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

type Diagnostic struct {
	Range    Range    `json:"range"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
}

// Lint reports every parameter reference in text that schema does not
// declare, in source order. Without a schema, or with a schema that has no
// properties section, there is nothing to check against and Lint returns
// nothing.
func Lint(text string, schema *Schema) []Diagnostic {
	if !schema.HasProperties() {
		return nil
	}

	var diagnostics []Diagnostic
	for ref := range References(text) {
		if schema.Defines(ref.Name) {
			continue
		}
		diagnostics = append(diagnostics, Diagnostic{
			Range:    ref.Range(),
			Message:  fmt.Sprintf("Schema file does not define property '%s'", ref.Name),
			Severity: SeverityWarning,
			Code:     CodeNoDefinition,
		})
	}
	return diagnostics
}
