package gatekeeper

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"sigs.k8s.io/yaml"
)

const (
	TemplatesAPIVersion   = "templates.gatekeeper.sh/v1beta1"
	ConstraintsAPIVersion = "constraints.gatekeeper.sh/v1beta1"
	TemplateKind          = "ConstraintTemplate"
	AdmissionTarget       = "admission.k8s.gatekeeper.sh"

	// ManifestURL is the Gatekeeper release manifest used by install.
	ManifestURL = "https://raw.githubusercontent.com/open-policy-agent/gatekeeper/master/deploy/gatekeeper.yaml"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)
	constraintName  = regexp.MustCompile(`^[a-z][-a-z0-9.]*$`)
)

// Identifierfy strips everything but letters and digits and lower cases the
// rest: "required-labels" -> "requiredlabels".
func Identifierfy(name string) string {
	return strings.ToLower(nonAlphanumeric.ReplaceAllString(name, ""))
}

// Kindify turns a name into a CRD kind: "required-labels" -> "RequiredLabels".
func Kindify(name string) string {
	var b strings.Builder
	for _, bit := range nonAlphanumeric.Split(name, -1) {
		b.WriteString(titleCase(bit))
	}
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// ValidateConstraintName returns a message describing why name cannot be
// used for a constraint, or "" if it can.
func ValidateConstraintName(name string) string {
	if constraintName.MatchString(name) {
		return ""
	}
	return "Name must begin with a letter and contain only letters, numbers, hyphens and periods"
}

// Marshal renders a resource as YAML.
func Marshal(obj interface{}) ([]byte, error) {
	return yaml.Marshal(obj)
}
