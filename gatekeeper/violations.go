package gatekeeper

import (
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const markdownRule = "\n---\n"

type Violation struct {
	Kind              string
	Name              string
	Namespace         string
	Message           string
	EnforcementAction string
}

// ConstraintStatus holds the latest audit results of a constraint.
type ConstraintStatus struct {
	AuditTimestamp  time.Time
	TotalViolations int64
	Violations      []Violation
}

type Constraint struct {
	Name              string
	TemplateName      string
	EnforcementAction string
	// Status is nil until the constraint has been audited.
	Status *ConstraintStatus
}

// ParseConstraint reads the audit status out of a constraint resource.
func ParseConstraint(templateName string, obj *unstructured.Unstructured) (*Constraint, error) {
	c := &Constraint{
		Name:              obj.GetName(),
		TemplateName:      templateName,
		EnforcementAction: EnforcementAction(obj),
	}

	timestamp, found, err := unstructured.NestedString(obj.Object, "status", "auditTimestamp")
	if err != nil {
		return nil, fmt.Errorf("reading audit timestamp: %w", err)
	}
	if !found {
		return c, nil
	}

	auditedAt, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return nil, fmt.Errorf("parsing audit timestamp %q: %w", timestamp, err)
	}
	status := &ConstraintStatus{AuditTimestamp: auditedAt}

	raw, _, err := unstructured.NestedSlice(obj.Object, "status", "violations")
	if err != nil {
		return nil, fmt.Errorf("reading violations: %w", err)
	}
	for _, r := range raw {
		v, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		status.Violations = append(status.Violations, Violation{
			Kind:              stringField(v, "kind"),
			Name:              stringField(v, "name"),
			Namespace:         stringField(v, "namespace"),
			Message:           stringField(v, "message"),
			EnforcementAction: stringField(v, "enforcementAction"),
		})
	}

	total, found, err := unstructured.NestedInt64(obj.Object, "status", "totalViolations")
	if err != nil || !found {
		total = int64(len(status.Violations))
	}
	status.TotalViolations = total

	c.Status = status
	return c, nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// RenderViolations produces a markdown report of a constraint's audit
// results.
func RenderViolations(c *Constraint) string {
	lines := []string{
		fmt.Sprintf("## %s", c.Name),
		fmt.Sprintf("Instance of template %s (enforcement action: %s)", c.TemplateName, c.EnforcementAction),
		markdownRule,
	}
	return strings.Join(append(lines, renderStatus(c.Status)...), "\n")
}

func renderStatus(status *ConstraintStatus) []string {
	if status == nil {
		return []string{"Status information not available"}
	}

	at := status.AuditTimestamp.Format("15:04:05")
	if len(status.Violations) == 0 {
		return []string{fmt.Sprintf("No constraint violations (at %s)", at)}
	}

	lines := []string{
		fmt.Sprintf("%d constraint violation(s) at %s", status.TotalViolations, at),
		"| Resource Kind | Resource Name | Violation |",
		"|---|---|---|",
	}
	for _, v := range status.Violations {
		lines = append(lines, fmt.Sprintf("| %s | %s | %s |", v.Kind, resourceName(v), escapeCell(v.Message)))
	}
	return lines
}

func resourceName(v Violation) string {
	if v.Namespace == "" {
		return v.Name
	}
	return v.Namespace + "/" + v.Name
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}
