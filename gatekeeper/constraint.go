package gatekeeper

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/frameworks/constraint/pkg/apis/templates/v1beta1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const (
	EnforcementDeny   = "deny"
	EnforcementDryRun = "dryrun"
)

// EnforcementActions are offered in this order when creating a constraint.
var EnforcementActions = []string{EnforcementDryRun, EnforcementDeny}

// Placeholders fills in the values of a generated constraint.
type Placeholders interface {
	Name(index int, name string) interface{}
	Choice(index int, choices []string) interface{}
	Parameter(index int, schema apiextensionsv1.JSONSchemaProps) interface{}
}

// SnippetPlaceholders emits editor snippet tab stops so the generated YAML
// can be inserted as a snippet and tabbed through.
type SnippetPlaceholders struct{}

func (SnippetPlaceholders) Name(index int, name string) interface{} {
	return fmt.Sprintf("${%d:%s}", index, name)
}

func (SnippetPlaceholders) Choice(index int, choices []string) interface{} {
	return fmt.Sprintf("${%d|%s|}", index, strings.Join(choices, ","))
}

func (SnippetPlaceholders) Parameter(index int, schema apiextensionsv1.JSONSchemaProps) interface{} {
	stop := fmt.Sprintf("${%d}", index)
	if schema.Type == "array" {
		return []interface{}{stop}
	}
	return stop
}

// DefaultPlaceholders emits plain values: the given name, the first choice
// and an empty value of each parameter's type.
type DefaultPlaceholders struct{}

func (DefaultPlaceholders) Name(_ int, name string) interface{} {
	return name
}

func (DefaultPlaceholders) Choice(_ int, choices []string) interface{} {
	if len(choices) == 0 {
		return ""
	}
	return choices[0]
}

func (DefaultPlaceholders) Parameter(_ int, schema apiextensionsv1.JSONSchemaProps) interface{} {
	switch schema.Type {
	case "array":
		return []interface{}{}
	case "object":
		return map[string]interface{}{}
	case "boolean":
		return false
	case "integer":
		return int64(0)
	case "number":
		return float64(0)
	default:
		return ""
	}
}

// ConstraintFor generates a constraint instantiating template.
func ConstraintFor(template *v1beta1.ConstraintTemplate, name string, p Placeholders) (*unstructured.Unstructured, error) {
	crd := template.Spec.CRD.Spec
	if crd.Names.Kind == "" && crd.Validation == nil {
		return nil, errors.New("template does not contain a custom resource spec")
	}
	if crd.Names.Kind == "" {
		return nil, errors.New("template does not specify a kind for the constraint custom resource type")
	}

	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": ConstraintsAPIVersion,
			"kind":       crd.Names.Kind,
			"metadata": map[string]interface{}{
				"name": p.Name(1, name),
			},
			"spec": map[string]interface{}{
				"enforcementAction": p.Choice(2, EnforcementActions),
				"match": map[string]interface{}{
					"kinds": []interface{}{},
				},
				"parameters": parameters(TemplateSchema(template), 3, p),
			},
		},
	}, nil
}

func parameters(schema *apiextensionsv1.JSONSchemaProps, index int, p Placeholders) map[string]interface{} {
	params := map[string]interface{}{}
	if schema == nil || len(schema.Properties) == 0 {
		return params
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		params[name] = p.Parameter(index, schema.Properties[name])
		index++
	}
	return params
}

// EnforcementAction returns the constraint's action, which Gatekeeper
// defaults to deny.
func EnforcementAction(constraint *unstructured.Unstructured) string {
	action, found, err := unstructured.NestedString(constraint.Object, "spec", "enforcementAction")
	if err != nil || !found || action == "" {
		return EnforcementDeny
	}
	return action
}

// SetEnforcementAction updates the constraint and reports whether anything
// changed.
func SetEnforcementAction(constraint *unstructured.Unstructured, action string) (bool, error) {
	if !ValidEnforcementAction(action) {
		return false, fmt.Errorf("unknown enforcement action %q, expected one of %s", action, strings.Join(EnforcementActions, ", "))
	}
	if EnforcementAction(constraint) == action {
		return false, nil
	}
	if err := unstructured.SetNestedField(constraint.Object, action, "spec", "enforcementAction"); err != nil {
		return false, fmt.Errorf("setting enforcement action: %w", err)
	}
	return true, nil
}

func ValidEnforcementAction(action string) bool {
	for _, a := range EnforcementActions {
		if a == action {
			return true
		}
	}
	return false
}
