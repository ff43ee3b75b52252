package gatekeeper

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/open-policy-agent/frameworks/constraint/pkg/apis/templates/v1beta1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

var ErrNoSchema = errors.New("no associated schema")

// TemplateName derives a template name from a policy file path.
func TemplateName(regoPath string) string {
	base := filepath.Base(regoPath)
	return Identifierfy(strings.TrimSuffix(base, filepath.Ext(base)))
}

// TemplateFor combines a policy and its parameter schema document into a
// ConstraintTemplate. The schema's `$schema` marker is dropped since it is
// only meaningful to editors.
func TemplateFor(name, rego string, schemaDocument []byte) (*v1beta1.ConstraintTemplate, error) {
	if len(schemaDocument) == 0 {
		return nil, ErrNoSchema
	}

	props, err := schemaProps(schemaDocument)
	if err != nil {
		return nil, err
	}

	identifier := Identifierfy(name)
	if identifier == "" {
		return nil, fmt.Errorf("template name %q has no letters or digits", name)
	}

	return &v1beta1.ConstraintTemplate{
		TypeMeta: metav1.TypeMeta{
			APIVersion: TemplatesAPIVersion,
			Kind:       TemplateKind,
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: identifier,
		},
		Spec: v1beta1.ConstraintTemplateSpec{
			CRD: v1beta1.CRD{
				Spec: v1beta1.CRDSpec{
					Names: v1beta1.Names{
						Kind: Kindify(name),
					},
					Validation: &v1beta1.Validation{
						OpenAPIV3Schema: props,
					},
				},
			},
			Targets: []v1beta1.Target{
				{
					Target: AdmissionTarget,
					Rego:   rego,
				},
			},
		},
	}, nil
}

func schemaProps(document []byte) (*apiextensionsv1.JSONSchemaProps, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(document, &raw); err != nil {
		return nil, fmt.Errorf("invalid schema document: %w", err)
	}
	delete(raw, "$schema")

	stripped, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var props apiextensionsv1.JSONSchemaProps
	if err := json.Unmarshal(stripped, &props); err != nil {
		return nil, fmt.Errorf("schema is not a valid OpenAPI v3 schema: %w", err)
	}
	return &props, nil
}

// TemplateSchema returns the parameter schema of a deployed template, if any.
func TemplateSchema(t *v1beta1.ConstraintTemplate) *apiextensionsv1.JSONSchemaProps {
	if t == nil || t.Spec.CRD.Spec.Validation == nil {
		return nil
	}
	return t.Spec.CRD.Spec.Validation.OpenAPIV3Schema
}

// TemplateRego returns the Rego of the template's admission target.
func TemplateRego(t *v1beta1.ConstraintTemplate) (string, bool) {
	for _, target := range t.Spec.Targets {
		if target.Target == AdmissionTarget {
			return target.Rego, true
		}
	}
	return "", false
}
