package kubectl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/frameworks/constraint/pkg/apis/templates/v1beta1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"

	"github.com/testifysec/gatekeeper-authoring/gatekeeper"
)

const tempFilePrefix = "gk-authoring-"

// Client performs the Gatekeeper operations the authoring tools need by
// delegating to kubectl.
type Client struct {
	runner Runner
}

func New(runner Runner) *Client {
	return &Client{runner: runner}
}

func (c *Client) invoke(ctx context.Context, args ...string) (string, error) {
	result, err := c.runner.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	if result.Code != 0 {
		return "", &CommandError{Args: args, Code: result.Code, Stderr: result.Stderr}
	}
	return result.Stdout, nil
}

func (c *Client) names(ctx context.Context, resource string) ([]string, error) {
	out, err := c.invoke(ctx, "get", resource, "-o", "json")
	if err != nil {
		return nil, err
	}

	var list unstructured.UnstructuredList
	if err := list.UnmarshalJSON([]byte(out)); err != nil {
		return nil, fmt.Errorf("parsing %s list: %w", resource, err)
	}

	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.GetName())
	}
	return names, nil
}

func (c *Client) ListConstraintTemplates(ctx context.Context) ([]string, error) {
	return c.names(ctx, "constrainttemplates")
}

// ListConstraints lists the constraints instantiating a template. Each
// template defines its own constraint resource, named after the template.
func (c *Client) ListConstraints(ctx context.Context, templateName string) ([]string, error) {
	return c.names(ctx, templateName)
}

func (c *Client) GetConstraintTemplate(ctx context.Context, name string) (*v1beta1.ConstraintTemplate, error) {
	out, err := c.invoke(ctx, "get", TemplateResourceID(name), "-o", "json")
	if err != nil {
		return nil, err
	}

	var template v1beta1.ConstraintTemplate
	if err := json.Unmarshal([]byte(out), &template); err != nil {
		return nil, fmt.Errorf("parsing constraint template %s: %w", name, err)
	}
	return &template, nil
}

func (c *Client) GetConstraint(ctx context.Context, templateName, name string) (*unstructured.Unstructured, error) {
	out, err := c.invoke(ctx, "get", ConstraintResourceID(templateName, name), "-o", "json")
	if err != nil {
		return nil, err
	}

	obj := &unstructured.Unstructured{}
	if err := obj.UnmarshalJSON([]byte(out)); err != nil {
		return nil, fmt.Errorf("parsing constraint %s/%s: %w", templateName, name, err)
	}
	return obj, nil
}

// Apply writes manifest to a temporary file and applies it.
func (c *Client) Apply(ctx context.Context, manifest []byte) (string, error) {
	var out string
	err := withTempFile(manifest, "yaml", func(filename string) error {
		var err error
		out, err = c.invoke(ctx, "apply", "-f", filename)
		return err
	})
	return out, err
}

// Delete removes a resource given as kind/name.
func (c *Client) Delete(ctx context.Context, resourceID string) (string, error) {
	return c.invoke(ctx, "delete", resourceID)
}

// Install applies the Gatekeeper manifest at manifestURL.
func (c *Client) Install(ctx context.Context, manifestURL string) error {
	_, err := c.invoke(ctx, "apply", "-f", manifestURL)
	return err
}

// SetEnforcementAction switches a constraint between deny and dryrun. It
// reports false without touching the cluster when the action is unchanged.
func (c *Client) SetEnforcementAction(ctx context.Context, templateName, name, action string) (bool, error) {
	constraint, err := c.GetConstraint(ctx, templateName, name)
	if err != nil {
		return false, err
	}

	changed, err := gatekeeper.SetEnforcementAction(constraint, action)
	if err != nil || !changed {
		return false, err
	}

	manifest, err := yaml.Marshal(constraint.Object)
	if err != nil {
		return false, fmt.Errorf("rendering constraint %s/%s: %w", templateName, name, err)
	}
	if _, err := c.Apply(ctx, manifest); err != nil {
		return false, err
	}
	return true, nil
}

func TemplateResourceID(name string) string {
	return "constrainttemplates/" + name
}

func ConstraintResourceID(templateName, name string) string {
	return strings.ToLower(templateName) + "/" + name
}

func withTempFile(content []byte, fileType string, fn func(filename string) error) error {
	f, err := os.CreateTemp("", tempFilePrefix+"*."+fileType)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	return fn(f.Name())
}
