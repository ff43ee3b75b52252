package lint

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

const regoExtension = ".rego"

// Document is a policy source file and its current content.
type Document struct {
	Path string
	Text string
}

// Lintable reports whether the document holds Rego.
func (d Document) Lintable() bool {
	return strings.EqualFold(filepath.Ext(d.Path), regoExtension)
}

type Linter interface {
	Lint(ctx context.Context, doc Document) []Diagnostic
	Fixes(ctx context.Context, doc Document, diagnostics []Diagnostic) []FixSuggestion
}

// SchemaSource supplies the parameter schema for a document.
type SchemaSource interface {
	SchemaFor(doc Document) *Schema
}

// SchemaSourceFunc adapts a function to SchemaSource.
type SchemaSourceFunc func(doc Document) *Schema

func (f SchemaSourceFunc) SchemaFor(doc Document) *Schema {
	return f(doc)
}

// SiblingSchemas finds the schema file next to each document.
func SiblingSchemas(loader Loader) SchemaSource {
	return SchemaSourceFunc(func(doc Document) *Schema {
		lookup := loader.ForSource(doc.Path)
		if lookup.Err != nil {
			klog.V(2).InfoS("ignoring schema", "path", lookup.Path, "status", lookup.Status, "err", lookup.Err)
		}
		return lookup.Available()
	})
}

// Snapshot resolves the schema once, on first use, and hands out that same
// schema afterwards. Take one snapshot per document and lint pass so that
// diagnostics and fixes see the same schema.
func Snapshot(schemas SchemaSource) SchemaSource {
	var (
		once   sync.Once
		schema *Schema
	)
	return SchemaSourceFunc(func(doc Document) *Schema {
		once.Do(func() {
			schema = schemas.SchemaFor(doc)
		})
		return schema
	})
}

// UndefinedParameters flags `input.parameters.<name>` references the
// document's schema does not declare.
type UndefinedParameters struct {
	Schemas SchemaSource
}

func NewUndefinedParameters(schemas SchemaSource) *UndefinedParameters {
	return &UndefinedParameters{Schemas: schemas}
}

func (u *UndefinedParameters) Lint(_ context.Context, doc Document) []Diagnostic {
	return Lint(doc.Text, u.Schemas.SchemaFor(doc))
}

func (u *UndefinedParameters) Fixes(_ context.Context, doc Document, diagnostics []Diagnostic) []FixSuggestion {
	var relevant []Diagnostic
	for _, d := range diagnostics {
		if d.Code == CodeNoDefinition {
			relevant = append(relevant, d)
		}
	}
	if len(relevant) == 0 {
		return nil
	}

	schema := u.Schemas.SchemaFor(doc)
	var fixes []FixSuggestion
	for _, d := range relevant {
		fixes = append(fixes, Propose(d, doc.Text, schema)...)
	}
	return fixes
}

// Linters returns the linters run over every Rego document.
func Linters(schemas SchemaSource) []Linter {
	return []Linter{
		NewUndefinedParameters(schemas),
	}
}

// LintDocument runs every linter over doc. Documents that are not Rego are
// skipped.
func LintDocument(ctx context.Context, linters []Linter, doc Document) []Diagnostic {
	if !doc.Lintable() {
		return nil
	}
	var diagnostics []Diagnostic
	for _, l := range linters {
		diagnostics = append(diagnostics, l.Lint(ctx, doc)...)
	}
	return diagnostics
}

// FixDocument collects the fixes every linter offers for diagnostics.
func FixDocument(ctx context.Context, linters []Linter, doc Document, diagnostics []Diagnostic) []FixSuggestion {
	if !doc.Lintable() {
		return nil
	}
	var fixes []FixSuggestion
	for _, l := range linters {
		fixes = append(fixes, l.Fixes(ctx, doc, diagnostics)...)
	}
	return fixes
}
