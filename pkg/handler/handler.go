package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"

	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
)

const (
	maxRequestBytes = 4 << 20
	untitledPath    = "untitled.rego"
)

// LintRequest asks for the diagnostics of a policy. Schema, when given,
// is the raw schema document and takes precedence over the file next to
// Path. A schema that does not parse is treated as absent. Relative paths
// are resolved against the handler's policy root.
type LintRequest struct {
	Path   string          `json:"path,omitempty"`
	Text   string          `json:"text"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// SchemaRequest asks for a schema declaring every parameter of a policy.
type SchemaRequest struct {
	Text string `json:"text"`
}

type Fix struct {
	lint.FixSuggestion
	Title string `json:"title"`
}

type Diagnostic struct {
	lint.Diagnostic
	Start lint.Position `json:"start"`
	End   lint.Position `json:"end"`
	Fixes []Fix         `json:"fixes,omitempty"`
}

// Response is returned for every request. Errors are reported in
// SystemError with a 200 status.
type Response struct {
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Schema      *lint.Schema `json:"schema,omitempty"`
	SystemError string       `json:"systemError,omitempty"`
}

// LintHandler lints policies sent by editors. Schema files are only looked
// up below root; with an empty root only inline schemas are used.
type LintHandler struct {
	loader lint.Loader
	root   string
}

func NewLintHandler(loader lint.Loader, root string) *LintHandler {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &LintHandler{
		loader: loader,
		root:   root,
	}
}

// Register adds the handler's routes to mux.
func (h *LintHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/lint", h.Lint)
	mux.HandleFunc("/schema", h.Schema)
}

func (h *LintHandler) Lint(w http.ResponseWriter, req *http.Request) {
	var lintRequest LintRequest
	if !readRequest(w, req, &lintRequest) {
		return
	}

	schemas, err := h.schemaSource(&lintRequest)
	if err != nil {
		sendResponse(nil, err.Error(), w)
		return
	}

	doc := lint.Document{Path: lintRequest.Path, Text: lintRequest.Text}
	if doc.Path == "" {
		doc.Path = untitledPath
	}
	linters := lint.Linters(lint.Snapshot(schemas))

	ctx := req.Context()
	index := lint.NewLineIndex(doc.Text)
	diagnostics := make([]Diagnostic, 0)
	for _, d := range lint.LintDocument(ctx, linters, doc) {
		start, end := index.Span(d.Range)
		item := Diagnostic{Diagnostic: d, Start: start, End: end}
		for _, f := range lint.FixDocument(ctx, linters, doc, []lint.Diagnostic{d}) {
			item.Fixes = append(item.Fixes, Fix{FixSuggestion: f, Title: f.Title()})
		}
		diagnostics = append(diagnostics, item)
	}

	klog.V(2).InfoS("linted document", "path", doc.Path, "diagnostics", len(diagnostics))
	sendResponse(&Response{Diagnostics: diagnostics}, "", w)
}

// schemaSource picks where the schema of r comes from. A path that is
// used for a lookup is rewritten to its location below the policy root.
func (h *LintHandler) schemaSource(r *LintRequest) (lint.SchemaSource, error) {
	if len(r.Schema) > 0 {
		schema, err := lint.ParseSchema(r.Schema)
		if err != nil {
			klog.V(2).InfoS("ignoring invalid inline schema", "path", r.Path, "err", err)
		}
		return lint.SchemaSourceFunc(func(lint.Document) *lint.Schema { return schema }), nil
	}
	if r.Path == "" || h.root == "" {
		return lint.SchemaSourceFunc(func(lint.Document) *lint.Schema { return nil }), nil
	}

	path, err := h.confine(r.Path)
	if err != nil {
		return nil, err
	}
	r.Path = path
	return lint.SiblingSchemas(h.loader), nil
}

// confine resolves path against the policy root and rejects anything that
// ends up outside of it.
func (h *LintHandler) confine(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(h.root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(h.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside of the policy root", path)
	}
	return path, nil
}

func (h *LintHandler) Schema(w http.ResponseWriter, req *http.Request) {
	var schemaRequest SchemaRequest
	if !readRequest(w, req, &schemaRequest) {
		return
	}
	sendResponse(&Response{Schema: lint.Synthesize(schemaRequest.Text)}, "", w)
}

func readRequest(w http.ResponseWriter, req *http.Request, v interface{}) bool {
	// only accept POST requests
	if req.Method != http.MethodPost {
		sendResponse(nil, "only POST is allowed", w)
		return false
	}

	requestBody, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxRequestBytes))
	if err != nil {
		sendResponse(nil, fmt.Sprintf("unable to read request body: %v", err), w)
		return false
	}

	if err := json.Unmarshal(requestBody, v); err != nil {
		sendResponse(nil, fmt.Sprintf("unable to unmarshal request body: %v", err), w)
		return false
	}
	return true
}

// sendResponse sends back the response to the editor.
func sendResponse(response *Response, systemErr string, w http.ResponseWriter) {
	if response == nil {
		response = &Response{SystemError: systemErr}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		klog.ErrorS(err, "unable to write response")
	}
}
