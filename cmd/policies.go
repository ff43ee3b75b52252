package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
)

var (
	pathColor  = color.New(color.Bold)
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	infoColor  = color.New(color.FgBlue, color.Bold)
	codeColor  = color.New(color.Faint)
	fixColor   = color.New(color.FgCyan)
)

// lintResult is the outcome of linting one policy file. Fixes holds the
// suggestions for each diagnostic, best first.
type lintResult struct {
	Path        string
	Text        string
	Diagnostics []lint.Diagnostic
	Fixes       [][]lint.FixSuggestion
}

// atLeast drops the diagnostics less severe than threshold.
func (r lintResult) atLeast(threshold lint.Severity) lintResult {
	kept := lintResult{Path: r.Path, Text: r.Text}
	for i, d := range r.Diagnostics {
		if d.Severity > threshold {
			continue
		}
		kept.Diagnostics = append(kept.Diagnostics, d)
		kept.Fixes = append(kept.Fixes, r.Fixes[i])
	}
	return kept
}

// policyFiles expands directories into the Rego files below them. With no
// arguments the working directory is searched.
func policyFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}

	seen := map[string]struct{}{}
	var files []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(filepath.Clean(arg))
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && (lint.Document{Path: path}).Lintable() {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

// lintFile lints path against a single read of its schema.
func lintFile(ctx context.Context, schemas lint.SchemaSource, path string) (lintResult, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return lintResult{}, err
	}

	doc := lint.Document{Path: path, Text: string(text)}
	linters := lint.Linters(lint.Snapshot(schemas))
	result := lintResult{Path: path, Text: doc.Text}
	for _, d := range lint.LintDocument(ctx, linters, doc) {
		result.Diagnostics = append(result.Diagnostics, d)
		result.Fixes = append(result.Fixes, lint.FixDocument(ctx, linters, doc, []lint.Diagnostic{d}))
	}
	return result, nil
}

// lintFiles lints up to jobs files at a time. Results keep the order of
// paths.
func lintFiles(ctx context.Context, paths []string, jobs int) ([]lintResult, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	schemas := lint.SiblingSchemas(lint.Loader{})
	results := make([]lintResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(paths))))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := lintFile(gctx, schemas, path)
			if err != nil {
				return fmt.Errorf("linting %s: %w", path, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func severityColor(s lint.Severity) *color.Color {
	switch s {
	case lint.SeverityError:
		return errorColor
	case lint.SeverityWarning:
		return warnColor
	default:
		return infoColor
	}
}

// printResult writes one line per diagnostic, compiler style, optionally
// followed by its suggestions.
func printResult(w io.Writer, r lintResult, withFixes bool) {
	index := lint.NewLineIndex(r.Text)
	for i, d := range r.Diagnostics {
		start := index.PositionAt(d.Range.Start)
		fmt.Fprintf(w, "%s %s %s %s\n",
			pathColor.Sprintf("%s:%s:", r.Path, start),
			severityColor(d.Severity).Sprintf("%s:", d.Severity),
			d.Message,
			codeColor.Sprintf("[%s]", d.Code),
		)
		if !withFixes {
			continue
		}
		for _, f := range r.Fixes[i] {
			fmt.Fprintf(w, "    %s\n", fixColor.Sprintf("suggestion: %s", f.Title()))
		}
	}
}
