package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
)

var (
	fixCmd = &cobra.Command{
		Use:   "fix [files or directories...]",
		Short: "Replace undefined parameters with the closest defined ones",
		Long:  "Apply the best suggestion of every problem. Without --write the replacements are only listed.",
		RunE:  runFix,
	}

	writeFixes bool
)

// bestFixes picks the first suggestion of each diagnostic that has one.
func bestFixes(r lintResult) []lint.FixSuggestion {
	var fixes []lint.FixSuggestion
	for _, suggestions := range r.Fixes {
		if len(suggestions) > 0 {
			fixes = append(fixes, suggestions[0])
		}
	}
	return fixes
}

func runFix(cmd *cobra.Command, args []string) error {
	paths, err := policyFiles(args)
	if err != nil {
		return err
	}

	results, err := lintFiles(cmd.Context(), paths, 0)
	if err != nil {
		return err
	}

	var applied, unfixable int
	for _, r := range results {
		fixes := bestFixes(r)
		unfixable += len(r.Diagnostics) - len(fixes)
		if len(fixes) == 0 {
			continue
		}

		index := lint.NewLineIndex(r.Text)
		for _, f := range fixes {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s\n",
				pathColor.Sprintf("%s:%s:", r.Path, index.PositionAt(f.Range.Start)),
				r.Text[f.Range.Start:f.Range.End],
				fixColor.Sprint(f.Replacement),
			)
		}

		if !writeFixes {
			continue
		}
		fixed, err := lint.ApplyAll(r.Text, fixes)
		if err != nil {
			return fmt.Errorf("fixing %s: %w", r.Path, err)
		}
		info, err := os.Stat(r.Path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(r.Path, []byte(fixed), info.Mode().Perm()); err != nil {
			return fmt.Errorf("writing %s: %w", r.Path, err)
		}
		klog.V(1).InfoS("fixed policy", "path", r.Path, "fixes", len(fixes))
		applied += len(fixes)
	}

	if writeFixes {
		cmd.PrintErrf("%d fix(es) applied\n", applied)
	}
	if unfixable > 0 {
		cmd.PrintErrf("%d problem(s) without a suggestion\n", unfixable)
		return ErrProblemsFound
	}
	return nil
}

func init() {
	fixCmd.Flags().BoolVarP(&writeFixes, "write", "w", false, "write the fixed policies back")
	rootCmd.AddCommand(fixCmd)
}
