package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
)

var (
	lintCmd = &cobra.Command{
		Use:   "lint [files or directories...]",
		Short: "Report parameters the policy schema does not define",
		RunE:  runLint,
	}

	showFixes   bool
	jobs        int
	minSeverity string
)

func runLint(cmd *cobra.Command, args []string) error {
	var threshold lint.Severity
	if err := threshold.UnmarshalText([]byte(minSeverity)); err != nil {
		return fmt.Errorf("--severity: %w", err)
	}

	paths, err := policyFiles(args)
	if err != nil {
		return err
	}

	results, err := lintFiles(cmd.Context(), paths, jobs)
	if err != nil {
		return err
	}

	var problems int
	for _, r := range results {
		r = r.atLeast(threshold)
		printResult(cmd.OutOrStdout(), r, showFixes)
		problems += len(r.Diagnostics)
	}
	if problems > 0 {
		cmd.PrintErrf("%d problem(s) in %d file(s)\n", problems, len(results))
		return ErrProblemsFound
	}
	return nil
}

func init() {
	lintCmd.Flags().BoolVar(&showFixes, "fixes", false, "list suggested replacements under each problem")
	lintCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "number of files linted in parallel (default GOMAXPROCS)")
	lintCmd.Flags().StringVar(&minSeverity, "severity", lint.SeverityHint.String(), "least severe problems to report: error, warning, info or hint")
	rootCmd.AddCommand(lintCmd)
}
