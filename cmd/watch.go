package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/testifysec/gatekeeper-authoring/internal/collection"
	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
	"github.com/testifysec/gatekeeper-authoring/pkg/watcher"
)

var (
	watchCmd = &cobra.Command{
		Use:   "watch [files or directories...]",
		Short: "Lint policies again whenever they or their schemas change",
		RunE:  runWatch,
	}

	watchInterval time.Duration
)

// policyWatch relints the policies affected by changed files and prints
// the ones whose problems changed.
type policyWatch struct {
	cmd     *cobra.Command
	schemas lint.SchemaSource
	results *collection.Collection
	// owners maps every watched file to the policy it belongs to.
	owners map[string]string
	// display maps a policy to the path it was given as.
	display map[string]string
}

func newPolicyWatch(cmd *cobra.Command, paths []string) (*policyWatch, error) {
	pw := &policyWatch{
		cmd:     cmd,
		schemas: lint.SiblingSchemas(lint.Loader{}),
		results: collection.New(),
		owners:  map[string]string{},
		display: map[string]string{},
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		pw.owners[abs] = abs
		pw.owners[lint.SchemaPath(abs)] = abs
		pw.display[abs] = p
	}
	return pw, nil
}

func (pw *policyWatch) files() []string {
	files := make([]string, 0, len(pw.owners))
	for f := range pw.owners {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func (pw *policyWatch) relint(ctx context.Context, changed []string) error {
	affected := map[string]struct{}{}
	for _, f := range changed {
		if policy, ok := pw.owners[f]; ok {
			affected[policy] = struct{}{}
		}
	}

	policies := make([]string, 0, len(affected))
	for p := range affected {
		policies = append(policies, p)
	}
	sort.Strings(policies)

	out := pw.cmd.OutOrStdout()
	var errs []error
	for _, policy := range policies {
		name := pw.display[policy]
		r, err := lintFile(ctx, pw.schemas, policy)
		if errors.Is(err, fs.ErrNotExist) {
			pw.forget(policy, name)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("linting %s: %w", name, err))
			continue
		}

		entry := collection.Entry{Text: r.Text, Diagnostics: r.Diagnostics, Fixes: flatten(r.Fixes)}
		if !pw.results.Set(policy, entry) {
			continue
		}
		r.Path = name
		if len(r.Diagnostics) == 0 {
			fmt.Fprintf(out, "%s no problems\n", pathColor.Sprintf("%s:", name))
		}
		printResult(out, r, true)
	}

	klog.V(1).InfoS("relinted policies", "policies", len(policies), "problems", pw.results.Count())
	return errors.Join(errs...)
}

// forget drops a policy that disappeared, reporting the problems it had.
func (pw *policyWatch) forget(policy, name string) {
	var problems int
	err := pw.results.Use(policy, func(e collection.Entry) {
		problems = len(e.Diagnostics)
	})
	if errors.Is(err, collection.ErrNotFound) {
		return
	}
	pw.results.Delete(policy)
	fmt.Fprintf(pw.cmd.OutOrStdout(), "%s removed with %d problem(s)\n", pathColor.Sprint(name), problems)
}

func flatten(fixes [][]lint.FixSuggestion) []lint.FixSuggestion {
	var all []lint.FixSuggestion
	for _, f := range fixes {
		all = append(all, f...)
	}
	return all
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := policyFiles(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no policies to watch")
	}

	pw, err := newPolicyWatch(cmd, paths)
	if err != nil {
		return err
	}

	w, err := watcher.New(ctx, watchInterval, pw.files(), func(changed []string) error {
		return pw.relint(ctx, changed)
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.Notify()

	cmd.PrintErrf("watching %d policies, press Ctrl+C to stop\n", len(paths))
	<-ctx.Done()
	return nil
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "how often changes are picked up")
	rootCmd.AddCommand(watchCmd)
}
