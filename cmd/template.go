package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-policy-agent/frameworks/constraint/pkg/apis/templates/v1beta1"
	"github.com/spf13/cobra"

	"github.com/testifysec/gatekeeper-authoring/gatekeeper"
	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
)

var (
	templateCmd = &cobra.Command{
		Use:   "template <file.rego>",
		Short: "Print the ConstraintTemplate for a policy and its schema",
		Args:  cobra.ExactArgs(1),
		RunE:  runTemplate,
	}

	deployCmd = &cobra.Command{
		Use:   "deploy <file.rego>",
		Short: "Apply the ConstraintTemplate for a policy to the cluster",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeploy,
	}
)

func templateFromFile(regoPath string) (*v1beta1.ConstraintTemplate, error) {
	rego, err := os.ReadFile(regoPath)
	if err != nil {
		return nil, err
	}

	lookup := lint.LoadSchema(lint.SchemaPath(regoPath))
	switch {
	case lookup.Err != nil:
		return nil, lookup.Err
	case lookup.Status == lint.NotFound:
		return nil, fmt.Errorf("%s: %w, create one with 'schema %s'", regoPath, gatekeeper.ErrNoSchema, regoPath)
	}

	base := filepath.Base(regoPath)
	return gatekeeper.TemplateFor(strings.TrimSuffix(base, filepath.Ext(base)), string(rego), lookup.Raw)
}

func templateManifest(regoPath string) ([]byte, error) {
	template, err := templateFromFile(regoPath)
	if err != nil {
		return nil, err
	}
	return gatekeeper.Marshal(template)
}

func runTemplate(cmd *cobra.Command, args []string) error {
	manifest, err := templateManifest(args[0])
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(manifest)
	return err
}

func runDeploy(cmd *cobra.Command, args []string) error {
	manifest, err := templateManifest(args[0])
	if err != nil {
		return err
	}
	out, err := kubectlClient().Apply(cmd.Context(), manifest)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func init() {
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(deployCmd)
}
