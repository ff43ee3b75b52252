package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/testifysec/gatekeeper-authoring/gatekeeper"
	"github.com/testifysec/gatekeeper-authoring/pkg/kubectl"
)

var (
	regoCmd = &cobra.Command{
		Use:   "rego <template>",
		Short: "Print the admission Rego of a constraint template in the cluster",
		Args:  cobra.ExactArgs(1),
		RunE:  runRego,
	}

	getCmd = &cobra.Command{
		Use:   "get",
		Short: "Print templates or constraints from the cluster as YAML",
	}

	getTemplateCmd = &cobra.Command{
		Use:   "template <name>",
		Short: "Print a constraint template",
		Args:  cobra.ExactArgs(1),
		RunE:  runGetTemplate,
	}

	getConstraintCmd = &cobra.Command{
		Use:   "constraint <template> <name>",
		Short: "Print a constraint",
		Args:  cobra.ExactArgs(2),
		RunE:  runGetConstraint,
	}
)

func runRego(cmd *cobra.Command, args []string) error {
	template, err := kubectlClient().GetConstraintTemplate(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	rego, ok := gatekeeper.TemplateRego(template)
	if !ok {
		return fmt.Errorf("%s has no %s target", kubectl.TemplateResourceID(args[0]), gatekeeper.AdmissionTarget)
	}
	fmt.Fprint(cmd.OutOrStdout(), rego)
	return nil
}

func runGetTemplate(cmd *cobra.Command, args []string) error {
	template, err := kubectlClient().GetConstraintTemplate(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printManifest(cmd, template)
}

func runGetConstraint(cmd *cobra.Command, args []string) error {
	obj, err := kubectlClient().GetConstraint(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	return printManifest(cmd, obj.Object)
}

func printManifest(cmd *cobra.Command, obj interface{}) error {
	manifest, err := gatekeeper.Marshal(obj)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(manifest)
	return err
}

func init() {
	getCmd.AddCommand(getTemplateCmd)
	getCmd.AddCommand(getConstraintCmd)
	rootCmd.AddCommand(regoCmd, getCmd)
}
