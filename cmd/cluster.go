package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/testifysec/gatekeeper-authoring/gatekeeper"
	"github.com/testifysec/gatekeeper-authoring/pkg/kubectl"
)

var (
	templatesCmd = &cobra.Command{
		Use:   "templates",
		Short: "List the constraint templates in the cluster",
		Args:  cobra.NoArgs,
		RunE:  runTemplates,
	}

	constraintsCmd = &cobra.Command{
		Use:   "constraints <template>",
		Short: "List the constraints instantiating a template",
		Args:  cobra.ExactArgs(1),
		RunE:  runConstraints,
	}

	violationsCmd = &cobra.Command{
		Use:   "violations <template> <constraint>",
		Short: "Show the audit results of a constraint as markdown",
		Args:  cobra.ExactArgs(2),
		RunE:  runViolations,
	}

	enforcementCmd = &cobra.Command{
		Use:       "enforcement <template> <constraint> deny|dryrun",
		Short:     "Set the enforcement action of a constraint",
		Args:      cobra.ExactArgs(3),
		ValidArgs: gatekeeper.EnforcementActions,
		RunE:      runEnforcement,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete",
		Short: "Delete templates or constraints from the cluster",
	}

	deleteTemplateCmd = &cobra.Command{
		Use:   "template <name>",
		Short: "Delete a constraint template and, with it, all of its constraints",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteTemplate,
	}

	deleteConstraintCmd = &cobra.Command{
		Use:   "constraint <template> <name>",
		Short: "Delete a constraint",
		Args:  cobra.ExactArgs(2),
		RunE:  runDeleteConstraint,
	}

	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Install Gatekeeper into the cluster",
		Args:  cobra.NoArgs,
		RunE:  runInstall,
	}

	confirmDelete bool
	manifestURL   string
)

func printNames(cmd *cobra.Command, names []string, none string) {
	if len(names) == 0 {
		cmd.PrintErrln(none)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
}

func runTemplates(cmd *cobra.Command, _ []string) error {
	names, err := kubectlClient().ListConstraintTemplates(cmd.Context())
	if err != nil {
		return err
	}
	printNames(cmd, names, "no constraint templates")
	return nil
}

func runConstraints(cmd *cobra.Command, args []string) error {
	names, err := kubectlClient().ListConstraints(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printNames(cmd, names, "no constraints")
	return nil
}

func runViolations(cmd *cobra.Command, args []string) error {
	templateName, name := args[0], args[1]
	obj, err := kubectlClient().GetConstraint(cmd.Context(), templateName, name)
	if err != nil {
		return err
	}
	constraint, err := gatekeeper.ParseConstraint(templateName, obj)
	if err != nil {
		return fmt.Errorf("%s: %w", kubectl.ConstraintResourceID(templateName, name), err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), gatekeeper.RenderViolations(constraint))
	return nil
}

func runEnforcement(cmd *cobra.Command, args []string) error {
	templateName, name, action := args[0], args[1], args[2]
	if !gatekeeper.ValidEnforcementAction(action) {
		return fmt.Errorf("unknown enforcement action %q, expected one of %s", action, strings.Join(gatekeeper.EnforcementActions, ", "))
	}

	changed, err := kubectlClient().SetEnforcementAction(cmd.Context(), templateName, name, action)
	if err != nil {
		return err
	}
	id := kubectl.ConstraintResourceID(templateName, name)
	if !changed {
		cmd.PrintErrf("%s already uses %s\n", id, action)
		return nil
	}
	cmd.PrintErrf("%s now uses %s\n", id, action)
	return nil
}

func runDeleteTemplate(cmd *cobra.Command, args []string) error {
	client := kubectlClient()
	name := args[0]

	if !confirmDelete {
		// the constraint CRD disappears with its template, so a failed
		// listing usually means there is nothing to lose.
		constraints, err := client.ListConstraints(cmd.Context(), name)
		if err != nil {
			klog.V(2).InfoS("unable to list constraints", "template", name, "err", err)
		}
		msg := fmt.Sprintf("deleting template %s", name)
		if len(constraints) > 0 {
			msg += fmt.Sprintf(" also deletes %d constraint(s): %s", len(constraints), strings.Join(constraints, ", "))
		}
		return fmt.Errorf("%s; pass --yes to confirm", msg)
	}

	out, err := client.Delete(cmd.Context(), kubectl.TemplateResourceID(name))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runDeleteConstraint(cmd *cobra.Command, args []string) error {
	id := kubectl.ConstraintResourceID(args[0], args[1])
	if !confirmDelete {
		return fmt.Errorf("deleting constraint %s; pass --yes to confirm", id)
	}

	out, err := kubectlClient().Delete(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runInstall(cmd *cobra.Command, _ []string) error {
	if err := kubectlClient().Install(cmd.Context(), manifestURL); err != nil {
		return err
	}
	cmd.PrintErrln("Gatekeeper installed")
	return nil
}

func init() {
	deleteCmd.PersistentFlags().BoolVarP(&confirmDelete, "yes", "y", false, "delete without asking for confirmation")
	deleteCmd.AddCommand(deleteTemplateCmd)
	deleteCmd.AddCommand(deleteConstraintCmd)

	installCmd.Flags().StringVar(&manifestURL, "manifest", gatekeeper.ManifestURL, "Gatekeeper manifest to apply")

	rootCmd.AddCommand(templatesCmd, constraintsCmd, violationsCmd, enforcementCmd, deleteCmd, installCmd)
}
