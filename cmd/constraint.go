package cmd

import (
	"errors"
	"fmt"

	"github.com/open-policy-agent/frameworks/constraint/pkg/apis/templates/v1beta1"
	"github.com/spf13/cobra"

	"github.com/testifysec/gatekeeper-authoring/gatekeeper"
	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
)

var (
	constraintCmd = &cobra.Command{
		Use:   "constraint <template name|file.rego>",
		Short: "Generate a constraint instantiating a template",
		Long: "Generate a constraint for a template deployed to the cluster, or for the template " +
			"built from a local policy when a .rego file is given.",
		Args: cobra.ExactArgs(1),
		RunE: runConstraint,
	}

	constraintName string
	snippet        bool
)

func runConstraint(cmd *cobra.Command, args []string) error {
	var (
		template *v1beta1.ConstraintTemplate
		err      error
	)
	if (lint.Document{Path: args[0]}).Lintable() {
		template, err = templateFromFile(args[0])
	} else {
		template, err = kubectlClient().GetConstraintTemplate(cmd.Context(), args[0])
	}
	if err != nil {
		return err
	}

	name := constraintName
	if name == "" {
		name = template.Name
	}
	if msg := gatekeeper.ValidateConstraintName(name); msg != "" {
		return errors.New(msg)
	}

	var placeholders gatekeeper.Placeholders = gatekeeper.DefaultPlaceholders{}
	if snippet {
		placeholders = gatekeeper.SnippetPlaceholders{}
	}

	constraint, err := gatekeeper.ConstraintFor(template, name, placeholders)
	if err != nil {
		return fmt.Errorf("%s: %w", template.Name, err)
	}
	manifest, err := gatekeeper.Marshal(constraint.Object)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(manifest)
	return err
}

func init() {
	constraintCmd.Flags().StringVar(&constraintName, "name", "", "constraint name (default the template name)")
	constraintCmd.Flags().BoolVar(&snippet, "snippet", false, "emit editor snippet placeholders instead of default values")
	rootCmd.AddCommand(constraintCmd)
}
