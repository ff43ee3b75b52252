package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
)

var (
	schemaCmd = &cobra.Command{
		Use:   "schema <file.rego>",
		Short: "Print the policy's schema path, creating the schema if it does not exist",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchema,
	}

	synthesize  bool
	forceSchema bool
)

func runSchema(cmd *cobra.Command, args []string) error {
	regoPath := args[0]
	schemaPath := lint.SchemaPath(regoPath)

	_, err := os.Stat(schemaPath)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if !exists || forceSchema {
		schema := lint.EmptySchema()
		if synthesize {
			text, err := os.ReadFile(regoPath)
			if err != nil {
				return err
			}
			schema = lint.Synthesize(string(text))
		}

		data, err := schema.MarshalIndent()
		if err != nil {
			return err
		}
		if err := os.WriteFile(schemaPath, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing schema: %w", err)
		}
		cmd.PrintErrf("created %s with %d parameter(s)\n", schemaPath, schema.Properties.Len())
	}

	fmt.Fprintln(cmd.OutOrStdout(), schemaPath)
	return nil
}

func init() {
	schemaCmd.Flags().BoolVar(&synthesize, "synthesize", false, "declare every parameter the policy references")
	schemaCmd.Flags().BoolVar(&forceSchema, "force", false, "overwrite an existing schema")
	rootCmd.AddCommand(schemaCmd)
}
