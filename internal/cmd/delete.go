package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <template_path>",
	GroupID: GroupSync,
	Short:   "Delete the users declared in a template (not implemented)",
	Long: `Delete the users declared in a template.

Not implemented yet: the command only echoes the template path and makes
no changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "delete: %s\n", args[0])
	return nil
}
