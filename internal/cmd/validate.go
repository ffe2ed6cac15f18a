package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/iamsync/internal/desired"
	"github.com/steveyegge/iamsync/internal/style"
)

var validateCmd = &cobra.Command{
	Use:     "validate <template_path>",
	GroupID: GroupInspect,
	Short:   "Check a template without contacting AWS",
	Long: `Load and validate a template. No AWS calls are made.

Every problem is reported with its location, for example:
  Users[2].Groups (line 9): must be a list of strings, got mapping

Examples:
  iamsync validate users.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	users, err := desired.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d user(s)\n", style.ChangedPrefix, args[0], len(users))
	return nil
}
