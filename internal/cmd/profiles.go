package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/iamsync/internal/profile"
	"github.com/steveyegge/iamsync/internal/style"
)

var profilesCmd = &cobra.Command{
	Use:     "profiles",
	GroupID: GroupInspect,
	Short:   "List login profile records written to the output directory",
	Long: `List the login profile records issued by previous runs, oldest first.

Reads <output_dir>/profiles.json. Passwords are never shown; they are only in
the per-user .csv files.`,
	Args: cobra.NoArgs,
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	entries, err := profile.NewIndex(cfg.OutputDir).List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No profiles recorded in %s\n", cfg.OutputDir)
		return nil
	}

	fmt.Fprintf(out, "%s\n", style.Bold.Render(fmt.Sprintf("Profiles in %s:", cfg.OutputDir)))
	for _, e := range entries {
		fmt.Fprintf(out, "  %-24s %s  %s\n", e.Username, e.Created.Local().Format(time.DateTime), style.Dim.Render(e.File))
	}
	return nil
}
