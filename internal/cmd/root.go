// Package cmd provides CLI commands for the iamsync tool.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/iamsync/internal/config"
	"github.com/steveyegge/iamsync/internal/style"
)

// Command group IDs used in help output.
const (
	GroupSync    = "sync"
	GroupInspect = "inspect"
)

var rootCmd = &cobra.Command{
	Use:   "iamsync",
	Short: "Reconcile IAM users with a declared desired state",
	Long: `iamsync converges IAM users, their tags and their group memberships to
the state declared in a YAML template.

Users missing from the account are created with a one-time console password
that must be changed at first sign-in. The password is written to
<output_dir>/<user>.csv and nowhere else.

Tags are additive: declared tags are set, undeclared ones are left alone.
Group membership is exact: undeclared memberships are removed.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          requireSubcommand,
}

// Persistent flags shared by every subcommand.
var (
	configPath      string // --config: settings file
	flagRegion      string // --region: AWS region
	flagProfile     string // --profile: AWS shared-config profile
	flagOutputDir   string // --output-dir: profile record directory
	flagConcurrency int    // --concurrency: users reconciled at once
	flagLogLevel    string // --log-level: diagnostic log level
)

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupSync, Title: "Sync Commands:"},
		&cobra.Group{ID: GroupInspect, Title: "Inspection Commands:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", config.DefaultPath, "Settings file (TOML)")
	pf.StringVar(&flagRegion, "region", "", "AWS region")
	pf.StringVar(&flagProfile, "profile", "", "AWS shared-config profile")
	pf.StringVar(&flagOutputDir, "output-dir", "", "Directory for login profile records")
	pf.IntVar(&flagConcurrency, "concurrency", 0, "Users reconciled at once")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: trace, debug, info, warn, error, off")
}

// Execute runs the root command. Errors are printed to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", style.ErrorPrefix, err)
		return err
	}
	return nil
}

// requireSubcommand is used as RunE for parent commands so that an unknown
// or missing subcommand is an error.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
}

// loadSettings resolves settings from the file, the environment and flags,
// in increasing precedence.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	cfg, err := config.Load(configPath, !cmd.Flags().Changed("config"))
	if err != nil {
		return config.Settings{}, err
	}
	cfg.ApplyEnv(os.Getenv)

	flags := cmd.Flags()
	if flags.Changed("region") {
		cfg.Region = flagRegion
	}
	if flags.Changed("profile") {
		cfg.Profile = flagProfile
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = flagOutputDir
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = flagConcurrency
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Settings{}, err
	}
	return cfg, nil
}
