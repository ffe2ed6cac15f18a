package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/steveyegge/iamsync/internal/config"
	"github.com/steveyegge/iamsync/internal/desired"
	"github.com/steveyegge/iamsync/internal/identity"
	"github.com/steveyegge/iamsync/internal/logging"
	"github.com/steveyegge/iamsync/internal/profile"
	"github.com/steveyegge/iamsync/internal/reconcile"
	"github.com/steveyegge/iamsync/internal/report"
)

var updateCmd = &cobra.Command{
	Use:     "update <template_path>",
	GroupID: GroupSync,
	Short:   "Reconcile IAM users with a template",
	Long: `Reconcile every user declared in the template, in document order.

For each user:
  1. Create the user if missing, with a console password that must be reset
     at first sign-in. The password is written to <output_dir>/<user>.csv.
  2. Set declared tags that are missing or differ.
  3. Add and remove group memberships to match the declared groups exactly.

The template is validated before any call to AWS. A failure for one user does
not stop the others; the command exits 1 if any user failed. A password that
cannot be written aborts the run.

Template format:
  Users:
    - Name: alice
      Tags: {team: core}
      Groups: [admins]

Examples:
  iamsync update users.yaml
  iamsync update users.yaml --output-dir ./profiles --concurrency 4
  iamsync update users.yaml --profile prod --log-level debug`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

// newService builds the identity service for a run. Tests replace it.
var newService = func(ctx context.Context, cfg config.Settings) (identity.Service, error) {
	svc, err := identity.NewAWS(ctx,
		identity.WithRegion(cfg.Region),
		identity.WithProfile(cfg.Profile),
		identity.WithRateLimit(cfg.RequestsPerSecond),
	)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	// Nothing touches AWS until the whole template is valid.
	users, err := desired.Load(args[0])
	if err != nil {
		return err
	}

	log := logging.Init(level, uuid.NewString())
	log.Info().Str("template", args[0]).Int("users", len(users)).Msg("starting run")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := newService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing identity service: %w", err)
	}

	unlock, err := profile.Lock(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warn().Err(err).Msg("releasing profile directory lock")
		}
	}()

	sink := profile.NewSink(cfg.OutputDir, svc,
		profile.WithConsoleDomain(cfg.ConsoleDomain),
		profile.WithLogger(log),
	)
	r := reconcile.New(svc, sink,
		reconcile.WithPasswordLength(cfg.PasswordLength),
		reconcile.WithLogger(log),
		reconcile.WithObserver(logOutcome(log)),
	)

	results, runErr := r.Run(ctx, users, cfg.Concurrency)
	report.Print(cmd.OutOrStdout(), results)

	if runErr != nil {
		log.Error().Err(runErr).Msg("run finished with errors")
		return runErr
	}
	log.Info().Msg("run finished")
	return nil
}

// logOutcome returns an observer that logs what each user's reconciliation
// achieved, including partial work before a failure.
func logOutcome(log zerolog.Logger) func(reconcile.Outcome, error) {
	return func(o reconcile.Outcome, err error) {
		var ev *zerolog.Event
		if err != nil {
			ev = log.Warn().Err(err)
		} else {
			ev = log.Info()
		}
		ev.Str("user", o.User).
			Bool("created", o.Created).
			Bool("tagged", o.Tagged).
			Bool("group_changed", o.GroupChanged).
			Msg("user reconciled")
	}
}
