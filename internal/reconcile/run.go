package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/iamsync/internal/desired"
)

// Result is the reconciliation result for one desired user.
type Result struct {
	Outcome Outcome
	Err     error
	// Skipped is set when the run was aborted before this user was started.
	Skipped bool
}

// RunError reports the users whose reconciliation failed. The run itself
// completed.
type RunError struct {
	Failed []string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%d user(s) failed: %s", len(e.Failed), strings.Join(e.Failed, ", "))
}

// Run reconciles users in document order, at most concurrency at a time.
//
// A failing user does not stop the others; Run then returns a *RunError after
// every user was attempted. A credential that cannot be recorded aborts the
// run: users not yet started are marked Skipped and the error is returned.
// Results are always returned in document order.
func (r *Reconciler) Run(ctx context.Context, users []desired.User, concurrency int) ([]Result, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Result, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, u := range users {
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = Result{Outcome: Outcome{User: u.Name}, Skipped: true}
				return nil
			}
			out, err := r.Reconcile(gctx, u)
			results[i] = Result{Outcome: out, Err: err}
			if err != nil {
				r.log.Error().Err(err).Str("user", u.Name).Msg("reconcile failed")
			}
			if errors.Is(err, ErrCredentialLost) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	var failed []string
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res.Outcome.User)
		}
	}
	if len(failed) > 0 {
		return results, &RunError{Failed: failed}
	}
	return results, nil
}
