// Package report turns reconciliation outcomes into human-readable lines.
package report

import (
	"fmt"
	"io"

	"github.com/steveyegge/iamsync/internal/reconcile"
	"github.com/steveyegge/iamsync/internal/style"
)

// Change line texts.
const (
	MsgCreated      = "user created"
	MsgTagged       = "tags updated"
	MsgGroupChanged = "groups updated"
	MsgNoChanges    = "No changes."
)

// Lines describes an outcome: one line per change, or a single no-change
// line.
func Lines(o reconcile.Outcome) []string {
	var lines []string
	if o.Created {
		lines = append(lines, fmt.Sprintf("%s: %s", o.User, MsgCreated))
	}
	if o.Tagged {
		lines = append(lines, fmt.Sprintf("%s: %s", o.User, MsgTagged))
	}
	if o.GroupChanged {
		lines = append(lines, fmt.Sprintf("%s: %s", o.User, MsgGroupChanged))
	}
	if len(lines) == 0 {
		lines = append(lines, fmt.Sprintf("%s: %s", o.User, MsgNoChanges))
	}
	return lines
}

// Summary totals a run.
type Summary struct {
	Users        int
	Created      int
	Tagged       int
	GroupChanged int
	Unchanged    int
	Failed       int
	Skipped      int
}

// Summarize counts results.
func Summarize(results []reconcile.Result) Summary {
	s := Summary{Users: len(results)}
	for _, res := range results {
		o := res.Outcome
		switch {
		case res.Skipped:
			s.Skipped++
			continue
		case res.Err != nil:
			s.Failed++
		case !o.Changed():
			s.Unchanged++
		}
		if o.Created {
			s.Created++
		}
		if o.Tagged {
			s.Tagged++
		}
		if o.GroupChanged {
			s.GroupChanged++
		}
	}
	return s
}

func (s Summary) String() string {
	line := fmt.Sprintf("%d users: %d created, %d tagged, %d group changes, %d unchanged, %d failed",
		s.Users, s.Created, s.Tagged, s.GroupChanged, s.Unchanged, s.Failed)
	if s.Skipped > 0 {
		line += fmt.Sprintf(", %d skipped", s.Skipped)
	}
	return line
}

// Print writes the per-user lines and the summary for a run.
func Print(w io.Writer, results []reconcile.Result) {
	for _, res := range results {
		if res.Skipped {
			fmt.Fprintf(w, "%s %s\n", style.SkippedPrefix, style.Dim.Render(res.Outcome.User+": skipped"))
			continue
		}
		if res.Err == nil || res.Outcome.Changed() {
			for _, line := range Lines(res.Outcome) {
				prefix := style.ChangedPrefix
				if !res.Outcome.Changed() {
					prefix = style.UnchangedPrefix
				}
				fmt.Fprintf(w, "%s %s\n", prefix, line)
			}
		}
		if res.Err != nil {
			fmt.Fprintf(w, "%s %s: %v\n", style.ErrorPrefix, res.Outcome.User, res.Err)
		}
	}
	fmt.Fprintf(w, "\n%s\n", style.Bold.Render(Summarize(results).String()))
}
