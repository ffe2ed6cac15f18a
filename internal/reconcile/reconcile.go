// Package reconcile converges the identity service toward the desired users.
//
// For each user it ensures the user exists (issuing a console credential only
// on creation), that the remote tags are a superset of the desired tags, and
// that group membership equals the desired set exactly. Tagging is additive:
// remote tags that are not declared are never removed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/steveyegge/iamsync/internal/credential"
	"github.com/steveyegge/iamsync/internal/desired"
	"github.com/steveyegge/iamsync/internal/identity"
)

// ErrCredentialLost indicates a generated password could not be persisted.
// It aborts the whole run.
var ErrCredentialLost = errors.New("generated credential could not be recorded")

// Outcome records what a reconciliation changed for one user.
type Outcome struct {
	User         string
	Created      bool
	Tagged       bool
	GroupChanged bool
}

// Changed reports whether anything was written for the user.
func (o Outcome) Changed() bool {
	return o.Created || o.Tagged || o.GroupChanged
}

// Sink receives the sign-in details of newly created users.
type Sink interface {
	Record(ctx context.Context, username, password string) error
}

// Reconciler applies desired users against an identity service.
type Reconciler struct {
	svc            identity.Service
	sink           Sink
	passwordLength int
	generate       func(length int) (string, error)
	observe        func(Outcome, error)
	log            zerolog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPasswordLength sets the length of generated passwords.
func WithPasswordLength(n int) Option {
	return func(r *Reconciler) {
		r.passwordLength = n
	}
}

// WithGenerator replaces the password generator.
func WithGenerator(fn func(length int) (string, error)) Option {
	return func(r *Reconciler) {
		r.generate = fn
	}
}

// WithObserver registers fn to be called once per Reconcile with whatever
// was achieved, on success and on every failure path.
func WithObserver(fn func(Outcome, error)) Option {
	return func(r *Reconciler) {
		r.observe = fn
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) {
		r.log = l
	}
}

// New creates a Reconciler.
func New(svc identity.Service, sink Sink, opts ...Option) *Reconciler {
	r := &Reconciler{
		svc:            svc,
		sink:           sink,
		passwordLength: credential.DefaultLength,
		generate:       credential.Generate,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile converges one user. The returned Outcome reflects the work
// completed even when err is non-nil. Tags and groups are not touched when the
// user could not be ensured.
func (r *Reconciler) Reconcile(ctx context.Context, u desired.User) (out Outcome, err error) {
	out.User = u.Name
	log := r.log.With().Str("user", u.Name).Logger()

	defer func() {
		if r.observe != nil {
			r.observe(out, err)
		}
	}()

	created, err := r.ensureUser(ctx, u.Name, log)
	out.Created = created
	if err != nil {
		return out, err
	}

	out.Tagged, err = r.reconcileTags(ctx, u, log)
	if err != nil {
		return out, err
	}

	out.GroupChanged, err = r.reconcileGroups(ctx, u, log)
	return out, err
}

// ensureUser creates the user when missing and issues its console credential.
// It reports whether the user was created by this call.
func (r *Reconciler) ensureUser(ctx context.Context, name string, log zerolog.Logger) (bool, error) {
	res, err := r.svc.CreateUser(ctx, name)
	if err != nil {
		return false, fmt.Errorf("creating user: %w", err)
	}

	switch res {
	case identity.AlreadyExisted:
		log.Debug().Msg("user already exists")
		return false, nil
	case identity.Created:
		log.Info().Msg("user created")
	default:
		return false, fmt.Errorf("creating user: unexpected result %v", res)
	}

	password, err := r.generate(r.passwordLength)
	if err != nil {
		return true, fmt.Errorf("generating password: %w", err)
	}
	if err := r.svc.CreateLoginProfile(ctx, name, password, true); err != nil {
		return true, fmt.Errorf("creating login profile: %w", err)
	}
	if err := r.sink.Record(ctx, name, password); err != nil {
		return true, fmt.Errorf("%w: %w", ErrCredentialLost, err)
	}
	log.Debug().Msg("login profile issued")
	return true, nil
}

// reconcileTags pushes the full desired tag list when the remote tags are not
// already a superset of it.
func (r *Reconciler) reconcileTags(ctx context.Context, u desired.User, log zerolog.Logger) (bool, error) {
	current, err := r.svc.ListUserTags(ctx, u.Name)
	if err != nil {
		return false, fmt.Errorf("listing tags: %w", err)
	}
	if !TagDrift(current, u.Tags) {
		return false, nil
	}

	tags := SortedTags(u.Tags)
	if err := r.svc.TagUser(ctx, u.Name, tags); err != nil {
		return false, fmt.Errorf("tagging user: %w", err)
	}
	log.Info().Int("tags", len(tags)).Msg("tags updated")
	return true, nil
}

// reconcileGroups adds missing memberships and removes undeclared ones. Every
// change is attempted; failures are joined. It reports whether any change
// succeeded.
func (r *Reconciler) reconcileGroups(ctx context.Context, u desired.User, log zerolog.Logger) (bool, error) {
	current, err := r.svc.ListGroupsForUser(ctx, u.Name)
	if err != nil {
		return false, fmt.Errorf("listing groups: %w", err)
	}

	add, remove := GroupDiff(current, u.Groups)
	changed := false
	var errs []error

	for _, g := range add {
		if err := r.svc.AddUserToGroup(ctx, u.Name, g); err != nil {
			errs = append(errs, fmt.Errorf("adding to group %s: %w", g, err))
			continue
		}
		changed = true
		log.Info().Str("group", g).Msg("added to group")
	}
	for _, g := range remove {
		if err := r.svc.RemoveUserFromGroup(ctx, u.Name, g); err != nil {
			errs = append(errs, fmt.Errorf("removing from group %s: %w", g, err))
			continue
		}
		changed = true
		log.Info().Str("group", g).Msg("removed from group")
	}

	return changed, errors.Join(errs...)
}

// TagDrift reports whether any desired tag is missing from current or has a
// different value there. Keys match regardless of case; values must match
// exactly.
func TagDrift(current, want map[string]string) bool {
	have := make(map[string]string, len(current))
	for k, v := range current {
		have[identity.Fold(k)] = v
	}
	for k, v := range want {
		if got, ok := have[identity.Fold(k)]; !ok || got != v {
			return true
		}
	}
	return false
}

// SortedTags converts a tag mapping to a list ordered by key.
func SortedTags(tags map[string]string) []identity.Tag {
	out := make([]identity.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, identity.Tag{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// GroupDiff returns the groups to join (in desired order) and to leave (in
// current order). Group names match regardless of case, and repeated names
// are considered once.
func GroupDiff(current, want []string) (add, remove []string) {
	have := make(map[string]bool, len(current))
	for _, g := range current {
		have[identity.Fold(g)] = true
	}
	keep := make(map[string]bool, len(want))
	for _, g := range want {
		key := identity.Fold(g)
		if keep[key] {
			continue
		}
		keep[key] = true
		if !have[key] {
			add = append(add, g)
		}
	}

	seen := make(map[string]bool, len(current))
	for _, g := range current {
		key := identity.Fold(g)
		if keep[key] || seen[key] {
			continue
		}
		seen[key] = true
		remove = append(remove, g)
	}
	return add, remove
}
