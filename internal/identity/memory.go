package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Call records one operation received by a Memory service.
type Call struct {
	Op   string
	User string
	// Arg is the group name for membership calls and empty otherwise.
	Arg string
	// Tags holds the payload of TagUser calls.
	Tags []Tag
}

type memoryUser struct {
	// tags is keyed by Fold(key).
	tags          map[string]Tag
	groups        []string
	loginPassword string
	resetRequired bool
}

// Memory is an in-process Service. It records every call and can be told to
// fail specific operations. Like IAM, it matches user names, group names and
// tag keys regardless of case.
type Memory struct {
	mu        sync.Mutex
	accountID string
	users     map[string]*memoryUser
	calls     []Call
	failures  map[string]error
}

// NewMemory creates an empty in-memory identity service for the given account.
func NewMemory(accountID string) *Memory {
	return &Memory{
		accountID: accountID,
		users:     make(map[string]*memoryUser),
		failures:  make(map[string]error),
	}
}

// PutUser seeds an existing user with tags and groups.
func (m *Memory) PutUser(name string, tags map[string]string, groups ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := &memoryUser{tags: make(map[string]Tag), groups: slices.Clone(groups)}
	for k, v := range tags {
		u.tags[Fold(k)] = Tag{Key: k, Value: v}
	}
	m.users[Fold(name)] = u
}

// FailOn makes op fail with err. An empty user matches every user.
func (m *Memory) FailOn(op, user string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[failureKey(op, user)] = err
}

func failureKey(op, user string) string {
	return op + "\x00" + Fold(user)
}

// failure must be called with m.mu held.
func (m *Memory) failure(op, user string) error {
	err, ok := m.failures[failureKey(op, user)]
	if !ok {
		err, ok = m.failures[failureKey(op, "")]
	}
	if !ok {
		return nil
	}
	return &RemoteError{Op: op, User: user, Code: "Injected", Err: err}
}

// record must be called with m.mu held.
func (m *Memory) record(c Call) {
	m.calls = append(m.calls, c)
}

// lookup must be called with m.mu held.
func (m *Memory) lookup(op, name string) (*memoryUser, error) {
	u, ok := m.users[Fold(name)]
	if !ok {
		return nil, &RemoteError{Op: op, User: name, Code: "NoSuchEntity", Err: errors.New("user not found")}
	}
	return u, nil
}

// Calls returns a copy of every call received so far.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallsTo returns the recorded calls for a single operation.
func (m *Memory) CallsTo(op string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Call
	for _, c := range m.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Exists reports whether the user is known.
func (m *Memory) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[Fold(name)]
	return ok
}

// Tags returns a copy of the user's tags.
func (m *Memory) Tags(name string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string)
	if u, ok := m.users[Fold(name)]; ok {
		for _, t := range u.tags {
			out[t.Key] = t.Value
		}
	}
	return out
}

// Groups returns the user's groups in sorted order.
func (m *Memory) Groups(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[Fold(name)]
	if !ok {
		return nil
	}
	out := slices.Clone(u.groups)
	sort.Strings(out)
	return out
}

// LoginPassword returns the console password set for the user, if any.
func (m *Memory) LoginPassword(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[Fold(name)]
	if !ok || u.loginPassword == "" {
		return "", false
	}
	return u.loginPassword, u.resetRequired
}

// CreateUser implements Service.
func (m *Memory) CreateUser(ctx context.Context, name string) (CreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: OpCreateUser, User: name})
	if err := m.failure(OpCreateUser, name); err != nil {
		return 0, err
	}
	if _, ok := m.users[Fold(name)]; ok {
		return AlreadyExisted, nil
	}
	m.users[Fold(name)] = &memoryUser{tags: make(map[string]Tag)}
	return Created, nil
}

// CreateLoginProfile implements Service.
func (m *Memory) CreateLoginProfile(ctx context.Context, name, password string, resetRequired bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: OpCreateLoginProfile, User: name})
	if err := m.failure(OpCreateLoginProfile, name); err != nil {
		return err
	}
	u, err := m.lookup(OpCreateLoginProfile, name)
	if err != nil {
		return err
	}
	if u.loginPassword != "" {
		return &RemoteError{Op: OpCreateLoginProfile, User: name, Code: "EntityAlreadyExists", Err: errors.New("login profile exists")}
	}
	u.loginPassword = password
	u.resetRequired = resetRequired
	return nil
}

// ListUserTags implements Service.
func (m *Memory) ListUserTags(ctx context.Context, name string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: OpListUserTags, User: name})
	if err := m.failure(OpListUserTags, name); err != nil {
		return nil, err
	}
	u, err := m.lookup(OpListUserTags, name)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(u.tags))
	for _, t := range u.tags {
		out[t.Key] = t.Value
	}
	return out, nil
}

// TagUser implements Service.
func (m *Memory) TagUser(ctx context.Context, name string, tags []Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: OpTagUser, User: name, Tags: slices.Clone(tags)})
	if err := m.failure(OpTagUser, name); err != nil {
		return err
	}
	u, err := m.lookup(OpTagUser, name)
	if err != nil {
		return err
	}
	// A key matching an existing one in another case replaces it.
	for _, t := range tags {
		u.tags[Fold(t.Key)] = t
	}
	return nil
}

// ListGroupsForUser implements Service.
func (m *Memory) ListGroupsForUser(ctx context.Context, name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: OpListGroupsForUser, User: name})
	if err := m.failure(OpListGroupsForUser, name); err != nil {
		return nil, err
	}
	u, err := m.lookup(OpListGroupsForUser, name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(u.groups), nil
}

// AddUserToGroup implements Service. Adding an existing membership is a no-op.
func (m *Memory) AddUserToGroup(ctx context.Context, name, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: OpAddUserToGroup, User: name, Arg: group})
	if err := m.failure(OpAddUserToGroup, name); err != nil {
		return err
	}
	u, err := m.lookup(OpAddUserToGroup, name)
	if err != nil {
		return err
	}
	if memberIndex(u.groups, group) < 0 {
		u.groups = append(u.groups, group)
	}
	return nil
}

// RemoveUserFromGroup implements Service.
func (m *Memory) RemoveUserFromGroup(ctx context.Context, name, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: OpRemoveUserFromGroup, User: name, Arg: group})
	if err := m.failure(OpRemoveUserFromGroup, name); err != nil {
		return err
	}
	u, err := m.lookup(OpRemoveUserFromGroup, name)
	if err != nil {
		return err
	}
	i := memberIndex(u.groups, group)
	if i < 0 {
		return &RemoteError{Op: OpRemoveUserFromGroup, User: name, Code: "NoSuchEntity", Err: fmt.Errorf("not a member of %s", group)}
	}
	u.groups = slices.Delete(u.groups, i, i+1)
	return nil
}

// AccountID implements Service.
func (m *Memory) AccountID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Op: OpGetCallerAccountID})
	if err := m.failure(OpGetCallerAccountID, ""); err != nil {
		return "", err
	}
	return m.accountID, nil
}

func memberIndex(groups []string, group string) int {
	return slices.IndexFunc(groups, func(g string) bool { return SameName(g, group) })
}
