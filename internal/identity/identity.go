// Package identity is the boundary to the remote identity service that owns
// IAM users, their tags and their group memberships.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// Operation names, used in RemoteError and call recordings.
const (
	OpCreateUser          = "CreateUser"
	OpCreateLoginProfile  = "CreateLoginProfile"
	OpListUserTags        = "ListUserTags"
	OpTagUser             = "TagUser"
	OpListGroupsForUser   = "ListGroupsForUser"
	OpAddUserToGroup      = "AddUserToGroup"
	OpRemoveUserFromGroup = "RemoveUserFromGroup"
	OpGetCallerAccountID  = "GetCallerAccountId"
)

// ErrRemote is matched by every RemoteError.
var ErrRemote = errors.New("identity service error")

// CreateResult is the non-error outcome of CreateUser.
type CreateResult int

const (
	// Created means the user did not exist and was created by this call.
	Created CreateResult = iota + 1
	// AlreadyExisted means the service reported the user already exists.
	AlreadyExisted
)

func (r CreateResult) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyExisted:
		return "already-existed"
	default:
		return fmt.Sprintf("CreateResult(%d)", int(r))
	}
}

// Tag is a single key/value pair attached to a user.
type Tag struct {
	Key   string
	Value string
}

// Service is the set of remote operations the reconciler consumes.
type Service interface {
	// CreateUser creates the named user. An "already exists" response is
	// reported as AlreadyExisted with a nil error.
	CreateUser(ctx context.Context, name string) (CreateResult, error)

	// CreateLoginProfile sets the console password for a user.
	CreateLoginProfile(ctx context.Context, name, password string, resetRequired bool) error

	// ListUserTags returns the user's current tags.
	ListUserTags(ctx context.Context, name string) (map[string]string, error)

	// TagUser adds or overwrites the given tags. Tags not listed are left alone.
	TagUser(ctx context.Context, name string, tags []Tag) error

	// ListGroupsForUser returns the names of the groups the user belongs to.
	ListGroupsForUser(ctx context.Context, name string) ([]string, error)

	AddUserToGroup(ctx context.Context, name, group string) error
	RemoveUserFromGroup(ctx context.Context, name, group string) error

	// AccountID returns the identifier of the account the caller acts in.
	AccountID(ctx context.Context) (string, error)
}

// RemoteError describes a failed call to the identity service.
type RemoteError struct {
	Op   string
	User string
	// Code is the service error code when one was returned.
	Code string
	Err  error
}

func (e *RemoteError) Error() string {
	msg := e.Op
	if e.User != "" {
		msg += " " + e.User
	}
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Is reports ErrRemote so callers can classify without a type assertion.
func (e *RemoteError) Is(target error) bool { return target == ErrRemote }
