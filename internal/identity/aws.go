package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

const defaultRegion = "us-east-1"

// iamClient is the subset of the IAM API used here.
type iamClient interface {
	CreateUser(ctx context.Context, in *iam.CreateUserInput, optFns ...func(*iam.Options)) (*iam.CreateUserOutput, error)
	CreateLoginProfile(ctx context.Context, in *iam.CreateLoginProfileInput, optFns ...func(*iam.Options)) (*iam.CreateLoginProfileOutput, error)
	TagUser(ctx context.Context, in *iam.TagUserInput, optFns ...func(*iam.Options)) (*iam.TagUserOutput, error)
	AddUserToGroup(ctx context.Context, in *iam.AddUserToGroupInput, optFns ...func(*iam.Options)) (*iam.AddUserToGroupOutput, error)
	RemoveUserFromGroup(ctx context.Context, in *iam.RemoveUserFromGroupInput, optFns ...func(*iam.Options)) (*iam.RemoveUserFromGroupOutput, error)
	iam.ListUserTagsAPIClient
	iam.ListGroupsForUserAPIClient
}

type stsClient interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWS implements Service against AWS IAM and STS.
type AWS struct {
	iam         iamClient
	sts         stsClient
	region      string
	profile     string
	rateLimiter *rateLimiter
}

// Option configures the AWS service.
type Option func(*AWS)

// WithRegion sets the AWS region used for STS. IAM itself is global.
func WithRegion(region string) Option {
	return func(a *AWS) {
		if region != "" {
			a.region = region
		}
	}
}

// WithProfile selects a named profile from the shared AWS config files.
func WithProfile(profile string) Option {
	return func(a *AWS) {
		a.profile = profile
	}
}

// WithRateLimit caps remote calls per second. Zero or less disables limiting.
func WithRateLimit(perSecond int) Option {
	return func(a *AWS) {
		if perSecond <= 0 {
			a.rateLimiter = nil
			return
		}
		a.rateLimiter = newRateLimiter(perSecond, time.Second)
	}
}

// NewAWS creates a Service using the default AWS credential chain.
func NewAWS(ctx context.Context, opts ...Option) (*AWS, error) {
	a := &AWS{region: defaultRegion}
	for _, opt := range opts {
		opt(a)
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(a.region)}
	if a.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(a.profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	a.iam = iam.NewFromConfig(cfg)
	a.sts = sts.NewFromConfig(cfg)
	return a, nil
}

func (a *AWS) wait(ctx context.Context) error {
	if a.rateLimiter == nil {
		return nil
	}
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// CreateUser implements Service.
func (a *AWS) CreateUser(ctx context.Context, name string) (CreateResult, error) {
	if err := a.wait(ctx); err != nil {
		return 0, remoteError(OpCreateUser, name, err)
	}
	_, err := a.iam.CreateUser(ctx, &iam.CreateUserInput{UserName: aws.String(name)})
	if err != nil {
		var exists *types.EntityAlreadyExistsException
		if errors.As(err, &exists) {
			return AlreadyExisted, nil
		}
		return 0, remoteError(OpCreateUser, name, err)
	}
	return Created, nil
}

// CreateLoginProfile implements Service.
func (a *AWS) CreateLoginProfile(ctx context.Context, name, password string, resetRequired bool) error {
	if err := a.wait(ctx); err != nil {
		return remoteError(OpCreateLoginProfile, name, err)
	}
	_, err := a.iam.CreateLoginProfile(ctx, &iam.CreateLoginProfileInput{
		UserName:              aws.String(name),
		Password:              aws.String(password),
		PasswordResetRequired: resetRequired,
	})
	if err != nil {
		return remoteError(OpCreateLoginProfile, name, err)
	}
	return nil
}

// ListUserTags implements Service. All pages are read.
func (a *AWS) ListUserTags(ctx context.Context, name string) (map[string]string, error) {
	tags := make(map[string]string)
	p := iam.NewListUserTagsPaginator(a.iam, &iam.ListUserTagsInput{UserName: aws.String(name)})
	for p.HasMorePages() {
		if err := a.wait(ctx); err != nil {
			return nil, remoteError(OpListUserTags, name, err)
		}
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, remoteError(OpListUserTags, name, err)
		}
		for _, t := range page.Tags {
			tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
		}
	}
	return tags, nil
}

// TagUser implements Service.
func (a *AWS) TagUser(ctx context.Context, name string, tags []Tag) error {
	if err := a.wait(ctx); err != nil {
		return remoteError(OpTagUser, name, err)
	}
	in := &iam.TagUserInput{
		UserName: aws.String(name),
		Tags:     make([]types.Tag, 0, len(tags)),
	}
	for _, t := range tags {
		in.Tags = append(in.Tags, types.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	if _, err := a.iam.TagUser(ctx, in); err != nil {
		return remoteError(OpTagUser, name, err)
	}
	return nil
}

// ListGroupsForUser implements Service. All pages are read.
func (a *AWS) ListGroupsForUser(ctx context.Context, name string) ([]string, error) {
	var groups []string
	p := iam.NewListGroupsForUserPaginator(a.iam, &iam.ListGroupsForUserInput{UserName: aws.String(name)})
	for p.HasMorePages() {
		if err := a.wait(ctx); err != nil {
			return nil, remoteError(OpListGroupsForUser, name, err)
		}
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, remoteError(OpListGroupsForUser, name, err)
		}
		for _, g := range page.Groups {
			groups = append(groups, aws.ToString(g.GroupName))
		}
	}
	return groups, nil
}

// AddUserToGroup implements Service.
func (a *AWS) AddUserToGroup(ctx context.Context, name, group string) error {
	if err := a.wait(ctx); err != nil {
		return remoteError(OpAddUserToGroup, name, err)
	}
	_, err := a.iam.AddUserToGroup(ctx, &iam.AddUserToGroupInput{
		UserName:  aws.String(name),
		GroupName: aws.String(group),
	})
	if err != nil {
		return remoteError(OpAddUserToGroup, name, fmt.Errorf("group %s: %w", group, err))
	}
	return nil
}

// RemoveUserFromGroup implements Service.
func (a *AWS) RemoveUserFromGroup(ctx context.Context, name, group string) error {
	if err := a.wait(ctx); err != nil {
		return remoteError(OpRemoveUserFromGroup, name, err)
	}
	_, err := a.iam.RemoveUserFromGroup(ctx, &iam.RemoveUserFromGroupInput{
		UserName:  aws.String(name),
		GroupName: aws.String(group),
	})
	if err != nil {
		return remoteError(OpRemoveUserFromGroup, name, fmt.Errorf("group %s: %w", group, err))
	}
	return nil
}

// AccountID implements Service using STS GetCallerIdentity.
func (a *AWS) AccountID(ctx context.Context) (string, error) {
	if err := a.wait(ctx); err != nil {
		return "", remoteError(OpGetCallerAccountID, "", err)
	}
	out, err := a.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", remoteError(OpGetCallerAccountID, "", err)
	}
	id := aws.ToString(out.Account)
	if id == "" {
		return "", remoteError(OpGetCallerAccountID, "", errors.New("empty account id"))
	}
	return id, nil
}

// remoteError wraps err, lifting the service error code when there is one.
func remoteError(op, user string, err error) *RemoteError {
	re := &RemoteError{Op: op, User: user, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		re.Code = apiErr.ErrorCode()
	}
	return re
}
