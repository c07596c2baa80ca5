// Package cloud holds the AWS account plumbing: credential configuration for
// the provider the generated configurations target, and post-apply existence
// checks against the live APIs.
package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Credentials selects how the AWS SDK credential chain is built.
type Credentials struct {
	// Type is one of static, role_arn, profile, env, or default.
	Type string `json:"type" yaml:"type"`

	AccessKey    string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
	SecretKey    string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	SessionToken string `json:"session_token,omitempty" yaml:"session_token,omitempty"`
	RoleARN      string `json:"role_arn,omitempty" yaml:"role_arn,omitempty"`
	Profile      string `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// Identity is the caller identity reported by STS.
type Identity struct {
	Account string `json:"account"`
	ARN     string `json:"arn"`
	UserID  string `json:"user_id"`
}

// stsAPI is the slice of the STS client the account uses.
type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Account builds AWS SDK configuration for a named account and region.
type Account struct {
	name   string
	region string
	creds  Credentials
	logger *slog.Logger
	newSTS func(aws.Config) stsAPI
}

// NewAccount creates an Account. An empty credential type means the default
// chain.
func NewAccount(name, region string, creds Credentials, logger *slog.Logger) *Account {
	if logger == nil {
		logger = slog.Default()
	}
	return &Account{
		name:   name,
		region: region,
		creds:  creds,
		logger: logger,
		newSTS: func(cfg aws.Config) stsAPI { return sts.NewFromConfig(cfg) },
	}
}

// Region returns the account's configured region.
func (a *Account) Region() string { return a.region }

// AWSConfig builds an aws.Config for the account's credential settings.
func (a *Account) AWSConfig(ctx context.Context) (aws.Config, error) {
	credType := a.creds.Type
	if credType == "" {
		credType = "default"
	}

	switch credType {
	case "static", "access_key":
		return config.LoadDefaultConfig(ctx,
			config.WithRegion(a.region),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(a.creds.AccessKey, a.creds.SecretKey, a.creds.SessionToken),
			),
		)

	case "role_arn":
		if a.creds.RoleARN == "" {
			return aws.Config{}, fmt.Errorf("cloud account %q: role_arn credentials require role_arn", a.name)
		}
		baseCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(a.region))
		if err != nil {
			return aws.Config{}, fmt.Errorf("cloud account %q: failed to load base config: %w", a.name, err)
		}
		stsClient := sts.NewFromConfig(baseCfg)
		provider := stscreds.NewAssumeRoleProvider(stsClient, a.creds.RoleARN)
		return config.LoadDefaultConfig(ctx,
			config.WithRegion(a.region),
			config.WithCredentialsProvider(aws.NewCredentialsCache(provider)),
		)

	case "profile":
		profile := a.creds.Profile
		if profile == "" {
			profile = "default"
		}
		return config.LoadDefaultConfig(ctx,
			config.WithRegion(a.region),
			config.WithSharedConfigProfile(profile),
		)

	case "env", "default":
		return config.LoadDefaultConfig(ctx, config.WithRegion(a.region))

	default:
		return aws.Config{}, fmt.Errorf("cloud account %q: unsupported credential type %q", a.name, credType)
	}
}

// Validate calls sts:GetCallerIdentity to verify the credentials work and
// returns the caller identity.
func (a *Account) Validate(ctx context.Context) (Identity, error) {
	cfg, err := a.AWSConfig(ctx)
	if err != nil {
		return Identity{}, err
	}
	out, err := a.newSTS(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("cloud account %q: GetCallerIdentity failed: %w", a.name, err)
	}
	id := Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}
	a.logger.Debug("validated cloud account", "account", a.name, "caller", id.ARN)
	return id, nil
}
