package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// CallerIdentity represents AWS caller identity information
type CallerIdentity struct {
	Account string
	Arn     string
	UserID  string
}

// STSAPI is the part of the STS client used to check credentials
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

var _ STSAPI = (*sts.Client)(nil)

// GetCallerIdentity returns the identity the given profile and region
// authenticate as.
func GetCallerIdentity(ctx context.Context, profile, region string) (*CallerIdentity, error) {
	var configOpts []func(*config.LoadOptions) error

	if profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(profile))
	}

	if region != "" {
		configOpts = append(configOpts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	return CallerIdentityFrom(ctx, sts.NewFromConfig(cfg))
}

// CallerIdentityFrom asks api who the current credentials belong to
func CallerIdentityFrom(ctx context.Context, api STSAPI) (*CallerIdentity, error) {
	output, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get caller identity: %w", err)
	}

	return &CallerIdentity{
		Account: deref(output.Account),
		Arn:     deref(output.Arn),
		UserID:  deref(output.UserId),
	}, nil
}
