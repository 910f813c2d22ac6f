package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietdv277/gpuws/internal/aws/fakeec2"
	pkgtypes "github.com/vietdv277/gpuws/pkg/types"
)

const credentialsFile = `[default]
aws_access_key_id = AKIAEXAMPLE
aws_secret_access_key = secret

# lab account
[lab]
aws_access_key_id = AKIALAB
`

const configFile = `[default]
region = us-east-1

[profile lab]
region = ap-northeast-2

[profile sso-dev]
sso_start_url = https://example.awsapps.com/start
region = eu-west-1
`

func TestListProfiles(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/home/me/.aws/credentials", []byte(credentialsFile), 0o600))
	require.NoError(t, afero.WriteFile(mem, "/home/me/.aws/config", []byte(configFile), 0o600))

	got, err := ListProfiles(mem, "/home/me")
	require.NoError(t, err)

	want := []pkgtypes.AWSProfile{
		{Name: "default", Region: "us-east-1", Source: "credentials"},
		{Name: "lab", Region: "ap-northeast-2", Source: "credentials"},
		{Name: "sso-dev", Region: "eu-west-1", Source: "config"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListProfiles() mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, HasProfile(got, "sso-dev"))
	assert.False(t, HasProfile(got, "prod"))
}

func TestListProfiles_NoFiles(t *testing.T) {
	got, err := ListProfiles(afero.NewMemMapFs(), "/home/nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

type stubSTS struct {
	out *sts.GetCallerIdentityOutput
	err error
}

func (s stubSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return s.out, s.err
}

func TestCallerIdentityFrom(t *testing.T) {
	id, err := CallerIdentityFrom(context.Background(), stubSTS{out: &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/trainer"),
		UserId:  aws.String("AIDAEXAMPLE"),
	}})
	require.NoError(t, err)
	assert.Equal(t, &CallerIdentity{
		Account: "123456789012",
		Arn:     "arn:aws:iam::123456789012:user/trainer",
		UserID:  "AIDAEXAMPLE",
	}, id)

	_, err = CallerIdentityFrom(context.Background(), stubSTS{err: fakeec2.APIError("ExpiredToken", "The security token included in the request is expired")})
	assert.True(t, IsProviderRejected(err))
	assert.ErrorContains(t, err, "failed to get caller identity")
}
