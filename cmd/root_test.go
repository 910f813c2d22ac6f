package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietdv277/gpuws/internal/aws"
	"github.com/vietdv277/gpuws/internal/aws/fakeec2"
	"github.com/vietdv277/gpuws/internal/config"
	"github.com/vietdv277/gpuws/internal/logger"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// harness runs commands against one fake EC2 account and one in-memory
// file system that persist across invocations.
type harness struct {
	t       *testing.T
	fake    *fakeec2.Fake
	fs      afero.Fs
	clients int
	last    config.Workspace
	client  *aws.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	fake := fakeec2.New()
	fake.Images = []ec2types.Image{{
		ImageId:         awssdk.String("ami-0dl"),
		Name:            awssdk.String("Deep Learning AMI GPU TensorFlow 2.11.1 (Ubuntu 20.04) 20230324"),
		CreationDate:    awssdk.String("2023-03-24T08:00:00.000Z"),
		State:           ec2types.ImageStateAvailable,
		ImageOwnerAlias: awssdk.String("amazon"),
	}}

	h := &harness{t: t, fake: fake, fs: afero.NewMemMapFs()}

	orig := newClient
	newClient = func(_ context.Context, ws config.Workspace) (*aws.Client, error) {
		h.clients++
		h.client = aws.NewClientFromAPI(h.fake,
			aws.WithProfile(ws.Profile),
			aws.WithRegion(ws.Region),
			aws.WithWorkspace(ws),
			aws.WithWaiter(&aws.Waiter{Interval: time.Millisecond}),
			aws.WithFs(h.fs),
		)
		h.last = h.client.Workspace()
		return h.client, nil
	}
	t.Cleanup(func() { newClient = orig })

	return h
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()

	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()

	out, err := h.run(args...)
	require.NoError(h.t, err, "gpuws %v", args)
	return out
}

func TestInvalidAction(t *testing.T) {
	tests := []struct {
		args    []string
		allowed string
	}{
		{[]string{"vpc", "launch"}, "create, delete"},
		{[]string{"subnet", "list"}, "create, delete"},
		{[]string{"key-pair", "rotate"}, "create, delete"},
		{[]string{"instance", "launch"}, "run, start, stop, reboot, terminate, describe"},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			h := newHarness(t)

			_, err := h.run(tt.args...)
			require.ErrorIs(t, err, ErrInvalidAction)
			assert.Contains(t, err.Error(), "'"+tt.args[1]+"'")
			assert.Contains(t, err.Error(), tt.allowed)
			assert.Zero(t, h.clients)
			assert.Empty(t, h.fake.Calls())
		})
	}
}

func TestActionIsCaseInsensitive(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("vpc", "Create")
	assert.Contains(t, out, "VPC 'workspace' created")
	assert.Equal(t, 1, h.fake.Called("CreateVpc"))
}

func TestMissingAction(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("instance")
	require.Error(t, err)
	assert.Zero(t, h.clients)
}

func TestInstanceDescribe_NotCreated(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("instance", "describe")
	assert.Contains(t, out, "Instance has not been created yet")
}

func TestInstanceRun_WithoutSubnet(t *testing.T) {
	h := newHarness(t)
	h.mustRun("vpc", "create")

	_, err := h.run("instance", "run")
	require.ErrorIs(t, err, aws.ErrNotFound)
	assert.Contains(t, err.Error(), "Subnet with name 'public' does not exist")
	assert.Zero(t, h.fake.Called("RunInstances"))
}

func TestWorkspaceLifecycle(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("key-pair", "create")
	assert.Contains(t, out, "Key pair 'workspace' created")
	exists, err := afero.Exists(h.fs, "workspace.pem")
	require.NoError(t, err)
	assert.True(t, exists)

	h.mustRun("vpc", "create")
	h.mustRun("subnet", "create")

	out = h.mustRun("instance", "run", "--instance-type", "g4dn.xlarge")
	assert.Contains(t, out, "Instance 'cifar10'")
	assert.Equal(t, "g4dn.xlarge", h.last.InstanceType)

	out = h.mustRun("instance", "describe")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, `ssh -i "workspace.pem" ubuntu@`)

	h.mustRun("instance", "stop")
	out = h.mustRun("instance", "describe")
	assert.Contains(t, out, "stopped")
	assert.NotContains(t, out, "ssh -i")

	h.mustRun("instance", "start")
	h.mustRun("instance", "reboot")
	h.mustRun("instance", "terminate")

	out = h.mustRun("instance", "describe")
	assert.Contains(t, out, "Instance has not been created yet")

	h.mustRun("subnet", "delete")
	h.mustRun("vpc", "delete")
	out = h.mustRun("key-pair", "delete")
	assert.Contains(t, out, "Key pair 'workspace' deleted")
	assert.False(t, h.fake.HasKeyPair("workspace"))

	_, err = h.run("key-pair", "delete")
	assert.Error(t, err)
}

func TestInstanceFlagsOverrideNames(t *testing.T) {
	h := newHarness(t)

	h.mustRun("vpc", "create", "--region", "us-east-1")
	assert.Equal(t, "us-east-1", h.client.Region())

	_, err := h.run("instance", "describe", "--network-name", "lab", "--instance-name", "bert")
	require.NoError(t, err)
	assert.Equal(t, "lab", h.last.VPCName)
	assert.Equal(t, "lab-sg", h.last.SecurityGroupName)
	assert.Equal(t, "bert", h.last.InstanceName)
}

func TestVPCDelete_SubnetStillPresent(t *testing.T) {
	h := newHarness(t)
	h.mustRun("vpc", "create")
	h.mustRun("subnet", "create")

	_, err := h.run("vpc", "delete")
	require.Error(t, err)
	assert.True(t, aws.IsProviderRejected(err))
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("version")
	assert.Contains(t, out, "gpuws")
	assert.Contains(t, out, "Version:    dev")
}

func TestLogLevelRejectsUnknown(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("version", "--log-level", "loud")
	require.Error(t, err)
}
