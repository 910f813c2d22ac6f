package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietdv277/gpuws/internal/aws"
	"github.com/vietdv277/gpuws/internal/config"
	"github.com/vietdv277/gpuws/internal/ui"
)

var instanceFlags = map[string]string{
	"network-name":  "vpc_name",
	"subnet-name":   "subnet_name",
	"instance-name": "instance_name",
	"image-id":      "image_id",
	"instance-type": "instance_type",
	"key-name":      "key_name",
}

func newInstanceCmd(g *globals) *cobra.Command {
	actions := []action{
		{name: "run", run: runInstanceRun},
		{name: "start", run: transitionRunner("started", (*aws.Client).StartInstance)},
		{name: "stop", run: transitionRunner("stopped", (*aws.Client).StopInstance)},
		{name: "reboot", run: transitionRunner("rebooted", (*aws.Client).RebootInstance)},
		{name: "terminate", run: transitionRunner("terminated", (*aws.Client).TerminateInstance)},
		{name: "describe", run: runInstanceDescribe},
	}

	cmd := newResourceCmd(g, "instance", "Run and control the workspace GPU instance",
		`Run and control the workspace instance.

run launches one instance from the newest matching Deep Learning AMI (or
--image-id) into the workspace subnet and security group. start, stop,
reboot and terminate change its state. Every action except describe
blocks until the instance reaches the resulting state.

describe prints the current state and, while running, the ssh command.

Examples:
  gpuws instance run --instance-type g4dn.xlarge
  gpuws instance stop
  gpuws instance describe --instance-name bert`,
		actions, instanceFlags)

	cmd.Flags().String("network-name", "", "name tag of the workspace VPC")
	cmd.Flags().String("subnet-name", "", "name tag of the workspace subnet")
	cmd.Flags().String("instance-name", "", "name tag of the instance")
	cmd.Flags().String("image-id", "", "image to launch instead of the latest matching AMI")
	cmd.Flags().String("instance-type", "", "EC2 instance type to launch")
	cmd.Flags().String("key-name", "", "key pair to launch the instance with")

	return cmd
}

func runInstanceRun(ctx context.Context, cmd *cobra.Command, c *aws.Client, ws config.Workspace) error {
	id, err := c.RunInstance(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Instance '%s' (%s) is running\n", ws.InstanceName, id)
	return nil
}

func transitionRunner(done string, transition func(*aws.Client, context.Context) error) func(context.Context, *cobra.Command, *aws.Client, config.Workspace) error {
	return func(ctx context.Context, cmd *cobra.Command, c *aws.Client, ws config.Workspace) error {
		if err := transition(c, ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Instance '%s' %s\n", ws.InstanceName, done)
		return nil
	}
}

// runInstanceDescribe reports a missing instance instead of failing
func runInstanceDescribe(ctx context.Context, cmd *cobra.Command, c *aws.Client, ws config.Workspace) error {
	inst, err := c.DescribeInstance(ctx)
	if errors.Is(err, aws.ErrNotFound) {
		ui.PrintNotCreated(cmd.OutOrStdout())
		return nil
	}
	if err != nil {
		return err
	}

	ui.PrintInstance(cmd.OutOrStdout(), inst, c.KeyPath(ws.KeyDir), ws.SSHUser)
	return nil
}
