package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietdv277/gpuws/internal/aws"
	"github.com/vietdv277/gpuws/internal/config"
)

func newVPCCmd(g *globals) *cobra.Command {
	actions := []action{
		{name: "create", run: runVPCCreate},
		{name: "delete", run: runVPCDelete},
	}

	return newResourceCmd(g, "vpc", "Create or delete the workspace VPC",
		`Create or delete the workspace network.

create makes the VPC with DNS hostnames enabled, its security group with
the configured ingress ports, and an internet gateway attached to it.
delete removes the security group, the internet gateway and the VPC, in
that order. Delete the subnet first.

Examples:
  gpuws vpc create
  gpuws vpc delete -p lab -r us-east-1`,
		actions, nil)
}

func runVPCCreate(ctx context.Context, cmd *cobra.Command, c *aws.Client, ws config.Workspace) error {
	if err := c.ProvisionNetwork(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "VPC '%s' created with security group '%s' and internet gateway '%s'\n",
		ws.VPCName, ws.SecurityGroupName, ws.InternetGatewayName)
	return nil
}

func runVPCDelete(ctx context.Context, cmd *cobra.Command, c *aws.Client, ws config.Workspace) error {
	if err := c.TeardownNetwork(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "VPC '%s' deleted\n", ws.VPCName)
	return nil
}
