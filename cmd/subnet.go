package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietdv277/gpuws/internal/aws"
	"github.com/vietdv277/gpuws/internal/config"
)

func newSubnetCmd(g *globals) *cobra.Command {
	actions := []action{
		{name: "create", run: runSubnetCreate},
		{name: "delete", run: runSubnetDelete},
	}

	return newResourceCmd(g, "subnet", "Create or delete the workspace subnet",
		`Create or delete the public subnet of the workspace VPC.

create makes the subnet in the first availability zone of the region,
enables public IPs on launch, creates a route table whose default route
goes through the VPC's internet gateway and associates the two.
delete undoes this in reverse. Terminate the instance first.

Examples:
  gpuws subnet create
  gpuws subnet delete`,
		actions, nil)
}

func runSubnetCreate(ctx context.Context, cmd *cobra.Command, c *aws.Client, ws config.Workspace) error {
	if err := c.ProvisionSubnet(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Subnet '%s' created in VPC '%s' with route table '%s'\n",
		ws.SubnetName, ws.VPCName, ws.RouteTableName)
	return nil
}

func runSubnetDelete(ctx context.Context, cmd *cobra.Command, c *aws.Client, ws config.Workspace) error {
	if err := c.TeardownSubnet(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Subnet '%s' deleted\n", ws.SubnetName)
	return nil
}
