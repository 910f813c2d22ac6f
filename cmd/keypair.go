package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietdv277/gpuws/internal/aws"
	"github.com/vietdv277/gpuws/internal/config"
)

var keyPairFlags = map[string]string{
	"key-name": "key_name",
	"key-dir":  "key_dir",
}

func newKeyPairCmd(g *globals) *cobra.Command {
	actions := []action{
		{name: "create", run: runKeyPairCreate},
		{name: "delete", run: runKeyPairDelete},
	}

	cmd := newResourceCmd(g, "key-pair", "Create or delete the workspace SSH key pair",
		`Create or delete the SSH key pair used to reach the instance.

create registers a new RSA key pair and saves its private key to
<key-dir>/<key-name>.pem, readable by you only. An existing file is never
overwritten.

delete removes the local .pem first and then the key pair on AWS. If the
local file is missing nothing is deleted on AWS.

Examples:
  gpuws key-pair create --key-dir ~/.ssh
  gpuws key-pair delete --key-name lab --key-dir ~/.ssh`,
		actions, keyPairFlags)

	cmd.Flags().String("key-name", "", "name of the key pair")
	cmd.Flags().String("key-dir", ".", "directory holding the private key file")

	return cmd
}

func runKeyPairCreate(ctx context.Context, cmd *cobra.Command, c *aws.Client, ws config.Workspace) error {
	path, err := c.CreateKeyPair(ctx, ws.KeyDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Key pair '%s' created, private key saved to %s\n", ws.KeyName, path)
	return nil
}

func runKeyPairDelete(ctx context.Context, cmd *cobra.Command, c *aws.Client, ws config.Workspace) error {
	if err := c.DeleteKeyPair(ctx, ws.KeyDir); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Key pair '%s' deleted\n", ws.KeyName)
	return nil
}
