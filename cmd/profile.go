package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/vietdv277/gpuws/internal/aws"
	"github.com/vietdv277/gpuws/internal/config"
	"github.com/vietdv277/gpuws/internal/ui"
	pkgtypes "github.com/vietdv277/gpuws/pkg/types"
)

// profileFs is where the shared AWS files are read from
var profileFs = afero.NewOsFs()

func newProfileCmd(g *globals) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage AWS profiles",
		Long: `List the AWS profiles found in ~/.aws/credentials and ~/.aws/config and
choose the one gpuws uses by default.

Examples:
  gpuws profile ls               # List all available profiles
  gpuws profile set lab          # Save "lab" as the default profile`,
	}

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List available AWS profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := g.workspace(cmd, nil); err != nil {
				return err
			}

			profiles, err := listProfiles()
			if err != nil {
				return err
			}
			ui.PrintProfiles(cmd.OutOrStdout(), profiles, g.activeProfile())
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <profile-name>",
		Short: "Set the default AWS profile",
		Long: `Save a profile to the gpuws config file so later commands use it without
--profile.

Examples:
  gpuws profile set lab`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			profiles, err := listProfiles()
			if err != nil {
				return err
			}
			if !aws.HasProfile(profiles, name) {
				return fmt.Errorf("profile %q not found", name)
			}

			ws, err := g.workspace(cmd, nil)
			if err != nil {
				return err
			}
			ws.Profile = name

			path := g.configPath()
			if err := config.SaveConfig(path, ws); err != nil {
				return fmt.Errorf("failed to save profile: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Profile set to: %s\n", name)
			fmt.Fprintf(out, "Saved to: %s\n", path)
			return nil
		},
	}

	profileCmd.AddCommand(lsCmd, setCmd)
	return profileCmd
}

func listProfiles() ([]pkgtypes.AWSProfile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to find home directory: %w", err)
	}
	profiles, err := aws.ListProfiles(profileFs, home)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}
